package i18n

import (
	"encoding/json"
	"testing"

	"github.com/danmu-dashboard-go/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocalizer(t *testing.T) *Localizer {
	t.Helper()
	l, err := NewLocalizer(&config.I18nConfig{DefaultLanguage: "zh", Languages: []string{"zh", "en"}})
	require.NoError(t, err)
	return l
}

func TestLocalizer_Get(t *testing.T) {
	l := newTestLocalizer(t)

	assert.Equal(t, "弹幕总数", l.Get("zh", MetricMessageID("danmu_total"), nil))
	assert.Equal(t, "SC总价值", l.Get("zh", MetricMessageID("super_chat_worth"), nil))
	assert.Equal(t, "房管", l.Get("zh", MsgOperatorRoomAdmin, nil))
	assert.Equal(t, "回去看卢", l.Get("zh", MsgBackToDefault, map[string]interface{}{"Nickname": "卢"}))
	assert.Equal(t, "Back to 卢", l.Get("en", MsgBackToDefault, map[string]interface{}{"Nickname": "卢"}))

	// unknown languages use the default, unknown ids fall back to the id
	assert.Equal(t, "搜索", l.Get("fr", MsgSearch, nil))
	assert.Equal(t, "nope", l.Get("zh", "nope", nil))
}

func TestLocalizer_Match(t *testing.T) {
	l := newTestLocalizer(t)

	cases := []struct {
		explicit string
		accept   string
		expected string
	}{
		{explicit: "en", accept: "zh-CN", expected: "en"},
		{explicit: "", accept: "", expected: "zh"},
		{explicit: "", accept: "en-US,en;q=0.9", expected: "en"},
		{explicit: "", accept: "zh-CN,zh;q=0.9,en;q=0.8", expected: "zh"},
		{explicit: "fr", accept: "de", expected: "zh"},
	}
	for _, c := range cases {
		assert.Equal(t, c.expected, l.Match(c.explicit, c.accept), "%q %q", c.explicit, c.accept)
	}
}

func TestLocales_SameKeys(t *testing.T) {
	read := func(lang string) map[string]string {
		data, err := localeFS.ReadFile("locales/" + lang + ".json")
		require.NoError(t, err)
		var m map[string]string
		require.NoError(t, json.Unmarshal(data, &m))
		return m
	}
	zh, en := read("zh"), read("en")
	for k := range zh {
		assert.Contains(t, en, k)
	}
	assert.Len(t, en, len(zh))
}

func TestNewLocalizer_MissingDefault(t *testing.T) {
	_, err := NewLocalizer(&config.I18nConfig{DefaultLanguage: "ja", Languages: []string{"zh"}})
	assert.Error(t, err)
}
