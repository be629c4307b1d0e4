package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const minimalConfig = `
api:
  base_url: http://upstream:8080/
streamers:
  - id: 0
    nickname: 卢
    room_id: 22747736
  - id: 1
    nickname: 甲
    room_id: 23649609
`

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "http://upstream:8080", cfg.API.BaseURL)
	assert.Equal(t, int64(22747736), cfg.DefaultRoomID, "the first streamer is the default room")
	assert.Equal(t, 3*time.Second, cfg.Server.RenderWait)
	assert.Equal(t, 50, cfg.Pagination.FeedLimit)
	assert.Equal(t, 15, cfg.Pagination.BlockUserLimit)
	assert.Equal(t, 30, cfg.Chart.Days)
	assert.Equal(t, "memory", cfg.Storage.Type)
	assert.Equal(t, []string{"zh", "en"}, cfg.I18n.Languages)
	assert.Equal(t, "0.0.0.0:3000", cfg.Server.Addr())
	require.Len(t, cfg.Streamers, 2)
	assert.Equal(t, "甲", cfg.Streamers[1].Nickname)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("API_URL", "http://from-env:9000")
	t.Setenv("REDIS_HOST", "redis")

	cfg, err := LoadConfig(writeConfig(t, minimalConfig))
	require.NoError(t, err)
	assert.Equal(t, "http://from-env:9000", cfg.API.BaseURL)
	assert.Equal(t, "redis:6379", cfg.Storage.Redis.Addr)
}

func TestLoadConfig_Invalid(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{name: "no api", content: "streamers:\n  - id: 0\n    room_id: 1\n"},
		{name: "no streamers", content: "api:\n  base_url: http://x\n"},
		{name: "unknown default room", content: minimalConfig + "default_room_id: 42\n"},
		{name: "storage type", content: minimalConfig + "storage:\n  type: disk\n"},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, c.content))
			assert.Error(t, err)
		})
	}

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestTimeLocation(t *testing.T) {
	assert.Equal(t, time.Local, (&ServerConfig{}).TimeLocation())
	assert.Equal(t, time.Local, (&ServerConfig{Location: "Nowhere/Invalid"}).TimeLocation())
	assert.Equal(t, time.UTC, (&ServerConfig{Location: "UTC"}).TimeLocation())
}
