package i18n

import (
	"embed"
	"encoding/json"
	"fmt"

	"github.com/danmu-dashboard-go/internal/config"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localeFS embed.FS

// Localizer manages internationalization
type Localizer struct {
	bundle          *i18n.Bundle
	defaultLanguage string
	languages       []string
	matcher         language.Matcher
	localizers      map[string]*i18n.Localizer
}

// NewLocalizer creates a new localizer
func NewLocalizer(cfg *config.I18nConfig) (*Localizer, error) {
	bundle := i18n.NewBundle(language.Chinese)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	// Load language files
	tags := make([]language.Tag, 0, len(cfg.Languages))
	localizers := make(map[string]*i18n.Localizer)
	for _, lang := range cfg.Languages {
		if _, err := bundle.LoadMessageFileFS(localeFS, fmt.Sprintf("locales/%s.json", lang)); err != nil {
			return nil, fmt.Errorf("failed to load language file %s: %w", lang, err)
		}
		tags = append(tags, language.Make(lang))
		localizers[lang] = i18n.NewLocalizer(bundle, lang)
	}
	if _, ok := localizers[cfg.DefaultLanguage]; !ok {
		return nil, fmt.Errorf("default language %s is not loaded", cfg.DefaultLanguage)
	}

	return &Localizer{
		bundle:          bundle,
		defaultLanguage: cfg.DefaultLanguage,
		languages:       cfg.Languages,
		matcher:         language.NewMatcher(tags),
		localizers:      localizers,
	}, nil
}

// Match picks a loaded language from an explicit choice or an
// Accept-Language header
func (l *Localizer) Match(explicit, acceptLanguage string) string {
	if _, ok := l.localizers[explicit]; ok {
		return explicit
	}
	if acceptLanguage == "" {
		return l.defaultLanguage
	}
	_, index, confidence := l.matcher.Match(parseAccept(acceptLanguage)...)
	if confidence == language.No {
		return l.defaultLanguage
	}
	return l.languages[index]
}

func parseAccept(header string) []language.Tag {
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil {
		return nil
	}
	return tags
}

// Get returns localized message
func (l *Localizer) Get(lang, messageID string, data map[string]interface{}) string {
	localizer, exists := l.localizers[lang]
	if !exists {
		localizer = l.localizers[l.defaultLanguage]
	}

	msg, err := localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    messageID,
		TemplateData: data,
	})
	if err != nil {
		return messageID // Fallback to message ID
	}

	return msg
}

// Message IDs
const (
	MsgTitle            = "title"
	MsgColleagues       = "colleagues"
	MsgChecker          = "checker"
	MsgBlockUser        = "block_user"
	MsgStatistics       = "statistics"
	MsgBackToDefault    = "back_to_default"
	MsgToday            = "today"
	MsgVersusYesterday  = "versus_yesterday"
	MsgChartTitle       = "chart_title"
	MsgChartDescription = "chart_description"
	MsgChartDays        = "chart_days"
	MsgSearch           = "search"
	MsgSearchHint       = "search_hint"
	MsgUIDHint          = "uid_hint"
	MsgLoading          = "loading"
	MsgNetworkError     = "network_error"
	MsgEmpty            = "empty"
	MsgPrev             = "prev"
	MsgNext             = "next"
	MsgPageOf           = "page_of"
	MsgTotalCount       = "total_count"
	MsgRateLimited      = "rate_limited"
	MsgNotFound         = "not_found"

	MsgColUID       = "col_uid"
	MsgColUsername  = "col_username"
	MsgColMessage   = "col_message"
	MsgColType      = "col_type"
	MsgColWorth     = "col_worth"
	MsgColTime      = "col_time"
	MsgColRoom      = "col_room"
	MsgColOperator  = "col_operator"
	MsgColBlockRoom = "col_block_room"
	MsgColBlockTime = "col_block_time"

	MsgTypeDanmu     = "type_danmu"
	MsgTypeSuperChat = "type_super_chat"

	MsgOperatorRoomAdmin = "operator_room_admin"
	MsgOperatorStreamer  = "operator_streamer"
	MsgOperatorOther     = "operator_other"
)

// MetricMessageID names the label of a statistics metric
func MetricMessageID(metric string) string {
	return "metric_" + metric
}
