package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strconv"
	"time"

	"github.com/danmu-dashboard-go/internal/i18n"
	"github.com/danmu-dashboard-go/internal/models"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

//go:embed templates static
var EFS embed.FS

// Page names
const (
	PageFeed       = "feed"
	PageChecker    = "checker"
	PageBlockUser  = "block_user"
	PageStatistics = "statistics"
	PageError      = "error"
)

var pageNames = []string{PageFeed, PageChecker, PageBlockUser, PageStatistics, PageError}

// Renderer executes the embedded page templates
type Renderer struct {
	pages     map[string]*template.Template
	localizer *i18n.Localizer
	loc       *time.Location
	numbers   *message.Printer
}

// NewRenderer parses every page together with the shared layout and partials
func NewRenderer(localizer *i18n.Localizer, loc *time.Location) (*Renderer, error) {
	r := &Renderer{
		pages:     make(map[string]*template.Template, len(pageNames)),
		localizer: localizer,
		loc:       loc,
		numbers:   message.NewPrinter(language.English),
	}

	for _, name := range pageNames {
		tpl, err := template.New(name).Funcs(r.funcs()).ParseFS(EFS,
			"templates/layout.html",
			"templates/partials.html",
			"templates/"+name+".html",
		)
		if err != nil {
			return nil, fmt.Errorf("parse %s template: %w", name, err)
		}
		r.pages[name] = tpl
	}
	return r, nil
}

// Render writes a full page with the given status. The page is rendered to
// a buffer first so a template error never leaves a half written response.
func (r *Renderer) Render(w http.ResponseWriter, status int, page string, data any) error {
	tpl, ok := r.pages[page]
	if !ok {
		return fmt.Errorf("unknown page %q", page)
	}

	var buf bytes.Buffer
	if err := tpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return fmt.Errorf("execute %s template: %w", page, err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}

// StaticHandler serves the embedded stylesheet
func StaticHandler() http.Handler {
	sub, err := fs.Sub(EFS, "static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}

func (r *Renderer) funcs() template.FuncMap {
	return template.FuncMap{
		"t":             r.translate,
		"metricLabel":   r.metricLabel,
		"typeLabel":     r.typeLabel,
		"operatorLabel": r.operatorLabel,
		"formatTime":    r.formatTime,
		"formatNumber":  r.formatNumber,
		"formatWorth":   formatWorth,
		"add":           func(a, b int) int { return a + b },
	}
}

// translate takes alternating key/value pairs as template data
func (r *Renderer) translate(lang, id string, kv ...any) string {
	var data map[string]interface{}
	if len(kv) > 1 {
		data = make(map[string]interface{}, len(kv)/2)
		for i := 0; i+1 < len(kv); i += 2 {
			data[fmt.Sprint(kv[i])] = kv[i+1]
		}
	}
	return r.localizer.Get(lang, id, data)
}

func (r *Renderer) metricLabel(lang string, metric models.Metric) string {
	return r.localizer.Get(lang, i18n.MetricMessageID(string(metric)), nil)
}

func (r *Renderer) typeLabel(lang string, t models.MessageType) string {
	if t == models.MessageTypeSuperChat {
		return r.localizer.Get(lang, i18n.MsgTypeSuperChat, nil)
	}
	return r.localizer.Get(lang, i18n.MsgTypeDanmu, nil)
}

func (r *Renderer) operatorLabel(lang string, op models.Operator) string {
	switch op {
	case models.OperatorRoomAdmin:
		return r.localizer.Get(lang, i18n.MsgOperatorRoomAdmin, nil)
	case models.OperatorStreamer:
		return r.localizer.Get(lang, i18n.MsgOperatorStreamer, nil)
	default:
		return r.localizer.Get(lang, i18n.MsgOperatorOther, nil)
	}
}

func (r *Renderer) formatTime(ts int64) string {
	return time.Unix(ts, 0).In(r.loc).Format("2006-01-02 15:04:05")
}

func (r *Renderer) formatNumber(n uint64) string {
	return r.numbers.Sprintf("%d", n)
}

func formatWorth(w float64) string {
	return strconv.FormatFloat(w, 'f', -1, 64)
}
