package handlers

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"

	"github.com/danmu-dashboard-go/internal/i18n"
	"github.com/danmu-dashboard-go/internal/models"
	"github.com/danmu-dashboard-go/internal/services/api"
	"github.com/danmu-dashboard-go/internal/services/cache"
	"github.com/danmu-dashboard-go/internal/view"
	"github.com/danmu-dashboard-go/internal/web"
	"github.com/danmu-dashboard-go/pkg/logger"
	"github.com/danmu-dashboard-go/pkg/markdown"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Section states
const (
	StateReady   = "ready"
	StateLoading = "loading"
	StateError   = "error"
)

// Layout is the part of every page around the content
type Layout struct {
	Lang        string
	Title       string
	Nav         string
	Path        string
	Refresh     bool
	Current     models.Streamer
	Description template.HTML
	Others      []models.Streamer
	Default     models.Streamer
	ShowBack    bool
}

// Section is a block of a page backed by one query
type Section struct {
	Lang  string
	State string
}

type PageLink struct {
	Index   int
	Number  int
	Current bool
}

type Pagination struct {
	Lang    string
	Action  string
	Pages   []PageLink
	CanPrev bool
	CanNext bool
	Current int
	Total   int
	Count   int
}

type ChartView struct {
	Lang        string
	State       string
	Title       string
	Description string
	Chart       view.Chart
	// SelectURL prefixes the metric name in the total links; empty hides them
	SelectURL string
}

type StatsView struct {
	Lang  string
	State string
	Cards []view.StatCard
}

type ErrorPage struct {
	Layout
	Status  int
	Message string
}

// watch is one observed query of a page
type watch struct {
	observer *cache.Observer
	entry    cache.Entry
}

func (s *Server) watch(sess *session, slot string, key cache.Key, fetch cache.FetchFunc) *watch {
	o := s.cache.Observer(sess.slot(slot))
	return &watch{observer: o, entry: o.Observe(key, fetch)}
}

// await waits for all queries together, at most the render wait
func (s *Server) await(ctx context.Context, watches ...*watch) {
	g, ctx := errgroup.WithContext(ctx)
	for _, w := range watches {
		w := w
		g.Go(func() error {
			w.entry = w.observer.Wait(ctx, s.config.Server.RenderWait)
			return nil
		})
	}
	_ = g.Wait()
}

// sectionState maps an entry to a section state; envelope errors count as
// empty data when emptyOnCode is set
func sectionState(e cache.Entry, emptyOnCode bool) string {
	switch e.Status {
	case cache.StatusPending:
		return StateLoading
	case cache.StatusError:
		if emptyOnCode && api.IsCodeError(e.Err) {
			return StateReady
		}
		return StateError
	default:
		return StateReady
	}
}

// pageState summarizes section states for metrics and the refresh tag
func pageState(states ...string) string {
	result := StateReady
	for _, st := range states {
		switch st {
		case StateLoading:
			return StateLoading
		case StateError:
			result = StateError
		}
	}
	return result
}

func (s *Server) requestLogger(r *http.Request, sess *session) *logrus.Entry {
	return logger.WithRequest(s.logger, sess.ID, r.URL.Path)
}

// lang applies an explicit ?lang= choice to the session and resolves the
// language of the response
func (s *Server) lang(r *http.Request, sess *session) string {
	if explicit := r.URL.Query().Get("lang"); explicit != "" {
		if matched := s.localizer.Match(explicit, ""); matched == explicit {
			sess.State.Lang = matched
		}
	}
	if sess.State.Lang != "" {
		return sess.State.Lang
	}
	return s.localizer.Match("", r.Header.Get("Accept-Language"))
}

func (s *Server) layout(r *http.Request, lang, title, nav string, current models.Streamer) Layout {
	def := s.rooms.Default()
	return Layout{
		Lang:        lang,
		Title:       title,
		Nav:         nav,
		Path:        r.URL.Path,
		Current:     current,
		Description: markdown.ToSidebarHTML(current.Description),
		Others:      s.rooms.Others(),
		Default:     def,
		ShowBack:    current.RoomID != def.RoomID,
	}
}

func (s *Server) t(lang, id string) string {
	return s.localizer.Get(lang, id, nil)
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, page, state string, data any) {
	s.metrics.RecordPageRendered(page, state)
	if err := s.renderer.Render(w, status, page, data); err != nil {
		s.logger.WithError(err).WithField("page", page).Error("Failed to render page")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (s *Server) renderError(w http.ResponseWriter, r *http.Request, sess *session, status int, messageID string) {
	lang := s.localizer.Match(r.URL.Query().Get("lang"), r.Header.Get("Accept-Language"))
	current := s.rooms.Default()
	if sess != nil {
		lang = s.lang(r, sess)
		if st, ok := s.rooms.ByRoomID(sess.State.RoomID); ok {
			current = st
		}
	}
	s.render(w, r, status, web.PageError, StateError, ErrorPage{
		Layout:  s.layout(r, lang, strconv.Itoa(status), "", current),
		Status:  status,
		Message: s.t(lang, messageID),
	})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.renderError(w, r, nil, http.StatusNotFound, i18n.MsgNotFound)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, fmt.Sprintf("/%d", s.config.DefaultRoomID), http.StatusFound)
}

// buildPagination lays out the pager controls of a table
func buildPagination(lang, action string, p view.Pager, count int) Pagination {
	pg := Pagination{
		Lang:    lang,
		Action:  action,
		CanPrev: p.CanPrev(),
		CanNext: p.CanNext(count),
		Current: p.CurrentPage(),
		Total:   p.TotalPages(count),
		Count:   count,
	}
	for _, i := range p.Window(count) {
		pg.Pages = append(pg.Pages, PageLink{Index: i, Number: i + 1, Current: i+1 == pg.Current})
	}
	return pg
}

var errBadPageAction = errors.New("bad page action")

// paginate applies a posted pager action; a bare page value is a jump
func paginate(p *view.Pager, action, page string, count int, known bool) error {
	switch action {
	case "next":
		p.Next(count, known)
	case "prev":
		p.Prev()
	case "jump", "":
		i, err := strconv.Atoi(page)
		if err != nil || i < 0 {
			return fmt.Errorf("%w: page %q", errBadPageAction, page)
		}
		p.JumpTo(i)
		if known {
			p.Clamp(count)
		}
	default:
		return fmt.Errorf("%w: %q", errBadPageAction, action)
	}
	return nil
}

// lastCount returns the total of the query a table slot shows, if that
// query is the one the session is currently on and it resolved
func lastCount[T any](s *Server, sess *session, slot string, req api.Request[T], count func(*T) int) (int, bool) {
	current := s.cache.Observer(sess.slot(slot)).Current()
	if current.Key != req.Key || current.Status != cache.StatusSuccess {
		return 0, false
	}
	rsp, err := api.Result[T](current)
	if err != nil {
		return 0, false
	}
	return count(rsp), true
}
