package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/danmu-dashboard-go/internal/i18n"
	"github.com/danmu-dashboard-go/internal/models"
	"github.com/danmu-dashboard-go/internal/services/api"
	"github.com/danmu-dashboard-go/internal/view"
	"github.com/danmu-dashboard-go/internal/web"
	pkglogger "github.com/danmu-dashboard-go/pkg/logger"
	"github.com/gorilla/mux"
)

const (
	slotFeedStats    = "feed:stats"
	slotFeedChart    = "feed:chart"
	slotFeedMessages = "feed:messages"
)

// FeedPage is the room page: chart, today cards, search and message table
type FeedPage struct {
	Layout
	RoomID       int64
	Chart        ChartView
	Stats        StatsView
	Form         view.Filter
	Date         string
	MessageTypes []models.MessageType
	Table        Section
	Messages     []models.Message
	Pagination   Pagination
}

// room resolves the {room_id} path variable against the directory
func (s *Server) room(r *http.Request) (models.Streamer, bool) {
	roomID, err := strconv.ParseInt(mux.Vars(r)["room_id"], 10, 64)
	if err != nil {
		return models.Streamer{}, false
	}
	return s.rooms.ByRoomID(roomID)
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	streamer, ok := s.room(r)
	if !ok {
		s.handleNotFound(w, r)
		return
	}

	sess := s.loadSession(w, r)
	log := pkglogger.WithRoom(s.requestLogger(r, sess), streamer.RoomID)
	now := s.now()
	if sess.State.SwitchRoom(streamer.RoomID, now) {
		log.Debug("Room switched")
	}
	if metric := r.URL.Query().Get("metric"); metric != "" {
		sess.State.Metric = models.ParseMetric(metric)
	}
	lang := s.lang(r, sess)

	statsReq := s.api.StatisticsRequest(streamer.RoomID, view.StartOfDay(now, s.loc))
	start, end := view.ChartWindow(now, s.config.Chart.Days)
	chartReq := s.api.DanmuStatisticsRequest(streamer.RoomID, start, end)
	feedReq := s.api.MessagesRequest(sess.State.FeedQuery())

	stats := s.watch(sess, slotFeedStats, statsReq.Key, statsReq.Fetch)
	chart := s.watch(sess, slotFeedChart, chartReq.Key, chartReq.Fetch)
	feed := s.watch(sess, slotFeedMessages, feedReq.Key, feedReq.Fetch)
	s.await(r.Context(), stats, chart, feed)

	page := FeedPage{
		Layout:       s.layout(r, lang, streamer.Nickname, web.PageFeed, streamer),
		RoomID:       streamer.RoomID,
		Form:         sess.State.Feed.Form.Committed,
		Date:         sess.State.Feed.Form.Committed.Date(s.loc),
		MessageTypes: []models.MessageType{models.MessageTypeDanmu, models.MessageTypeSuperChat},
	}
	page.Stats = s.statsView(lang, stats)
	page.Chart = s.chartView(lang, chart, sess.State.Metric, fmt.Sprintf("/%d?metric=", streamer.RoomID))

	page.Table = Section{Lang: lang, State: sectionState(feed.entry, false)}
	switch page.Table.State {
	case StateReady:
		rsp, err := api.Result[models.MessagePage](feed.entry)
		if err != nil {
			log.WithError(err).Error("Unexpected message page")
			page.Table.State = StateError
			break
		}
		pager := sess.State.Feed.Pager
		if pager.Clamp(rsp.Count) {
			// the result set shrank below the current page
			sess.State.Feed.Pager = pager
			s.saveSession(r.Context(), sess)
			http.Redirect(w, r, r.URL.Path, http.StatusSeeOther)
			return
		}
		page.Messages = rsp.Data
		page.Pagination = buildPagination(lang, fmt.Sprintf("/%d/page", streamer.RoomID), pager, rsp.Count)
	case StateError:
		log.WithError(feed.entry.Err).Warn("Message query failed")
	}

	state := pageState(page.Stats.State, page.Chart.State, page.Table.State)
	page.Refresh = state == StateLoading
	s.saveSession(r.Context(), sess)
	s.render(w, r, http.StatusOK, web.PageFeed, state, page)
}

func (s *Server) statsView(lang string, w *watch) StatsView {
	sv := StatsView{Lang: lang, State: sectionState(w.entry, true)}
	if sv.State == StateLoading {
		return sv
	}

	var pair models.StatisticsPair
	if rsp, err := api.Result[models.StatisticsResponse](w.entry); err == nil {
		pair = rsp.Data
	}
	sv.Cards = view.Deltas(pair)
	return sv
}

func (s *Server) chartView(lang string, w *watch, metric models.Metric, selectURL string) ChartView {
	cv := ChartView{
		Lang:        lang,
		State:       sectionState(w.entry, true),
		Title:       s.t(lang, i18n.MsgChartTitle),
		Description: s.t(lang, i18n.MsgChartDescription),
		SelectURL:   selectURL,
	}

	var series []models.StatisticsResult
	if rsp, err := api.Result[models.DanmuStatistics](w.entry); err == nil {
		series = rsp.Data
	}
	cv.Chart = view.BuildChart(series, metric, s.loc)
	return cv
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	streamer, ok := s.room(r)
	if !ok {
		s.handleNotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	sess := s.loadSession(w, r)
	sess.State.SwitchRoom(streamer.RoomID, s.now())

	messageType, err := models.ParseMessageType(r.PostFormValue("message_type"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	form := &sess.State.Feed.Form
	form.SetMessage(strings.TrimSpace(r.PostFormValue("message")))
	form.SetMessageType(messageType)
	if err := form.SetDate(r.PostFormValue("date"), s.loc); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	form.Submit(&sess.State.Feed.Pager)

	s.saveSession(r.Context(), sess)
	http.Redirect(w, r, fmt.Sprintf("/%d", streamer.RoomID), http.StatusSeeOther)
}

func (s *Server) handleFeedPage(w http.ResponseWriter, r *http.Request) {
	streamer, ok := s.room(r)
	if !ok {
		s.handleNotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	sess := s.loadSession(w, r)
	sess.State.SwitchRoom(streamer.RoomID, s.now())

	count, known := lastCount(s, sess, slotFeedMessages, s.api.MessagesRequest(sess.State.FeedQuery()),
		func(p *models.MessagePage) int { return p.Count })
	if err := paginate(&sess.State.Feed.Pager, r.PostFormValue("action"), r.PostFormValue("page"), count, known); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.saveSession(r.Context(), sess)
	http.Redirect(w, r, fmt.Sprintf("/%d", streamer.RoomID), http.StatusSeeOther)
}
