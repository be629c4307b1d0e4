package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/danmu-dashboard-go/internal/i18n"
	"github.com/danmu-dashboard-go/internal/models"
	"github.com/danmu-dashboard-go/internal/view"
	"github.com/danmu-dashboard-go/internal/web"
)

const slotStatistics = "statistics"

// statisticsCharts are always shown below the selectable chart
var statisticsCharts = []models.Metric{
	models.MetricDanmuTotal,
	models.MetricSuperChatWorth,
	models.MetricDanmuPeople,
}

// StatisticsPage charts one room over the configured number of days
type StatisticsPage struct {
	Layout
	Rooms    []models.Streamer
	RoomID   int64
	Metric   models.Metric
	Selected ChartView
	Charts   []ChartView
}

// handleStatistics browses rooms through ?room_id without switching the
// session's room
func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	sess := s.loadSession(w, r)
	lang := s.lang(r, sess)

	roomID := sess.State.RoomID
	if raw := r.URL.Query().Get("room_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			s.renderError(w, r, sess, http.StatusNotFound, i18n.MsgNotFound)
			return
		}
		roomID = id
	}
	streamer, ok := s.rooms.ByRoomID(roomID)
	if !ok {
		s.renderError(w, r, sess, http.StatusNotFound, i18n.MsgNotFound)
		return
	}
	metric := models.ParseMetric(r.URL.Query().Get("metric"))

	start, end := view.ChartWindow(s.now(), s.config.Chart.Days)
	req := s.api.DanmuStatisticsRequest(streamer.RoomID, start, end)
	series := s.watch(sess, slotStatistics, req.Key, req.Fetch)
	s.await(r.Context(), series)

	page := StatisticsPage{
		Layout: s.layout(r, lang, s.t(lang, i18n.MsgStatistics), web.PageStatistics, s.currentStreamer(sess)),
		Rooms:  s.rooms.All(),
		RoomID: streamer.RoomID,
		Metric: metric,
	}
	days := s.localizer.Get(lang, i18n.MsgChartDays, map[string]interface{}{"Days": s.config.Chart.Days})

	page.Selected = s.chartView(lang, series, metric, fmt.Sprintf("/statistics?room_id=%d&metric=", streamer.RoomID))
	page.Selected.Title = streamer.Nickname
	page.Selected.Description = days
	for _, m := range statisticsCharts {
		cv := s.chartView(lang, series, m, "")
		cv.Title = s.t(lang, i18n.MetricMessageID(string(m)))
		cv.Description = days
		page.Charts = append(page.Charts, cv)
	}

	state := page.Selected.State
	page.Refresh = state == StateLoading
	s.saveSession(r.Context(), sess)
	s.render(w, r, http.StatusOK, web.PageStatistics, state, page)
}
