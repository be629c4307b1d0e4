package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/danmu-dashboard-go/internal/i18n"
	"github.com/danmu-dashboard-go/internal/models"
	"github.com/danmu-dashboard-go/internal/services/api"
	"github.com/danmu-dashboard-go/internal/view"
	"github.com/danmu-dashboard-go/internal/web"
	"github.com/gorilla/mux"
)

const slotChecker = "checker"

// CheckerRow is a found message with the nickname of its room
type CheckerRow struct {
	models.CheckerMessage
	RoomName string
}

// CheckerPage looks up one user's messages of a day across all rooms
type CheckerPage struct {
	Layout
	UID      string
	Date     string
	Searched bool
	Table    Section
	Rows     []CheckerRow
}

func (s *Server) currentStreamer(sess *session) models.Streamer {
	if st, ok := s.rooms.ByRoomID(sess.State.RoomID); ok {
		return st
	}
	return s.rooms.Default()
}

func (s *Server) handleCheckerForm(w http.ResponseWriter, r *http.Request) {
	sess := s.loadSession(w, r)
	lang := s.lang(r, sess)

	page := CheckerPage{
		Layout: s.layout(r, lang, s.t(lang, i18n.MsgChecker), web.PageChecker, s.currentStreamer(sess)),
		Date:   s.now().In(s.loc).Format(view.DateLayout),
		Table:  Section{Lang: lang, State: StateReady},
	}
	if uid := sess.State.Checker.UID; uid != 0 {
		page.UID = strconv.FormatUint(uid, 10)
		page.Date = time.Unix(sess.State.Checker.Timestamp, 0).In(s.loc).Format(view.DateLayout)
	}

	s.saveSession(r.Context(), sess)
	s.render(w, r, http.StatusOK, web.PageChecker, StateReady, page)
}

func (s *Server) handleCheckerSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	uid, err := strconv.ParseUint(strings.TrimSpace(r.PostFormValue("uid")), 10, 64)
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid uid %q", r.PostFormValue("uid")), http.StatusBadRequest)
		return
	}

	target := fmt.Sprintf("/checker/%d", uid)
	if date := strings.TrimSpace(r.PostFormValue("date")); date != "" {
		if _, err := time.ParseInLocation(view.DateLayout, date, s.loc); err != nil {
			http.Error(w, fmt.Sprintf("invalid date %q", date), http.StatusBadRequest)
			return
		}
		target += "?date=" + date
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (s *Server) handleChecker(w http.ResponseWriter, r *http.Request) {
	uid, err := strconv.ParseUint(mux.Vars(r)["uid"], 10, 64)
	if err != nil {
		s.handleNotFound(w, r)
		return
	}

	sess := s.loadSession(w, r)
	log := s.requestLogger(r, sess).WithField("uid", uid)
	lang := s.lang(r, sess)

	timestamp := view.StartOfDay(s.now(), s.loc)
	if uid == sess.State.Checker.UID && sess.State.Checker.Timestamp != 0 {
		timestamp = sess.State.Checker.Timestamp
	}
	if date := r.URL.Query().Get("date"); date != "" {
		t, err := time.ParseInLocation(view.DateLayout, date, s.loc)
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid date %q", date), http.StatusBadRequest)
			return
		}
		timestamp = t.Unix()
	}
	sess.State.LookUp(uid, timestamp)

	req := s.api.CheckerRequest(uid, timestamp)
	found := s.watch(sess, slotChecker, req.Key, req.Fetch)
	s.await(r.Context(), found)

	page := CheckerPage{
		Layout:   s.layout(r, lang, s.t(lang, i18n.MsgChecker), web.PageChecker, s.currentStreamer(sess)),
		UID:      strconv.FormatUint(uid, 10),
		Date:     time.Unix(timestamp, 0).In(s.loc).Format(view.DateLayout),
		Searched: true,
		Table:    Section{Lang: lang, State: sectionState(found.entry, false)},
	}
	switch page.Table.State {
	case StateReady:
		rsp, err := api.Result[models.CheckerResult](found.entry)
		if err != nil {
			log.WithError(err).Error("Unexpected checker result")
			page.Table.State = StateError
			break
		}
		for _, m := range rsp.Data {
			page.Rows = append(page.Rows, CheckerRow{CheckerMessage: m, RoomName: s.rooms.Nickname(m.RoomID)})
		}
	case StateError:
		log.WithError(found.entry.Err).Warn("Checker query failed")
	}

	page.Refresh = page.Table.State == StateLoading
	s.saveSession(r.Context(), sess)
	s.render(w, r, http.StatusOK, web.PageChecker, page.Table.State, page)
}
