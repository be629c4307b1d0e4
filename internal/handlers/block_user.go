package handlers

import (
	"net/http"

	"github.com/danmu-dashboard-go/internal/i18n"
	"github.com/danmu-dashboard-go/internal/models"
	"github.com/danmu-dashboard-go/internal/services/api"
	"github.com/danmu-dashboard-go/internal/web"
)

const slotBlockUser = "block_user"

type BlockUserRow struct {
	models.BlockUser
	RoomName string
}

// BlockUserPage is the paged ban list of all rooms
type BlockUserPage struct {
	Layout
	Table      Section
	Rows       []BlockUserRow
	Pagination Pagination
}

func (s *Server) handleBlockUser(w http.ResponseWriter, r *http.Request) {
	sess := s.loadSession(w, r)
	log := s.requestLogger(r, sess)
	lang := s.lang(r, sess)

	pager := sess.State.BlockUser
	req := s.api.BlockUsersRequest(pager.Limit, pager.Offset)
	list := s.watch(sess, slotBlockUser, req.Key, req.Fetch)
	s.await(r.Context(), list)

	page := BlockUserPage{
		Layout: s.layout(r, lang, s.t(lang, i18n.MsgBlockUser), web.PageBlockUser, s.currentStreamer(sess)),
		Table:  Section{Lang: lang, State: sectionState(list.entry, false)},
	}
	switch page.Table.State {
	case StateReady:
		rsp, err := api.Result[models.BlockUserPage](list.entry)
		if err != nil {
			log.WithError(err).Error("Unexpected block user page")
			page.Table.State = StateError
			break
		}
		if pager.Clamp(rsp.Count) {
			sess.State.BlockUser = pager
			s.saveSession(r.Context(), sess)
			http.Redirect(w, r, r.URL.Path, http.StatusSeeOther)
			return
		}
		for _, u := range rsp.Data {
			page.Rows = append(page.Rows, BlockUserRow{BlockUser: u, RoomName: s.rooms.Nickname(u.RoomID)})
		}
		page.Pagination = buildPagination(lang, "/block_user/page", pager, rsp.Count)
	case StateError:
		log.WithError(list.entry.Err).Warn("Block user query failed")
	}

	page.Refresh = page.Table.State == StateLoading
	s.saveSession(r.Context(), sess)
	s.render(w, r, http.StatusOK, web.PageBlockUser, page.Table.State, page)
}

func (s *Server) handleBlockUserPage(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	sess := s.loadSession(w, r)
	pager := sess.State.BlockUser
	count, known := lastCount(s, sess, slotBlockUser, s.api.BlockUsersRequest(pager.Limit, pager.Offset),
		func(p *models.BlockUserPage) int { return p.Count })
	if err := paginate(&sess.State.BlockUser, r.PostFormValue("action"), r.PostFormValue("page"), count, known); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.saveSession(r.Context(), sess)
	http.Redirect(w, r, "/block_user", http.StatusSeeOther)
}
