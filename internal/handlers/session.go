package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/danmu-dashboard-go/internal/services/storage"
	"github.com/danmu-dashboard-go/internal/view"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const sessionCookie = "danmu_session"

type session struct {
	ID    string
	State *view.State
}

// slot names the observer of one page section of this session
func (s *session) slot(name string) string {
	return s.ID + ":" + name
}

func (s *Server) newState() *view.State {
	return view.NewState(
		s.config.DefaultRoomID,
		s.config.Pagination.FeedLimit,
		s.config.Pagination.BlockUserLimit,
		s.now(),
	)
}

// loadSession reads the session cookie and its stored state. Unknown, expired
// or unreadable sessions start over with default state.
func (s *Server) loadSession(w http.ResponseWriter, r *http.Request) *session {
	if c, err := r.Cookie(sessionCookie); err == nil {
		if _, err := uuid.Parse(c.Value); err == nil {
			state, err := s.storage.GetState(r.Context(), c.Value)
			switch {
			case err == nil:
				return &session{ID: c.Value, State: state}
			case !errors.Is(err, storage.ErrNotFound):
				s.logger.WithError(err).WithField("session", c.Value).Warn("Failed to load session state")
			}
			return &session{ID: c.Value, State: s.newState()}
		}
	}

	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   int(s.config.Server.SessionTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return &session{ID: id, State: s.newState()}
}

func (s *Server) saveSession(ctx context.Context, sess *session) {
	sess.State.UpdatedAt = s.now()
	if err := s.storage.SaveState(ctx, sess.ID, sess.State); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"session": sess.ID,
		}).Error("Failed to save session state")
	}
}
