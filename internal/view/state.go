package view

import (
	"time"

	"github.com/danmu-dashboard-go/internal/models"
)

// FeedState is the filter and position of the room feed table
type FeedState struct {
	Form  FilterForm `json:"form"`
	Pager Pager      `json:"pager"`
}

// CheckerState is the last user lookup
type CheckerState struct {
	UID       uint64 `json:"uid"`
	Timestamp int64  `json:"timestamp"`
}

// State is everything one browser session has selected
type State struct {
	RoomID    int64         `json:"room_id"`
	Feed      FeedState     `json:"feed"`
	Metric    models.Metric `json:"metric"`
	Checker   CheckerState  `json:"checker"`
	BlockUser Pager         `json:"block_user"`
	Lang      string        `json:"lang,omitempty"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// NewState opens roomID with default filters
func NewState(roomID int64, feedLimit, blockUserLimit int, now time.Time) *State {
	return &State{
		RoomID: roomID,
		Feed: FeedState{
			Form:  NewFilterForm(now),
			Pager: NewPager(feedLimit),
		},
		Metric:    models.MetricDanmuTotal,
		BlockUser: NewPager(blockUserLimit),
		UpdatedAt: now,
	}
}

// SwitchRoom is the only way to change the selected room. Moving to another
// room drops the search, goes back to danmu as of now and rewinds the feed.
// It reports whether anything changed.
func (s *State) SwitchRoom(roomID int64, now time.Time) bool {
	if s.RoomID == roomID {
		return false
	}
	s.RoomID = roomID
	s.Feed.Form = NewFilterForm(now)
	s.Feed.Pager.Reset()
	s.UpdatedAt = now
	return true
}

// FeedQuery is the message request of the current feed position
func (s *State) FeedQuery() models.MessageQuery {
	return s.Feed.Form.Query(s.RoomID, s.Feed.Pager)
}

// LookUp records a checker search; the date defaults to now
func (s *State) LookUp(uid uint64, timestamp int64) {
	s.Checker = CheckerState{UID: uid, Timestamp: timestamp}
}
