package view

import (
	"fmt"
	"time"

	"github.com/danmu-dashboard-go/internal/models"
)

// DateLayout is the format of date inputs
const DateLayout = "2006-01-02"

// StartOfDay is midnight of t's day in loc, the key the API uses to pick a
// day of data
func StartOfDay(t time.Time, loc *time.Location) int64 {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc).Unix()
}

// Filter is the query part of a room feed
type Filter struct {
	Message     string             `json:"message"`
	MessageType models.MessageType `json:"message_type"`
	Timestamp   int64              `json:"timestamp"`
}

// Date formats the timestamp for a date input
func (f Filter) Date(loc *time.Location) string {
	return time.Unix(f.Timestamp, 0).In(loc).Format(DateLayout)
}

// FilterForm keeps the values being typed apart from the values in effect
type FilterForm struct {
	Draft     Filter `json:"draft"`
	Committed Filter `json:"committed"`
}

// NewFilterForm starts with an empty danmu search as of now
func NewFilterForm(now time.Time) FilterForm {
	f := Filter{MessageType: models.MessageTypeDanmu, Timestamp: now.Unix()}
	return FilterForm{Draft: f, Committed: f}
}

// Editing reports whether the draft differs from the committed filter
func (f *FilterForm) Editing() bool {
	return f.Draft != f.Committed
}

func (f *FilterForm) SetMessage(message string) {
	f.Draft.Message = message
}

func (f *FilterForm) SetMessageType(t models.MessageType) {
	f.Draft.MessageType = t
}

// SetDate sets the draft timestamp to the start of date in loc; an empty
// date leaves the draft unchanged
func (f *FilterForm) SetDate(date string, loc *time.Location) error {
	if date == "" {
		return nil
	}
	t, err := time.ParseInLocation(DateLayout, date, loc)
	if err != nil {
		return fmt.Errorf("parse date %q: %w", date, err)
	}
	f.Draft.Timestamp = t.Unix()
	return nil
}

// Submit commits the draft and rewinds the pager
func (f *FilterForm) Submit(p *Pager) {
	f.Committed = f.Draft
	p.Reset()
}

// Query combines the committed filter with a pager position
func (f *FilterForm) Query(roomID int64, p Pager) models.MessageQuery {
	return models.MessageQuery{
		RoomID:      roomID,
		Message:     f.Committed.Message,
		MessageType: f.Committed.MessageType,
		Timestamp:   f.Committed.Timestamp,
		Limit:       p.Limit,
		Offset:      p.Offset,
	}
}
