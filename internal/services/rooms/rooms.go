package rooms

import (
	"strconv"

	"github.com/danmu-dashboard-go/internal/config"
	"github.com/danmu-dashboard-go/internal/models"
)

// Directory is the static streamer list
type Directory struct {
	streamers     []models.Streamer
	byRoom        map[int64]int
	defaultRoomID int64
}

// NewDirectory builds the directory from configuration
func NewDirectory(cfg *config.Config) *Directory {
	d := &Directory{
		streamers:     make([]models.Streamer, 0, len(cfg.Streamers)),
		byRoom:        make(map[int64]int, len(cfg.Streamers)),
		defaultRoomID: cfg.DefaultRoomID,
	}
	for _, s := range cfg.Streamers {
		d.byRoom[s.RoomID] = len(d.streamers)
		d.streamers = append(d.streamers, models.Streamer{
			ID:           s.ID,
			Nickname:     s.Nickname,
			Username:     s.Username,
			BilibiliLink: s.BilibiliLink,
			RoomID:       s.RoomID,
			Avatar:       s.Avatar,
			SmallAvatar:  s.SmallAvatar,
			Description:  s.Description,
		})
	}
	return d
}

// All returns every streamer in configuration order
func (d *Directory) All() []models.Streamer {
	return d.streamers
}

func (d *Directory) ByRoomID(roomID int64) (models.Streamer, bool) {
	i, ok := d.byRoom[roomID]
	if !ok {
		return models.Streamer{}, false
	}
	return d.streamers[i], true
}

func (d *Directory) ByIndex(i int) (models.Streamer, bool) {
	if i < 0 || i >= len(d.streamers) {
		return models.Streamer{}, false
	}
	return d.streamers[i], true
}

// Default is the room opened by /
func (d *Directory) Default() models.Streamer {
	s, _ := d.ByRoomID(d.defaultRoomID)
	return s
}

// Others lists the rooms offered in the navigation dropdown
func (d *Directory) Others() []models.Streamer {
	others := make([]models.Streamer, 0, len(d.streamers))
	for _, s := range d.streamers {
		if s.ID != 0 {
			others = append(others, s)
		}
	}
	return others
}

// Nickname names a room, falling back to its id
func (d *Directory) Nickname(roomID int64) string {
	if s, ok := d.ByRoomID(roomID); ok {
		return s.Nickname
	}
	return strconv.FormatInt(roomID, 10)
}
