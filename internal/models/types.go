package models

import (
	"fmt"
	"time"
)

// MessageType is the kind of a live room event
type MessageType string

const (
	MessageTypeDanmu     MessageType = "danmu"
	MessageTypeSuperChat MessageType = "super_chat"
)

// ParseMessageType accepts the two known event kinds; empty input means danmu
func ParseMessageType(s string) (MessageType, error) {
	switch MessageType(s) {
	case "", MessageTypeDanmu:
		return MessageTypeDanmu, nil
	case MessageTypeSuperChat:
		return MessageTypeSuperChat, nil
	default:
		return "", fmt.Errorf("unknown message type %q", s)
	}
}

// Message is a danmu or super chat event as served by the API
type Message struct {
	UID         uint64      `json:"uid"`
	Username    string      `json:"username"`
	Message     string      `json:"message"`
	MessageType MessageType `json:"message_type"`
	Timestamp   int64       `json:"timestamp"`
	// WorthValue is only present for super chats
	WorthValue *float64 `json:"worth,omitempty"`
}

// Worth returns the monetary value of the event, 0 when absent
func (m Message) Worth() float64 {
	if m.WorthValue == nil {
		return 0
	}
	return *m.WorthValue
}

// IsSuperChat reports whether the event is a paid message
func (m Message) IsSuperChat() bool {
	return m.MessageType == MessageTypeSuperChat
}

// Time converts the unix timestamp
func (m Message) Time() time.Time {
	return time.Unix(m.Timestamp, 0)
}

// CheckerMessage is a Message found by the per-user lookup, tagged with its room
type CheckerMessage struct {
	Message
	RoomID int64 `json:"room_id"`
}

// Envelope is the common header of every API response
type Envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Header returns the envelope itself; response types embedding Envelope
// expose it through promotion
func (e Envelope) Header() Envelope {
	return e
}

// MessagePage is the response of GET /api/{room_id}
type MessagePage struct {
	Envelope
	Count int       `json:"count"`
	Data  []Message `json:"data"`
}

// CheckerResult is the response of GET /api/checker
type CheckerResult struct {
	Envelope
	Data []CheckerMessage `json:"data"`
}

// Operator is who issued a room ban
type Operator int

const (
	OperatorRoomAdmin Operator = 1
	OperatorStreamer  Operator = 2
)

// BlockUser is one entry of the ban list
type BlockUser struct {
	UID       uint64   `json:"uid"`
	Username  string   `json:"username"`
	Operator  Operator `json:"operator"`
	RoomID    int64    `json:"room_id"`
	Timestamp int64    `json:"timestamp"`
}

// BlockUserPage is the response of GET /api/block_user
type BlockUserPage struct {
	Envelope
	Count int         `json:"count"`
	Data  []BlockUser `json:"data"`
}

// StatisticsResult is a one-day aggregate of a room
type StatisticsResult struct {
	Timestamp      int64  `json:"timestamp,omitempty"`
	DanmuTotal     uint64 `json:"danmu_total"`
	DanmuPeople    uint64 `json:"danmu_people"`
	SuperChatTotal uint64 `json:"super_chat_total"`
	SuperChatWorth uint64 `json:"super_chat_worth"`
}

// Metric names a StatisticsResult field
type Metric string

const (
	MetricDanmuTotal     Metric = "danmu_total"
	MetricDanmuPeople    Metric = "danmu_people"
	MetricSuperChatTotal Metric = "super_chat_total"
	MetricSuperChatWorth Metric = "super_chat_worth"
)

// Metrics lists the four metrics in display order
var Metrics = []Metric{MetricDanmuTotal, MetricDanmuPeople, MetricSuperChatTotal, MetricSuperChatWorth}

// ParseMetric falls back to danmu_total for unknown names
func ParseMetric(s string) Metric {
	for _, m := range Metrics {
		if string(m) == s {
			return m
		}
	}
	return MetricDanmuTotal
}

// Value returns the field selected by metric
func (s StatisticsResult) Value(metric Metric) uint64 {
	switch metric {
	case MetricDanmuPeople:
		return s.DanmuPeople
	case MetricSuperChatTotal:
		return s.SuperChatTotal
	case MetricSuperChatWorth:
		return s.SuperChatWorth
	default:
		return s.DanmuTotal
	}
}

// StatisticsPair holds the aggregates of a day and of the day before
type StatisticsPair struct {
	Today     StatisticsResult `json:"today"`
	Yesterday StatisticsResult `json:"yesterday"`
}

// StatisticsResponse is the response of GET /api/statistics
type StatisticsResponse struct {
	Envelope
	Data StatisticsPair `json:"data"`
}

// DanmuStatistics is the response of GET /api/danmu_statistics
type DanmuStatistics struct {
	Envelope
	Data []StatisticsResult `json:"data"`
}

// Streamer is a static directory entry
type Streamer struct {
	ID           int
	Nickname     string
	Username     string
	BilibiliLink string
	RoomID       int64
	Avatar       string
	SmallAvatar  string
	Description  string
}

// MessageQuery is the filter of a room feed request
type MessageQuery struct {
	RoomID      int64
	Message     string
	MessageType MessageType
	Timestamp   int64
	Limit       int
	Offset      int
}
