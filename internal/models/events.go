package models

import (
	"time"
)

// Push event types carried in the "eventType" field of ranking events.
const (
	EventRankingUpdate  = "RANKING_UPDATE"
	EventInitialRanking = "INITIAL_RANKING"
)

// UpdatedUser describes the user whose increment altered the top-10.
// PreviousRank is reconstructed after the fact by counting members above the
// pre-increment score, so it can be off under concurrent writes. It is a UI
// hint, not a consistency guarantee. Nil when the user had no prior entry.
type UpdatedUser struct {
	UserID       string `json:"userId"`
	DisplayName  string `json:"displayName"`
	PreviousRank *int   `json:"previousRank"`
	CurrentRank  int    `json:"currentRank"`
	ScoreDelta   int64  `json:"scoreDelta"`
	NewScore     int64  `json:"newScore"`
}

// RankingChangeEvent is broadcast to every live viewer whenever a score
// change alters the top-10 of a window.
type RankingChangeEvent struct {
	EventType   string         `json:"eventType"`
	PeriodType  string         `json:"periodType"`
	PeriodKey   string         `json:"periodKey"`
	Top10       []RankingEntry `json:"top10"`
	UpdatedUser *UpdatedUser   `json:"updatedUser"`
	Timestamp   time.Time      `json:"timestamp"`
}

// ConnectPayload is sent once, immediately after a viewer subscribes.
type ConnectPayload struct {
	ConnectedClients int `json:"connectedClients"`
}

// HeartbeatPayload is the periodic keep-alive pushed to every connection.
type HeartbeatPayload struct {
	Timestamp time.Time `json:"timestamp"`
}
