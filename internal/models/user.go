package models

import (
	"time"
)

// User represents a registered user. TotalPoints is the authoritative
// cumulative point total and the canonical source for the all-time score.
type User struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	UserID      string    `gorm:"uniqueIndex;not null" json:"userId"`
	DisplayName string    `gorm:"not null" json:"displayName"`
	TotalPoints int64     `gorm:"not null;default:0;index" json:"totalPoints"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (User) TableName() string {
	return "users"
}

// SnapshotRecord is one durable leaderboard row, upserted by
// (user_id, period_type, period_key). It exists for recovery and audit only;
// live reads never touch it.
type SnapshotRecord struct {
	ID         uint      `gorm:"primarykey" json:"id"`
	UserID     string    `gorm:"not null;uniqueIndex:idx_snapshot_key,priority:1" json:"userId"`
	PeriodType string    `gorm:"not null;uniqueIndex:idx_snapshot_key,priority:2" json:"periodType"`
	PeriodKey  string    `gorm:"not null;uniqueIndex:idx_snapshot_key,priority:3;index" json:"periodKey"`
	Score      int64     `gorm:"not null" json:"score"`
	Rank       int       `gorm:"not null" json:"rank"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (SnapshotRecord) TableName() string {
	return "leaderboard_snapshots"
}

// AwardRequest is the payload the external reward component posts whenever
// points are granted. Non-positive point values are a silent no-op.
type AwardRequest struct {
	UserID string `json:"userId" validate:"required,min=1,max=64"`
	Points int64  `json:"points"`
}

// RankingEntry is a single row of a leaderboard page. Rank is the absolute
// 1-based position within the window, never a page-relative index.
type RankingEntry struct {
	Rank        int    `json:"rank"`
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	Score       int64  `json:"score"`
}

// LeaderboardPage is the paginated query response.
type LeaderboardPage struct {
	PeriodType        string         `json:"periodType"`
	PeriodKey         string         `json:"periodKey"`
	Entries           []RankingEntry `json:"entries"`
	TotalParticipants int64          `json:"totalParticipants"`
	Page              int            `json:"page"`
	Size              int            `json:"size"`
	TotalPages        int            `json:"totalPages"`
	IsFirst           bool           `json:"isFirst"`
	IsLast            bool           `json:"isLast"`
}

// Standing is one user's position within a single window. Rank is nil when
// the user has no entry in that window.
type Standing struct {
	Rank              *int  `json:"rank"`
	Score             int64 `json:"score"`
	TotalParticipants int64 `json:"totalParticipants"`
}

// AllStandings aggregates a user's standing across every live window.
type AllStandings struct {
	Weekly  Standing `json:"weekly"`
	Monthly Standing `json:"monthly"`
	Alltime Standing `json:"alltime"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
