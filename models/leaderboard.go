package models

import "time"

// OverallLeaderboardEntry is the denormalized all-time leaderboard row for a
// user. XP here is a copy of TotalLessonXP + TotalTestXP, kept in sync by the
// ledger service rather than computed on read.
type OverallLeaderboardEntry struct {
	UserID      string    `gorm:"primaryKey" json:"user_id"`
	DisplayName string    `json:"display_name"`
	XP          int       `gorm:"default:0" json:"xp"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName specifies the table name for the OverallLeaderboardEntry model.
func (OverallLeaderboardEntry) TableName() string {
	return "overall_leaderboard"
}

// WeeklyLeaderboardEntry accumulates only the XP a user earned during one ISO
// week. Keyed by (user, week); a new week starts a fresh row and rows from
// prior weeks are left in place (reads filter by the current week ID).
type WeeklyLeaderboardEntry struct {
	UserID      string    `gorm:"primaryKey" json:"user_id"`
	WeekID      string    `gorm:"primaryKey;type:varchar(10)" json:"week_id"` // "<isoYear>-<isoWeek>", e.g. "2026-35"
	DisplayName string    `json:"display_name"`
	XP          int       `gorm:"default:0" json:"xp"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName specifies the table name for the WeeklyLeaderboardEntry model.
func (WeeklyLeaderboardEntry) TableName() string {
	return "weekly_leaderboard"
}

// RankedEntry is the API shape for a leaderboard read: a row plus its
// 1-based rank within the requested board.
type RankedEntry struct {
	Rank        int    `json:"rank"`
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	XP          int    `json:"xp"`
}
