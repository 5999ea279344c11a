package repository

import (
	"fmt"
	"log"

	"github.com/tlord101/VanTutor-sub000/models"

	"gorm.io/gorm"
)

// LeaderboardRepository serves the read side of the leaderboard projections.
// The write side lives entirely in the ledger transaction (LedgerStore).
type LeaderboardRepository interface {
	TopOverall(limit int) ([]*models.OverallLeaderboardEntry, error)
	TopWeekly(weekID string, limit int) ([]*models.WeeklyLeaderboardEntry, error)
}

type leaderboardRepository struct {
	db *gorm.DB
}

// NewLeaderboardRepository creates a new instance of LeaderboardRepository.
func NewLeaderboardRepository(db *gorm.DB) LeaderboardRepository {
	return &leaderboardRepository{db: db}
}

// TopOverall retrieves the top entries of the all-time leaderboard, highest XP first.
func (r *leaderboardRepository) TopOverall(limit int) ([]*models.OverallLeaderboardEntry, error) {
	var entries []*models.OverallLeaderboardEntry
	err := r.db.Order("xp desc").Limit(limit).Find(&entries).Error
	if err != nil {
		log.Printf("ERROR: [LeaderboardRepository] Failed to retrieve overall leaderboard: %v", err)
		return nil, fmt.Errorf("failed to retrieve overall leaderboard: %w", err)
	}
	return entries, nil
}

// TopWeekly retrieves the top entries for one ISO week, highest XP first.
// Rows from other weeks are excluded by the week_id filter; stale prior-week
// rows remain in the table but are inert here.
func (r *leaderboardRepository) TopWeekly(weekID string, limit int) ([]*models.WeeklyLeaderboardEntry, error) {
	var entries []*models.WeeklyLeaderboardEntry
	err := r.db.Where("week_id = ?", weekID).Order("xp desc").Limit(limit).Find(&entries).Error
	if err != nil {
		log.Printf("ERROR: [LeaderboardRepository] Failed to retrieve weekly leaderboard for week %s: %v", weekID, err)
		return nil, fmt.Errorf("failed to retrieve weekly leaderboard for week %s: %w", weekID, err)
	}
	return entries, nil
}
