package services

import (
	"fmt"
	"time"

	"github.com/tlord101/VanTutor-sub000/models"
	"github.com/tlord101/VanTutor-sub000/repository"
)

const defaultLeaderboardLimit = 20

// LeaderboardService reads the denormalized leaderboard projections
// maintained by the ledger service and attaches 1-based ranks.
type LeaderboardService interface {
	TopOverall(limit int) ([]models.RankedEntry, error)
	// TopWeekly returns the board for the current ISO week.
	TopWeekly(limit int) (weekID string, entries []models.RankedEntry, err error)
}

type leaderboardService struct {
	leaderboardRepo repository.LeaderboardRepository
	now             func() time.Time
}

// NewLeaderboardService creates a new instance of LeaderboardService.
func NewLeaderboardService(leaderboardRepo repository.LeaderboardRepository) LeaderboardService {
	return &leaderboardService{
		leaderboardRepo: leaderboardRepo,
		now:             time.Now,
	}
}

// TopOverall returns the all-time board, highest XP first.
func (s *leaderboardService) TopOverall(limit int) ([]models.RankedEntry, error) {
	if limit <= 0 {
		limit = defaultLeaderboardLimit
	}
	rows, err := s.leaderboardRepo.TopOverall(limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load overall leaderboard: %w", err)
	}
	entries := make([]models.RankedEntry, 0, len(rows))
	for i, row := range rows {
		entries = append(entries, models.RankedEntry{
			Rank:        i + 1,
			UserID:      row.UserID,
			DisplayName: row.DisplayName,
			XP:          row.XP,
		})
	}
	return entries, nil
}

// TopWeekly returns the board for the week containing now. Rows from prior
// weeks exist in the table but are never shown.
func (s *leaderboardService) TopWeekly(limit int) (string, []models.RankedEntry, error) {
	if limit <= 0 {
		limit = defaultLeaderboardLimit
	}
	weekID := WeekID(s.now())
	rows, err := s.leaderboardRepo.TopWeekly(weekID, limit)
	if err != nil {
		return weekID, nil, fmt.Errorf("failed to load weekly leaderboard: %w", err)
	}
	entries := make([]models.RankedEntry, 0, len(rows))
	for i, row := range rows {
		entries = append(entries, models.RankedEntry{
			Rank:        i + 1,
			UserID:      row.UserID,
			DisplayName: row.DisplayName,
			XP:          row.XP,
		})
	}
	return weekID, entries, nil
}
