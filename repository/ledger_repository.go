package repository

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/tlord101/VanTutor-sub000/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LedgerTx is the narrow capability surface the ledger service needs inside
// one transaction: point reads by key, partial-field updates, and merge
// upserts. The ledger service performs all reads before any writes; this
// interface exists so the routine can be tested against an in-memory fake.
type LedgerTx interface {
	GetProfile(userID string) (*models.UserProfile, error)
	GetOverallEntry(userID string) (*models.OverallLeaderboardEntry, error)
	GetWeeklyEntry(userID string, weekID string) (*models.WeeklyLeaderboardEntry, error)
	UpdateProfile(userID string, fields map[string]interface{}) error
	PutOverallEntry(entry *models.OverallLeaderboardEntry) error
	PutWeeklyEntry(entry *models.WeeklyLeaderboardEntry) error
}

// LedgerStore runs a function within one atomic transaction. If fn returns an
// error the transaction rolls back and no partial writes are visible.
type LedgerStore interface {
	Transaction(fn func(tx LedgerTx) error) error
}

type gormLedgerStore struct {
	db *gorm.DB
}

// NewLedgerStore creates a GORM-backed LedgerStore.
func NewLedgerStore(db *gorm.DB) LedgerStore {
	return &gormLedgerStore{db: db}
}

func (s *gormLedgerStore) Transaction(fn func(tx LedgerTx) error) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return fn(&gormLedgerTx{db: tx})
	})
}

type gormLedgerTx struct {
	db *gorm.DB
}

// GetProfile retrieves a user profile by ID. Returns (nil, nil) when the
// profile does not exist; the caller decides whether that is an error.
func (t *gormLedgerTx) GetProfile(userID string) (*models.UserProfile, error) {
	var profile models.UserProfile
	err := t.db.First(&profile, "user_id = ?", userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		log.Printf("ERROR: [LedgerStore] Failed to fetch profile for userID %s: %v", userID, err)
		return nil, fmt.Errorf("failed to fetch profile for userID %s: %w", userID, err)
	}
	return &profile, nil
}

// GetOverallEntry retrieves a user's overall leaderboard row, (nil, nil) if absent.
func (t *gormLedgerTx) GetOverallEntry(userID string) (*models.OverallLeaderboardEntry, error) {
	var entry models.OverallLeaderboardEntry
	err := t.db.First(&entry, "user_id = ?", userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		log.Printf("ERROR: [LedgerStore] Failed to fetch overall leaderboard entry for userID %s: %v", userID, err)
		return nil, fmt.Errorf("failed to fetch overall leaderboard entry for userID %s: %w", userID, err)
	}
	return &entry, nil
}

// GetWeeklyEntry retrieves the user's weekly leaderboard row for the given
// week ID, (nil, nil) if absent. Rows under other week IDs are never touched.
func (t *gormLedgerTx) GetWeeklyEntry(userID string, weekID string) (*models.WeeklyLeaderboardEntry, error) {
	var entry models.WeeklyLeaderboardEntry
	err := t.db.First(&entry, "user_id = ? AND week_id = ?", userID, weekID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		log.Printf("ERROR: [LedgerStore] Failed to fetch weekly leaderboard entry for userID %s, week %s: %v", userID, weekID, err)
		return nil, fmt.Errorf("failed to fetch weekly leaderboard entry for userID %s, week %s: %w", userID, weekID, err)
	}
	return &entry, nil
}

// UpdateProfile applies a partial field update to an existing profile row.
func (t *gormLedgerTx) UpdateProfile(userID string, fields map[string]interface{}) error {
	result := t.db.Model(&models.UserProfile{}).Where("user_id = ?", userID).Updates(fields)
	if result.Error != nil {
		log.Printf("ERROR: [LedgerStore] Failed to update profile fields for userID %s: %v", userID, result.Error)
		return fmt.Errorf("failed to update profile fields for userID %s: %w", userID, result.Error)
	}
	return nil
}

// PutOverallEntry merge-upserts the overall leaderboard row: create if
// absent, overwrite xp and display_name if present.
func (t *gormLedgerTx) PutOverallEntry(entry *models.OverallLeaderboardEntry) error {
	entry.UpdatedAt = time.Now().UTC()
	err := t.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"xp":           entry.XP,
			"display_name": entry.DisplayName,
			"updated_at":   entry.UpdatedAt,
		}),
	}).Create(entry).Error
	if err != nil {
		log.Printf("ERROR: [LedgerStore] Failed to upsert overall leaderboard entry for userID %s: %v", entry.UserID, err)
		return fmt.Errorf("failed to upsert overall leaderboard entry for userID %s: %w", entry.UserID, err)
	}
	return nil
}

// PutWeeklyEntry merge-upserts the weekly leaderboard row keyed by
// (user, week). The caller has already folded any prior XP for the week into
// entry.XP, so conflicts overwrite rather than increment.
func (t *gormLedgerTx) PutWeeklyEntry(entry *models.WeeklyLeaderboardEntry) error {
	entry.UpdatedAt = time.Now().UTC()
	err := t.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "week_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"xp":           entry.XP,
			"display_name": entry.DisplayName,
			"updated_at":   entry.UpdatedAt,
		}),
	}).Create(entry).Error
	if err != nil {
		log.Printf("ERROR: [LedgerStore] Failed to upsert weekly leaderboard entry for userID %s, week %s: %v", entry.UserID, entry.WeekID, err)
		return fmt.Errorf("failed to upsert weekly leaderboard entry for userID %s, week %s: %w", entry.UserID, entry.WeekID, err)
	}
	return nil
}
