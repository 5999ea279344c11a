package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/tlord101/VanTutor-sub000/models"
	"github.com/tlord101/VanTutor-sub000/repository"
)

// ErrProfileNotFound is returned when a ledger operation targets a user whose
// profile row does not exist. XP can only be earned after profile creation,
// so hitting this indicates a caller-side sequencing bug.
var ErrProfileNotFound = errors.New("profile not found")

// ProfileFieldUpdate carries the optional profile fields a caller may change.
// Nil pointers mean "leave unchanged".
type ProfileFieldUpdate struct {
	DisplayName         *string
	Level               *string
	Subjects            *string
	LearningGoal        *string
	PlanTier            *models.PlanTier
	OnboardingCompleted *bool
}

// LedgerService owns every mutation of the per-user XP ledger and the two
// denormalized leaderboard projections. All writes happen inside one
// transaction; on failure no partial state is visible.
type LedgerService interface {
	// ApplyXPDelta applies a non-negative XP delta in the given category,
	// recomputes the activity streak, and syncs both leaderboards. It returns
	// the new streak value for optimistic UI updates.
	ApplyXPDelta(userID string, delta int, category models.XPCategory) (int, error)
	// UpdateProfileFields applies a partial profile update, propagating a
	// display-name change into whichever leaderboard rows already exist.
	UpdateProfileFields(userID string, fields ProfileFieldUpdate) error
}

type ledgerService struct {
	store repository.LedgerStore
	now   func() time.Time
}

// NewLedgerService creates a new instance of LedgerService.
func NewLedgerService(store repository.LedgerStore) LedgerService {
	return &ledgerService{store: store, now: time.Now}
}

// truncateToDay reduces a timestamp to its UTC calendar date.
func truncateToDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// WeekID returns the ISO-8601 week identifier for a timestamp, formatted as
// "<isoYear>-<isoWeekNumber>". The ISO year can differ from the calendar year
// at year boundaries (the week belongs to the year of its Thursday).
func WeekID(t time.Time) string {
	year, week := t.UTC().ISOWeek()
	return fmt.Sprintf("%d-%d", year, week)
}

// nextStreak computes the streak transition for an activity happening today.
// Same day: unchanged. Exactly yesterday: +1. Anything else (gap, or no
// activity ever): reset to 1.
func nextStreak(lastActivity *time.Time, today time.Time, current int) int {
	if lastActivity == nil {
		return 1
	}
	last := truncateToDay(*lastActivity)
	switch {
	case last.Equal(today):
		return current
	case last.Equal(today.AddDate(0, 0, -1)):
		return current + 1
	default:
		return 1
	}
}

// ApplyXPDelta executes the ledger update as one atomic transaction. Reads
// (profile, current week's leaderboard row) all happen before any write, as
// required by the store's transaction contract. No retry is attempted on
// conflict; the failure surfaces to the caller.
func (s *ledgerService) ApplyXPDelta(userID string, delta int, category models.XPCategory) (int, error) {
	if userID == "" {
		return 0, errors.New("userID cannot be empty")
	}
	if delta < 0 {
		return 0, fmt.Errorf("XP delta must be non-negative, got %d", delta)
	}
	if category != models.XPCategoryLesson && category != models.XPCategoryTest {
		return 0, fmt.Errorf("unknown XP category '%s'", category)
	}

	var newStreak int
	err := s.store.Transaction(func(tx repository.LedgerTx) error {
		// Reads first.
		profile, err := tx.GetProfile(userID)
		if err != nil {
			return err
		}
		if profile == nil {
			return ErrProfileNotFound
		}

		now := s.now()
		today := truncateToDay(now)
		weekID := WeekID(now)

		weekly, err := tx.GetWeeklyEntry(userID, weekID)
		if err != nil {
			return err
		}

		newStreak = nextStreak(profile.LastActivityDate, today, profile.CurrentStreakDays)
		newTotal := profile.TotalLessonXP + profile.TotalTestXP + delta

		// Writes.
		fields := map[string]interface{}{
			"current_streak_days": newStreak,
			"last_activity_date":  today,
		}
		if category == models.XPCategoryLesson {
			fields["total_lesson_xp"] = profile.TotalLessonXP + delta
		} else {
			fields["total_test_xp"] = profile.TotalTestXP + delta
		}
		if err := tx.UpdateProfile(userID, fields); err != nil {
			return err
		}

		if err := tx.PutOverallEntry(&models.OverallLeaderboardEntry{
			UserID:      userID,
			DisplayName: profile.DisplayName,
			XP:          newTotal,
		}); err != nil {
			return err
		}

		// The weekly row accumulates only XP earned during this ISO week. A
		// stale row from a prior week lives under a different week ID and is
		// never reused.
		weeklyXP := delta
		if weekly != nil {
			weeklyXP = weekly.XP + delta
		}
		return tx.PutWeeklyEntry(&models.WeeklyLeaderboardEntry{
			UserID:      userID,
			WeekID:      weekID,
			DisplayName: profile.DisplayName,
			XP:          weeklyXP,
		})
	})
	if err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			log.Printf("ERROR: [LedgerService] ApplyXPDelta for userID %s: profile does not exist (caller sequencing bug?).", userID)
			return 0, err
		}
		log.Printf("ERROR: [LedgerService] ApplyXPDelta transaction failed for userID %s: %v", userID, err)
		return 0, fmt.Errorf("could not update ledger for userID %s: %w", userID, err)
	}

	log.Printf("INFO: [LedgerService] Applied %d %s XP for userID %s; streak is now %d day(s).", delta, category, userID, newStreak)
	return newStreak, nil
}

// UpdateProfileFields applies a partial profile update in one transaction.
// Leaderboard rows are read and rewritten only when the display name changes,
// and a given row is skipped when it does not exist yet for the user.
func (s *ledgerService) UpdateProfileFields(userID string, fields ProfileFieldUpdate) error {
	if userID == "" {
		return errors.New("userID cannot be empty")
	}

	updates := make(map[string]interface{})
	if fields.DisplayName != nil {
		updates["display_name"] = *fields.DisplayName
	}
	if fields.Level != nil {
		updates["level"] = *fields.Level
	}
	if fields.Subjects != nil {
		updates["subjects"] = *fields.Subjects
	}
	if fields.LearningGoal != nil {
		updates["learning_goal"] = *fields.LearningGoal
	}
	if fields.PlanTier != nil {
		updates["plan_tier"] = *fields.PlanTier
	}
	if fields.OnboardingCompleted != nil {
		updates["onboarding_completed"] = *fields.OnboardingCompleted
	}
	if len(updates) == 0 {
		return errors.New("no fields to update")
	}

	nameChanged := fields.DisplayName != nil

	err := s.store.Transaction(func(tx repository.LedgerTx) error {
		profile, err := tx.GetProfile(userID)
		if err != nil {
			return err
		}
		if profile == nil {
			return ErrProfileNotFound
		}

		// Leaderboard rows are only consulted when the denormalized name
		// needs to follow; reads still complete before any write.
		var overall *models.OverallLeaderboardEntry
		var weekly *models.WeeklyLeaderboardEntry
		if nameChanged {
			if overall, err = tx.GetOverallEntry(userID); err != nil {
				return err
			}
			if weekly, err = tx.GetWeeklyEntry(userID, WeekID(s.now())); err != nil {
				return err
			}
		}

		if err := tx.UpdateProfile(userID, updates); err != nil {
			return err
		}

		if nameChanged {
			if overall != nil {
				overall.DisplayName = *fields.DisplayName
				if err := tx.PutOverallEntry(overall); err != nil {
					return err
				}
			}
			if weekly != nil {
				weekly.DisplayName = *fields.DisplayName
				if err := tx.PutWeeklyEntry(weekly); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			return err
		}
		log.Printf("ERROR: [LedgerService] UpdateProfileFields transaction failed for userID %s: %v", userID, err)
		return fmt.Errorf("could not update profile for userID %s: %w", userID, err)
	}

	log.Printf("INFO: [LedgerService] Updated %d profile field(s) for userID %s.", len(updates), userID)
	return nil
}
