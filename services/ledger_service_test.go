package services

import (
	"errors"
	"testing"
	"time"

	"github.com/tlord101/VanTutor-sub000/models"
	"github.com/tlord101/VanTutor-sub000/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLedgerStore is an in-memory implementation of the LedgerStore/LedgerTx
// capability surface, so the transactional routine can be exercised without a
// database. Writes are buffered per transaction and discarded on error,
// mirroring the store's all-or-nothing guarantee.
type fakeLedgerStore struct {
	profiles map[string]models.UserProfile
	overall  map[string]models.OverallLeaderboardEntry
	weekly   map[string]models.WeeklyLeaderboardEntry // key: userID + "|" + weekID

	txErr error // injected transaction failure
}

func newFakeLedgerStore() *fakeLedgerStore {
	return &fakeLedgerStore{
		profiles: make(map[string]models.UserProfile),
		overall:  make(map[string]models.OverallLeaderboardEntry),
		weekly:   make(map[string]models.WeeklyLeaderboardEntry),
	}
}

func weeklyKey(userID, weekID string) string { return userID + "|" + weekID }

func (s *fakeLedgerStore) Transaction(fn func(tx repository.LedgerTx) error) error {
	if s.txErr != nil {
		return s.txErr
	}
	tx := &fakeLedgerTx{
		store:   s,
		profile: make(map[string]map[string]interface{}),
		overall: make(map[string]models.OverallLeaderboardEntry),
		weekly:  make(map[string]models.WeeklyLeaderboardEntry),
	}
	if err := fn(tx); err != nil {
		return err // buffered writes dropped
	}
	tx.commit()
	return nil
}

type fakeLedgerTx struct {
	store   *fakeLedgerStore
	profile map[string]map[string]interface{}
	overall map[string]models.OverallLeaderboardEntry
	weekly  map[string]models.WeeklyLeaderboardEntry
}

func (t *fakeLedgerTx) GetProfile(userID string) (*models.UserProfile, error) {
	p, ok := t.store.profiles[userID]
	if !ok {
		return nil, nil
	}
	copied := p
	return &copied, nil
}

func (t *fakeLedgerTx) GetOverallEntry(userID string) (*models.OverallLeaderboardEntry, error) {
	e, ok := t.store.overall[userID]
	if !ok {
		return nil, nil
	}
	copied := e
	return &copied, nil
}

func (t *fakeLedgerTx) GetWeeklyEntry(userID string, weekID string) (*models.WeeklyLeaderboardEntry, error) {
	e, ok := t.store.weekly[weeklyKey(userID, weekID)]
	if !ok {
		return nil, nil
	}
	copied := e
	return &copied, nil
}

func (t *fakeLedgerTx) UpdateProfile(userID string, fields map[string]interface{}) error {
	t.profile[userID] = fields
	return nil
}

func (t *fakeLedgerTx) PutOverallEntry(entry *models.OverallLeaderboardEntry) error {
	t.overall[entry.UserID] = *entry
	return nil
}

func (t *fakeLedgerTx) PutWeeklyEntry(entry *models.WeeklyLeaderboardEntry) error {
	t.weekly[weeklyKey(entry.UserID, entry.WeekID)] = *entry
	return nil
}

func (t *fakeLedgerTx) commit() {
	for userID, fields := range t.profile {
		p := t.store.profiles[userID]
		for field, value := range fields {
			switch field {
			case "total_lesson_xp":
				p.TotalLessonXP = value.(int)
			case "total_test_xp":
				p.TotalTestXP = value.(int)
			case "current_streak_days":
				p.CurrentStreakDays = value.(int)
			case "last_activity_date":
				d := value.(time.Time)
				p.LastActivityDate = &d
			case "display_name":
				p.DisplayName = value.(string)
			case "level":
				p.Level = value.(string)
			case "subjects":
				p.Subjects = value.(string)
			case "learning_goal":
				p.LearningGoal = value.(string)
			case "plan_tier":
				p.PlanTier = value.(models.PlanTier)
			case "onboarding_completed":
				p.OnboardingCompleted = value.(bool)
			}
		}
		t.store.profiles[userID] = p
	}
	for userID, entry := range t.overall {
		existing, ok := t.store.overall[userID]
		if ok {
			existing.XP = entry.XP
			existing.DisplayName = entry.DisplayName
			t.store.overall[userID] = existing
		} else {
			t.store.overall[userID] = entry
		}
	}
	for key, entry := range t.weekly {
		existing, ok := t.store.weekly[key]
		if ok {
			existing.XP = entry.XP
			existing.DisplayName = entry.DisplayName
			t.store.weekly[key] = existing
		} else {
			t.store.weekly[key] = entry
		}
	}
}

// --- Test helpers ---

var testNow = time.Date(2026, 8, 31, 15, 30, 0, 0, time.UTC) // a Monday

func newTestLedgerService(store *fakeLedgerStore) *ledgerService {
	return &ledgerService{store: store, now: func() time.Time { return testNow }}
}

func seedProfile(store *fakeLedgerStore, userID, displayName string, lessonXP, testXP, streak int, lastActivity *time.Time) {
	store.profiles[userID] = models.UserProfile{
		UserID:            userID,
		DisplayName:       displayName,
		TotalLessonXP:     lessonXP,
		TotalTestXP:       testXP,
		CurrentStreakDays: streak,
		LastActivityDate:  lastActivity,
	}
}

func dayOffset(days int) *time.Time {
	d := truncateToDay(testNow).AddDate(0, 0, days)
	return &d
}

// --- Tests ---

func TestLedgerService_ApplyXPDelta(t *testing.T) {
	t.Run("spec scenario: lesson delta on a yesterday streak", func(t *testing.T) {
		store := newFakeLedgerStore()
		seedProfile(store, "u1", "Ada", 100, 50, 3, dayOffset(-1))
		svc := newTestLedgerService(store)

		streak, err := svc.ApplyXPDelta("u1", 20, models.XPCategoryLesson)
		require.NoError(t, err)
		assert.Equal(t, 4, streak)

		profile := store.profiles["u1"]
		assert.Equal(t, 120, profile.TotalLessonXP)
		assert.Equal(t, 50, profile.TotalTestXP)
		assert.Equal(t, 4, profile.CurrentStreakDays)
		require.NotNil(t, profile.LastActivityDate)
		assert.Equal(t, truncateToDay(testNow), *profile.LastActivityDate)

		assert.Equal(t, 170, store.overall["u1"].XP)
		assert.Equal(t, "Ada", store.overall["u1"].DisplayName)
	})

	t.Run("streak unchanged when activity already happened today", func(t *testing.T) {
		store := newFakeLedgerStore()
		seedProfile(store, "u1", "Ada", 0, 0, 7, dayOffset(0))
		svc := newTestLedgerService(store)

		streak, err := svc.ApplyXPDelta("u1", 10, models.XPCategoryTest)
		require.NoError(t, err)
		assert.Equal(t, 7, streak)
		assert.Equal(t, 10, store.profiles["u1"].TotalTestXP)
	})

	t.Run("streak resets to 1 after a gap of more than one day", func(t *testing.T) {
		store := newFakeLedgerStore()
		seedProfile(store, "u1", "Ada", 0, 0, 12, dayOffset(-2))
		svc := newTestLedgerService(store)

		streak, err := svc.ApplyXPDelta("u1", 10, models.XPCategoryLesson)
		require.NoError(t, err)
		assert.Equal(t, 1, streak)
	})

	t.Run("first ever activity starts the streak at 1", func(t *testing.T) {
		store := newFakeLedgerStore()
		seedProfile(store, "u1", "Ada", 0, 0, 0, nil)
		svc := newTestLedgerService(store)

		streak, err := svc.ApplyXPDelta("u1", 5, models.XPCategoryLesson)
		require.NoError(t, err)
		assert.Equal(t, 1, streak)
	})

	t.Run("overall leaderboard stays equal to the sum of both XP totals", func(t *testing.T) {
		store := newFakeLedgerStore()
		seedProfile(store, "u1", "Ada", 0, 0, 0, nil)
		svc := newTestLedgerService(store)

		deltas := []struct {
			delta    int
			category models.XPCategory
		}{
			{30, models.XPCategoryLesson},
			{25, models.XPCategoryTest},
			{15, models.XPCategoryLesson},
		}
		for _, d := range deltas {
			_, err := svc.ApplyXPDelta("u1", d.delta, d.category)
			require.NoError(t, err)
			profile := store.profiles["u1"]
			assert.Equal(t, profile.TotalLessonXP+profile.TotalTestXP, store.overall["u1"].XP)
		}
		assert.Equal(t, 70, store.overall["u1"].XP)
	})

	t.Run("weekly entries accumulate within one ISO week", func(t *testing.T) {
		store := newFakeLedgerStore()
		seedProfile(store, "u1", "Ada", 0, 0, 0, nil)
		svc := newTestLedgerService(store)

		_, err := svc.ApplyXPDelta("u1", 10, models.XPCategoryLesson)
		require.NoError(t, err)
		_, err = svc.ApplyXPDelta("u1", 25, models.XPCategoryTest)
		require.NoError(t, err)

		weekID := WeekID(testNow)
		assert.Equal(t, 35, store.weekly[weeklyKey("u1", weekID)].XP)
	})

	t.Run("a new ISO week starts a fresh row and leaves the old one untouched", func(t *testing.T) {
		store := newFakeLedgerStore()
		seedProfile(store, "u1", "Ada", 500, 0, 1, dayOffset(-7))
		// Row from a prior week, under its own week ID.
		staleWeek := WeekID(testNow.AddDate(0, 0, -7))
		store.weekly[weeklyKey("u1", staleWeek)] = models.WeeklyLeaderboardEntry{
			UserID: "u1", WeekID: staleWeek, DisplayName: "Ada", XP: 500,
		}
		svc := newTestLedgerService(store)

		_, err := svc.ApplyXPDelta("u1", 40, models.XPCategoryLesson)
		require.NoError(t, err)

		currentWeek := WeekID(testNow)
		assert.Equal(t, 40, store.weekly[weeklyKey("u1", currentWeek)].XP, "fresh week row holds only this week's XP")
		assert.Equal(t, 500, store.weekly[weeklyKey("u1", staleWeek)].XP, "prior week's row is abandoned in place")
	})

	t.Run("missing profile fails with no writes", func(t *testing.T) {
		store := newFakeLedgerStore()
		svc := newTestLedgerService(store)

		_, err := svc.ApplyXPDelta("ghost", 10, models.XPCategoryLesson)
		assert.ErrorIs(t, err, ErrProfileNotFound)
		assert.Empty(t, store.overall)
		assert.Empty(t, store.weekly)
	})

	t.Run("rejects negative deltas and unknown categories", func(t *testing.T) {
		store := newFakeLedgerStore()
		seedProfile(store, "u1", "Ada", 0, 0, 0, nil)
		svc := newTestLedgerService(store)

		_, err := svc.ApplyXPDelta("u1", -5, models.XPCategoryLesson)
		assert.Error(t, err)
		_, err = svc.ApplyXPDelta("u1", 5, models.XPCategory("bonus"))
		assert.Error(t, err)
	})

	t.Run("transaction failure surfaces as a generic error", func(t *testing.T) {
		store := newFakeLedgerStore()
		seedProfile(store, "u1", "Ada", 0, 0, 0, nil)
		store.txErr = errors.New("SQLITE_BUSY: database is locked")
		svc := newTestLedgerService(store)

		_, err := svc.ApplyXPDelta("u1", 10, models.XPCategoryLesson)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "could not update ledger")
	})
}

func TestLedgerService_UpdateProfileFields(t *testing.T) {
	str := func(s string) *string { return &s }

	t.Run("non-name fields leave both leaderboards untouched", func(t *testing.T) {
		store := newFakeLedgerStore()
		seedProfile(store, "u1", "Ada", 100, 0, 1, dayOffset(0))
		store.overall["u1"] = models.OverallLeaderboardEntry{UserID: "u1", DisplayName: "Ada", XP: 100}
		svc := newTestLedgerService(store)

		err := svc.UpdateProfileFields("u1", ProfileFieldUpdate{Level: str("Advanced")})
		require.NoError(t, err)

		assert.Equal(t, "Advanced", store.profiles["u1"].Level)
		assert.Equal(t, "Ada", store.overall["u1"].DisplayName)
		assert.Equal(t, 100, store.overall["u1"].XP)
	})

	t.Run("name change propagates only into rows that exist", func(t *testing.T) {
		store := newFakeLedgerStore()
		seedProfile(store, "u1", "Ada", 100, 0, 1, dayOffset(0))
		store.overall["u1"] = models.OverallLeaderboardEntry{UserID: "u1", DisplayName: "Ada", XP: 100}
		// No weekly row for the current week.
		svc := newTestLedgerService(store)

		err := svc.UpdateProfileFields("u1", ProfileFieldUpdate{DisplayName: str("Ada L.")})
		require.NoError(t, err)

		assert.Equal(t, "Ada L.", store.profiles["u1"].DisplayName)
		assert.Equal(t, "Ada L.", store.overall["u1"].DisplayName)
		assert.Equal(t, 100, store.overall["u1"].XP, "xp is untouched by a rename")
		assert.Empty(t, store.weekly, "absent weekly row must not be created by a rename")
	})

	t.Run("name change reaches both projections when both exist", func(t *testing.T) {
		store := newFakeLedgerStore()
		seedProfile(store, "u1", "Ada", 100, 0, 1, dayOffset(0))
		store.overall["u1"] = models.OverallLeaderboardEntry{UserID: "u1", DisplayName: "Ada", XP: 100}
		weekID := WeekID(testNow)
		store.weekly[weeklyKey("u1", weekID)] = models.WeeklyLeaderboardEntry{UserID: "u1", WeekID: weekID, DisplayName: "Ada", XP: 40}
		svc := newTestLedgerService(store)

		err := svc.UpdateProfileFields("u1", ProfileFieldUpdate{DisplayName: str("Grace")})
		require.NoError(t, err)

		assert.Equal(t, "Grace", store.overall["u1"].DisplayName)
		assert.Equal(t, "Grace", store.weekly[weeklyKey("u1", weekID)].DisplayName)
		assert.Equal(t, 40, store.weekly[weeklyKey("u1", weekID)].XP)
	})

	t.Run("missing profile and empty updates are rejected", func(t *testing.T) {
		store := newFakeLedgerStore()
		svc := newTestLedgerService(store)

		err := svc.UpdateProfileFields("ghost", ProfileFieldUpdate{Level: str("Beginner")})
		assert.ErrorIs(t, err, ErrProfileNotFound)

		seedProfile(store, "u1", "Ada", 0, 0, 0, nil)
		err = svc.UpdateProfileFields("u1", ProfileFieldUpdate{})
		assert.Error(t, err)
	})
}

func TestWeekID(t *testing.T) {
	// ISO weeks are Thursday-anchored: the first days of January can belong
	// to the previous ISO year and late December to the next.
	cases := []struct {
		date time.Time
		want string
	}{
		{time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC), "2020-53"},
		{time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC), "2025-1"},
		{time.Date(2026, 8, 31, 23, 59, 59, 0, time.UTC), "2026-36"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, WeekID(c.date), "week id for %s", c.date.Format("2006-01-02"))
	}
}

func TestNextStreak(t *testing.T) {
	today := truncateToDay(testNow)

	assert.Equal(t, 1, nextStreak(nil, today, 0), "no prior activity starts at 1")
	assert.Equal(t, 5, nextStreak(dayOffset(0), today, 5), "same day leaves streak unchanged")
	assert.Equal(t, 6, nextStreak(dayOffset(-1), today, 5), "yesterday increments by exactly 1")
	assert.Equal(t, 1, nextStreak(dayOffset(-2), today, 5), "two-day gap resets to 1")
	assert.Equal(t, 1, nextStreak(dayOffset(-30), today, 5), "long gap resets to 1")

	// A non-truncated stored timestamp still compares at day granularity.
	lastEvening := truncateToDay(testNow).AddDate(0, 0, -1).Add(23 * time.Hour)
	assert.Equal(t, 6, nextStreak(&lastEvening, today, 5))
}
