package models

// InitResponse defines the structure for the /api/init endpoint response:
// everything the client needs to bootstrap a session.
type InitResponse struct {
	UserID              string   `json:"user_id"`
	DisplayName         string   `json:"display_name"`
	PlanTier            PlanTier `json:"plan_tier"`
	OnboardingCompleted bool     `json:"onboarding_completed"`
	TotalLessonXP       int      `json:"total_lesson_xp"`
	TotalTestXP         int      `json:"total_test_xp"`
	CurrentStreakDays   int      `json:"current_streak_days"`
	UnreadNotifications int      `json:"unread_notifications"`
}
