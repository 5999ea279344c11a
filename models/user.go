package models

import (
	"time"
)

// PlanTier identifies a subscription tier. Tier limits (rate limiting,
// request delays) are configured in config.yaml, not hardcoded here.
type PlanTier string

const (
	PlanTierFree PlanTier = "free"
	PlanTierPlus PlanTier = "plus"
	PlanTierPro  PlanTier = "pro"
)

// XPCategory discriminates which cumulative XP counter a delta applies to.
type XPCategory string

const (
	XPCategoryLesson XPCategory = "lesson"
	XPCategoryTest   XPCategory = "test"
)

// UserProfile is the per-user record: account data plus the XP ledger
// (cumulative XP counters, daily-activity streak, last activity date).
// Ledger fields are mutated exclusively through the ledger service.
type UserProfile struct {
	UserID       string `gorm:"primaryKey"`
	Email        string `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string `json:"-"`
	DisplayName  string `json:"display_name"`

	// Onboarding fields.
	Level               string `gorm:"default:''" json:"level"` // e.g. "Beginner", "Intermediate", "Advanced"
	Subjects            string `gorm:"type:text" json:"subjects"`
	LearningGoal        string `gorm:"type:text" json:"learning_goal"`
	OnboardingCompleted bool   `gorm:"default:false" json:"onboarding_completed"`

	PlanTier PlanTier `gorm:"type:varchar(20);default:'free'" json:"plan_tier"`

	// Ledger fields.
	TotalLessonXP     int        `gorm:"default:0" json:"total_lesson_xp"`
	TotalTestXP       int        `gorm:"default:0" json:"total_test_xp"`
	CurrentStreakDays int        `gorm:"default:0" json:"current_streak_days"`
	LastActivityDate  *time.Time `json:"last_activity_date"` // day-truncated, UTC; nil until first activity

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for the UserProfile model.
func (UserProfile) TableName() string {
	return "user_profiles"
}

// TotalXP returns the combined XP across both categories.
func (p *UserProfile) TotalXP() int {
	return p.TotalLessonXP + p.TotalTestXP
}
