package models

import (
	"time"
)

// LessonStatus defines the possible statuses for a generated lesson.
type LessonStatus string

const (
	LessonStatusGenerated LessonStatus = "generated"
	LessonStatusCompleted LessonStatus = "completed"
)

// Lesson is an AI-generated study-guide lesson for one subject/topic.
// Completing a lesson awards lesson-category XP exactly once; CompletedAt
// nil means the award is still pending.
type Lesson struct {
	ID          string       `gorm:"primaryKey"` // uuid
	UserID      string       `gorm:"index;not null" json:"user_id"`
	Subject     string       `json:"subject"`
	Topic       string       `json:"topic"`
	Content     string       `gorm:"type:text" json:"content"`
	Status      LessonStatus `gorm:"type:varchar(20);default:'generated'" json:"status"`
	XPAwarded   int          `gorm:"default:0" json:"xp_awarded"`
	CompletedAt *time.Time   `json:"completed_at"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// TableName specifies the table name for the Lesson model.
func (Lesson) TableName() string {
	return "lessons"
}
