package models

import (
	"time"
)

// NotificationKind categorizes a user notification.
type NotificationKind string

const (
	NotificationKindExamResult      NotificationKind = "exam_result"
	NotificationKindStreakMilestone NotificationKind = "streak_milestone"
	NotificationKindStreakReminder  NotificationKind = "streak_reminder"
)

// Notification is a user-facing in-app notification row.
type Notification struct {
	ID        string           `gorm:"primaryKey"` // uuid
	UserID    string           `gorm:"index;not null" json:"user_id"`
	Kind      NotificationKind `gorm:"type:varchar(30)" json:"kind"`
	Message   string           `gorm:"type:text" json:"message"`
	Read      bool             `gorm:"default:false" json:"read"`
	CreatedAt time.Time        `json:"created_at"`
}

// TableName specifies the table name for the Notification model.
func (Notification) TableName() string {
	return "notifications"
}
