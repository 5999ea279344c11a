package models

import (
	"time"
)

// ChatMessage is one turn of the tutor conversation, persisted per user.
type ChatMessage struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    string    `json:"user_id" gorm:"index"`
	Role      string    `json:"role"` // "user", "assistant", "system"
	Subject   string    `json:"subject"`
	Content   string    `json:"content" gorm:"type:text"`
	Timestamp time.Time `json:"timestamp"`
}

// TableName specifies the table name for the ChatMessage model.
func (ChatMessage) TableName() string {
	return "chat_messages"
}
