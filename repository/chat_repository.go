package repository

import (
	"errors"
	"fmt"
	"log"

	"github.com/tlord101/VanTutor-sub000/models"

	"gorm.io/gorm"
)

// ChatRepository defines the interface for persisted tutor chat history.
type ChatRepository interface {
	SaveMessage(message *models.ChatMessage) error
	GetMessagesByUserID(userID string, limit int) ([]models.ChatMessage, error)
}

type chatRepository struct {
	db *gorm.DB
}

// NewChatRepository creates a new instance of ChatRepository.
func NewChatRepository(db *gorm.DB) ChatRepository {
	return &chatRepository{db: db}
}

// SaveMessage persists one chat turn.
func (r *chatRepository) SaveMessage(message *models.ChatMessage) error {
	if message == nil {
		return errors.New("message cannot be nil")
	}
	if message.UserID == "" {
		log.Printf("ERROR: [ChatRepository] SaveMessage: UserID cannot be empty.")
		return errors.New("message must have a UserID")
	}
	if err := r.db.Create(message).Error; err != nil {
		log.Printf("ERROR: [ChatRepository] Failed to save message for userID %s: %v", message.UserID, err)
		return fmt.Errorf("failed to save message for userID %s: %w", message.UserID, err)
	}
	return nil
}

// GetMessagesByUserID returns the most recent messages for a user in
// chronological order. limit <= 0 means no limit.
func (r *chatRepository) GetMessagesByUserID(userID string, limit int) ([]models.ChatMessage, error) {
	var messages []models.ChatMessage
	query := r.db.Where("user_id = ?", userID).Order("id desc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&messages).Error; err != nil {
		log.Printf("ERROR: [ChatRepository] Failed to retrieve messages for userID %s: %v", userID, err)
		return nil, fmt.Errorf("failed to retrieve messages for userID %s: %w", userID, err)
	}
	// Reverse into chronological order; the query fetched newest-first.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}
