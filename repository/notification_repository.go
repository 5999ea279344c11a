package repository

import (
	"errors"
	"fmt"
	"log"

	"github.com/tlord101/VanTutor-sub000/models"

	"gorm.io/gorm"
)

// NotificationRepository defines the interface for user notifications.
type NotificationRepository interface {
	CreateNotification(notification *models.Notification) error
	GetNotificationsByUserID(userID string, unreadOnly bool) ([]*models.Notification, error)
	CountUnread(userID string) (int64, error)
	MarkRead(notificationID string, userID string) error
}

type notificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository creates a new instance of NotificationRepository.
func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

// CreateNotification stores a new notification row.
func (r *notificationRepository) CreateNotification(notification *models.Notification) error {
	if notification == nil {
		log.Printf("ERROR: [NotificationRepository] CreateNotification: notification cannot be nil")
		return errors.New("notification cannot be nil")
	}
	if err := r.db.Create(notification).Error; err != nil {
		log.Printf("ERROR: [NotificationRepository] Failed to create notification for userID %s: %v", notification.UserID, err)
		return fmt.Errorf("failed to create notification for userID %s: %w", notification.UserID, err)
	}
	return nil
}

// GetNotificationsByUserID retrieves a user's notifications, newest first.
func (r *notificationRepository) GetNotificationsByUserID(userID string, unreadOnly bool) ([]*models.Notification, error) {
	var notifications []*models.Notification
	query := r.db.Where("user_id = ?", userID)
	if unreadOnly {
		query = query.Where("read = ?", false)
	}
	if err := query.Order("created_at desc").Find(&notifications).Error; err != nil {
		log.Printf("ERROR: [NotificationRepository] Failed to retrieve notifications for userID %s: %v", userID, err)
		return nil, fmt.Errorf("failed to retrieve notifications for userID %s: %w", userID, err)
	}
	return notifications, nil
}

// CountUnread returns how many unread notifications a user has.
func (r *notificationRepository) CountUnread(userID string) (int64, error) {
	var count int64
	err := r.db.Model(&models.Notification{}).Where("user_id = ? AND read = ?", userID, false).Count(&count).Error
	if err != nil {
		log.Printf("ERROR: [NotificationRepository] Failed to count unread notifications for userID %s: %v", userID, err)
		return 0, fmt.Errorf("failed to count unread notifications for userID %s: %w", userID, err)
	}
	return count, nil
}

// MarkRead marks one notification as read. The userID guard prevents a user
// from acknowledging someone else's notification.
func (r *notificationRepository) MarkRead(notificationID string, userID string) error {
	result := r.db.Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Update("read", true)
	if result.Error != nil {
		log.Printf("ERROR: [NotificationRepository] Failed to mark notification %s read for userID %s: %v", notificationID, userID, result.Error)
		return fmt.Errorf("failed to mark notification %s read: %w", notificationID, result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.New("notification not found")
	}
	return nil
}
