package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/tlord101/VanTutor-sub000/models"
	"github.com/tlord101/VanTutor-sub000/repository"
	"github.com/tlord101/VanTutor-sub000/utils"
)

// streakMilestoneInterval controls which streak lengths produce a
// congratulations notification (every full week).
const streakMilestoneInterval = 7

// NotificationService produces and manages in-app notifications: exam
// results, streak milestones, and the daily reminder sweep for streaks about
// to lapse. Event notifications are best-effort; a failed insert is logged
// and never fails the triggering operation.
type NotificationService interface {
	NotifyExamResult(userID string, exam *models.Exam, correct int, xp int)
	NotifyStreakMilestone(userID string, streak int)
	// SendStreakReminders notifies every user whose last activity was exactly
	// yesterday that their streak lapses at midnight. Returns how many
	// reminders were created.
	SendStreakReminders() (int, error)
	ListNotifications(userID string, unreadOnly bool) ([]*models.Notification, error)
	CountUnread(userID string) (int64, error)
	MarkRead(notificationID string, userID string) error
}

type notificationService struct {
	notificationRepo repository.NotificationRepository
	profileRepo      repository.ProfileRepository
	now              func() time.Time
}

// NewNotificationService creates a new instance of NotificationService.
func NewNotificationService(notificationRepo repository.NotificationRepository, profileRepo repository.ProfileRepository) NotificationService {
	return &notificationService{
		notificationRepo: notificationRepo,
		profileRepo:      profileRepo,
		now:              time.Now,
	}
}

func (s *notificationService) create(userID string, kind models.NotificationKind, message string) {
	err := s.notificationRepo.CreateNotification(&models.Notification{
		ID:      utils.GenerateID(),
		UserID:  userID,
		Kind:    kind,
		Message: message,
	})
	if err != nil {
		log.Printf("WARN: [NotificationService] Failed to create %s notification for userID %s: %v", kind, userID, err)
	}
}

// NotifyExamResult records the graded score for the user's notification feed.
func (s *notificationService) NotifyExamResult(userID string, exam *models.Exam, correct int, xp int) {
	if exam == nil {
		return
	}
	message := fmt.Sprintf("Exam graded: %d/%d correct on %s (%s). You earned %d XP.",
		correct, len(exam.Questions), exam.Topic, exam.Subject, xp)
	s.create(userID, models.NotificationKindExamResult, message)
}

// NotifyStreakMilestone congratulates the user when the streak reaches a
// whole-week multiple. Other streak values produce nothing.
func (s *notificationService) NotifyStreakMilestone(userID string, streak int) {
	if streak <= 0 || streak%streakMilestoneInterval != 0 {
		return
	}
	message := fmt.Sprintf("%d days in a row! Your study streak is on fire.", streak)
	s.create(userID, models.NotificationKindStreakMilestone, message)
}

// SendStreakReminders sweeps for users whose streak is about to lapse: last
// activity exactly yesterday and none yet today. Intended to be run once a
// day by the deployment's scheduler.
func (s *notificationService) SendStreakReminders() (int, error) {
	yesterday := s.now().UTC().AddDate(0, 0, -1)
	profiles, err := s.profileRepo.GetProfilesWithLastActivityOn(yesterday)
	if err != nil {
		log.Printf("ERROR: [NotificationService] Streak reminder sweep failed to load profiles: %v", err)
		return 0, fmt.Errorf("streak reminder sweep failed: %w", err)
	}

	sent := 0
	for _, profile := range profiles {
		if profile.CurrentStreakDays < 1 {
			continue
		}
		message := fmt.Sprintf("Your %d-day streak ends at midnight. A quick lesson keeps it alive!", profile.CurrentStreakDays)
		s.create(profile.UserID, models.NotificationKindStreakReminder, message)
		sent++
	}
	log.Printf("INFO: [NotificationService] Streak reminder sweep sent %d reminder(s).", sent)
	return sent, nil
}

// ListNotifications returns a user's notifications, newest first.
func (s *notificationService) ListNotifications(userID string, unreadOnly bool) ([]*models.Notification, error) {
	if userID == "" {
		return nil, errors.New("userID cannot be empty")
	}
	return s.notificationRepo.GetNotificationsByUserID(userID, unreadOnly)
}

// CountUnread returns the user's unread notification count.
func (s *notificationService) CountUnread(userID string) (int64, error) {
	if userID == "" {
		return 0, errors.New("userID cannot be empty")
	}
	return s.notificationRepo.CountUnread(userID)
}

// MarkRead acknowledges one notification for the user.
func (s *notificationService) MarkRead(notificationID string, userID string) error {
	if notificationID == "" || userID == "" {
		return errors.New("notificationID and userID are required")
	}
	return s.notificationRepo.MarkRead(notificationID, userID)
}
