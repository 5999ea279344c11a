package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/tlord101/VanTutor-sub000/config"
	"github.com/tlord101/VanTutor-sub000/models"
	"github.com/tlord101/VanTutor-sub000/repository"
	"github.com/tlord101/VanTutor-sub000/utils"

	openai "github.com/sashabaranov/go-openai"
)

// LessonService generates study-guide lessons and awards lesson-category XP
// when a lesson is completed. Each lesson awards XP at most once.
type LessonService interface {
	GenerateLesson(ctx context.Context, profile *models.UserProfile, subject string, topic string) (*models.Lesson, error)
	CompleteLesson(userID string, lessonID string) (newStreak int, xpAwarded int, err error)
	GetLessonsForUser(userID string) ([]*models.Lesson, error)
}

type lessonService struct {
	lessonRepo    repository.LessonRepository
	ledgerService LedgerService
	notifications NotificationService
}

// NewLessonService creates a new instance of LessonService.
func NewLessonService(lessonRepo repository.LessonRepository, ledgerService LedgerService, notifications NotificationService) LessonService {
	return &lessonService{
		lessonRepo:    lessonRepo,
		ledgerService: ledgerService,
		notifications: notifications,
	}
}

// GenerateLesson asks the model for lesson content and stores it.
func (s *lessonService) GenerateLesson(ctx context.Context, profile *models.UserProfile, subject string, topic string) (*models.Lesson, error) {
	if profile == nil {
		return nil, errors.New("profile is required")
	}
	if strings.TrimSpace(subject) == "" || strings.TrimSpace(topic) == "" {
		return nil, errors.New("subject and topic are required")
	}

	model := config.AppConfig.DefaultModel
	client, err := newLLMClient(model)
	if err != nil {
		log.Printf("ERROR: [LessonService] Failed to construct LLM client for model %s: %v", model, err)
		return nil, fmt.Errorf("LLM client unavailable: %w", err)
	}

	level := profile.Level
	if level == "" {
		level = "mixed"
	}
	prompt := fmt.Sprintf(
		"Write a focused study-guide lesson on %s (%s) for a %s-level student. "+
			"Use markdown with short sections: a plain-language explanation, one worked example, and three key takeaways.",
		topic, subject, level,
	)

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: "You are a curriculum author for a tutoring app."},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		log.Printf("ERROR: [LessonService] Lesson generation call failed for userID %s: %v", profile.UserID, err)
		return nil, fmt.Errorf("lesson generation failed: %w", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return nil, errors.New("lesson generation returned empty content")
	}

	lesson := &models.Lesson{
		ID:      utils.GenerateID(),
		UserID:  profile.UserID,
		Subject: subject,
		Topic:   topic,
		Content: resp.Choices[0].Message.Content,
		Status:  models.LessonStatusGenerated,
	}
	if err := s.lessonRepo.CreateLesson(lesson); err != nil {
		return nil, err
	}
	log.Printf("INFO: [LessonService] Generated lesson %s on '%s' for userID %s.", lesson.ID, topic, profile.UserID)
	return lesson, nil
}

// CompleteLesson marks a lesson completed and applies the configured
// lesson-completion XP. A lesson that is already completed awards nothing.
func (s *lessonService) CompleteLesson(userID string, lessonID string) (int, int, error) {
	if userID == "" || lessonID == "" {
		return 0, 0, errors.New("userID and lessonID are required")
	}

	lesson, err := s.lessonRepo.GetLessonByID(lessonID)
	if err != nil {
		return 0, 0, err
	}
	if lesson == nil || lesson.UserID != userID {
		return 0, 0, errors.New("lesson not found")
	}
	if lesson.Status == models.LessonStatusCompleted {
		return 0, 0, errors.New("lesson has already been completed")
	}

	xp := config.AppConfig.XPRewards.LessonCompletion

	// Consume the lesson before applying XP so a retry after a partial
	// failure cannot award the same lesson twice.
	now := time.Now().UTC()
	lesson.Status = models.LessonStatusCompleted
	lesson.XPAwarded = xp
	lesson.CompletedAt = &now
	if err := s.lessonRepo.UpdateLesson(lesson); err != nil {
		return 0, 0, err
	}

	newStreak, err := s.ledgerService.ApplyXPDelta(userID, xp, models.XPCategoryLesson)
	if err != nil {
		log.Printf("ERROR: [LessonService] Lesson %s consumed but XP award failed for userID %s: %v", lessonID, userID, err)
		return 0, 0, fmt.Errorf("could not award lesson XP: %w", err)
	}

	if s.notifications != nil {
		s.notifications.NotifyStreakMilestone(userID, newStreak)
	}

	log.Printf("INFO: [LessonService] Lesson %s completed by userID %s: %d XP, streak %d.", lessonID, userID, xp, newStreak)
	return newStreak, xp, nil
}

// GetLessonsForUser lists a user's lessons, newest first.
func (s *lessonService) GetLessonsForUser(userID string) ([]*models.Lesson, error) {
	if userID == "" {
		return nil, errors.New("userID cannot be empty")
	}
	return s.lessonRepo.GetLessonsByUserID(userID)
}
