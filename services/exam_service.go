package services

import (
	"context"
	"encoding/json"
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

// ExamService generates AI-authored multiple-choice exams and grades
// submissions, awarding test-category XP through the ledger.
type ExamService interface {
	GenerateExam(ctx context.Context, profile *models.UserProfile, subject string, topic string) (*models.Exam, error)
	SubmitExam(userID string, examID string, answers []int) (*models.ExamResult, error)
	GetExamsForUser(userID string) ([]*models.Exam, error)
}

type examService struct {
	examRepo      repository.ExamRepository
	ledgerService LedgerService
	notifications NotificationService
}

// NewExamService creates a new instance of ExamService.
func NewExamService(examRepo repository.ExamRepository, ledgerService LedgerService, notifications NotificationService) ExamService {
	return &examService{
		examRepo:      examRepo,
		ledgerService: ledgerService,
		notifications: notifications,
	}
}

// generatedExamPayload is the JSON shape the model is instructed to return.
type generatedExamPayload struct {
	Questions []struct {
		Text        string   `json:"text"`
		Options     []string `json:"options"`
		AnswerIndex int      `json:"answer_index"`
	} `json:"questions"`
}

// parseExamQuestions validates the model's JSON output into question rows.
// Models occasionally wrap JSON in markdown fences despite instructions.
func parseExamQuestions(raw string, want int) ([]models.ExamQuestion, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var payload generatedExamPayload
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return nil, fmt.Errorf("model output is not valid exam JSON: %w", err)
	}
	if len(payload.Questions) == 0 {
		return nil, errors.New("model output contains no questions")
	}
	if want > 0 && len(payload.Questions) > want {
		payload.Questions = payload.Questions[:want]
	}

	questions := make([]models.ExamQuestion, 0, len(payload.Questions))
	for i, q := range payload.Questions {
		if strings.TrimSpace(q.Text) == "" {
			return nil, fmt.Errorf("question %d has empty text", i+1)
		}
		if len(q.Options) < 2 {
			return nil, fmt.Errorf("question %d has %d options, need at least 2", i+1, len(q.Options))
		}
		if q.AnswerIndex < 0 || q.AnswerIndex >= len(q.Options) {
			return nil, fmt.Errorf("question %d has answer index %d out of range", i+1, q.AnswerIndex)
		}
		questions = append(questions, models.ExamQuestion{
			Order:       i,
			Text:        q.Text,
			Options:     q.Options,
			AnswerIndex: q.AnswerIndex,
		})
	}
	return questions, nil
}

// gradeExam counts correct answers. A missing or out-of-range answer for a
// question counts as wrong; surplus answers are ignored.
func gradeExam(questions []models.ExamQuestion, answers []int) int {
	correct := 0
	for i, q := range questions {
		if i >= len(answers) {
			break
		}
		if answers[i] == q.AnswerIndex {
			correct++
		}
	}
	return correct
}

// GenerateExam asks the model for a fresh multiple-choice exam and stores it
// with the answer key hidden from the client serialization.
func (s *examService) GenerateExam(ctx context.Context, profile *models.UserProfile, subject string, topic string) (*models.Exam, error) {
	if profile == nil {
		return nil, errors.New("profile is required")
	}
	if strings.TrimSpace(subject) == "" || strings.TrimSpace(topic) == "" {
		return nil, errors.New("subject and topic are required")
	}

	model := config.AppConfig.DefaultModel
	client, err := newLLMClient(model)
	if err != nil {
		log.Printf("ERROR: [ExamService] Failed to construct LLM client for model %s: %v", model, err)
		return nil, fmt.Errorf("LLM client unavailable: %w", err)
	}

	count := config.AppConfig.ExamQuestionCount
	level := profile.Level
	if level == "" {
		level = "mixed"
	}
	prompt := fmt.Sprintf(
		"Create a %d-question multiple-choice exam on %s (%s) for a %s-level student. "+
			"Respond with JSON only, shaped as {\"questions\":[{\"text\":string,\"options\":[string,...],\"answer_index\":int}]}. "+
			"Each question needs exactly 4 options and answer_index is the 0-based index of the correct option.",
		count, topic, subject, level,
	)

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: "You are an exam author. Output strictly valid JSON."},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	})
	if err != nil {
		log.Printf("ERROR: [ExamService] Exam generation call failed for userID %s: %v", profile.UserID, err)
		return nil, fmt.Errorf("exam generation failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("exam generation returned no choices")
	}

	questions, err := parseExamQuestions(resp.Choices[0].Message.Content, count)
	if err != nil {
		log.Printf("ERROR: [ExamService] Could not parse generated exam for userID %s: %v", profile.UserID, err)
		return nil, fmt.Errorf("exam generation produced unusable output: %w", err)
	}

	exam := &models.Exam{
		ID:        utils.GenerateID(),
		UserID:    profile.UserID,
		Subject:   subject,
		Topic:     topic,
		Status:    models.ExamStatusPending,
		Questions: questions,
	}
	if err := s.examRepo.CreateExam(exam); err != nil {
		return nil, err
	}
	log.Printf("INFO: [ExamService] Generated exam %s (%d questions) for userID %s.", exam.ID, len(questions), profile.UserID)
	return exam, nil
}

// SubmitExam grades a submission, marks the exam completed, and awards
// test-category XP through the ledger. Submitting an exam counts as activity
// even with zero correct answers, so the streak still advances.
func (s *examService) SubmitExam(userID string, examID string, answers []int) (*models.ExamResult, error) {
	if userID == "" || examID == "" {
		return nil, errors.New("userID and examID are required")
	}

	exam, err := s.examRepo.GetExamByID(examID)
	if err != nil {
		return nil, err
	}
	if exam == nil || exam.UserID != userID {
		return nil, errors.New("exam not found")
	}
	if exam.Status == models.ExamStatusCompleted {
		return nil, errors.New("exam has already been submitted")
	}

	correct := gradeExam(exam.Questions, answers)
	xp := correct * config.AppConfig.XPRewards.PerCorrectAnswer

	// The exam is consumed before XP is applied so a partial failure cannot
	// grade the same exam twice.
	now := time.Now().UTC()
	exam.Status = models.ExamStatusCompleted
	exam.Score = correct
	exam.XPAwarded = xp
	exam.SubmittedAt = &now
	if err := s.examRepo.UpdateExam(exam); err != nil {
		return nil, err
	}

	newStreak, err := s.ledgerService.ApplyXPDelta(userID, xp, models.XPCategoryTest)
	if err != nil {
		log.Printf("ERROR: [ExamService] Exam %s consumed but XP award failed for userID %s: %v", examID, userID, err)
		return nil, fmt.Errorf("could not award exam XP: %w", err)
	}

	if s.notifications != nil {
		s.notifications.NotifyExamResult(userID, exam, correct, xp)
		s.notifications.NotifyStreakMilestone(userID, newStreak)
	}

	log.Printf("INFO: [ExamService] Exam %s submitted by userID %s: %d/%d correct, %d XP.", examID, userID, correct, len(exam.Questions), xp)
	return &models.ExamResult{
		ExamID:         examID,
		TotalQuestions: len(exam.Questions),
		Correct:        correct,
		XPAwarded:      xp,
		NewStreakDays:  newStreak,
	}, nil
}

// GetExamsForUser lists a user's exams, newest first.
func (s *examService) GetExamsForUser(userID string) ([]*models.Exam, error) {
	if userID == "" {
		return nil, errors.New("userID cannot be empty")
	}
	return s.examRepo.GetExamsByUserID(userID)
}
