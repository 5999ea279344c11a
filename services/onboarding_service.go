package services

import (
	"errors"
	"fmt"
	"strings"
)

// OnboardingQuestion is one step of the fixed onboarding questionnaire.
type OnboardingQuestion struct {
	Key     string   `json:"key"`
	Prompt  string   `json:"prompt"`
	Options []string `json:"options,omitempty"` // empty for free-text answers
}

// OnboardingAnswers carries the submitted questionnaire.
type OnboardingAnswers struct {
	Level        string `json:"level" binding:"required"`
	Subjects     string `json:"subjects" binding:"required"`
	LearningGoal string `json:"learning_goal" binding:"required"`
}

var onboardingQuestions = []OnboardingQuestion{
	{Key: "level", Prompt: "How would you describe your current level?", Options: []string{"Beginner", "Intermediate", "Advanced"}},
	{Key: "subjects", Prompt: "Which subjects do you want to study? (comma separated)"},
	{Key: "learning_goal", Prompt: "What is your main learning goal right now?"},
}

// OnboardingService serves the questionnaire and applies submitted answers
// to the user's profile, marking onboarding complete.
type OnboardingService interface {
	GetQuestions() []OnboardingQuestion
	Submit(userID string, answers OnboardingAnswers) error
}

type onboardingService struct {
	ledgerService LedgerService
}

// NewOnboardingService creates a new instance of OnboardingService.
func NewOnboardingService(ledgerService LedgerService) OnboardingService {
	return &onboardingService{ledgerService: ledgerService}
}

// GetQuestions returns the questionnaire in presentation order.
func (s *onboardingService) GetQuestions() []OnboardingQuestion {
	return onboardingQuestions
}

// Submit validates the answers and writes them to the profile in one update.
func (s *onboardingService) Submit(userID string, answers OnboardingAnswers) error {
	level := strings.TrimSpace(answers.Level)
	subjects := strings.TrimSpace(answers.Subjects)
	goal := strings.TrimSpace(answers.LearningGoal)
	if level == "" || subjects == "" || goal == "" {
		return errors.New("all onboarding questions must be answered")
	}
	if !isValidLevel(level) {
		return fmt.Errorf("unknown level %q", level)
	}

	completed := true
	update := ProfileFieldUpdate{
		Level:               &level,
		Subjects:            &subjects,
		LearningGoal:        &goal,
		OnboardingCompleted: &completed,
	}
	if err := s.ledgerService.UpdateProfileFields(userID, update); err != nil {
		return fmt.Errorf("failed to save onboarding answers: %w", err)
	}
	return nil
}

func isValidLevel(level string) bool {
	for _, opt := range onboardingQuestions[0].Options {
		if strings.EqualFold(opt, level) {
			return true
		}
	}
	return false
}
