package repository

import (
	"errors"
	"fmt"
	"log"

	"github.com/tlord101/VanTutor-sub000/models"

	"gorm.io/gorm"
)

// ExamRepository defines the interface for interacting with exam data.
type ExamRepository interface {
	CreateExam(exam *models.Exam) error
	GetExamByID(examID string) (*models.Exam, error)
	GetExamsByUserID(userID string) ([]*models.Exam, error)
	UpdateExam(exam *models.Exam) error
}

type examRepository struct {
	db *gorm.DB
}

// NewExamRepository creates a new instance of ExamRepository.
func NewExamRepository(db *gorm.DB) ExamRepository {
	return &examRepository{db: db}
}

// CreateExam stores a newly generated exam with its questions.
func (r *examRepository) CreateExam(exam *models.Exam) error {
	if exam == nil {
		log.Printf("ERROR: [ExamRepository] CreateExam: exam cannot be nil")
		return errors.New("exam cannot be nil")
	}
	if err := r.db.Create(exam).Error; err != nil {
		log.Printf("ERROR: [ExamRepository] Failed to create exam for userID %s: %v", exam.UserID, err)
		return fmt.Errorf("failed to create exam for userID %s: %w", exam.UserID, err)
	}
	log.Printf("INFO: [ExamRepository] Successfully created exam %s with %d questions for userID %s.", exam.ID, len(exam.Questions), exam.UserID)
	return nil
}

// GetExamByID retrieves an exam by ID, preloading its questions.
// Returns (nil, nil) if not found.
func (r *examRepository) GetExamByID(examID string) (*models.Exam, error) {
	var exam models.Exam
	err := r.db.Preload("Questions", func(db *gorm.DB) *gorm.DB {
		return db.Order("`order` asc")
	}).First(&exam, "id = ?", examID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		log.Printf("ERROR: [ExamRepository] Failed to retrieve exam %s: %v", examID, err)
		return nil, fmt.Errorf("failed to retrieve exam %s: %w", examID, err)
	}
	return &exam, nil
}

// GetExamsByUserID retrieves all exams for a user, newest first, with questions.
func (r *examRepository) GetExamsByUserID(userID string) ([]*models.Exam, error) {
	var exams []*models.Exam
	err := r.db.Preload("Questions").Where("user_id = ?", userID).Order("created_at desc").Find(&exams).Error
	if err != nil {
		log.Printf("ERROR: [ExamRepository] Failed to retrieve exams for userID %s: %v", userID, err)
		return nil, fmt.Errorf("failed to retrieve exams for userID %s: %w", userID, err)
	}
	return exams, nil
}

// UpdateExam updates an existing exam (status, score, timestamps).
func (r *examRepository) UpdateExam(exam *models.Exam) error {
	if exam == nil || exam.ID == "" {
		log.Printf("ERROR: [ExamRepository] UpdateExam: exam with ID must be provided")
		return errors.New("exam with ID must be provided for update")
	}
	if err := r.db.Save(exam).Error; err != nil {
		log.Printf("ERROR: [ExamRepository] Failed to update exam %s: %v", exam.ID, err)
		return fmt.Errorf("failed to update exam %s: %w", exam.ID, err)
	}
	return nil
}
