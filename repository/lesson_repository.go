package repository

import (
	"errors"
	"fmt"
	"log"

	"github.com/tlord101/VanTutor-sub000/models"

	"gorm.io/gorm"
)

// LessonRepository defines the interface for interacting with lesson data.
type LessonRepository interface {
	CreateLesson(lesson *models.Lesson) error
	GetLessonByID(lessonID string) (*models.Lesson, error)
	GetLessonsByUserID(userID string) ([]*models.Lesson, error)
	UpdateLesson(lesson *models.Lesson) error
}

type lessonRepository struct {
	db *gorm.DB
}

// NewLessonRepository creates a new instance of LessonRepository.
func NewLessonRepository(db *gorm.DB) LessonRepository {
	return &lessonRepository{db: db}
}

// CreateLesson stores a newly generated lesson.
func (r *lessonRepository) CreateLesson(lesson *models.Lesson) error {
	if lesson == nil {
		log.Printf("ERROR: [LessonRepository] CreateLesson: lesson cannot be nil")
		return errors.New("lesson cannot be nil")
	}
	if err := r.db.Create(lesson).Error; err != nil {
		log.Printf("ERROR: [LessonRepository] Failed to create lesson for userID %s: %v", lesson.UserID, err)
		return fmt.Errorf("failed to create lesson for userID %s: %w", lesson.UserID, err)
	}
	log.Printf("INFO: [LessonRepository] Successfully created lesson %s for userID %s.", lesson.ID, lesson.UserID)
	return nil
}

// GetLessonByID retrieves a lesson by ID. Returns (nil, nil) if not found.
func (r *lessonRepository) GetLessonByID(lessonID string) (*models.Lesson, error) {
	var lesson models.Lesson
	err := r.db.First(&lesson, "id = ?", lessonID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		log.Printf("ERROR: [LessonRepository] Failed to retrieve lesson %s: %v", lessonID, err)
		return nil, fmt.Errorf("failed to retrieve lesson %s: %w", lessonID, err)
	}
	return &lesson, nil
}

// GetLessonsByUserID retrieves all lessons for a user, newest first.
func (r *lessonRepository) GetLessonsByUserID(userID string) ([]*models.Lesson, error) {
	var lessons []*models.Lesson
	err := r.db.Where("user_id = ?", userID).Order("created_at desc").Find(&lessons).Error
	if err != nil {
		log.Printf("ERROR: [LessonRepository] Failed to retrieve lessons for userID %s: %v", userID, err)
		return nil, fmt.Errorf("failed to retrieve lessons for userID %s: %w", userID, err)
	}
	return lessons, nil
}

// UpdateLesson updates an existing lesson.
func (r *lessonRepository) UpdateLesson(lesson *models.Lesson) error {
	if lesson == nil || lesson.ID == "" {
		log.Printf("ERROR: [LessonRepository] UpdateLesson: lesson with ID must be provided")
		return errors.New("lesson with ID must be provided for update")
	}
	if err := r.db.Save(lesson).Error; err != nil {
		log.Printf("ERROR: [LessonRepository] Failed to update lesson %s: %v", lesson.ID, err)
		return fmt.Errorf("failed to update lesson %s: %w", lesson.ID, err)
	}
	return nil
}
