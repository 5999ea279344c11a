package models

import (
	"time"
)

// ExamStatus defines the possible statuses for an exam.
type ExamStatus string

const (
	ExamStatusPending   ExamStatus = "pending" // generated, awaiting submission
	ExamStatusCompleted ExamStatus = "completed"
)

// Exam is an AI-generated multiple-choice exam for one subject/topic.
type Exam struct {
	ID           string         `gorm:"primaryKey"` // uuid
	UserID       string         `gorm:"index;not null" json:"user_id"`
	Subject      string         `json:"subject"`
	Topic        string         `json:"topic"`
	Status       ExamStatus     `gorm:"type:varchar(20);default:'pending'" json:"status"`
	Score        int            `gorm:"default:0" json:"score"` // correct answers on submission
	XPAwarded    int            `gorm:"default:0" json:"xp_awarded"`
	SubmittedAt  *time.Time     `json:"submitted_at"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	Questions    []ExamQuestion `gorm:"foreignKey:ExamID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"questions"`
}

// TableName specifies the table name for the Exam model.
func (Exam) TableName() string {
	return "exams"
}

// ExamQuestion is a single multiple-choice question. AnswerIndex is the
// 0-based index into Options and must never be serialized to the client
// before the exam is submitted.
type ExamQuestion struct {
	ID          uint     `gorm:"primaryKey" json:"id"`
	ExamID      string   `gorm:"index;not null" json:"exam_id"`
	Order       int      `gorm:"default:0" json:"order"`
	Text        string   `gorm:"type:text" json:"text"`
	Options     []string `gorm:"serializer:json" json:"options"`
	AnswerIndex int      `json:"-"`
}

// TableName specifies the table name for the ExamQuestion model.
func (ExamQuestion) TableName() string {
	return "exam_questions"
}

// ExamResult is the API shape returned after grading a submission.
type ExamResult struct {
	ExamID         string `json:"exam_id"`
	TotalQuestions int    `json:"total_questions"`
	Correct        int    `json:"correct"`
	XPAwarded      int    `json:"xp_awarded"`
	NewStreakDays  int    `json:"new_streak_days"`
}
