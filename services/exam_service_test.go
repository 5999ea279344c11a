package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tlord101/VanTutor-sub000/models"
)

const validExamJSON = `{
	"questions": [
		{"text": "What is 2+2?", "options": ["3", "4", "5", "6"], "answer_index": 1},
		{"text": "What is 3*3?", "options": ["6", "7", "8", "9"], "answer_index": 3}
	]
}`

func TestParseExamQuestions(t *testing.T) {
	t.Run("parses valid JSON into ordered questions", func(t *testing.T) {
		questions, err := parseExamQuestions(validExamJSON, 5)
		assert.NoError(t, err)
		assert.Len(t, questions, 2)
		assert.Equal(t, 0, questions[0].Order)
		assert.Equal(t, "What is 2+2?", questions[0].Text)
		assert.Equal(t, 1, questions[0].AnswerIndex)
		assert.Equal(t, []string{"6", "7", "8", "9"}, questions[1].Options)
	})

	t.Run("strips markdown fences around the JSON", func(t *testing.T) {
		fenced := "```json\n" + validExamJSON + "\n```"
		questions, err := parseExamQuestions(fenced, 5)
		assert.NoError(t, err)
		assert.Len(t, questions, 2)
	})

	t.Run("truncates surplus questions to the requested count", func(t *testing.T) {
		questions, err := parseExamQuestions(validExamJSON, 1)
		assert.NoError(t, err)
		assert.Len(t, questions, 1)
	})

	t.Run("rejects invalid JSON", func(t *testing.T) {
		_, err := parseExamQuestions("the exam is: 2+2?", 5)
		assert.Error(t, err)
	})

	t.Run("rejects empty question list", func(t *testing.T) {
		_, err := parseExamQuestions(`{"questions":[]}`, 5)
		assert.Error(t, err)
	})

	t.Run("rejects question with too few options", func(t *testing.T) {
		_, err := parseExamQuestions(`{"questions":[{"text":"Pick one","options":["only"],"answer_index":0}]}`, 5)
		assert.Error(t, err)
	})

	t.Run("rejects out-of-range answer index", func(t *testing.T) {
		_, err := parseExamQuestions(`{"questions":[{"text":"Pick","options":["a","b"],"answer_index":2}]}`, 5)
		assert.Error(t, err)
	})
}

func TestGradeExam(t *testing.T) {
	questions := []models.ExamQuestion{
		{Order: 0, AnswerIndex: 1},
		{Order: 1, AnswerIndex: 3},
		{Order: 2, AnswerIndex: 0},
	}

	t.Run("counts correct answers", func(t *testing.T) {
		assert.Equal(t, 3, gradeExam(questions, []int{1, 3, 0}))
		assert.Equal(t, 1, gradeExam(questions, []int{1, 0, 2}))
	})

	t.Run("missing answers count as wrong", func(t *testing.T) {
		assert.Equal(t, 2, gradeExam(questions, []int{1, 3}))
		assert.Equal(t, 0, gradeExam(questions, nil))
	})

	t.Run("surplus answers are ignored", func(t *testing.T) {
		assert.Equal(t, 3, gradeExam(questions, []int{1, 3, 0, 2, 2}))
	})
}
