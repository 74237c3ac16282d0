package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/mroshb/pair_quiz/pkg/utils"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Question is one entry of the question bank. Only published questions are dealt into games.
type Question struct {
	ID             string                      `gorm:"type:varchar(36);primaryKey" json:"id"`
	Body           string                      `gorm:"type:text;not null" json:"body"`
	CorrectAnswers datatypes.JSONSlice[string] `json:"correctAnswers"`
	Category       string                      `gorm:"type:varchar(100);index" json:"category,omitempty"`
	Published      bool                        `gorm:"not null;default:false;index" json:"published"`
	CreatedAt      time.Time                   `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt      time.Time                   `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (q *Question) BeforeCreate(tx *gorm.DB) error {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	return nil
}

// BeforeSave rejects questions that could never be answered correctly.
func (q *Question) BeforeSave(tx *gorm.DB) error {
	if q.Body == "" || len(q.CorrectAnswers) == 0 {
		return gorm.ErrInvalidData
	}
	return nil
}

func (Question) TableName() string {
	return "questions"
}

// Judge compares answer against every accepted answer, ignoring case and surrounding whitespace.
func (q *Question) Judge(answer string) string {
	submitted := utils.NormalizeAnswer(answer)
	if submitted == "" {
		return AnswerStatusIncorrect
	}
	for _, accepted := range q.CorrectAnswers {
		if utils.NormalizeAnswer(accepted) == submitted {
			return AnswerStatusCorrect
		}
	}
	return AnswerStatusIncorrect
}
