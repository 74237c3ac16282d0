package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Pair game statuses. The lifecycle is linear: pending -> active -> finished.
const (
	GameStatusPending  = "PendingSecondPlayer"
	GameStatusActive   = "Active"
	GameStatusFinished = "Finished"
)

// Answer statuses
const (
	AnswerStatusCorrect   = "Correct"
	AnswerStatusIncorrect = "Incorrect"
)

// PlayerSide selects one of the two seats of a pair game.
type PlayerSide int

const (
	FirstPlayer PlayerSide = iota + 1
	SecondPlayer
)

func (s PlayerSide) Opponent() PlayerSide {
	if s == FirstPlayer {
		return SecondPlayer
	}
	return FirstPlayer
}

// PairGame is one quiz session between two players.
// SecondPlayerID and the game's questions are written in the same transaction that leaves pending.
type PairGame struct {
	ID             string  `gorm:"type:varchar(36);primaryKey"`
	FirstPlayerID  string  `gorm:"type:varchar(36);not null;index"`
	SecondPlayerID *string `gorm:"type:varchar(36);index"`
	Status         string  `gorm:"type:varchar(32);not null;index"`

	FirstPlayerScore  int `gorm:"not null;default:0"`
	SecondPlayerScore int `gorm:"not null;default:0"`

	// Set once, by the first player to submit the last answer.
	FirstFinisherID *string    `gorm:"type:varchar(36)"`
	FinishDeadline  *time.Time `gorm:"index"`

	PairCreatedAt  time.Time  `gorm:"not null;index"`
	GameStartedAt  *time.Time
	GameFinishedAt *time.Time

	UpdatedAt time.Time      `gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

func (g *PairGame) BeforeCreate(tx *gorm.DB) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	if g.Status == "" {
		g.Status = GameStatusPending
	}
	if g.PairCreatedAt.IsZero() {
		g.PairCreatedAt = time.Now().UTC()
	}
	return nil
}

func (PairGame) TableName() string {
	return "pair_games"
}

// IsLive reports whether the game still blocks its players from joining another one.
func (g *PairGame) IsLive() bool {
	return g.Status == GameStatusPending || g.Status == GameStatusActive
}

// HasPlayer reports whether userID holds either seat.
func (g *PairGame) HasPlayer(userID string) bool {
	if g.FirstPlayerID == userID {
		return true
	}
	return g.SecondPlayerID != nil && *g.SecondPlayerID == userID
}

// SideOf returns the seat held by userID, or 0 when the user is not a participant.
func (g *PairGame) SideOf(userID string) PlayerSide {
	switch {
	case g.FirstPlayerID == userID:
		return FirstPlayer
	case g.SecondPlayerID != nil && *g.SecondPlayerID == userID:
		return SecondPlayer
	}
	return 0
}

// PlayerID returns the user seated at side, or "" for an empty second seat.
func (g *PairGame) PlayerID(side PlayerSide) string {
	if side == FirstPlayer {
		return g.FirstPlayerID
	}
	if g.SecondPlayerID == nil {
		return ""
	}
	return *g.SecondPlayerID
}

// StoredScore returns the persisted final score of side.
func (g *PairGame) StoredScore(side PlayerSide) int {
	if side == FirstPlayer {
		return g.FirstPlayerScore
	}
	return g.SecondPlayerScore
}

// DeadlinePassed reports whether an active game's finish deadline is over at now.
func (g *PairGame) DeadlinePassed(now time.Time) bool {
	return g.Status == GameStatusActive && g.FinishDeadline != nil && !now.Before(*g.FinishDeadline)
}

// GameQuestion fixes the position of one question inside a game. Order is 1-based.
type GameQuestion struct {
	ID         uint      `gorm:"primaryKey"`
	GameID     string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_game_question_order;uniqueIndex:idx_game_question_unique"`
	Game       PairGame  `gorm:"foreignKey:GameID;constraint:OnDelete:CASCADE"`
	QuestionID string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_game_question_unique"`
	Question   Question  `gorm:"foreignKey:QuestionID"`
	Order      int       `gorm:"column:question_order;not null;uniqueIndex:idx_game_question_order"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
}

func (GameQuestion) TableName() string {
	return "game_questions"
}

// GameAnswer is one submitted answer. Rows are only ever inserted.
// AnswerBody holds the sanitized text; the verdict in AnswerStatus was judged on the raw submission.
type GameAnswer struct {
	ID           string    `gorm:"type:varchar(36);primaryKey"`
	GameID       string    `gorm:"type:varchar(36);not null;index;uniqueIndex:idx_answer_ordinal;uniqueIndex:idx_answer_question"`
	Game         PairGame  `gorm:"foreignKey:GameID;constraint:OnDelete:CASCADE"`
	PlayerID     string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_answer_ordinal;uniqueIndex:idx_answer_question"`
	QuestionID   string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_answer_question"`
	AnswerNumber int       `gorm:"not null;uniqueIndex:idx_answer_ordinal"`
	AnswerBody   string    `gorm:"type:text;not null"`
	AnswerStatus string    `gorm:"type:varchar(16);not null"`
	AddedAt      time.Time `gorm:"not null;index"`
}

func (a *GameAnswer) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.AddedAt.IsZero() {
		a.AddedAt = time.Now().UTC()
	}
	return nil
}

func (GameAnswer) TableName() string {
	return "game_answers"
}

func (a *GameAnswer) IsCorrect() bool {
	return a.AnswerStatus == AnswerStatusCorrect
}
