package repositories

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mroshb/pair_quiz/internal/config"
	"github.com/mroshb/pair_quiz/internal/database"
	"github.com/mroshb/pair_quiz/internal/models"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// setupTestDB opens an isolated in-memory SQLite database with the full schema.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := database.Connect(&config.Config{
		DBDriver:   config.DriverSQLite,
		SQLitePath: fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
		AppEnv:     "test",
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, database.AutoMigrate(db))
	return db
}

func createUser(t *testing.T, db *gorm.DB, login string) *models.User {
	t.Helper()
	user := &models.User{Login: login}
	require.NoError(t, NewUserRepository(db).CreateUser(context.Background(), user))
	return user
}

// createQuestions publishes n questions whose only correct answer is "answer-<i>".
func createQuestions(t *testing.T, db *gorm.DB, n int) []string {
	t.Helper()
	repo := NewQuestionRepository(db)
	ids := make([]string, n)
	for i := 0; i < n; i++ {
		q := &models.Question{
			Body:           fmt.Sprintf("question %d", i),
			CorrectAnswers: []string{fmt.Sprintf("answer-%d", i)},
			Published:      true,
		}
		require.NoError(t, repo.CreateQuestion(context.Background(), q))
		ids[i] = q.ID
	}
	return ids
}

// finishedGame stores a finished game between a and b with the given scores.
func finishedGame(t *testing.T, db *gorm.DB, a, b string, scoreA, scoreB int) *models.PairGame {
	t.Helper()
	now := time.Now().UTC()
	game := &models.PairGame{
		FirstPlayerID:     a,
		SecondPlayerID:    &b,
		Status:            models.GameStatusFinished,
		FirstPlayerScore:  scoreA,
		SecondPlayerScore: scoreB,
		PairCreatedAt:     now,
		GameStartedAt:     &now,
		GameFinishedAt:    &now,
	}
	require.NoError(t, db.Create(game).Error)
	return game
}
