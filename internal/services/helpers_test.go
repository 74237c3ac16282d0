package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mroshb/pair_quiz/internal/config"
	"github.com/mroshb/pair_quiz/internal/database"
	"github.com/mroshb/pair_quiz/internal/lock"
	"github.com/mroshb/pair_quiz/internal/models"
	"github.com/mroshb/pair_quiz/internal/repositories"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	// Every reading moves forward so answers get distinct timestamps.
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	db        *gorm.DB
	games     *PairGameService
	clock     *testClock
	users     *repositories.UserRepository
	questions *repositories.QuestionRepository
	// answers maps question id to its correct answer.
	answers map[string]string
}

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

func newTestEnv(t *testing.T, publishedQuestions int, cfg PairGameConfig) *testEnv {
	t.Helper()
	db := setupTestDB(t)

	env := &testEnv{
		db:        db,
		clock:     newTestClock(),
		users:     repositories.NewUserRepository(db),
		questions: repositories.NewQuestionRepository(db),
		answers:   map[string]string{},
	}
	env.games = NewPairGameService(
		repositories.NewPairGameRepository(db),
		env.questions,
		env.users,
		lock.NewMemoryLocker(),
		cfg,
	)
	env.games.now = env.clock.Now
	env.addQuestions(t, publishedQuestions)
	return env
}

func (e *testEnv) addQuestions(t *testing.T, n int) {
	t.Helper()
	offset := len(e.answers)
	for i := offset; i < offset+n; i++ {
		q := &models.Question{
			Body:           fmt.Sprintf("question %d", i),
			CorrectAnswers: []string{fmt.Sprintf("answer-%d", i)},
			Published:      true,
		}
		require.NoError(t, e.questions.CreateQuestion(context.Background(), q))
		e.answers[q.ID] = fmt.Sprintf("answer-%d", i)
	}
}

func (e *testEnv) user(t *testing.T, login string) string {
	t.Helper()
	u := &models.User{Login: login}
	require.NoError(t, e.users.CreateUser(context.Background(), u))
	return u.ID
}

// play submits one answer per flag, correct or not, in question order.
func (e *testEnv) play(t *testing.T, userID string, questions []QuestionView, correct ...bool) {
	t.Helper()
	ctx := context.Background()
	view, err := e.games.GetCurrentGame(ctx, userID)
	require.NoError(t, err)

	answered := len(view.FirstPlayerProgress.Answers)
	if view.FirstPlayerProgress.Player.ID != userID {
		answered = len(view.SecondPlayerProgress.Answers)
	}

	for i, ok := range correct {
		q := questions[answered+i]
		text := "definitely wrong"
		if ok {
			text = "  " + e.answers[q.ID] + " "
		}
		result, err := e.games.SubmitAnswer(ctx, userID, text)
		require.NoError(t, err)
		require.Equal(t, q.ID, result.QuestionID)
	}
}

func flags(correct, total int) []bool {
	out := make([]bool, total)
	for i := 0; i < correct; i++ {
		out[i] = true
	}
	return out
}

type recordingListener struct {
	mu       sync.Mutex
	finished []string
}

func (l *recordingListener) GameFinished(_ context.Context, game *models.PairGame) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.finished = append(l.finished, game.ID)
}

func (l *recordingListener) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.finished)
}
