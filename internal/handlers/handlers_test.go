package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mroshb/pair_quiz/internal/config"
	"github.com/mroshb/pair_quiz/internal/database"
	"github.com/mroshb/pair_quiz/internal/lock"
	"github.com/mroshb/pair_quiz/internal/models"
	"github.com/mroshb/pair_quiz/internal/repositories"
	"github.com/mroshb/pair_quiz/internal/security"
	"github.com/mroshb/pair_quiz/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-that-is-long-enough-0123456789"

type testServer struct {
	router  *gin.Engine
	users   *repositories.UserRepository
	answers map[string]string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		DBDriver:         config.DriverSQLite,
		SQLitePath:       fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
		AppEnv:           "test",
		JWTSecret:        testSecret,
		RateLimitPerUser: 1000,
		RateLimitPerIP:   1000,
		RateLimitWindow:  time.Minute,
	}
	db, err := database.Connect(cfg)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, database.AutoMigrate(db))

	users := repositories.NewUserRepository(db)
	questions := repositories.NewQuestionRepository(db)
	answers := map[string]string{}
	for i := 0; i < 5; i++ {
		q := &models.Question{
			Body:           fmt.Sprintf("question %d", i),
			CorrectAnswers: []string{fmt.Sprintf("answer-%d", i)},
			Published:      true,
		}
		require.NoError(t, questions.CreateQuestion(context.Background(), q))
		answers[q.ID] = fmt.Sprintf("answer-%d", i)
	}

	games := services.NewPairGameService(repositories.NewPairGameRepository(db), questions, users, lock.NewMemoryLocker(),
		services.PairGameConfig{QuestionsPerGame: 5, FinishGracePeriod: 10 * time.Second})
	stats := services.NewStatisticsService(repositories.NewStatisticsRepository(db), users, nil, 0)
	games.OnGameFinished(stats)

	manager := NewHandlerManager(cfg, db, nil, games, stats)
	t.Cleanup(manager.Close)

	return &testServer{router: manager.Router(), users: users, answers: answers}
}

func (s *testServer) token(t *testing.T, login string) (string, string) {
	t.Helper()
	u := &models.User{Login: login}
	require.NoError(t, s.users.CreateUser(context.Background(), u))
	token, err := security.GenerateJWT(u.ID, u.Login, testSecret, time.Hour)
	require.NoError(t, err)
	return u.ID, token
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var decoded map[string]interface{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decoded), w.Body.String())
	}
	return w, decoded
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w, body := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)
	for _, path := range []string{"/pair-game-quiz/pairs/my-current", "/pair-game-quiz/users/my-statistic"} {
		w, _ := s.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}

func TestPairGameFlow(t *testing.T) {
	s := newTestServer(t)
	aID, aToken := s.token(t, "alice")
	bID, bToken := s.token(t, "bob")
	_, cToken := s.token(t, "carol")

	w, _ := s.do(t, http.MethodGet, "/pair-game-quiz/pairs/my-current", aToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, pending := s.do(t, http.MethodPost, "/pair-game-quiz/pairs/connection", aToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.GameStatusPending, pending["status"])
	assert.Nil(t, pending["secondPlayerProgress"])
	assert.Nil(t, pending["questions"])
	gameID := pending["id"].(string)

	w, _ = s.do(t, http.MethodPost, "/pair-game-quiz/pairs/connection", aToken, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w, _ = s.do(t, http.MethodPost, "/pair-game-quiz/pairs/my-current/answers", aToken, map[string]string{"answer": "x"})
	assert.Equal(t, http.StatusNotFound, w.Code, "pending game takes no answers")

	w, active := s.do(t, http.MethodPost, "/pair-game-quiz/pairs/connection", bToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, gameID, active["id"])
	assert.Equal(t, models.GameStatusActive, active["status"])
	questions := active["questions"].([]interface{})
	require.Len(t, questions, 5)

	firstQuestion := questions[0].(map[string]interface{})["id"].(string)
	w, answer := s.do(t, http.MethodPost, "/pair-game-quiz/pairs/my-current/answers", aToken,
		map[string]string{"answer": s.answers[firstQuestion]})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, firstQuestion, answer["questionId"])
	assert.Equal(t, models.AnswerStatusCorrect, answer["answerStatus"])
	assert.NotEmpty(t, answer["addedAt"])

	w, _ = s.do(t, http.MethodPost, "/pair-game-quiz/pairs/my-current/answers", aToken, map[string]int{"answer": 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w, _ = s.do(t, http.MethodPost, "/pair-game-quiz/pairs/my-current/answers", aToken, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, view := s.do(t, http.MethodGet, "/pair-game-quiz/pairs/"+gameID, bToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	first := view["firstPlayerProgress"].(map[string]interface{})
	assert.Equal(t, aID, first["player"].(map[string]interface{})["id"])
	assert.EqualValues(t, 1, first["score"])
	second := view["secondPlayerProgress"].(map[string]interface{})
	assert.Equal(t, bID, second["player"].(map[string]interface{})["id"])

	w, _ = s.do(t, http.MethodGet, "/pair-game-quiz/pairs/"+gameID, cToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w, _ = s.do(t, http.MethodGet, "/pair-game-quiz/pairs/not-a-uuid", aToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w, _ = s.do(t, http.MethodGet, "/pair-game-quiz/pairs/"+uuid.NewString(), aToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	for i := 1; i < 5; i++ {
		w, _ = s.do(t, http.MethodPost, "/pair-game-quiz/pairs/my-current/answers", aToken, map[string]string{"answer": "no"})
		require.Equal(t, http.StatusOK, w.Code)
	}
	w, _ = s.do(t, http.MethodPost, "/pair-game-quiz/pairs/my-current/answers", aToken, map[string]string{"answer": "no"})
	assert.Equal(t, http.StatusConflict, w.Code, "all questions answered")

	for i := 0; i < 5; i++ {
		w, _ = s.do(t, http.MethodPost, "/pair-game-quiz/pairs/my-current/answers", bToken, map[string]string{"answer": "no"})
		require.Equal(t, http.StatusOK, w.Code)
	}

	w, finished := s.do(t, http.MethodGet, "/pair-game-quiz/pairs/"+gameID, aToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.GameStatusFinished, finished["status"])
	assert.EqualValues(t, 2, finished["firstPlayerProgress"].(map[string]interface{})["score"])
	assert.NotNil(t, finished["finishGameDate"])

	w, page := s.do(t, http.MethodGet, "/pair-game-quiz/pairs/my?pageNumber=1&pageSize=5&sortBy=status&sortDirection=asc", aToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, page["totalCount"])
	assert.EqualValues(t, 1, page["pagesCount"])
	assert.Len(t, page["items"], 1)

	w, _ = s.do(t, http.MethodGet, "/pair-game-quiz/pairs/my?sortBy=secret", aToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, stats := s.do(t, http.MethodGet, "/pair-game-quiz/users/my-statistic", aToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, stats["sumScore"])
	assert.EqualValues(t, 1, stats["winsCount"])

	w, top := s.do(t, http.MethodGet, "/pair-game-quiz/users/top?sort=sumScore%20desc&pageSize=1", cToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, top["totalCount"])
	items := top["items"].([]interface{})
	require.Len(t, items, 1)
	leader := items[0].(map[string]interface{})
	assert.Equal(t, "alice", leader["player"].(map[string]interface{})["login"])
	assert.EqualValues(t, 2, leader["sumScore"])

	w, _ = s.do(t, http.MethodGet, "/pair-game-quiz/users/top?pageSize=1000", cToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMyStatistic_NoGames(t *testing.T) {
	s := newTestServer(t)
	_, token := s.token(t, "alice")

	w, body := s.do(t, http.MethodGet, "/pair-game-quiz/users/my-statistic", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	for _, key := range []string{"sumScore", "avgScores", "gamesCount", "winsCount", "lossesCount", "drawsCount"} {
		assert.EqualValues(t, 0, body[key], key)
	}
}
