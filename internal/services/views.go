package services

import (
	"context"
	"time"

	"github.com/mroshb/pair_quiz/internal/models"
)

type PlayerView struct {
	ID    string `json:"id"`
	Login string `json:"login"`
}

type AnswerView struct {
	QuestionID   string    `json:"questionId"`
	AnswerStatus string    `json:"answerStatus"`
	AddedAt      time.Time `json:"addedAt"`
}

type PlayerProgressView struct {
	Player  PlayerView   `json:"player"`
	Score   int          `json:"score"`
	Answers []AnswerView `json:"answers"`
}

type QuestionView struct {
	ID   string `json:"id"`
	Body string `json:"body"`
}

// GameView is what a participant sees of a game. SecondPlayerProgress and Questions
// are nil exactly while the game waits for a second player.
type GameView struct {
	ID                   string              `json:"id"`
	FirstPlayerProgress  PlayerProgressView  `json:"firstPlayerProgress"`
	SecondPlayerProgress *PlayerProgressView `json:"secondPlayerProgress"`
	Questions            []QuestionView      `json:"questions"`
	Status               string              `json:"status"`
	PairCreatedDate      time.Time           `json:"pairCreatedDate"`
	StartGameDate        *time.Time          `json:"startGameDate"`
	FinishGameDate       *time.Time          `json:"finishGameDate"`
}

func answerView(a *models.GameAnswer) AnswerView {
	return AnswerView{
		QuestionID:   a.QuestionID,
		AnswerStatus: a.AnswerStatus,
		AddedAt:      a.AddedAt,
	}
}

// buildViews renders games with a fixed number of queries, whatever the number of games.
func (s *PairGameService) buildViews(ctx context.Context, games []models.PairGame) ([]GameView, error) {
	if len(games) == 0 {
		return []GameView{}, nil
	}

	gameIDs := make([]string, 0, len(games))
	playerSet := map[string]struct{}{}
	for i := range games {
		gameIDs = append(gameIDs, games[i].ID)
		playerSet[games[i].FirstPlayerID] = struct{}{}
		if id := games[i].PlayerID(models.SecondPlayer); id != "" {
			playerSet[id] = struct{}{}
		}
	}
	playerIDs := make([]string, 0, len(playerSet))
	for id := range playerSet {
		playerIDs = append(playerIDs, id)
	}

	gameQuestions, err := s.games.QuestionsForGames(ctx, gameIDs)
	if err != nil {
		return nil, err
	}
	answers, err := s.games.AnswersForGames(ctx, gameIDs)
	if err != nil {
		return nil, err
	}
	logins, err := s.users.FindLogins(ctx, playerIDs)
	if err != nil {
		return nil, err
	}

	var questionIDs []string
	for _, rows := range gameQuestions {
		for _, row := range rows {
			questionIDs = append(questionIDs, row.QuestionID)
		}
	}
	questions, err := s.questions.Questions(ctx, questionIDs)
	if err != nil {
		return nil, err
	}
	bodies := make(map[string]string, len(questions))
	for _, q := range questions {
		bodies[q.ID] = q.Body
	}

	views := make([]GameView, len(games))
	for i := range games {
		views[i] = renderGame(&games[i], gameQuestions[games[i].ID], answers[games[i].ID], logins, bodies)
	}
	return views, nil
}

func (s *PairGameService) buildView(ctx context.Context, game *models.PairGame) (*GameView, error) {
	views, err := s.buildViews(ctx, []models.PairGame{*game})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func renderGame(game *models.PairGame, gameQuestions []models.GameQuestion, answers []models.GameAnswer, logins, bodies map[string]string) GameView {
	view := GameView{
		ID:                  game.ID,
		FirstPlayerProgress: renderProgress(game, models.FirstPlayer, answers, logins),
		Status:              game.Status,
		PairCreatedDate:     game.PairCreatedAt,
		StartGameDate:       game.GameStartedAt,
		FinishGameDate:      game.GameFinishedAt,
	}

	if game.Status == models.GameStatusPending {
		return view
	}

	second := renderProgress(game, models.SecondPlayer, answers, logins)
	view.SecondPlayerProgress = &second

	view.Questions = make([]QuestionView, 0, len(gameQuestions))
	for _, row := range gameQuestions {
		view.Questions = append(view.Questions, QuestionView{ID: row.QuestionID, Body: bodies[row.QuestionID]})
	}
	return view
}

func renderProgress(game *models.PairGame, side models.PlayerSide, answers []models.GameAnswer, logins map[string]string) PlayerProgressView {
	playerID := game.PlayerID(side)
	progress := PlayerProgressView{
		Player:  PlayerView{ID: playerID, Login: logins[playerID]},
		Score:   ComputeDisplayScore(game, side, answers),
		Answers: []AnswerView{},
	}
	for i := range answers {
		if answers[i].PlayerID == playerID {
			progress.Answers = append(progress.Answers, answerView(&answers[i]))
		}
	}
	return progress
}
