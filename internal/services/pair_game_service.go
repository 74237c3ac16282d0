package services

import (
	"context"
	"sync"
	"time"

	"github.com/mroshb/pair_quiz/internal/lock"
	"github.com/mroshb/pair_quiz/internal/models"
	"github.com/mroshb/pair_quiz/internal/pagination"
	"github.com/mroshb/pair_quiz/internal/repositories"
	"github.com/mroshb/pair_quiz/internal/security"
	"github.com/mroshb/pair_quiz/pkg/errors"
	"github.com/mroshb/pair_quiz/pkg/logger"
	"gorm.io/gorm"
)

const (
	// Pending games tried before giving up and opening a new one.
	maxClaimAttempts         = 3
	defaultLockTimeout       = 5 * time.Second
	defaultFinishGracePeriod = 10 * time.Second
)

type PairGameConfig struct {
	QuestionsPerGame  int
	FinishGracePeriod time.Duration
	BonusPolicy       BonusPolicy
	LockTimeout       time.Duration
}

// FinishListener is told about every game that reached Finished, after the change is committed.
type FinishListener interface {
	GameFinished(ctx context.Context, game *models.PairGame)
}

// PairGameService pairs players into games and runs each game to completion.
type PairGameService struct {
	games     *repositories.PairGameRepository
	questions *repositories.QuestionRepository
	users     *repositories.UserRepository
	locker    lock.Locker
	cfg       PairGameConfig
	now       func() time.Time

	listenersMu sync.RWMutex
	listeners   []FinishListener
}

func NewPairGameService(
	games *repositories.PairGameRepository,
	questions *repositories.QuestionRepository,
	users *repositories.UserRepository,
	locker lock.Locker,
	cfg PairGameConfig,
) *PairGameService {
	if cfg.QuestionsPerGame < 1 {
		cfg.QuestionsPerGame = 5
	}
	if cfg.FinishGracePeriod <= 0 {
		cfg.FinishGracePeriod = defaultFinishGracePeriod
	}
	if cfg.BonusPolicy == "" {
		cfg.BonusPolicy = BonusFirstFinisherLeading
	}
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = defaultLockTimeout
	}
	if locker == nil {
		locker = lock.NewMemoryLocker()
	}
	return &PairGameService{
		games:     games,
		questions: questions,
		users:     users,
		locker:    locker,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// OnGameFinished registers l to be notified of finished games.
func (s *PairGameService) OnGameFinished(l FinishListener) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	s.listeners = append(s.listeners, l)
}

func (s *PairGameService) notifyFinished(ctx context.Context, game *models.PairGame) {
	if game == nil {
		return
	}
	s.listenersMu.RLock()
	listeners := make([]FinishListener, len(s.listeners))
	copy(listeners, s.listeners)
	s.listenersMu.RUnlock()

	for _, l := range listeners {
		l.GameFinished(ctx, game)
	}
}

// ConnectToGame joins the oldest pending game of another player, or opens a new pending game.
func (s *PairGameService) ConnectToGame(ctx context.Context, userID string) (*GameView, error) {
	login, err := s.users.FindUserLogin(ctx, userID)
	if err != nil {
		return nil, err
	}
	log := logger.With("user_id", userID, "login", login)

	lockCtx, cancel := context.WithTimeout(ctx, s.cfg.LockTimeout)
	defer cancel()
	unlock, err := s.locker.Lock(lockCtx, "pair-game:connect:"+userID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	live, err := s.games.FindLiveByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if live != nil {
		finished, err := s.expireIfDue(ctx, live)
		if err != nil {
			return nil, err
		}
		if !finished {
			return nil, errors.New(errors.ErrCodeConflict, "user already has an unfinished game")
		}
	}

	candidates, err := s.games.FindPendingCandidates(ctx, userID, maxClaimAttempts)
	if err != nil {
		return nil, err
	}

	if len(candidates) > 0 {
		// Drawn before any write: a short pool leaves every pending game claimable.
		questionIDs, err := s.questions.SampleQuestions(ctx, s.cfg.QuestionsPerGame)
		if err != nil {
			return nil, err
		}

		for i := range candidates {
			candidate := &candidates[i]
			result, err := s.games.AttachSecondPlayer(ctx, candidate.ID, userID, questionIDs, s.now())
			if err != nil {
				return nil, err
			}
			if result == repositories.AlreadyClaimed {
				log.Infow("Pending game claimed by someone else", "game_id", candidate.ID)
				continue
			}

			log.Infow("Joined pair game", "game_id", candidate.ID, "first_player_id", candidate.FirstPlayerID)
			game, err := s.games.FindByID(ctx, candidate.ID)
			if err != nil {
				return nil, err
			}
			return s.buildView(ctx, game)
		}
	}

	game, err := s.games.CreatePending(ctx, userID, s.now())
	if err != nil {
		return nil, err
	}
	log.Infow("Created pending pair game", "game_id", game.ID)
	return s.buildView(ctx, game)
}

// SubmitAnswer answers the next unanswered question of the user's active game.
func (s *PairGameService) SubmitAnswer(ctx context.Context, userID, answer string) (*AnswerView, error) {
	game, err := s.games.FindActiveByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if game == nil {
		return nil, errors.New(errors.ErrCodeNotFound, "no active pair game")
	}

	var (
		recorded *models.GameAnswer
		finished *models.PairGame
		expired  bool
	)

	err = s.games.Transaction(ctx, func(tx *gorm.DB) error {
		games := s.games.WithTx(tx)
		bank := s.questions.WithTx(tx)
		now := s.now()

		locked, err := games.LockByID(ctx, game.ID)
		if err != nil {
			return err
		}
		if locked.Status != models.GameStatusActive {
			return errors.New(errors.ErrCodeNotFound, "no active pair game")
		}
		if locked.DeadlinePassed(now) {
			expired = true
			finished, err = s.finalize(ctx, games, locked, now)
			return err
		}

		questionIDs, err := games.QuestionIDs(ctx, locked.ID)
		if err != nil {
			return err
		}
		answered, err := games.CountAnswers(ctx, locked.ID, userID)
		if err != nil {
			return err
		}
		if answered >= len(questionIDs) {
			return errors.New(errors.ErrCodeConflict, "all questions already answered")
		}

		questionID := questionIDs[answered]
		status, err := bank.CheckAnswer(ctx, questionID, answer)
		if err != nil {
			return err
		}

		recorded, err = games.RecordAnswer(ctx, locked.ID, userID, questionID, answered+1,
			security.SanitizeAnswer(answer), status, now)
		if err != nil {
			return err
		}

		finished, err = s.evaluateCompletion(ctx, games, locked, len(questionIDs), now)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.notifyFinished(ctx, finished)
	if expired {
		return nil, errors.New(errors.ErrCodeNotFound, "no active pair game")
	}

	view := answerView(recorded)
	return &view, nil
}

// evaluateCompletion finishes the game when both players are done, or starts the finish
// deadline when only one is. It returns the game if it was finished.
func (s *PairGameService) evaluateCompletion(ctx context.Context, games *repositories.PairGameRepository, game *models.PairGame, total int, now time.Time) (*models.PairGame, error) {
	answers, err := games.Answers(ctx, game.ID)
	if err != nil {
		return nil, err
	}
	first, second := progressOf(game, answers)
	firstDone, secondDone := first.Answered >= total, second.Answered >= total

	switch {
	case firstDone && secondDone:
		return s.finalizeWith(ctx, games, game, answers, total, now)

	case (firstDone || secondDone) && game.FinishDeadline == nil:
		finisher := game.FirstPlayerID
		if secondDone {
			finisher = game.PlayerID(models.SecondPlayer)
		}
		deadline := now.Add(s.cfg.FinishGracePeriod)
		if _, err := games.SetFinishDeadline(ctx, game.ID, finisher, deadline); err != nil {
			return nil, err
		}
		game.FinishDeadline = &deadline
		game.FirstFinisherID = &finisher
		logger.Info("Player finished all questions", "game_id", game.ID, "player_id", finisher, "deadline", deadline)
	}

	return nil, nil
}

// finalize loads the game's answers and stores the final scores.
func (s *PairGameService) finalize(ctx context.Context, games *repositories.PairGameRepository, game *models.PairGame, now time.Time) (*models.PairGame, error) {
	questionIDs, err := games.QuestionIDs(ctx, game.ID)
	if err != nil {
		return nil, err
	}
	answers, err := games.Answers(ctx, game.ID)
	if err != nil {
		return nil, err
	}
	return s.finalizeWith(ctx, games, game, answers, len(questionIDs), now)
}

func (s *PairGameService) finalizeWith(ctx context.Context, games *repositories.PairGameRepository, game *models.PairGame, answers []models.GameAnswer, total int, now time.Time) (*models.PairGame, error) {
	first, second := progressOf(game, answers)
	firstScore, secondScore := FinalScores(s.cfg.BonusPolicy, firstFinisherSide(game, answers, total), first, second)

	ok, err := games.FinalizeMatch(ctx, game.ID, firstScore, secondScore, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	game.Status = models.GameStatusFinished
	game.FirstPlayerScore = firstScore
	game.SecondPlayerScore = secondScore
	game.GameFinishedAt = &now

	logger.Info("Pair game finished",
		"game_id", game.ID,
		"first_score", firstScore,
		"second_score", secondScore,
		"bonus_policy", string(s.cfg.BonusPolicy),
	)
	return game, nil
}

// expireIfDue finishes game when its finish deadline has passed. It reports whether the game
// is finished afterwards.
func (s *PairGameService) expireIfDue(ctx context.Context, game *models.PairGame) (bool, error) {
	if !game.IsLive() {
		return true, nil
	}
	if !game.DeadlinePassed(s.now()) {
		return false, nil
	}

	var finished *models.PairGame
	stillLive := false
	err := s.games.Transaction(ctx, func(tx *gorm.DB) error {
		games := s.games.WithTx(tx)
		locked, err := games.LockByID(ctx, game.ID)
		if err != nil {
			return err
		}
		now := s.now()
		if locked.Status == models.GameStatusFinished {
			return nil
		}
		if !locked.DeadlinePassed(now) {
			stillLive = true
			return nil
		}
		finished, err = s.finalize(ctx, games, locked, now)
		return err
	})
	if err != nil {
		return false, err
	}

	s.notifyFinished(ctx, finished)
	if finished != nil {
		*game = *finished
	}
	return !stillLive, nil
}

// GetCurrentGame returns the user's pending or active game.
func (s *PairGameService) GetCurrentGame(ctx context.Context, userID string) (*GameView, error) {
	game, err := s.games.FindLiveByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if game == nil {
		return nil, errors.New(errors.ErrCodeNotFound, "no unfinished pair game")
	}

	finished, err := s.expireIfDue(ctx, game)
	if err != nil {
		return nil, err
	}
	if finished {
		return nil, errors.New(errors.ErrCodeNotFound, "no unfinished pair game")
	}
	return s.buildView(ctx, game)
}

// FindGameByID returns any game the user took part in.
func (s *PairGameService) FindGameByID(ctx context.Context, gameID, userID string) (*GameView, error) {
	game, err := s.games.FindByID(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if !game.HasPlayer(userID) {
		return nil, errors.New(errors.ErrCodeForbidden, "user is not a participant of this game")
	}

	if _, err := s.expireIfDue(ctx, game); err != nil {
		return nil, err
	}
	return s.buildView(ctx, game)
}

// MyGames pages through the user's games of any status.
func (s *PairGameService) MyGames(ctx context.Context, userID string, sortTerms []string, page pagination.Params) (pagination.Page[GameView], error) {
	sorts, err := pagination.ParseSort(sortTerms, repositories.GameSortColumns)
	if err != nil {
		return pagination.Page[GameView]{}, err
	}

	// A user has at most one live game; settle it before listing.
	if live, err := s.games.FindLiveByUser(ctx, userID); err != nil {
		return pagination.Page[GameView]{}, err
	} else if live != nil {
		if _, err := s.expireIfDue(ctx, live); err != nil {
			return pagination.Page[GameView]{}, err
		}
	}

	games, total, err := s.games.ListByUser(ctx, userID, sorts, page)
	if err != nil {
		return pagination.Page[GameView]{}, err
	}
	views, err := s.buildViews(ctx, games)
	if err != nil {
		return pagination.Page[GameView]{}, err
	}
	return pagination.New(views, total, page), nil
}

// FinishExpired finalizes up to limit active games whose finish deadline has passed.
func (s *PairGameService) FinishExpired(ctx context.Context, limit int) (int, error) {
	expired, err := s.games.ListExpired(ctx, s.now(), limit)
	if err != nil {
		return 0, err
	}

	count := 0
	for i := range expired {
		wasActive := expired[i].Status == models.GameStatusActive
		finished, err := s.expireIfDue(ctx, &expired[i])
		if err != nil {
			logger.Error("Failed to finish expired game", "game_id", expired[i].ID, "error", err)
			continue
		}
		if finished && wasActive {
			count++
		}
	}
	return count, nil
}

// DeleteStalePending soft-deletes pending games older than ttl.
func (s *PairGameService) DeleteStalePending(ctx context.Context, ttl time.Duration) (int64, error) {
	return s.games.SoftDeleteStalePending(ctx, s.now().Add(-ttl))
}
