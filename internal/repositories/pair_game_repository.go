package repositories

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/mroshb/pair_quiz/internal/models"
	"github.com/mroshb/pair_quiz/internal/pagination"
	"github.com/mroshb/pair_quiz/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AttachResult is the outcome of claiming a pending game.
type AttachResult int

const (
	Attached AttachResult = iota + 1
	AlreadyClaimed
)

func (r AttachResult) String() string {
	switch r {
	case Attached:
		return "attached"
	case AlreadyClaimed:
		return "already_claimed"
	}
	return "unknown"
}

// GameSortColumns maps the sortable fields of a player's game history to columns.
var GameSortColumns = map[string]string{
	"status":          "status",
	"pairCreatedDate": "pair_created_at",
	"startGameDate":   "game_started_at",
	"finishGameDate":  "game_finished_at",
}

type PairGameRepository struct {
	db *gorm.DB
}

func NewPairGameRepository(db *gorm.DB) *PairGameRepository {
	return &PairGameRepository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *PairGameRepository) WithTx(tx *gorm.DB) *PairGameRepository {
	return &PairGameRepository{db: tx}
}

// Transaction runs fn in a database transaction.
// Inside fn use only tx (or repositories bound to it with WithTx).
func (r *PairGameRepository) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

// CreatePending opens a new game waiting for a second player.
func (r *PairGameRepository) CreatePending(ctx context.Context, userID string, createdAt time.Time) (*models.PairGame, error) {
	game := &models.PairGame{
		FirstPlayerID: userID,
		Status:        models.GameStatusPending,
		PairCreatedAt: createdAt,
	}

	if err := r.db.WithContext(ctx).Create(game).Error; err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to create pair game")
	}
	return game, nil
}

// FindPendingCandidates returns up to limit pending games not owned by excludingUserID, oldest first.
func (r *PairGameRepository) FindPendingCandidates(ctx context.Context, excludingUserID string, limit int) ([]models.PairGame, error) {
	var games []models.PairGame
	err := r.db.WithContext(ctx).
		Where("status = ? AND second_player_id IS NULL AND first_player_id <> ?", models.GameStatusPending, excludingUserID).
		Order("pair_created_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&games).Error

	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to find pending games")
	}
	return games, nil
}

// FindOldestPending returns the oldest pending game not owned by excludingUserID, or nil.
func (r *PairGameRepository) FindOldestPending(ctx context.Context, excludingUserID string) (*models.PairGame, error) {
	games, err := r.FindPendingCandidates(ctx, excludingUserID, 1)
	if err != nil {
		return nil, err
	}
	if len(games) == 0 {
		return nil, nil
	}
	return &games[0], nil
}

// AttachSecondPlayer seats userID in a pending game and fixes its questions, atomically.
// Losing the race to another claimer is reported as AlreadyClaimed, not as an error.
func (r *PairGameRepository) AttachSecondPlayer(ctx context.Context, gameID, userID string, questionIDs []string, startedAt time.Time) (AttachResult, error) {
	result := AlreadyClaimed

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		update := tx.Model(&models.PairGame{}).
			Where("id = ? AND status = ? AND second_player_id IS NULL AND first_player_id <> ?",
				gameID, models.GameStatusPending, userID).
			Updates(map[string]interface{}{
				"second_player_id": userID,
				"status":           models.GameStatusActive,
				"game_started_at":  startedAt,
			})
		if update.Error != nil {
			return errors.Wrap(update.Error, errors.ErrCodeInternalError, "failed to claim pair game")
		}
		if update.RowsAffected == 0 {
			return nil
		}

		rows := make([]models.GameQuestion, len(questionIDs))
		for i, qid := range questionIDs {
			rows[i] = models.GameQuestion{GameID: gameID, QuestionID: qid, Order: i + 1}
		}
		if err := tx.Omit(clause.Associations).Create(&rows).Error; err != nil {
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to assign game questions")
		}

		result = Attached
		return nil
	})
	if err != nil {
		return 0, err
	}
	return result, nil
}

// FindLiveByUser returns the user's pending or active game, or nil.
func (r *PairGameRepository) FindLiveByUser(ctx context.Context, userID string) (*models.PairGame, error) {
	var game models.PairGame
	result := r.db.WithContext(ctx).
		Where("(first_player_id = ? OR second_player_id = ?) AND status IN ?",
			userID, userID, []string{models.GameStatusPending, models.GameStatusActive}).
		Order("pair_created_at DESC").
		First(&game)

	if result.Error == gorm.ErrRecordNotFound {
		return nil, nil // No live game
	}
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to get live pair game")
	}

	return &game, nil
}

// FindActiveByUser returns the user's active game, or nil.
func (r *PairGameRepository) FindActiveByUser(ctx context.Context, userID string) (*models.PairGame, error) {
	var game models.PairGame
	result := r.db.WithContext(ctx).
		Where("(first_player_id = ? OR second_player_id = ?) AND status = ?", userID, userID, models.GameStatusActive).
		First(&game)

	if result.Error == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to get active pair game")
	}

	return &game, nil
}

// FindByID retrieves a pair game by ID
func (r *PairGameRepository) FindByID(ctx context.Context, id string) (*models.PairGame, error) {
	var game models.PairGame
	result := r.db.WithContext(ctx).Where("id = ?", id).First(&game)

	if result.Error == gorm.ErrRecordNotFound {
		return nil, errors.New(errors.ErrCodeNotFound, "pair game not found")
	}
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to get pair game")
	}

	return &game, nil
}

// LockByID loads a game with SELECT ... FOR UPDATE. Call it inside a transaction.
func (r *PairGameRepository) LockByID(ctx context.Context, id string) (*models.PairGame, error) {
	var game models.PairGame
	result := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&game)

	if result.Error == gorm.ErrRecordNotFound {
		return nil, errors.New(errors.ErrCodeNotFound, "pair game not found")
	}
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to lock pair game")
	}

	return &game, nil
}

// ListByUser pages through every game the user took part in.
// The default order is newest first; pair_created_at DESC is always the last tie-break.
func (r *PairGameRepository) ListByUser(ctx context.Context, userID string, sorts []pagination.SortField, page pagination.Params) ([]models.PairGame, int64, error) {
	base := r.db.WithContext(ctx).Model(&models.PairGame{}).
		Where("(first_player_id = ? OR second_player_id = ?)", userID, userID).
		Session(&gorm.Session{})

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeInternalError, "failed to count pair games")
	}

	query := base
	if len(sorts) > 0 {
		query = query.Order(pagination.OrderBy(sorts))
	}

	var games []models.PairGame
	err := query.Order("pair_created_at DESC").
		Order("id ASC").
		Offset(page.Offset()).
		Limit(page.Limit()).
		Find(&games).Error
	if err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeInternalError, "failed to list pair games")
	}

	return games, total, nil
}

// QuestionIDs returns the question ids of a game in presentation order.
func (r *PairGameRepository) QuestionIDs(ctx context.Context, gameID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&models.GameQuestion{}).
		Where("game_id = ?", gameID).
		Order("question_order ASC").
		Pluck("question_id", &ids).Error
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to get game questions")
	}
	return ids, nil
}

// QuestionsForGames returns the ordered question rows of several games, keyed by game id.
func (r *PairGameRepository) QuestionsForGames(ctx context.Context, gameIDs []string) (map[string][]models.GameQuestion, error) {
	byGame := make(map[string][]models.GameQuestion, len(gameIDs))
	if len(gameIDs) == 0 {
		return byGame, nil
	}

	var rows []models.GameQuestion
	err := r.db.WithContext(ctx).
		Where("game_id IN ?", gameIDs).
		Order("game_id ASC").
		Order("question_order ASC").
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to get game questions")
	}

	for _, row := range rows {
		byGame[row.GameID] = append(byGame[row.GameID], row)
	}
	return byGame, nil
}

// Answers returns all answers of a game ordered per player by ordinal.
func (r *PairGameRepository) Answers(ctx context.Context, gameID string) ([]models.GameAnswer, error) {
	byGame, err := r.AnswersForGames(ctx, []string{gameID})
	if err != nil {
		return nil, err
	}
	return byGame[gameID], nil
}

// AnswersForGames returns the answers of several games, keyed by game id.
func (r *PairGameRepository) AnswersForGames(ctx context.Context, gameIDs []string) (map[string][]models.GameAnswer, error) {
	byGame := make(map[string][]models.GameAnswer, len(gameIDs))
	if len(gameIDs) == 0 {
		return byGame, nil
	}

	var answers []models.GameAnswer
	err := r.db.WithContext(ctx).
		Where("game_id IN ?", gameIDs).
		Order("game_id ASC").
		Order("player_id ASC").
		Order("answer_number ASC").
		Find(&answers).Error
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to get game answers")
	}

	for _, a := range answers {
		byGame[a.GameID] = append(byGame[a.GameID], a)
	}
	return byGame, nil
}

// CountAnswers counts the answers a player has submitted in a game.
func (r *PairGameRepository) CountAnswers(ctx context.Context, gameID, playerID string) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.GameAnswer{}).
		Where("game_id = ? AND player_id = ?", gameID, playerID).
		Count(&count).Error
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeInternalError, "failed to count answers")
	}
	return int(count), nil
}

// RecordAnswer appends an answer. A second answer for the same ordinal or question is a conflict.
func (r *PairGameRepository) RecordAnswer(ctx context.Context, gameID, playerID, questionID string, ordinal int, body, status string, addedAt time.Time) (*models.GameAnswer, error) {
	answer := &models.GameAnswer{
		GameID:       gameID,
		PlayerID:     playerID,
		QuestionID:   questionID,
		AnswerNumber: ordinal,
		AnswerBody:   body,
		AnswerStatus: status,
		AddedAt:      addedAt,
	}

	err := r.db.WithContext(ctx).Omit(clause.Associations).Create(answer).Error
	if stderrors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, errors.New(errors.ErrCodeConflict, "question already answered")
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to record answer")
	}

	return answer, nil
}

// SetFinishDeadline records the first player to answer everything and when the game must end.
// It only applies to an active game without a deadline.
func (r *PairGameRepository) SetFinishDeadline(ctx context.Context, gameID, firstFinisherID string, deadline time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.PairGame{}).
		Where("id = ? AND status = ? AND finish_deadline IS NULL", gameID, models.GameStatusActive).
		Updates(map[string]interface{}{
			"finish_deadline":   deadline,
			"first_finisher_id": firstFinisherID,
		})

	if result.Error != nil {
		return false, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to set finish deadline")
	}
	return result.RowsAffected > 0, nil
}

// FinalizeMatch stores the final scores of an active game. A game that is not active is left as is
// and false is returned, so calling it twice is harmless.
func (r *PairGameRepository) FinalizeMatch(ctx context.Context, gameID string, firstScore, secondScore int, finishedAt time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.PairGame{}).
		Where("id = ? AND status = ?", gameID, models.GameStatusActive).
		Updates(map[string]interface{}{
			"status":              models.GameStatusFinished,
			"first_player_score":  firstScore,
			"second_player_score": secondScore,
			"game_finished_at":    finishedAt,
		})

	if result.Error != nil {
		return false, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to finalize pair game")
	}
	return result.RowsAffected > 0, nil
}

// ListExpired returns active games whose finish deadline is at or before now.
func (r *PairGameRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]models.PairGame, error) {
	var games []models.PairGame
	err := r.db.WithContext(ctx).
		Where("status = ? AND finish_deadline IS NOT NULL AND finish_deadline <= ?", models.GameStatusActive, now).
		Order("finish_deadline ASC").
		Limit(limit).
		Find(&games).Error
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to list expired games")
	}
	return games, nil
}

// SoftDeleteStalePending hides pending games created before olderThan.
func (r *PairGameRepository) SoftDeleteStalePending(ctx context.Context, olderThan time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("status = ? AND second_player_id IS NULL AND pair_created_at < ?", models.GameStatusPending, olderThan).
		Delete(&models.PairGame{})

	if result.Error != nil {
		return 0, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to delete stale pending games")
	}
	return result.RowsAffected, nil
}
