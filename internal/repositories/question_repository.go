package repositories

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/mroshb/pair_quiz/internal/models"
	"github.com/mroshb/pair_quiz/pkg/errors"
	"gorm.io/gorm"
)

// QuestionRepository is the question bank.
type QuestionRepository struct {
	db *gorm.DB
}

func NewQuestionRepository(db *gorm.DB) *QuestionRepository {
	return &QuestionRepository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *QuestionRepository) WithTx(tx *gorm.DB) *QuestionRepository {
	return &QuestionRepository{db: tx}
}

// SampleQuestions draws count distinct published question ids uniformly at random.
// The returned order is the presentation order of a game.
func (r *QuestionRepository) SampleQuestions(ctx context.Context, count int) ([]string, error) {
	var ids []string
	if err := r.db.WithContext(ctx).Model(&models.Question{}).
		Where("published = ?", true).
		Pluck("id", &ids).Error; err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to load published questions")
	}

	if len(ids) < count {
		return nil, errors.New(errors.ErrCodeInsufficientPool,
			fmt.Sprintf("need %d published questions, have %d", count, len(ids)))
	}

	rand.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
	return ids[:count], nil
}

// GetQuestion retrieves a question by ID
func (r *QuestionRepository) GetQuestion(ctx context.Context, id string) (*models.Question, error) {
	var q models.Question
	result := r.db.WithContext(ctx).Where("id = ?", id).First(&q)

	if result.Error == gorm.ErrRecordNotFound {
		return nil, errors.New(errors.ErrCodeNotFound, "question not found")
	}
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to get question")
	}

	return &q, nil
}

// CheckAnswer judges answer against the accepted answers of questionID.
func (r *QuestionRepository) CheckAnswer(ctx context.Context, questionID, answer string) (string, error) {
	q, err := r.GetQuestion(ctx, questionID)
	if err != nil {
		return "", err
	}
	return q.Judge(answer), nil
}

// Questions loads questions in the order of ids. Missing ids are skipped.
func (r *QuestionRepository) Questions(ctx context.Context, ids []string) ([]models.Question, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var found []models.Question
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&found).Error; err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to get questions")
	}

	byID := make(map[string]models.Question, len(found))
	for _, q := range found {
		byID[q.ID] = q
	}
	ordered := make([]models.Question, 0, len(ids))
	for _, id := range ids {
		if q, ok := byID[id]; ok {
			ordered = append(ordered, q)
		}
	}
	return ordered, nil
}

// CreateQuestion stores a new question. It stays unpublished unless q.Published is set.
func (r *QuestionRepository) CreateQuestion(ctx context.Context, q *models.Question) error {
	result := r.db.WithContext(ctx).Create(q)
	if result.Error == gorm.ErrInvalidData {
		return errors.New(errors.ErrCodeValidation, "question needs a body and at least one correct answer")
	}
	if result.Error != nil {
		return errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to create question")
	}
	return nil
}

// UpsertByBody creates q, or refreshes the answers, category and published flag of the question with the same body.
// It reports whether a new row was created.
func (r *QuestionRepository) UpsertByBody(ctx context.Context, q *models.Question) (bool, error) {
	var existing models.Question
	result := r.db.WithContext(ctx).Where("body = ?", q.Body).First(&existing)

	if result.Error == gorm.ErrRecordNotFound {
		return true, r.CreateQuestion(ctx, q)
	}
	if result.Error != nil {
		return false, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to look up question")
	}

	existing.CorrectAnswers = q.CorrectAnswers
	existing.Category = q.Category
	existing.Published = q.Published
	if err := r.db.WithContext(ctx).Save(&existing).Error; err != nil {
		return false, errors.Wrap(err, errors.ErrCodeInternalError, "failed to update question")
	}
	*q = existing
	return false, nil
}

func (r *QuestionRepository) CountPublished(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Question{}).Where("published = ?", true).Count(&count).Error; err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeInternalError, "failed to count questions")
	}
	return count, nil
}
