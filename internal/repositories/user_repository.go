package repositories

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/mroshb/pair_quiz/internal/models"
	"github.com/mroshb/pair_quiz/pkg/errors"
	"github.com/mroshb/pair_quiz/pkg/utils"
	"gorm.io/gorm"
)

const generatedLoginAttempts = 3

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// CreateUser creates a new user
func (r *UserRepository) CreateUser(ctx context.Context, user *models.User) error {
	result := r.db.WithContext(ctx).Create(user)
	if stderrors.Is(result.Error, gorm.ErrDuplicatedKey) {
		return errors.New(errors.ErrCodeAlreadyExists, "login already taken")
	}
	if stderrors.Is(result.Error, gorm.ErrInvalidData) {
		return errors.New(errors.ErrCodeValidation, fmt.Sprintf("login must be %d-%d characters", models.LoginMinLength, models.LoginMaxLength))
	}
	if result.Error != nil {
		return errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to create user")
	}
	return nil
}

// GetUserByID retrieves a user by ID
func (r *UserRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	result := r.db.WithContext(ctx).Where("id = ?", id).First(&user)

	if result.Error == gorm.ErrRecordNotFound {
		return nil, errors.New(errors.ErrCodeNotFound, "user not found")
	}
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to get user")
	}

	return &user, nil
}

// FindUserLogin returns the login of a single user.
func (r *UserRepository) FindUserLogin(ctx context.Context, id string) (string, error) {
	user, err := r.GetUserByID(ctx, id)
	if err != nil {
		return "", err
	}
	return user.Login, nil
}

// FindLogins resolves many user ids at once. Unknown ids are absent from the result.
func (r *UserRepository) FindLogins(ctx context.Context, ids []string) (map[string]string, error) {
	logins := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return logins, nil
	}

	var users []models.User
	if err := r.db.WithContext(ctx).Select("id", "login").Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to get user logins")
	}
	for _, u := range users {
		logins[u.ID] = u.Login
	}
	return logins, nil
}

// GetUserByTelegramID retrieves a user by Telegram ID
func (r *UserRepository) GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	var user models.User
	result := r.db.WithContext(ctx).Where("telegram_id = ?", telegramID).First(&user)

	if result.Error == gorm.ErrRecordNotFound {
		return nil, errors.New(errors.ErrCodeNotFound, "user not found")
	}
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to get user")
	}

	return &user, nil
}

// GetOrCreateByTelegramID returns the account bound to a Telegram user,
// creating one with a generated login on first contact.
func (r *UserRepository) GetOrCreateByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	user, err := r.GetUserByTelegramID(ctx, telegramID)
	if err == nil {
		return user, nil
	}
	if !errors.IsCode(err, errors.ErrCodeNotFound) {
		return nil, err
	}

	for attempt := 0; attempt < generatedLoginAttempts; attempt++ {
		tgID := telegramID
		user = &models.User{
			Login:      "player_" + utils.GenerateRandomID(8),
			TelegramID: &tgID,
		}
		err = r.CreateUser(ctx, user)
		if err == nil {
			return user, nil
		}
		if !errors.IsCode(err, errors.ErrCodeAlreadyExists) {
			return nil, err
		}
		// Either the login collided or a concurrent update created this Telegram user.
		if existing, getErr := r.GetUserByTelegramID(ctx, telegramID); getErr == nil {
			return existing, nil
		}
	}

	return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to provision telegram user")
}
