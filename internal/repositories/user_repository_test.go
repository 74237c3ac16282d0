package repositories

import (
	"context"
	"testing"

	"github.com/mroshb/pair_quiz/internal/models"
	"github.com/mroshb/pair_quiz/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepository_CreateAndLookup(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewUserRepository(db)

	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")

	login, err := repo.FindUserLogin(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", login)

	_, err = repo.FindUserLogin(ctx, "missing")
	assert.True(t, errors.IsCode(err, errors.ErrCodeNotFound))

	logins, err := repo.FindLogins(ctx, []string{alice.ID, bob.ID, "missing"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{alice.ID: "alice", bob.ID: "bob"}, logins)

	err = repo.CreateUser(ctx, &models.User{Login: "alice"})
	assert.True(t, errors.IsCode(err, errors.ErrCodeAlreadyExists), "duplicate login: %v", err)

	err = repo.CreateUser(ctx, &models.User{Login: "x"})
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation), "short login: %v", err)
}

func TestUserRepository_GetOrCreateByTelegramID(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(setupTestDB(t))

	first, err := repo.GetOrCreateByTelegramID(ctx, 42)
	require.NoError(t, err)
	assert.Contains(t, first.Login, "player_")
	require.NotNil(t, first.TelegramID)
	assert.EqualValues(t, 42, *first.TelegramID)

	again, err := repo.GetOrCreateByTelegramID(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	other, err := repo.GetOrCreateByTelegramID(ctx, 43)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)
}
