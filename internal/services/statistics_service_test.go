package services

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/mroshb/pair_quiz/internal/cache"
	"github.com/mroshb/pair_quiz/internal/config"
	"github.com/mroshb/pair_quiz/internal/pagination"
	"github.com/mroshb/pair_quiz/internal/repositories"
	"github.com/mroshb/pair_quiz/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStatisticsService(t *testing.T, env *testEnv, withCache bool) (*StatisticsService, *miniredis.Miniredis) {
	t.Helper()
	var redisCache *cache.RedisCache
	var mr *miniredis.Miniredis
	if withCache {
		var err error
		mr, err = miniredis.Run()
		require.NoError(t, err)
		t.Cleanup(mr.Close)
		redisCache = cache.NewRedisCache(&config.Config{RedisAddr: mr.Addr()})
		t.Cleanup(func() { redisCache.Close() })
	}
	stats := NewStatisticsService(repositories.NewStatisticsRepository(env.db), env.users, redisCache, time.Minute)
	env.games.OnGameFinished(stats)
	return stats, mr
}

// playGame runs a full game between a and b where each gets the given number of correct answers.
func playGame(t *testing.T, env *testEnv, a, b string, correctA, correctB int) {
	t.Helper()
	ctx := context.Background()
	_, err := env.games.ConnectToGame(ctx, a)
	require.NoError(t, err)
	game, err := env.games.ConnectToGame(ctx, b)
	require.NoError(t, err)
	env.play(t, a, game.Questions, flags(correctA, 5)...)
	env.play(t, b, game.Questions, flags(correctB, 5)...)
}

func TestMyStatistics_NoGames(t *testing.T) {
	env := newTestEnv(t, 10, defaultConfig())
	stats, _ := newStatisticsService(t, env, false)
	a := env.user(t, "alice")

	view, err := stats.MyStatistics(context.Background(), a)
	require.NoError(t, err)
	assert.Equal(t, StatisticsView{}, *view)
}

func TestMyStatistics_CachedAndInvalidated(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 10, defaultConfig())
	stats, mr := newStatisticsService(t, env, true)
	a := env.user(t, "alice")
	b := env.user(t, "bob")

	// alice 2+1 bonus vs bob 2: alice wins.
	playGame(t, env, a, b, 2, 2)

	view, err := stats.MyStatistics(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, StatisticsView{SumScore: 3, AvgScores: 3, GamesCount: 1, WinsCount: 1}, *view)
	assert.True(t, mr.Exists("stats:user:"+a))

	// Finishing another game drops the cached row.
	playGame(t, env, b, a, 0, 5)
	assert.False(t, mr.Exists("stats:user:"+a))

	view, err = stats.MyStatistics(ctx, a)
	require.NoError(t, err)
	assert.EqualValues(t, 8, view.SumScore)
	assert.EqualValues(t, 2, view.GamesCount)
	assert.InDelta(t, 4.0, view.AvgScores, 0.001)
	assert.EqualValues(t, 2, view.WinsCount)

	bob, err := stats.MyStatistics(ctx, b)
	require.NoError(t, err)
	assert.EqualValues(t, 2, bob.LossesCount)
	assert.EqualValues(t, 2, bob.SumScore)
}

func TestTopPlayers(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 10, defaultConfig())
	stats, mr := newStatisticsService(t, env, true)
	a := env.user(t, "alice")
	b := env.user(t, "bob")
	c := env.user(t, "carol")

	playGame(t, env, a, b, 4, 1) // alice 5, bob 1
	playGame(t, env, c, b, 2, 2) // carol 3, bob 2

	page, err := stats.TopPlayers(ctx, nil, pagination.Params{Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 3, page.TotalCount)
	assert.Equal(t, 2, page.PagesCount)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "alice", page.Items[0].Player.Login)
	assert.EqualValues(t, 5, page.Items[0].SumScore)
	assert.Equal(t, "carol", page.Items[1].Player.Login)

	page, err = stats.TopPlayers(ctx, []string{"gamesCount desc", "sumScore asc"}, pagination.Params{Page: 1, PageSize: 10})
	require.NoError(t, err)
	require.Len(t, page.Items, 3)
	assert.Equal(t, b, page.Items[0].Player.ID)
	assert.EqualValues(t, 2, page.Items[0].GamesCount)
	assert.EqualValues(t, 2, page.Items[0].LossesCount)

	generation, err := mr.Get("stats:top:generation")
	require.NoError(t, err)
	assert.Equal(t, "2", generation)

	_, err = stats.TopPlayers(ctx, []string{"login asc"}, pagination.Params{})
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))
}

func TestTopPlayers_ServedFromCacheUntilAGameFinishes(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 10, defaultConfig())
	stats, _ := newStatisticsService(t, env, true)
	a := env.user(t, "alice")
	b := env.user(t, "bob")
	c := env.user(t, "carol")

	playGame(t, env, a, b, 1, 1)

	page, err := stats.TopPlayers(ctx, nil, pagination.Params{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 2, page.TotalCount)

	// A write that bypasses the service is invisible while the page is cached.
	require.NoError(t, env.db.Exec("UPDATE pair_games SET first_player_score = 50").Error)
	cached, err := stats.TopPlayers(ctx, nil, pagination.Params{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, page, cached)

	playGame(t, env, c, b, 0, 0)
	fresh, err := stats.TopPlayers(ctx, nil, pagination.Params{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 3, fresh.TotalCount)
	assert.Equal(t, "alice", fresh.Items[0].Player.Login)
	assert.EqualValues(t, 50, fresh.Items[0].SumScore)
}
