package services

import (
	"context"
	"strings"
	"time"

	"github.com/mroshb/pair_quiz/internal/cache"
	"github.com/mroshb/pair_quiz/internal/models"
	"github.com/mroshb/pair_quiz/internal/pagination"
	"github.com/mroshb/pair_quiz/internal/repositories"
	"github.com/mroshb/pair_quiz/pkg/logger"
)

type StatisticsView struct {
	SumScore    int64   `json:"sumScore"`
	AvgScores   float64 `json:"avgScores"`
	GamesCount  int64   `json:"gamesCount"`
	WinsCount   int64   `json:"winsCount"`
	LossesCount int64   `json:"lossesCount"`
	DrawsCount  int64   `json:"drawsCount"`
}

type TopPlayerView struct {
	StatisticsView
	Player PlayerView `json:"player"`
}

func statisticsView(s *repositories.PlayerStats) StatisticsView {
	return StatisticsView{
		SumScore:    s.SumScore,
		AvgScores:   s.AvgScores,
		GamesCount:  s.GamesCount,
		WinsCount:   s.WinsCount,
		LossesCount: s.LossesCount,
		DrawsCount:  s.DrawsCount,
	}
}

// StatisticsService serves aggregates over finished games, cached in Redis when a cache is configured.
type StatisticsService struct {
	stats *repositories.StatisticsRepository
	users *repositories.UserRepository
	cache *cache.RedisCache
	ttl   time.Duration
}

func NewStatisticsService(stats *repositories.StatisticsRepository, users *repositories.UserRepository, redisCache *cache.RedisCache, ttl time.Duration) *StatisticsService {
	return &StatisticsService{
		stats: stats,
		users: users,
		cache: redisCache,
		ttl:   ttl,
	}
}

func (s *StatisticsService) cacheEnabled() bool {
	return s.cache != nil && s.ttl > 0
}

// MyStatistics returns the user's aggregates; zeroed for a user without finished games.
func (s *StatisticsService) MyStatistics(ctx context.Context, userID string) (*StatisticsView, error) {
	var key string
	if s.cacheEnabled() {
		key = s.cache.KeyForUserStats(userID)
		var cached StatisticsView
		hit, err := s.cache.GetJSON(ctx, key, &cached)
		if err != nil {
			logger.Warn("Statistics cache read failed", "key", key, "error", err)
		} else if hit {
			return &cached, nil
		}
	}

	row, err := s.stats.PlayerStatistics(ctx, userID)
	if err != nil {
		return nil, err
	}
	view := statisticsView(row)

	if s.cacheEnabled() {
		if err := s.cache.SetJSON(ctx, key, view, s.ttl); err != nil {
			logger.Warn("Statistics cache write failed", "key", key, "error", err)
		}
	}
	return &view, nil
}

// TopPlayers pages through the leaderboard. sortTerms are "field direction" pairs.
func (s *StatisticsService) TopPlayers(ctx context.Context, sortTerms []string, page pagination.Params) (pagination.Page[TopPlayerView], error) {
	sorts, err := pagination.ParseSort(sortTerms, repositories.StatsSortColumns)
	if err != nil {
		return pagination.Page[TopPlayerView]{}, err
	}
	if len(sorts) == 0 {
		sorts = repositories.DefaultStatsSort
	}
	page = page.Normalize()

	var key string
	if s.cacheEnabled() {
		generation, err := s.cache.GetInt(ctx, s.cache.KeyForLeaderboardGeneration())
		if err != nil {
			logger.Warn("Leaderboard generation read failed", "error", err)
		} else {
			key = s.cache.KeyForLeaderboardPage(generation, sortKey(sorts), page.Page, page.PageSize)
			var cached pagination.Page[TopPlayerView]
			hit, err := s.cache.GetJSON(ctx, key, &cached)
			if err != nil {
				logger.Warn("Leaderboard cache read failed", "key", key, "error", err)
			} else if hit {
				return cached, nil
			}
		}
	}

	rows, total, err := s.stats.TopPlayers(ctx, sorts, page)
	if err != nil {
		return pagination.Page[TopPlayerView]{}, err
	}

	ids := make([]string, 0, len(rows))
	for i := range rows {
		ids = append(ids, rows[i].PlayerID)
	}
	logins, err := s.users.FindLogins(ctx, ids)
	if err != nil {
		return pagination.Page[TopPlayerView]{}, err
	}

	items := make([]TopPlayerView, 0, len(rows))
	for i := range rows {
		items = append(items, TopPlayerView{
			StatisticsView: statisticsView(&rows[i]),
			Player:         PlayerView{ID: rows[i].PlayerID, Login: logins[rows[i].PlayerID]},
		})
	}
	result := pagination.New(items, total, page)

	if key != "" {
		if err := s.cache.SetJSON(ctx, key, result, s.ttl); err != nil {
			logger.Warn("Leaderboard cache write failed", "key", key, "error", err)
		}
	}
	return result, nil
}

// GameFinished drops the cached statistics of both players and retires every cached leaderboard page.
func (s *StatisticsService) GameFinished(ctx context.Context, game *models.PairGame) {
	if s.cache == nil {
		return
	}

	keys := []string{s.cache.KeyForUserStats(game.FirstPlayerID)}
	if id := game.PlayerID(models.SecondPlayer); id != "" {
		keys = append(keys, s.cache.KeyForUserStats(id))
	}
	if err := s.cache.Del(ctx, keys...); err != nil {
		logger.Warn("Failed to invalidate player statistics", "game_id", game.ID, "error", err)
	}
	if _, err := s.cache.Incr(ctx, s.cache.KeyForLeaderboardGeneration()); err != nil {
		logger.Warn("Failed to bump leaderboard generation", "game_id", game.ID, "error", err)
	}
}

func sortKey(sorts []pagination.SortField) string {
	parts := make([]string, 0, len(sorts))
	for _, s := range sorts {
		parts = append(parts, s.String())
	}
	return strings.ReplaceAll(strings.Join(parts, ","), " ", "_")
}
