package repositories

import (
	"context"

	"github.com/mroshb/pair_quiz/internal/models"
	"github.com/mroshb/pair_quiz/internal/pagination"
	"github.com/mroshb/pair_quiz/pkg/errors"
	"gorm.io/gorm"
)

// PlayerStats is one row of aggregated results over finished games.
type PlayerStats struct {
	PlayerID    string  `gorm:"column:player_id"`
	SumScore    int64   `gorm:"column:sum_score"`
	AvgScores   float64 `gorm:"column:avg_scores"`
	GamesCount  int64   `gorm:"column:games_count"`
	WinsCount   int64   `gorm:"column:wins_count"`
	LossesCount int64   `gorm:"column:losses_count"`
	DrawsCount  int64   `gorm:"column:draws_count"`
}

// StatsSortColumns maps the sortable leaderboard fields to result columns.
var StatsSortColumns = map[string]string{
	"avgScores":   "avg_scores",
	"sumScore":    "sum_score",
	"gamesCount":  "games_count",
	"winsCount":   "wins_count",
	"lossesCount": "losses_count",
	"drawsCount":  "draws_count",
}

// DefaultStatsSort orders the leaderboard when the caller gives no sort.
var DefaultStatsSort = []pagination.SortField{
	{Field: "avgScores", Column: "avg_scores", Desc: true},
	{Field: "sumScore", Column: "sum_score", Desc: true},
}

// Every finished game contributes one row per seat: (player, own score, opponent score).
const seatScoresSQL = `
SELECT first_player_id AS player_id, first_player_score AS score, second_player_score AS opponent_score
FROM pair_games WHERE status = @finished AND deleted_at IS NULL
UNION ALL
SELECT second_player_id AS player_id, second_player_score AS score, first_player_score AS opponent_score
FROM pair_games WHERE status = @finished AND deleted_at IS NULL AND second_player_id IS NOT NULL`

const aggregateSQL = `
SELECT player_id,
	SUM(score) AS sum_score,
	ROUND(AVG(score * 1.0), 2) AS avg_scores,
	COUNT(*) AS games_count,
	SUM(CASE WHEN score > opponent_score THEN 1 ELSE 0 END) AS wins_count,
	SUM(CASE WHEN score < opponent_score THEN 1 ELSE 0 END) AS losses_count,
	SUM(CASE WHEN score = opponent_score THEN 1 ELSE 0 END) AS draws_count
FROM (` + seatScoresSQL + `) seats`

type StatisticsRepository struct {
	db *gorm.DB
}

func NewStatisticsRepository(db *gorm.DB) *StatisticsRepository {
	return &StatisticsRepository{db: db}
}

// PlayerStatistics aggregates the finished games of one user. A user without
// finished games gets a zeroed row.
func (r *StatisticsRepository) PlayerStatistics(ctx context.Context, userID string) (*PlayerStats, error) {
	var rows []PlayerStats
	err := r.db.WithContext(ctx).Raw(aggregateSQL+`
WHERE player_id = @player
GROUP BY player_id`, map[string]interface{}{
		"finished": models.GameStatusFinished,
		"player":   userID,
	}).Scan(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to aggregate player statistics")
	}

	if len(rows) == 0 {
		return &PlayerStats{PlayerID: userID}, nil
	}
	return &rows[0], nil
}

// TopPlayers pages through the leaderboard. sorts must come from StatsSortColumns;
// ties are always broken by player id.
func (r *StatisticsRepository) TopPlayers(ctx context.Context, sorts []pagination.SortField, page pagination.Params) ([]PlayerStats, int64, error) {
	params := map[string]interface{}{
		"finished": models.GameStatusFinished,
		"limit":    page.Limit(),
		"offset":   page.Offset(),
	}

	var total int64
	if err := r.db.WithContext(ctx).
		Raw(`SELECT COUNT(DISTINCT player_id) FROM (`+seatScoresSQL+`) seats`, params).
		Scan(&total).Error; err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeInternalError, "failed to count players")
	}

	if len(sorts) == 0 {
		sorts = DefaultStatsSort
	}
	orderBy := pagination.OrderBy(sorts) + ", player_id ASC"

	var rows []PlayerStats
	err := r.db.WithContext(ctx).Raw(aggregateSQL+`
GROUP BY player_id
ORDER BY `+orderBy+`
LIMIT @limit OFFSET @offset`, params).Scan(&rows).Error
	if err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeInternalError, "failed to aggregate top players")
	}

	return rows, total, nil
}
