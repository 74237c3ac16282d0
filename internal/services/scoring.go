package services

import (
	"fmt"

	"github.com/mroshb/pair_quiz/internal/config"
	"github.com/mroshb/pair_quiz/internal/models"
)

// BonusPolicy decides who earns the completion bonus point when a game finishes.
type BonusPolicy string

const (
	// The first player to answer every question gets +1 if at least one answer was correct.
	BonusFirstFinisherWithCorrect BonusPolicy = config.BonusFirstFinisherWithCorrect
	// The first finisher gets +1 when no opponent has more correct answers, a 0:0 tie included.
	BonusFirstFinisherLeading BonusPolicy = config.BonusFirstFinisherLeading
	BonusNone                 BonusPolicy = config.BonusNone
)

func ParseBonusPolicy(s string) (BonusPolicy, error) {
	switch p := BonusPolicy(s); p {
	case BonusFirstFinisherWithCorrect, BonusFirstFinisherLeading, BonusNone:
		return p, nil
	case "":
		return BonusFirstFinisherLeading, nil
	}
	return "", fmt.Errorf("unknown bonus policy %q", s)
}

// Progress is what one player has done in a game so far.
type Progress struct {
	Answered int
	Correct  int
}

// Bonus returns the bonus point earned by the first finisher.
func (p BonusPolicy) Bonus(finisher, opponent Progress) int {
	switch p {
	case BonusFirstFinisherWithCorrect:
		if finisher.Correct > 0 {
			return 1
		}
	case BonusFirstFinisherLeading:
		if finisher.Correct >= opponent.Correct {
			return 1
		}
	}
	return 0
}

// FinalScores computes the scores stored when a game finishes. Unanswered questions count as
// incorrect. Only firstFinisher can earn the bonus; pass 0 when nobody completed the game.
func FinalScores(policy BonusPolicy, firstFinisher models.PlayerSide, first, second Progress) (int, int) {
	scores := map[models.PlayerSide]int{
		models.FirstPlayer:  first.Correct,
		models.SecondPlayer: second.Correct,
	}
	if firstFinisher != 0 {
		progress := map[models.PlayerSide]Progress{models.FirstPlayer: first, models.SecondPlayer: second}
		scores[firstFinisher] += policy.Bonus(progress[firstFinisher], progress[firstFinisher.Opponent()])
	}
	return scores[models.FirstPlayer], scores[models.SecondPlayer]
}

// progressOf splits a game's answers into per-seat progress.
func progressOf(game *models.PairGame, answers []models.GameAnswer) (first, second Progress) {
	secondID := game.PlayerID(models.SecondPlayer)
	for i := range answers {
		a := &answers[i]
		var p *Progress
		switch a.PlayerID {
		case game.FirstPlayerID:
			p = &first
		case secondID:
			p = &second
		default:
			continue
		}
		p.Answered++
		if a.IsCorrect() {
			p.Correct++
		}
	}
	return first, second
}

// ComputeDisplayScore is the score shown for side: the stored score once the game is finished,
// otherwise the live count of correct answers.
func ComputeDisplayScore(game *models.PairGame, side models.PlayerSide, answers []models.GameAnswer) int {
	if game.Status == models.GameStatusFinished {
		return game.StoredScore(side)
	}
	first, second := progressOf(game, answers)
	if side == models.FirstPlayer {
		return first.Correct
	}
	return second.Correct
}

// firstFinisherSide resolves who completed all questions first. The recorded finisher wins;
// otherwise the player whose last answer came earlier among those who completed.
func firstFinisherSide(game *models.PairGame, answers []models.GameAnswer, total int) models.PlayerSide {
	if game.FirstFinisherID != nil {
		return game.SideOf(*game.FirstFinisherID)
	}

	var best models.PlayerSide
	var bestAt, firstLast, secondLast int64
	counts := map[models.PlayerSide]int{}
	for i := range answers {
		side := game.SideOf(answers[i].PlayerID)
		if side == 0 {
			continue
		}
		counts[side]++
		at := answers[i].AddedAt.UnixNano()
		if side == models.FirstPlayer && at > firstLast {
			firstLast = at
		}
		if side == models.SecondPlayer && at > secondLast {
			secondLast = at
		}
	}

	for _, side := range []models.PlayerSide{models.FirstPlayer, models.SecondPlayer} {
		if counts[side] < total {
			continue
		}
		last := firstLast
		if side == models.SecondPlayer {
			last = secondLast
		}
		if best == 0 || last < bestAt {
			best, bestAt = side, last
		}
	}
	return best
}
