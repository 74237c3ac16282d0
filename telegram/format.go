package telegram

import (
	"fmt"
	"html"
	"strings"

	"github.com/mroshb/pair_quiz/internal/models"
	"github.com/mroshb/pair_quiz/internal/pagination"
	"github.com/mroshb/pair_quiz/internal/services"
)

// myProgress returns the progress of userID and of the opponent, which is nil while pending.
func myProgress(view *services.GameView, userID string) (mine, theirs *services.PlayerProgressView) {
	if view.FirstPlayerProgress.Player.ID == userID {
		return &view.FirstPlayerProgress, view.SecondPlayerProgress
	}
	return view.SecondPlayerProgress, &view.FirstPlayerProgress
}

// NextQuestion returns the question userID answers next, or nil when there is none.
func NextQuestion(view *services.GameView, userID string) *services.QuestionView {
	if view.Status != models.GameStatusActive {
		return nil
	}
	mine, _ := myProgress(view, userID)
	if mine == nil || len(mine.Answers) >= len(view.Questions) {
		return nil
	}
	return &view.Questions[len(mine.Answers)]
}

// FormatGame renders a game from the point of view of userID.
func FormatGame(view *services.GameView, userID string) string {
	var sb strings.Builder

	switch view.Status {
	case models.GameStatusPending:
		sb.WriteString("⏳ <b>Waiting for an opponent...</b>\n")
		sb.WriteString("You will get your first question as soon as someone joins.")
		return sb.String()
	case models.GameStatusActive:
		sb.WriteString("🎮 <b>Game in progress</b>\n\n")
	default:
		sb.WriteString("🏁 <b>Game finished</b>\n\n")
	}

	mine, theirs := myProgress(view, userID)
	fmt.Fprintf(&sb, "You: <b>%d</b> (%d/%d answered)\n", mine.Score, len(mine.Answers), len(view.Questions))
	fmt.Fprintf(&sb, "%s: <b>%d</b> (%d/%d answered)\n",
		html.EscapeString(theirs.Player.Login), theirs.Score, len(theirs.Answers), len(view.Questions))

	if view.Status == models.GameStatusFinished {
		sb.WriteString("\n")
		switch {
		case mine.Score > theirs.Score:
			sb.WriteString("🥇 You won!")
		case mine.Score < theirs.Score:
			sb.WriteString("😔 You lost.")
		default:
			sb.WriteString("🤝 Draw.")
		}
		return sb.String()
	}

	if q := NextQuestion(view, userID); q != nil {
		fmt.Fprintf(&sb, "\n❓ <b>Question %d:</b>\n%s\n\nSend your answer as a message.",
			len(mine.Answers)+1, html.EscapeString(q.Body))
	} else {
		sb.WriteString("\n✅ You answered everything. Waiting for your opponent...")
	}
	return sb.String()
}

// FormatAnswer renders the verdict for a submitted answer.
func FormatAnswer(answer *services.AnswerView) string {
	if answer.AnswerStatus == models.AnswerStatusCorrect {
		return "✅ Correct!"
	}
	return "❌ Incorrect."
}

func FormatStats(stats *services.StatisticsView) string {
	if stats.GamesCount == 0 {
		return "📊 You have no finished games yet. Tap " + BtnPlay + " to start one."
	}
	return fmt.Sprintf("📊 <b>Your statistics</b>\n\n"+
		"Games: %d\nWins: %d\nLosses: %d\nDraws: %d\nTotal score: %d\nAverage score: %.2f",
		stats.GamesCount, stats.WinsCount, stats.LossesCount, stats.DrawsCount, stats.SumScore, stats.AvgScores)
}

func FormatTop(page pagination.Page[services.TopPlayerView]) string {
	if len(page.Items) == 0 {
		return "🏆 Nobody has finished a game yet."
	}

	var sb strings.Builder
	sb.WriteString("🏆 <b>Top players</b>\n\n")
	offset := (page.Page - 1) * page.PageSize
	for i, item := range page.Items {
		fmt.Fprintf(&sb, "%d. %s - avg %.2f, total %d, games %d\n",
			offset+i+1, html.EscapeString(item.Player.Login), item.AvgScores, item.SumScore, item.GamesCount)
	}
	return sb.String()
}

func FormatHistory(page pagination.Page[services.GameView], userID string) string {
	if len(page.Items) == 0 {
		return "🗂 You have not played yet."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "🗂 <b>Your games</b> (%d total)\n\n", page.TotalCount)
	for i := range page.Items {
		view := &page.Items[i]
		date := view.PairCreatedDate.Format("2006-01-02 15:04")
		if view.Status == models.GameStatusPending {
			fmt.Fprintf(&sb, "• %s waiting for an opponent\n", date)
			continue
		}
		mine, theirs := myProgress(view, userID)
		fmt.Fprintf(&sb, "• %s vs %s: %d - %d (%s)\n",
			date, html.EscapeString(theirs.Player.Login), mine.Score, theirs.Score, view.Status)
	}
	return sb.String()
}
