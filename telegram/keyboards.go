package telegram

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Reply keyboard buttons
const (
	BtnPlay    = "🎮 Play"
	BtnGame    = "📋 Current game"
	BtnStats   = "📊 My stats"
	BtnTop     = "🏆 Top players"
	BtnHistory = "🗂 My games"
)

// Inline callback data
const (
	CbConnect = "pair:connect"
	CbRefresh = "pair:refresh"
	CbTop     = "pair:top"
)

// MainMenuKeyboard creates the main menu keyboard
func MainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	var rows [][]tgbotapi.KeyboardButton

	rows = append(rows, tgbotapi.NewKeyboardButtonRow(
		tgbotapi.NewKeyboardButton(BtnPlay),
		tgbotapi.NewKeyboardButton(BtnGame),
	))

	rows = append(rows, tgbotapi.NewKeyboardButtonRow(
		tgbotapi.NewKeyboardButton(BtnStats),
		tgbotapi.NewKeyboardButton(BtnTop),
		tgbotapi.NewKeyboardButton(BtnHistory),
	))

	return tgbotapi.NewReplyKeyboard(rows...)
}

// GameKeyboard is attached to game status messages.
func GameKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔄 Refresh", CbRefresh),
		),
	)
}

// FinishedKeyboard offers a rematch and the leaderboard after a game.
func FinishedKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🎮 Play again", CbConnect),
			tgbotapi.NewInlineKeyboardButtonData("🏆 Top", CbTop),
		),
	)
}
