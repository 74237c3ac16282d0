package telegram

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/mroshb/pair_quiz/internal/config"
	"github.com/mroshb/pair_quiz/internal/models"
	"github.com/mroshb/pair_quiz/internal/pagination"
	"github.com/mroshb/pair_quiz/internal/repositories"
	"github.com/mroshb/pair_quiz/internal/services"
	"github.com/mroshb/pair_quiz/pkg/errors"
	"github.com/mroshb/pair_quiz/pkg/logger"
)

const (
	workerCount    = 10
	requestTimeout = 15 * time.Second
)

type Bot struct {
	api    *tgbotapi.BotAPI
	config *config.Config

	users *repositories.UserRepository
	games *services.PairGameService
	stats *services.StatisticsService

	// Worker pool for parallel processing
	workerChans []chan tgbotapi.Update
	stop        chan struct{}
}

// InitBot connects to Telegram and starts processing updates.
func InitBot(cfg *config.Config, users *repositories.UserRepository, games *services.PairGameService, stats *services.StatisticsService) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	if cfg.AppEnv == "development" {
		api.Debug = true
	}

	logger.Info("Authorized on account", "username", api.Self.UserName)

	bot := &Bot{
		api:         api,
		config:      cfg,
		users:       users,
		games:       games,
		stats:       stats,
		workerChans: make([]chan tgbotapi.Update, workerCount),
		stop:        make(chan struct{}),
	}

	for i := 0; i < workerCount; i++ {
		bot.workerChans[i] = make(chan tgbotapi.Update, 100)
		go bot.startWorker(bot.workerChans[i])
	}

	go bot.startUpdateListener()

	games.OnGameFinished(bot)

	return bot, nil
}

func (b *Bot) startUpdateListener() {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	for {
		logger.Info("Starting update listener...")
		updates := b.api.GetUpdatesChan(u)

		for update := range updates {
			var userID int64
			if update.Message != nil && update.Message.From != nil {
				userID = update.Message.From.ID
			} else if update.CallbackQuery != nil {
				userID = update.CallbackQuery.From.ID
			}

			if userID == 0 {
				continue
			}

			// Hashed dispatch keeps each user's updates in order.
			workerIdx := userID % int64(len(b.workerChans))
			if workerIdx < 0 {
				workerIdx = -workerIdx
			}
			b.workerChans[workerIdx] <- update
		}

		select {
		case <-b.stop:
			return
		default:
		}
		logger.Warn("Update channel closed. Restarting in 5 seconds...")
		time.Sleep(5 * time.Second)
	}
}

func (b *Bot) startWorker(ch chan tgbotapi.Update) {
	for update := range ch {
		b.handleUpdate(update)
	}
}

func (b *Bot) handleUpdate(update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Panic in handleUpdate", "error", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	if update.Message != nil {
		b.handleMessage(ctx, update.Message)
	} else if update.CallbackQuery != nil {
		b.handleCallbackQuery(ctx, update.CallbackQuery)
	}
}

func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID
	logger.Debug("Received message", "telegram_id", message.From.ID, "command", message.Command())

	user, err := b.users.GetOrCreateByTelegramID(ctx, message.From.ID)
	if err != nil {
		logger.Error("Failed to resolve telegram user", "telegram_id", message.From.ID, "error", err)
		b.sendMessage(chatID, "⚠️ Something went wrong. Please try again later.", nil)
		return
	}

	if message.IsCommand() {
		switch message.Command() {
		case "start", "help":
			b.sendMessage(chatID, fmt.Sprintf("👋 Welcome, <b>%s</b>!\n\n"+
				"/play - join or start a game\n/game - your current game\n/stats - your statistics\n"+
				"/top - best players\n/history - your games\n\nWhile a game runs, every message you send is your answer.",
				user.Login), MainMenuKeyboard())
		case "play":
			b.connect(ctx, chatID, user)
		case "game":
			b.showCurrentGame(ctx, chatID, user)
		case "stats":
			b.showStats(ctx, chatID, user)
		case "top":
			b.showTop(ctx, chatID)
		case "history":
			b.showHistory(ctx, chatID, user)
		default:
			b.sendMessage(chatID, "Unknown command. Try /help.", MainMenuKeyboard())
		}
		return
	}

	switch strings.TrimSpace(message.Text) {
	case BtnPlay:
		b.connect(ctx, chatID, user)
	case BtnGame:
		b.showCurrentGame(ctx, chatID, user)
	case BtnStats:
		b.showStats(ctx, chatID, user)
	case BtnTop:
		b.showTop(ctx, chatID)
	case BtnHistory:
		b.showHistory(ctx, chatID, user)
	default:
		b.submitAnswer(ctx, chatID, user, message.Text)
	}
}

func (b *Bot) handleCallbackQuery(ctx context.Context, query *tgbotapi.CallbackQuery) {
	b.AnswerCallbackQuery(query.ID, "", false)
	if query.Message == nil {
		return
	}
	chatID := query.Message.Chat.ID

	user, err := b.users.GetOrCreateByTelegramID(ctx, query.From.ID)
	if err != nil {
		logger.Error("Failed to resolve telegram user", "telegram_id", query.From.ID, "error", err)
		return
	}

	switch query.Data {
	case CbConnect:
		b.connect(ctx, chatID, user)
	case CbRefresh:
		b.showCurrentGame(ctx, chatID, user)
	case CbTop:
		b.showTop(ctx, chatID)
	}
}

func (b *Bot) connect(ctx context.Context, chatID int64, user *models.User) {
	view, err := b.games.ConnectToGame(ctx, user.ID)
	switch {
	case errors.IsCode(err, errors.ErrCodeConflict):
		b.sendMessage(chatID, "You already have an unfinished game.", GameKeyboard())
		return
	case errors.IsCode(err, errors.ErrCodeInsufficientPool):
		b.sendMessage(chatID, "⚠️ Not enough questions are available right now. Please try again later.", nil)
		return
	case err != nil:
		b.reportError(chatID, "connect", err)
		return
	}

	b.sendMessage(chatID, FormatGame(view, user.ID), GameKeyboard())

	// The waiting player learns about the match from here.
	if view.Status == models.GameStatusActive && view.FirstPlayerProgress.Player.ID != user.ID {
		go b.notifyPlayer(view.ID, view.FirstPlayerProgress.Player.ID, GameKeyboard())
	}
}

func (b *Bot) showCurrentGame(ctx context.Context, chatID int64, user *models.User) {
	view, err := b.games.GetCurrentGame(ctx, user.ID)
	if errors.IsCode(err, errors.ErrCodeNotFound) {
		b.sendMessage(chatID, "You have no unfinished game. Tap "+BtnPlay+" to start one.", MainMenuKeyboard())
		return
	}
	if err != nil {
		b.reportError(chatID, "current game", err)
		return
	}
	b.sendMessage(chatID, FormatGame(view, user.ID), GameKeyboard())
}

func (b *Bot) submitAnswer(ctx context.Context, chatID int64, user *models.User, text string) {
	answer, err := b.games.SubmitAnswer(ctx, user.ID, text)
	switch {
	case errors.IsCode(err, errors.ErrCodeNotFound):
		b.sendMessage(chatID, "You have no running game. Tap "+BtnPlay+" to start one.", MainMenuKeyboard())
		return
	case errors.IsCode(err, errors.ErrCodeConflict):
		b.sendMessage(chatID, "✅ You answered everything. Waiting for your opponent...", GameKeyboard())
		return
	case err != nil:
		b.reportError(chatID, "answer", err)
		return
	}

	b.sendMessage(chatID, FormatAnswer(answer), nil)

	// A finished game is announced by GameFinished.
	view, err := b.games.GetCurrentGame(ctx, user.ID)
	if err == nil {
		b.sendMessage(chatID, FormatGame(view, user.ID), GameKeyboard())
	}
}

func (b *Bot) showStats(ctx context.Context, chatID int64, user *models.User) {
	stats, err := b.stats.MyStatistics(ctx, user.ID)
	if err != nil {
		b.reportError(chatID, "stats", err)
		return
	}
	b.sendMessage(chatID, FormatStats(stats), MainMenuKeyboard())
}

func (b *Bot) showTop(ctx context.Context, chatID int64) {
	page, err := b.stats.TopPlayers(ctx, nil, pagination.Params{Page: 1, PageSize: 10})
	if err != nil {
		b.reportError(chatID, "top", err)
		return
	}
	b.sendMessage(chatID, FormatTop(page), MainMenuKeyboard())
}

func (b *Bot) showHistory(ctx context.Context, chatID int64, user *models.User) {
	page, err := b.games.MyGames(ctx, user.ID, nil, pagination.Params{Page: 1, PageSize: 10})
	if err != nil {
		b.reportError(chatID, "history", err)
		return
	}
	b.sendMessage(chatID, FormatHistory(page, user.ID), MainMenuKeyboard())
}

// GameFinished tells both players the result.
func (b *Bot) GameFinished(_ context.Context, game *models.PairGame) {
	players := []string{game.FirstPlayerID, game.PlayerID(models.SecondPlayer)}
	for _, playerID := range players {
		if playerID != "" {
			go b.notifyPlayer(game.ID, playerID, FinishedKeyboard())
		}
	}
}

// notifyPlayer sends the current state of a game to a player registered through Telegram.
func (b *Bot) notifyPlayer(gameID, playerID string, keyboard interface{}) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	user, err := b.users.GetUserByID(ctx, playerID)
	if err != nil || user.TelegramID == nil {
		return
	}
	view, err := b.games.FindGameByID(ctx, gameID, playerID)
	if err != nil {
		logger.Warn("Failed to load game for notification", "game_id", gameID, "error", err)
		return
	}
	b.sendMessage(*user.TelegramID, FormatGame(view, playerID), keyboard)
}

func (b *Bot) reportError(chatID int64, action string, err error) {
	logger.Error("Bot request failed", "action", action, "chat_id", chatID, "error", err)
	b.sendMessage(chatID, "⚠️ Something went wrong. Please try again later.", nil)
}

func (b *Bot) sendMessage(chatID int64, text string, keyboard interface{}) int {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML

	switch kb := keyboard.(type) {
	case tgbotapi.ReplyKeyboardMarkup:
		msg.ReplyMarkup = kb
	case tgbotapi.InlineKeyboardMarkup:
		msg.ReplyMarkup = kb
	case tgbotapi.ReplyKeyboardRemove:
		msg.ReplyMarkup = kb
	}

	maxRetries := 3
	for i := 0; i < maxRetries; i++ {
		sentMsg, err := b.api.Send(msg)
		if err != nil {
			logger.Error("Failed to send message", "error", err, "chat_id", chatID, "attempt", i+1)

			if strings.Contains(err.Error(), "connection reset") ||
				strings.Contains(err.Error(), "timeout") ||
				strings.Contains(err.Error(), "network is unreachable") {
				time.Sleep(time.Duration(i+1) * time.Second)
				continue
			}
			return 0
		}
		return sentMsg.MessageID
	}
	return 0
}

func (b *Bot) AnswerCallbackQuery(queryID string, text string, showAlert bool) {
	callback := tgbotapi.NewCallback(queryID, text)
	callback.ShowAlert = showAlert
	if _, err := b.api.Request(callback); err != nil {
		logger.Error("Failed to answer callback query", "error", err, "query_id", queryID)
	}
}

func (b *Bot) Stop() {
	close(b.stop)
	b.api.StopReceivingUpdates()
	logger.Info("Bot stopped receiving updates")
}
