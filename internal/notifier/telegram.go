package notifier

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"ngdi-portal/internal/config"
	"ngdi-portal/internal/models"
	"ngdi-portal/internal/repository"
)

// Bot pushes portal events to the administrators' Telegram chat and lets
// admins promote freshly registered users to node officer from the chat.
type Bot struct {
	api    *tgbotapi.BotAPI
	users  repository.UserRepository
	cfg    *config.Config
	logger *zap.Logger
}

// NewBot creates the notification bot. Returns (nil, nil) when notifications
// are disabled; a nil *Bot is safe to use everywhere.
func NewBot(cfg *config.Config, users repository.UserRepository, logger *zap.Logger) (*Bot, error) {
	if !cfg.Notifications.Enabled || cfg.Notifications.TelegramBotToken == "" {
		logger.Info("Telegram notifications are disabled")
		return nil, nil
	}

	botAPI, err := tgbotapi.NewBotAPI(cfg.Notifications.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot API: %w", err)
	}

	logger.Info("Telegram bot authorized", zap.String("username", botAPI.Self.UserName))

	return &Bot{
		api:    botAPI,
		users:  users,
		cfg:    cfg,
		logger: logger,
	}, nil
}

// UserRegistered notifies admins about a new account and offers a one-tap
// node officer promotion.
func (b *Bot) UserRegistered(user *models.User) {
	if b == nil {
		return
	}

	text := fmt.Sprintf("New portal account:\n%s <%s>", user.Name, user.Email)
	msg := tgbotapi.NewMessage(b.cfg.Notifications.AdminChatID, text)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Promote to node officer", "promote:"+user.ID),
			tgbotapi.NewInlineKeyboardButtonData("Keep as user", "ignore:"+user.ID),
		),
	)

	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send registration notification", zap.Error(err))
	}
}

// RecordPublished notifies admins that a metadata record went live.
func (b *Bot) RecordPublished(record *models.MetadataRecord) {
	if b == nil {
		return
	}

	text := fmt.Sprintf("Metadata published:\n%s (%s, %s)", record.Title, record.Organization, record.DataType)
	if _, err := b.api.Send(tgbotapi.NewMessage(b.cfg.Notifications.AdminChatID, text)); err != nil {
		b.logger.Error("Failed to send publish notification", zap.Error(err))
	}
}

// Start begins listening for updates from Telegram.
func (b *Bot) Start(ctx context.Context) error {
	if b == nil {
		return nil // Bot is disabled
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	b.logger.Info("Telegram bot started, waiting for updates...")

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("Telegram bot shutting down...")
			b.api.StopReceivingUpdates()
			return nil
		case update := <-updates:
			if update.CallbackQuery != nil {
				b.handleCallbackQuery(update.CallbackQuery)
			}
		}
	}
}

// handleCallbackQuery processes the promote/ignore buttons under
// registration notifications.
func (b *Bot) handleCallbackQuery(query *tgbotapi.CallbackQuery) {
	callback := tgbotapi.NewCallback(query.ID, "")
	if _, err := b.api.Request(callback); err != nil {
		b.logger.Error("Failed to send callback response", zap.Error(err))
	}

	parts := strings.SplitN(query.Data, ":", 2)
	if len(parts) != 2 {
		b.logger.Error("Failed to parse callback data: invalid format", zap.String("data", query.Data))
		return
	}
	action, userID := parts[0], parts[1]

	switch action {
	case "promote":
		if err := b.users.UpdateRole(userID, models.RoleNodeOfficer); err != nil {
			b.logger.Error("Failed to promote user", zap.String("user_id", userID), zap.Error(err))
			b.sendText(query.From.ID, "Failed to promote user")
			return
		}
		b.sendText(query.From.ID, "User promoted to node officer")
	case "ignore":
		b.sendText(query.From.ID, "Left as regular user")
	default:
		b.logger.Warn("Unknown callback action", zap.String("action", action))
	}
}

func (b *Bot) sendText(chatID int64, text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.logger.Error("Failed to send Telegram message", zap.Error(err))
	}
}
