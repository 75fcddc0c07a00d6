// Package telegram adapts the Telegram Bot API to the dispatcher's
// messaging surface and feeds inbound commands to it.
package telegram

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Commands is the inbound command surface: start, help and check are the
// only accepted triggers.
type Commands interface {
	HandleStart(ctx context.Context, chatID int64) error
	HandleHelp(ctx context.Context, chatID int64) error
	HandleCheck(ctx context.Context, chatID int64) error
}

// Config controls the bot connection.
type Config struct {
	Token string
	// PollTimeout is the long-poll timeout for update requests.
	PollTimeout time.Duration
}

// Bot wraps the Telegram client.
type Bot struct {
	api         *tgbotapi.BotAPI
	pollTimeout time.Duration
	logger      *zap.Logger
}

// New authenticates against the Bot API, failing fast on a bad token.
func New(cfg Config, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("authenticate bot: %w", err)
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	logger.Info("telegram bot authenticated", zap.String("username", api.Self.UserName))
	return &Bot{api: api, pollTimeout: timeout, logger: logger}, nil
}

// Send delivers one HTML message to one chat.
func (b *Bot) Send(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("send to chat %d: %w", chatID, err)
	}
	return nil
}

// Run consumes updates until the context finishes, routing commands to the
// handlers. A failing handler is logged and never stops the loop.
func (b *Bot) Run(ctx context.Context, commands Commands) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = int(b.pollTimeout.Seconds())
	updates := b.api.GetUpdatesChan(u)

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		b.dispatch(ctx, commands, update)
	}
}

// dispatch routes one update to its command handler. Non-command messages
// and unknown commands are ignored.
func (b *Bot) dispatch(ctx context.Context, commands Commands, update tgbotapi.Update) {
	if update.Message == nil || !update.Message.IsCommand() {
		return
	}
	chatID := update.Message.Chat.ID
	command := update.Message.Command()

	var err error
	switch command {
	case "start":
		err = commands.HandleStart(ctx, chatID)
	case "help":
		err = commands.HandleHelp(ctx, chatID)
	case "check":
		err = commands.HandleCheck(ctx, chatID)
	default:
		return
	}
	if err != nil {
		b.logger.Warn("command handling failed",
			zap.String("command", command),
			zap.Int64("chat_id", chatID),
			zap.Error(err),
		)
	}
}
