package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"learntracker/internal/domain"
	"learntracker/internal/ratelimiter"
)

var ErrNoToken = errors.New("telegram token is empty")

// Notifier sends run reports to one Telegram chat.
type Notifier struct {
	api         *bot.Bot
	chatID      int64
	rateLimiter *ratelimiter.RateLimiter
	log         *slog.Logger
}

func New(token string, chatID int64, log *slog.Logger, opts ...bot.Option) (*Notifier, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrNoToken
	}

	opts = append([]bot.Option{bot.WithSkipGetMe()}, opts...)

	api, err := bot.New(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}

	return &Notifier{
		api:         api,
		chatID:      chatID,
		rateLimiter: ratelimiter.New(ratelimiter.ForChat(chatID), log),
		log:         log,
	}, nil
}

// SendReport delivers the formatted report. Every message is attempted even
// when an earlier one fails.
func (n *Notifier) SendReport(ctx context.Context, report *domain.Report) error {
	var errs []error

	messages := FormatReport(report)
	for _, message := range messages {
		if err := n.sendMessage(ctx, message); err != nil {
			errs = append(errs, fmt.Errorf("send message: %w", err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}

	n.log.InfoContext(ctx, "Report is sent",
		"runID", report.RunID,
		"chatID", n.chatID,
		"messageCount", len(messages))

	return nil
}

func (n *Notifier) sendMessage(ctx context.Context, text string) error {
	if err := n.rateLimiter.Wait(ctx, strconv.FormatInt(n.chatID, 10)); err != nil {
		return err
	}

	// https://core.telegram.org/bots/api#markdownv2-style
	_, err := n.api.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    n.chatID,
		Text:      text,
		ParseMode: models.ParseModeMarkdown,
		LinkPreviewOptions: &models.LinkPreviewOptions{
			IsDisabled: bot.True(),
		},
	})

	return err
}
