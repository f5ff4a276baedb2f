// Package bot adapts the conversation router to telebot.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/m3rciful/feedbackbot/core/logger"
	"github.com/m3rciful/feedbackbot/core/telegram/netutil"
	"github.com/m3rciful/feedbackbot/internal/flow"

	tele "gopkg.in/telebot.v4"
)

// Sender is the part of *tele.Bot used for outbound messages.
type Sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// Responder sends HTML replies synchronously so a user's replies keep
// the order of their updates.
type Responder struct {
	api     Sender
	retries int
	backoff time.Duration
}

// NewResponder wraps api. retries counts extra attempts for retryable errors.
func NewResponder(api Sender, retries int) *Responder {
	if retries < 0 {
		retries = 0
	}
	return &Responder{api: api, retries: retries, backoff: time.Second}
}

var _ flow.Responder = (*Responder)(nil)

// Send implements flow.Responder.
func (r *Responder) Send(ctx context.Context, recipientID int64, text string, kb flow.Keyboard) error {
	opts := &tele.SendOptions{ParseMode: tele.ModeHTML, ReplyMarkup: markup(kb)}
	start := time.Now()

	var err error
	for attempt := 0; attempt <= r.retries; attempt++ {
		if attempt > 0 {
			delay := netutil.RetryAfter(err)
			if delay <= 0 {
				delay = r.backoff * time.Duration(attempt)
			}
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("bot: send to %d: %w", recipientID, ctx.Err())
			case <-timer.C:
			}
		}
		if _, err = r.api.Send(tele.ChatID(recipientID), text, opts); err == nil {
			logger.Debug(ctx, "tg.sender", "send.success",
				slog.Int64("to", recipientID),
				slog.String("kb", kb.String()),
				slog.Int64("elapsed_ms", logger.Took(start).Milliseconds()),
			)
			return nil
		}
		if !netutil.ShouldRetry(err) {
			break
		}
	}
	return fmt.Errorf("bot: send to %d: %w", recipientID, err)
}
