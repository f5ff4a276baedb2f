package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/m3rciful/feedbackbot/core/logger"
	"github.com/m3rciful/feedbackbot/internal/flow"

	tele "gopkg.in/telebot.v4"
)

// Startup and shutdown notices posted to the notification chat.
const (
	TextStarted = "✅ Bot started and ready to work!"
	TextStopped = "⛔ Bot stopped"
)

// Queue runs outbound calls off the caller's goroutine.
type Queue interface {
	Do(ctx context.Context, action, endpoint string, run func() error) error
}

// channelRecipient addresses a public channel or group by @username.
type channelRecipient string

func (c channelRecipient) Recipient() string { return string(c) }

// ParseChat turns a configured chat reference into a recipient. Numeric
// values are chat ids, anything else is taken as an @username.
func ParseChat(raw string) (tele.Recipient, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("bot: empty chat reference")
	}
	if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return tele.ChatID(id), nil
	}
	if !strings.HasPrefix(raw, "@") {
		raw = "@" + raw
	}
	return channelRecipient(raw), nil
}

// Notifier posts operator notifications to one chat. A Notifier without a
// chat drops everything.
type Notifier struct {
	api   Sender
	queue Queue
	to    tele.Recipient
}

// NewNotifier builds a notifier for chat; an empty chat disables it.
// queue may be nil, in which case messages are sent inline.
func NewNotifier(api Sender, queue Queue, chat string) (*Notifier, error) {
	n := &Notifier{api: api, queue: queue}
	if strings.TrimSpace(chat) == "" {
		return n, nil
	}
	to, err := ParseChat(chat)
	if err != nil {
		return nil, err
	}
	n.to = to
	return n, nil
}

var _ flow.Notifier = (*Notifier)(nil)

// Enabled reports whether a chat is configured.
func (n *Notifier) Enabled() bool { return n != nil && n.to != nil }

// Notify implements flow.Notifier. With a queue the send is asynchronous
// and its failures are logged by the queue.
func (n *Notifier) Notify(ctx context.Context, text string) error {
	if !n.Enabled() {
		return nil
	}
	run := func() error {
		_, err := n.api.Send(n.to, text, &tele.SendOptions{ParseMode: tele.ModeHTML})
		return err
	}
	var err error
	if n.queue == nil {
		err = run()
	} else {
		err = n.queue.Do(ctx, "notify", n.to.Recipient(), run)
	}
	if err != nil {
		logger.Warn(ctx, "notify", "notify.fail",
			slog.String("to", n.to.Recipient()),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
		return fmt.Errorf("bot: notify: %w", err)
	}
	return nil
}
