package bot

import (
	"context"

	tghelpers "github.com/m3rciful/feedbackbot/core/telegram/helpers"
	"github.com/m3rciful/feedbackbot/internal/flow"

	tele "gopkg.in/telebot.v4"
)

// EventHandler is implemented by *flow.Router.
type EventHandler interface {
	Handle(ctx context.Context, ev flow.Event) error
}

// EventFrom converts a text update into a flow event.
func EventFrom(c tele.Context) flow.Event {
	userID, chatID := tghelpers.IDs(c)
	return flow.Event{
		SenderID:    userID,
		ChatID:      chatID,
		Text:        c.Text(),
		DisplayName: tghelpers.DisplayName(c.Sender()),
		UpdateID:    c.Update().ID,
	}
}

// Handle adapts h to the text route handler signature.
func Handle(h EventHandler) func(ctx context.Context, c tele.Context) error {
	return func(ctx context.Context, c tele.Context) error {
		return h.Handle(ctx, EventFrom(c))
	}
}
