// Package flow routes inbound text events through the per-user conversation.
//
// A Router owns no transport: it reads and mutates sessions, consults the
// admin gate and then talks to its collaborators (Responder, Journal,
// Notifier, stats.Provider). Session mutations always happen before the
// reply is sent, so a failed send never rolls a transition back.
package flow

import (
	"context"

	"github.com/m3rciful/feedbackbot/internal/journal"
)

// Event is one inbound text message.
type Event struct {
	SenderID int64
	// ChatID is where replies go; zero means the sender's private chat.
	ChatID      int64
	Text        string
	DisplayName string
	// UpdateID is carried for logging only.
	UpdateID int
}

func (e Event) replyTo() int64 {
	if e.ChatID != 0 {
		return e.ChatID
	}
	return e.SenderID
}

// Keyboard tells the responder which reply keyboard to attach.
type Keyboard int

const (
	// KeyboardKeep leaves the client keyboard unchanged.
	KeyboardKeep Keyboard = iota
	// KeyboardMain shows the category buttons.
	KeyboardMain
	// KeyboardAdmin shows the admin panel buttons.
	KeyboardAdmin
	// KeyboardRemove hides any reply keyboard.
	KeyboardRemove
)

func (k Keyboard) String() string {
	switch k {
	case KeyboardMain:
		return "main"
	case KeyboardAdmin:
		return "admin"
	case KeyboardRemove:
		return "remove"
	default:
		return "keep"
	}
}

// Responder delivers HTML-formatted replies.
type Responder interface {
	Send(ctx context.Context, recipientID int64, text string, kb Keyboard) error
}

// ResponderFunc adapts a function to Responder.
type ResponderFunc func(ctx context.Context, recipientID int64, text string, kb Keyboard) error

// Send calls f.
func (f ResponderFunc) Send(ctx context.Context, recipientID int64, text string, kb Keyboard) error {
	return f(ctx, recipientID, text, kb)
}

// Journal persists submissions.
type Journal interface {
	Append(ctx context.Context, e journal.Entry) error
}

// Notifier posts operator notifications. Failures never reach users.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}
