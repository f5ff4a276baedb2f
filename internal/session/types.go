// Package session keeps per-user conversation state for the bot.
// Sessions live in memory only and are lost on restart.
package session

import "errors"

// State identifies a conversation step.
type State string

const (
	// StateIdle is the rest state and the implicit state of unknown users.
	StateIdle State = "idle"
	// StateChoosingCategory waits for one of the category buttons.
	StateChoosingCategory State = "choosing_category"
	// StateWritingMessage waits for the free-text submission.
	StateWritingMessage State = "writing_message"
	// StateBroadcastComposing waits for an admin's broadcast text.
	StateBroadcastComposing State = "broadcast_composing"
	// StateUserLookup waits for an admin to type a numeric user id.
	StateUserLookup State = "user_lookup"
)

// String implements fmt.Stringer.
func (s State) String() string { return string(s) }

// Category buckets user submissions.
type Category string

// Category labels double as reply-keyboard buttons and journal bucket names.
const (
	CategoryWork  Category = "Work"
	CategoryStudy Category = "Study"
	CategoryOther Category = "Other"
)

// Categories lists the closed category set in menu order.
var Categories = []Category{CategoryWork, CategoryStudy, CategoryOther}

// ParseCategory matches a button label exactly.
func ParseCategory(label string) (Category, bool) {
	for _, c := range Categories {
		if string(c) == label {
			return c, true
		}
	}
	return "", false
}

// ErrInvalidTransition is returned when a store operation does not apply to the current state.
var ErrInvalidTransition = errors.New("session: invalid transition")

// Session is a snapshot of one user's conversation.
// Category is non-empty only in StateWritingMessage.
type Session struct {
	State    State
	Category Category
}

// HasCategory reports whether a category is attached.
func (s Session) HasCategory() bool { return s.Category != "" }

// Store holds sessions keyed by Telegram user id.
type Store interface {
	// Get returns a copy of the session, or an idle one for unknown users.
	Get(userID int64) Session
	// SetState overwrites the state; any state but StateWritingMessage drops the category.
	SetState(userID int64, st State)
	// SetCategory moves StateChoosingCategory to StateWritingMessage with the category attached.
	SetCategory(userID int64, c Category) error
	// Clear resets the session to idle without a category.
	Clear(userID int64)
	// Lock serializes a whole event for one user; other users are not blocked.
	Lock(userID int64) (unlock func())
}
