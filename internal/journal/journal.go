// Package journal persists user submissions, append-only, bucketed by category.
package journal

import (
	"context"
	"errors"
	"time"

	"github.com/m3rciful/feedbackbot/internal/session"
)

// TimestampLayout is the timestamp format used in file journal lines and notifications.
const TimestampLayout = "2006-01-02 15:04:05"

// ErrEmptyEntry is returned for entries without a category or text.
var ErrEmptyEntry = errors.New("journal: empty entry")

// Entry is a single user submission.
type Entry struct {
	Category    session.Category
	SenderID    int64
	DisplayName string
	Text        string
	At          time.Time
}

func (e Entry) validate() error {
	if e.Category == "" || e.Text == "" {
		return ErrEmptyEntry
	}
	if _, ok := session.ParseCategory(string(e.Category)); !ok {
		return errors.New("journal: unknown category " + string(e.Category))
	}
	return nil
}

// Journal appends entries and reports per-category totals.
type Journal interface {
	Append(ctx context.Context, e Entry) error
	Counts(ctx context.Context) (map[session.Category]int, error)
}
