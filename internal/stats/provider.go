// Package stats answers the admin statistics and user lookup commands.
//
// Category totals come from the submission journal. User aggregates and
// user records are placeholder data: the bot keeps no user registry, so the
// Placeholder provider returns fixed demo values until a real source exists.
package stats

import (
	"context"
	"fmt"

	"github.com/m3rciful/feedbackbot/internal/session"
)

// UserStats are aggregate user counters shown to admins.
type UserStats struct {
	Total         int
	ActiveToday   int
	OnlineNow     int
	MessagesToday int
}

// UserRecord is what /userinfo shows about one user.
type UserRecord struct {
	ID           int64
	Name         string
	RegisteredAt string
	Messages     int
	Status       string
	Role         string
	// Demo marks fabricated records.
	Demo bool
}

// CategoryCounter is implemented by journal backends.
type CategoryCounter interface {
	Counts(ctx context.Context) (map[session.Category]int, error)
}

// Provider backs the admin statistics commands.
type Provider interface {
	CategoryCounts(ctx context.Context) (map[session.Category]int, error)
	UserStats(ctx context.Context) (UserStats, error)
	LookupUser(ctx context.Context, id int64) (UserRecord, error)
}

// Placeholder combines real journal totals with fixed demo user data.
type Placeholder struct {
	counter CategoryCounter
}

// NewPlaceholder returns a Provider over counter; nil counter reports zero totals.
func NewPlaceholder(counter CategoryCounter) *Placeholder {
	return &Placeholder{counter: counter}
}

// CategoryCounts returns totals for every category, zero-filled.
func (p *Placeholder) CategoryCounts(ctx context.Context) (map[session.Category]int, error) {
	out := make(map[session.Category]int, len(session.Categories))
	for _, c := range session.Categories {
		out[c] = 0
	}
	if p.counter == nil {
		return out, nil
	}
	counts, err := p.counter.Counts(ctx)
	if err != nil {
		return nil, fmt.Errorf("stats: category counts: %w", err)
	}
	for c, n := range counts {
		out[c] = n
	}
	return out, nil
}

// UserStats returns the demo aggregates.
func (p *Placeholder) UserStats(context.Context) (UserStats, error) {
	return UserStats{
		Total:         150,
		ActiveToday:   42,
		OnlineNow:     8,
		MessagesToday: 125,
	}, nil
}

// LookupUser fabricates a record for id.
func (p *Placeholder) LookupUser(_ context.Context, id int64) (UserRecord, error) {
	return UserRecord{
		ID:           id,
		Name:         fmt.Sprintf("User #%d", id),
		RegisteredAt: "2024-01-15",
		Messages:     42,
		Status:       "Active",
		Role:         "User",
		Demo:         true,
	}, nil
}

// Total sums category counts.
func Total(counts map[session.Category]int) int {
	n := 0
	for _, v := range counts {
		n += v
	}
	return n
}
