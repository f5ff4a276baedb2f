package journal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/feedbackbot/core/logger"
	"github.com/m3rciful/feedbackbot/internal/session"
)

const (
	insertSubmissionSQL = `INSERT INTO submissions (category, sender_id, display_name, body, created_at)
VALUES (:category, :sender_id, :display_name, :body, :created_at)`

	countSubmissionsSQL = `SELECT category, COUNT(*) AS total FROM submissions GROUP BY category`
)

type submissionRow struct {
	Category    string    `db:"category"`
	SenderID    int64     `db:"sender_id"`
	DisplayName string    `db:"display_name"`
	Body        string    `db:"body"`
	CreatedAt   time.Time `db:"created_at"`
}

type categoryTotal struct {
	Category string `db:"category"`
	Total    int    `db:"total"`
}

// PostgresJournal stores entries in the submissions table (see migrations/).
type PostgresJournal struct {
	db *sqlx.DB
}

// NewPostgresJournal wraps an open connection pool.
func NewPostgresJournal(db *sqlx.DB) *PostgresJournal {
	return &PostgresJournal{db: db}
}

// Append inserts one row.
func (j *PostgresJournal) Append(ctx context.Context, e Entry) error {
	if err := e.validate(); err != nil {
		return err
	}
	row := submissionRow{
		Category:    string(e.Category),
		SenderID:    e.SenderID,
		DisplayName: e.DisplayName,
		Body:        e.Text,
		CreatedAt:   e.At.UTC(),
	}

	start := time.Now()
	if _, err := j.db.NamedExecContext(ctx, insertSubmissionSQL, row); err != nil {
		logger.Error(ctx, "journal", "append",
			slog.String("status", "fail"),
			slog.String("storage", "postgres"),
			slog.String("category", row.Category),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("journal: insert submission: %w", err)
	}
	logger.Debug(ctx, "journal", "append",
		slog.String("status", "ok"),
		slog.String("storage", "postgres"),
		slog.String("category", row.Category),
		slog.Duration("duration", logger.Took(start)),
	)
	return nil
}

// Counts aggregates rows per category; categories without rows report zero.
func (j *PostgresJournal) Counts(ctx context.Context) (map[session.Category]int, error) {
	var rows []categoryTotal
	if err := j.db.SelectContext(ctx, &rows, countSubmissionsSQL); err != nil {
		return nil, fmt.Errorf("journal: count submissions: %w", err)
	}
	out := make(map[session.Category]int, len(session.Categories))
	for _, c := range session.Categories {
		out[c] = 0
	}
	for _, r := range rows {
		if c, ok := session.ParseCategory(r.Category); ok {
			out[c] = r.Total
		}
	}
	return out, nil
}
