package journal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/m3rciful/feedbackbot/core/logger"
	"github.com/m3rciful/feedbackbot/internal/session"
)

// FileJournal writes one line per entry into <dir>/<Category>.txt.
type FileJournal struct {
	dir string
	mu  sync.Mutex
}

// NewFileJournal creates dir if needed.
func NewFileJournal(dir string) (*FileJournal, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("journal: empty directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("journal: create dir: %w", err)
	}
	return &FileJournal{dir: dir}, nil
}

// Append writes e as "<ts> - <name> (ID: <id>): <text>".
func (j *FileJournal) Append(ctx context.Context, e Entry) error {
	if err := e.validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	line := FormatLine(e)
	path := j.path(e.Category)
	start := time.Now()

	j.mu.Lock()
	err := appendLine(path, line)
	j.mu.Unlock()

	if err != nil {
		logger.Error(ctx, "journal", "append",
			slog.String("status", "fail"),
			slog.String("category", string(e.Category)),
			slog.String("path", path),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("journal: append %s: %w", e.Category, err)
	}
	logger.Debug(ctx, "journal", "append",
		slog.String("status", "ok"),
		slog.String("category", string(e.Category)),
		slog.Duration("duration", logger.Took(start)),
	)
	return nil
}

// Counts returns the number of lines in each category file; missing files count as zero.
func (j *FileJournal) Counts(ctx context.Context) (map[session.Category]int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	out := make(map[session.Category]int, len(session.Categories))
	for _, c := range session.Categories {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := countLines(j.path(c))
		if err != nil {
			return nil, fmt.Errorf("journal: count %s: %w", c, err)
		}
		out[c] = n
	}
	return out, nil
}

func (j *FileJournal) path(c session.Category) string {
	return filepath.Join(j.dir, string(c)+".txt")
}

// FormatLine renders an entry the way it is stored on disk, newline included.
// Newlines inside the text are flattened so one entry stays one line.
func FormatLine(e Entry) string {
	text := strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(e.Text)
	return fmt.Sprintf("%s - %s (ID: %d): %s\n", e.At.Format(TimestampLayout), e.DisplayName, e.SenderID, text)
}

func appendLine(path, line string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(line); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func countLines(path string) (int, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	n := 0
	for sc.Scan() {
		n++
	}
	return n, sc.Err()
}
