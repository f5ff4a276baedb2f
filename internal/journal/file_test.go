package journal

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/m3rciful/feedbackbot/internal/session"
)

var fixedAt = time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)

func TestFormatLine(t *testing.T) {
	got := FormatLine(Entry{
		Category:    session.CategoryStudy,
		SenderID:    12345,
		DisplayName: "alice",
		Text:        "need help\nwith exam",
		At:          fixedAt,
	})
	want := "2024-03-09 14:05:07 - alice (ID: 12345): need help with exam\n"
	if got != want {
		t.Fatalf("FormatLine = %q, want %q", got, want)
	}
}

func TestFileJournalAppendAndCount(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	j, err := NewFileJournal(dir)
	if err != nil {
		t.Fatalf("NewFileJournal: %v", err)
	}
	ctx := context.Background()

	entries := []Entry{
		{Category: session.CategoryWork, SenderID: 1, DisplayName: "a", Text: "one", At: fixedAt},
		{Category: session.CategoryWork, SenderID: 2, DisplayName: "b", Text: "two", At: fixedAt},
		{Category: session.CategoryOther, SenderID: 3, DisplayName: "c", Text: "three", At: fixedAt},
	}
	for _, e := range entries {
		if err := j.Append(ctx, e); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	counts, err := j.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if counts[session.CategoryWork] != 2 || counts[session.CategoryStudy] != 0 || counts[session.CategoryOther] != 1 {
		t.Fatalf("counts = %v", counts)
	}

	data, err := os.ReadFile(filepath.Join(dir, "Work.txt"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	if len(lines) != 2 || lines[1] != "2024-03-09 14:05:07 - b (ID: 2): two" {
		t.Fatalf("Work.txt = %q", data)
	}
}

func TestFileJournalRejectsInvalidEntries(t *testing.T) {
	j, err := NewFileJournal(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileJournal: %v", err)
	}
	ctx := context.Background()
	if err := j.Append(ctx, Entry{Category: session.CategoryWork, At: fixedAt}); !errors.Is(err, ErrEmptyEntry) {
		t.Fatalf("empty text err = %v", err)
	}
	if err := j.Append(ctx, Entry{Category: "Hobby", Text: "x", At: fixedAt}); err == nil {
		t.Fatal("unknown category accepted")
	}
}

func TestFileJournalConcurrentAppends(t *testing.T) {
	j, err := NewFileJournal(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileJournal: %v", err)
	}
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e := Entry{Category: session.CategoryStudy, SenderID: int64(i), DisplayName: "u", Text: "msg", At: fixedAt}
			if err := j.Append(ctx, e); err != nil {
				t.Errorf("Append: %v", err)
			}
		}(i)
	}
	wg.Wait()
	counts, err := j.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if counts[session.CategoryStudy] != 40 {
		t.Fatalf("study count = %d, want 40", counts[session.CategoryStudy])
	}
}

func TestNewFileJournalRejectsEmptyDir(t *testing.T) {
	if _, err := NewFileJournal("  "); err == nil {
		t.Fatal("expected error")
	}
}
