package router

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tg "github.com/m3rciful/feedbackbot/core/telegram"
	"github.com/m3rciful/feedbackbot/core/telegram/worker"

	tele "gopkg.in/telebot.v4"
)

type fakeContext struct {
	tele.Context
	mu    sync.Mutex
	upd   tele.Update
	store map[string]any
}

func textFrom(userID int64, text string) *fakeContext {
	msg := &tele.Message{Text: text, Chat: &tele.Chat{ID: userID}}
	if userID != 0 {
		msg.Sender = &tele.User{ID: userID}
	}
	return &fakeContext{upd: tele.Update{ID: 1, Message: msg}, store: map[string]any{}}
}

func (f *fakeContext) Update() tele.Update { return f.upd }
func (f *fakeContext) Sender() *tele.User  { return f.upd.Message.Sender }
func (f *fakeContext) Chat() *tele.Chat    { return f.upd.Message.Chat }
func (f *fakeContext) Text() string        { return f.upd.Message.Text }

func (f *fakeContext) Get(key string) any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.store[key]
}

func (f *fakeContext) Set(key string, v any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.store[key] = v
}

type rejectQueue struct{}

func (rejectQueue) Submit(int64, worker.Job) error { return worker.ErrQueueFull }
func (rejectQueue) Pending(int64) int              { return 64 }

func TestTextRoutesInline(t *testing.T) {
	var got []string
	routes := TextRoutes(func(_ context.Context, c tele.Context) error {
		got = append(got, c.Text())
		return nil
	}, TextOptions{})
	if len(routes) != 1 || routes[0].Endpoint != tele.OnText {
		t.Fatalf("routes = %+v", routes)
	}
	h := routes[0].Handler
	if err := h(textFrom(1, "hello")); err != nil {
		t.Fatal(err)
	}
	if err := h(textFrom(0, "no sender")); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != "hello" {
		t.Fatalf("handled %v", got)
	}
}

func TestTextRoutesPropagatesInlineError(t *testing.T) {
	want := errors.New("boom")
	h := TextRoutes(func(context.Context, tele.Context) error { return want }, TextOptions{})[0].Handler
	if err := h(textFrom(1, "x")); !errors.Is(err, want) {
		t.Fatalf("err = %v", err)
	}
}

func TestTextRoutesQueuesPerSender(t *testing.T) {
	pool := worker.New(worker.Options{Workers: 4})
	var (
		mu  sync.Mutex
		got = map[int64][]string{}
	)
	h := TextRoutes(func(_ context.Context, c tele.Context) error {
		mu.Lock()
		got[c.Sender().ID] = append(got[c.Sender().ID], c.Text())
		mu.Unlock()
		return nil
	}, TextOptions{Queue: pool})[0].Handler

	for _, text := range []string{"a", "b", "c"} {
		if err := h(textFrom(1, text)); err != nil {
			t.Fatal(err)
		}
		if err := h(textFrom(2, text)); err != nil {
			t.Fatal(err)
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := pool.Close(ctx); err != nil {
		t.Fatal(err)
	}

	for _, id := range []int64{1, 2} {
		if s := got[id]; len(s) != 3 || s[0] != "a" || s[1] != "b" || s[2] != "c" {
			t.Fatalf("sender %d order = %v", id, s)
		}
	}
}

func TestTextRoutesQueueRejected(t *testing.T) {
	h := TextRoutes(func(context.Context, tele.Context) error { return nil }, TextOptions{Queue: rejectQueue{}})[0].Handler
	if err := h(textFrom(1, "x")); !errors.Is(err, worker.ErrQueueFull) {
		t.Fatalf("err = %v", err)
	}
}

func TestHandlerName(t *testing.T) {
	reg := tg.NewRegistry()
	if err := reg.RegisterCommand("/start", tg.Command{Description: "Start"}); err != nil {
		t.Fatal(err)
	}
	tests := map[string]string{
		"/start":         "start",
		"/START@bot foo": "start",
		"/nope":          "unknown_command",
		"start":          "text",
		"":               "text",
	}
	for in, want := range tests {
		if got := handlerName(reg, in); got != want {
			t.Errorf("handlerName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDeriveErrorCode(t *testing.T) {
	if got := deriveErrorCode(worker.ErrQueueFull); got == "" {
		t.Fatal("empty code")
	}
	if deriveErrorCode(nil) != "" {
		t.Fatal("nil error has a code")
	}
}
