package flow

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/m3rciful/feedbackbot/internal/access"
	"github.com/m3rciful/feedbackbot/internal/journal"
	"github.com/m3rciful/feedbackbot/internal/session"
	"github.com/m3rciful/feedbackbot/internal/stats"
)

const (
	adminID = int64(100)
	userID  = int64(200)
)

var fixedNow = time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)

type sent struct {
	to   int64
	text string
	kb   Keyboard
}

type fakeResponder struct {
	mu   sync.Mutex
	msgs []sent
	err  error
}

func (f *fakeResponder) Send(_ context.Context, to int64, text string, kb Keyboard) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, sent{to: to, text: text, kb: kb})
	return f.err
}

func (f *fakeResponder) last(t *testing.T) sent {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.msgs) == 0 {
		t.Fatal("no reply sent")
	}
	return f.msgs[len(f.msgs)-1]
}

func (f *fakeResponder) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.msgs)
}

type fakeJournal struct {
	mu      sync.Mutex
	entries []journal.Entry
	err     error
}

func (f *fakeJournal) Append(_ context.Context, e journal.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, e)
	return f.err
}

type fakeNotifier struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (f *fakeNotifier) Notify(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	return f.err
}

type harness struct {
	router   *Router
	store    session.Store
	resp     *fakeResponder
	journal  *fakeJournal
	notifier *fakeNotifier
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:    session.NewMemoryStore(),
		resp:     &fakeResponder{},
		journal:  &fakeJournal{},
		notifier: &fakeNotifier{},
	}
	r, err := NewRouter(Deps{
		Sessions:    h.store,
		Gate:        access.NewAllowList(adminID),
		Responder:   h.resp,
		Journal:     h.journal,
		Stats:       stats.NewPlaceholder(nil),
		Notifier:    h.notifier,
		BotUsername: "feedback_bot",
		Now:         func() time.Time { return fixedNow },
	})
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	h.router = r
	return h
}

func (h *harness) send(t *testing.T, from int64, text string) {
	t.Helper()
	ev := Event{SenderID: from, ChatID: from, Text: text, DisplayName: "alice"}
	if err := h.router.Handle(context.Background(), ev); err != nil {
		t.Fatalf("Handle(%q): %v", text, err)
	}
}

func (h *harness) expectSession(t *testing.T, id int64, st session.State, c session.Category) {
	t.Helper()
	got := h.store.Get(id)
	if got.State != st || got.Category != c {
		t.Fatalf("session = %+v, want {%s %q}", got, st, c)
	}
}

func TestNewRouterRequiresDeps(t *testing.T) {
	if _, err := NewRouter(Deps{}); err == nil {
		t.Fatal("expected error for empty deps")
	}
}

func TestScenarioStartChooseWrite(t *testing.T) {
	h := newHarness(t)

	h.send(t, userID, "/start")
	h.expectSession(t, userID, session.StateChoosingCategory, "")
	if r := h.resp.last(t); !strings.Contains(r.text, "Welcome") || r.kb != KeyboardMain || r.to != userID {
		t.Fatalf("welcome reply = %+v", r)
	}

	h.send(t, userID, "Study")
	h.expectSession(t, userID, session.StateWritingMessage, session.CategoryStudy)
	if r := h.resp.last(t); r.kb != KeyboardRemove {
		t.Fatalf("category reply keyboard = %v", r.kb)
	}

	h.send(t, userID, "need help with exam")
	h.expectSession(t, userID, session.StateIdle, "")
	if len(h.journal.entries) != 1 {
		t.Fatalf("journal entries = %d, want 1", len(h.journal.entries))
	}
	e := h.journal.entries[0]
	if e.Category != session.CategoryStudy || e.Text != "need help with exam" || e.SenderID != userID || e.DisplayName != "alice" || !e.At.Equal(fixedNow) {
		t.Fatalf("entry = %+v", e)
	}
	if r := h.resp.last(t); !strings.Contains(r.text, "Message saved") || r.kb != KeyboardMain {
		t.Fatalf("saved reply = %+v", r)
	}
}

func TestChoosingCategoryRejectsUnknownText(t *testing.T) {
	for _, text := range []string{"work", "Hobby", " Work", ""} {
		h := newHarness(t)
		h.send(t, userID, "/start")
		h.send(t, userID, text)
		h.expectSession(t, userID, session.StateChoosingCategory, "")
		if r := h.resp.last(t); r.text != TextChooseCategory {
			t.Fatalf("%q: reply = %q", text, r.text)
		}
	}
}

func TestChoosingCategoryAcceptsEachCategory(t *testing.T) {
	for _, c := range session.Categories {
		h := newHarness(t)
		h.send(t, userID, "/start")
		h.send(t, userID, string(c))
		h.expectSession(t, userID, session.StateWritingMessage, c)
	}
}

func TestCancelFromEveryStateIsIdempotent(t *testing.T) {
	setups := map[string][]string{
		"idle":      nil,
		"choosing":  {"/start"},
		"writing":   {"/start", "Work"},
		"broadcast": {"/broadcast"},
		"lookup":    {"/userinfo"},
	}
	for name, steps := range setups {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t)
			for _, s := range steps {
				h.send(t, adminID, s)
			}
			h.send(t, adminID, "/cancel")
			h.expectSession(t, adminID, session.StateIdle, "")
			if len(steps) > 0 {
				if r := h.resp.last(t); r.text != TextCancelled || r.kb != KeyboardMain {
					t.Fatalf("cancel reply = %+v", r)
				}
			}
			h.send(t, adminID, "/cancel")
			h.expectSession(t, adminID, session.StateIdle, "")
			if r := h.resp.last(t); r.text != TextNothingToCancel {
				t.Fatalf("second cancel reply = %q", r.text)
			}
			if len(h.journal.entries) != 0 {
				t.Fatalf("journal touched: %v", h.journal.entries)
			}
		})
	}
}

func TestNonAdminRejectedWithoutMutation(t *testing.T) {
	cmds := []string{"/admin", "/stats", "/users", "/broadcast", "/broadcast hello", "/userinfo", "/userinfo 5"}
	for _, cmd := range cmds {
		h := newHarness(t)
		h.send(t, userID, "/start")
		h.send(t, userID, "Work")
		h.send(t, userID, cmd)
		h.expectSession(t, userID, session.StateWritingMessage, session.CategoryWork)
		if r := h.resp.last(t); r.text != TextNoPermission {
			t.Fatalf("%s: reply = %q", cmd, r.text)
		}
		if len(h.journal.entries) != 0 {
			t.Fatalf("%s: journal touched", cmd)
		}
	}
}

func TestNonAdminButtonFallsThroughToState(t *testing.T) {
	h := newHarness(t)
	h.send(t, userID, ButtonStats)
	h.expectSession(t, userID, session.StateIdle, "")
	if n := h.resp.count(); n != 0 {
		t.Fatalf("idle non-admin button produced %d replies", n)
	}

	h.send(t, userID, "/start")
	h.send(t, userID, ButtonFindUser)
	h.expectSession(t, userID, session.StateChoosingCategory, "")
	if r := h.resp.last(t); r.text != TextChooseCategory {
		t.Fatalf("reply = %q", r.text)
	}
}

func TestBroadcastWithArgsConfirmsImmediately(t *testing.T) {
	h := newHarness(t)
	var seen []session.State
	h.router.responder = ResponderFunc(func(ctx context.Context, to int64, text string, kb Keyboard) error {
		seen = append(seen, h.store.Get(adminID).State)
		return h.resp.Send(ctx, to, text, kb)
	})

	h.send(t, adminID, "/broadcast Server <maintenance> tonight")
	h.expectSession(t, adminID, session.StateIdle, "")
	for _, st := range seen {
		if st == session.StateBroadcastComposing {
			t.Fatal("entered broadcast composing")
		}
	}
	r := h.resp.last(t)
	if !strings.Contains(r.text, "Broadcast started") || !strings.Contains(r.text, "Server &lt;maintenance&gt; tonight") || !strings.Contains(r.text, "Recipients: 150") {
		t.Fatalf("confirmation = %q", r.text)
	}
	if h.resp.count() != 1 {
		t.Fatalf("replies = %d, want 1", h.resp.count())
	}
}

func TestBroadcastInteractive(t *testing.T) {
	for _, trigger := range []string{"/broadcast", ButtonBroadcast} {
		h := newHarness(t)
		h.send(t, adminID, trigger)
		h.expectSession(t, adminID, session.StateBroadcastComposing, "")
		if r := h.resp.last(t); r.kb != KeyboardRemove {
			t.Fatalf("%s: prompt keyboard = %v", trigger, r.kb)
		}

		h.send(t, adminID, "hello everyone")
		h.expectSession(t, adminID, session.StateIdle, "")
		r := h.resp.last(t)
		if !strings.Contains(r.text, "hello everyone") || r.kb != KeyboardAdmin {
			t.Fatalf("%s: confirmation = %+v", trigger, r)
		}
		if h.resp.count() != 2 {
			t.Fatalf("%s: replies = %d, want 2", trigger, h.resp.count())
		}
		if len(h.journal.entries) != 0 {
			t.Fatalf("%s: broadcast persisted", trigger)
		}
	}
}

func TestUserLookup(t *testing.T) {
	h := newHarness(t)
	h.send(t, adminID, ButtonFindUser)
	h.expectSession(t, adminID, session.StateUserLookup, "")

	h.send(t, adminID, "abc")
	h.expectSession(t, adminID, session.StateUserLookup, "")
	if r := h.resp.last(t); r.text != TextInvalidLookupID {
		t.Fatalf("reprompt = %q", r.text)
	}

	h.send(t, adminID, "12345")
	h.expectSession(t, adminID, session.StateIdle, "")
	r := h.resp.last(t)
	if !strings.Contains(r.text, "ID: 12345") || !strings.Contains(r.text, "User #12345") || r.kb != KeyboardAdmin {
		t.Fatalf("lookup result = %+v", r)
	}
}

func TestUserInfoCommandForms(t *testing.T) {
	h := newHarness(t)

	h.send(t, adminID, "/userinfo 777")
	h.expectSession(t, adminID, session.StateIdle, "")
	if r := h.resp.last(t); !strings.Contains(r.text, "ID: 777") {
		t.Fatalf("direct lookup = %q", r.text)
	}

	h.send(t, adminID, "/start")
	h.send(t, adminID, "/userinfo x12")
	h.expectSession(t, adminID, session.StateChoosingCategory, "")
	if r := h.resp.last(t); r.text != TextInvalidUserID {
		t.Fatalf("invalid id reply = %q", r.text)
	}

	h.send(t, adminID, "/userinfo")
	h.expectSession(t, adminID, session.StateUserLookup, "")
}

func TestCommandsWinOverState(t *testing.T) {
	h := newHarness(t)
	h.send(t, userID, "/start")
	h.send(t, userID, "Other")
	h.send(t, userID, "/start")
	h.expectSession(t, userID, session.StateChoosingCategory, "")
	if len(h.journal.entries) != 0 {
		t.Fatal("/start was persisted as a submission")
	}
}

func TestUnknownCommandFollowsState(t *testing.T) {
	h := newHarness(t)
	h.send(t, userID, "/start")
	h.send(t, userID, "Work")
	h.send(t, userID, "/whatever text")
	h.expectSession(t, userID, session.StateIdle, "")
	if len(h.journal.entries) != 1 || h.journal.entries[0].Text != "/whatever text" {
		t.Fatalf("entries = %+v", h.journal.entries)
	}
}

func TestIdleTextIgnored(t *testing.T) {
	h := newHarness(t)
	h.send(t, userID, "hello?")
	h.expectSession(t, userID, session.StateIdle, "")
	if h.resp.count() != 0 || len(h.notifier.texts) != 0 {
		t.Fatalf("idle text produced output: %d replies, %d notes", h.resp.count(), len(h.notifier.texts))
	}
}

func TestMainMenuButtonFromIdle(t *testing.T) {
	h := newHarness(t)
	h.send(t, userID, ButtonMainMenu)
	h.expectSession(t, userID, session.StateChoosingCategory, "")
	if r := h.resp.last(t); r.kb != KeyboardMain {
		t.Fatalf("keyboard = %v", r.kb)
	}
}

func TestAdminPanelAndStats(t *testing.T) {
	h := newHarness(t)
	h.send(t, adminID, "/admin")
	if r := h.resp.last(t); r.kb != KeyboardAdmin || !strings.Contains(r.text, "Admin panel") {
		t.Fatalf("admin panel = %+v", r)
	}
	h.send(t, adminID, "/stats")
	if r := h.resp.last(t); !strings.Contains(r.text, "Total users: 150") || !strings.Contains(r.text, "Total messages: 0") {
		t.Fatalf("stats = %q", r.text)
	}
	h.send(t, adminID, ButtonUsers)
	if r := h.resp.last(t); !strings.Contains(r.text, "Online now: 8") {
		t.Fatalf("users = %q", r.text)
	}
	h.expectSession(t, adminID, session.StateIdle, "")
}

func TestCommandAddressedToBot(t *testing.T) {
	h := newHarness(t)
	h.send(t, userID, "/start@Feedback_Bot")
	h.expectSession(t, userID, session.StateChoosingCategory, "")

	h.send(t, userID, "/cancel@other_bot")
	h.expectSession(t, userID, session.StateChoosingCategory, "")
}

func TestSendFailureKeepsMutation(t *testing.T) {
	h := newHarness(t)
	h.resp.err = errors.New("network down")
	err := h.router.Handle(context.Background(), Event{SenderID: userID, Text: "/start"})
	if err == nil || !errors.Is(err, h.resp.err) {
		t.Fatalf("err = %v", err)
	}
	h.expectSession(t, userID, session.StateChoosingCategory, "")
	if r := h.resp.last(t); r.to != userID {
		t.Fatalf("reply sent to %d, want sender", r.to)
	}
}

func TestPersistenceFailureStillClears(t *testing.T) {
	h := newHarness(t)
	h.journal.err = errors.New("disk full")
	h.send(t, userID, "/start")
	h.send(t, userID, "Work")
	h.send(t, userID, "text")
	h.expectSession(t, userID, session.StateIdle, "")
	if len(h.journal.entries) != 1 {
		t.Fatalf("append calls = %d, want 1", len(h.journal.entries))
	}
	if r := h.resp.last(t); r.text != TextSaveFailed || r.kb != KeyboardMain {
		t.Fatalf("reply = %+v", r)
	}
}

func TestNotifierFailureSwallowed(t *testing.T) {
	h := newHarness(t)
	h.notifier.err = errors.New("chat not found")
	h.send(t, userID, "/start")
	h.expectSession(t, userID, session.StateChoosingCategory, "")
	if len(h.notifier.texts) != 1 {
		t.Fatalf("notify calls = %d", len(h.notifier.texts))
	}
	want := "📝 Action: started bot\n👤 User ID: 200\n⏰ Time: 2024-03-09 14:05:07"
	if h.notifier.texts[0] != want {
		t.Fatalf("notification = %q", h.notifier.texts[0])
	}
}

func TestSameUserEventsSerialized(t *testing.T) {
	h := newHarness(t)
	h.send(t, userID, "/start")

	var (
		mu       sync.Mutex
		inFlight int
		maxSeen  int
	)
	h.router.responder = ResponderFunc(func(ctx context.Context, to int64, text string, kb Keyboard) error {
		mu.Lock()
		inFlight++
		if inFlight > maxSeen {
			maxSeen = inFlight
		}
		mu.Unlock()
		time.Sleep(time.Millisecond)
		mu.Lock()
		inFlight--
		mu.Unlock()
		return nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = h.router.Handle(context.Background(), Event{SenderID: userID, Text: "Work"})
		}()
	}
	wg.Wait()
	if maxSeen != 1 {
		t.Fatalf("max concurrent handlers for one user = %d", maxSeen)
	}
	// The first "Work" picks the category, the second is persisted, the rest hit idle.
	if got := len(h.journal.entries); got != 1 {
		t.Fatalf("entries = %d, want 1", got)
	}
	h.expectSession(t, userID, session.StateIdle, "")
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in   string
		ok   bool
		want command
	}{
		{"/start", true, command{Name: "start"}},
		{"/START", true, command{Name: "start"}},
		{"/broadcast hello  world ", true, command{Name: "broadcast", Args: "hello  world"}},
		{"/broadcast\nline one\nline two", true, command{Name: "broadcast", Args: "line one\nline two"}},
		{"/userinfo@my_bot 42", true, command{Name: "userinfo", Bot: "my_bot", Args: "42"}},
		{"start", false, command{}},
		{"/", false, command{}},
		{"/@bot", false, command{}},
	}
	for _, tt := range tests {
		got, ok := parseCommand(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("parseCommand(%q) = %+v, %v; want %+v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestWelcomeListsAdminCommandsForAdmins(t *testing.T) {
	if strings.Contains(welcomeText(false), "/stats") {
		t.Fatal("non-admin welcome lists /stats")
	}
	if !strings.Contains(welcomeText(true), "/userinfo - user information") {
		t.Fatalf("admin welcome = %q", welcomeText(true))
	}
}
