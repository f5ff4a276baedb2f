package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/m3rciful/feedbackbot/core/logger"
	"github.com/m3rciful/feedbackbot/core/telegram/format"
	"github.com/m3rciful/feedbackbot/internal/access"
	"github.com/m3rciful/feedbackbot/internal/journal"
	"github.com/m3rciful/feedbackbot/internal/session"
	"github.com/m3rciful/feedbackbot/internal/stats"
)

const component = "flow"

// Deps wires a Router. Notifier and Now are optional.
type Deps struct {
	Sessions  session.Store
	Gate      access.Gate
	Responder Responder
	Journal   Journal
	Stats     stats.Provider
	Notifier  Notifier
	// BotUsername filters "/cmd@otherbot" commands; empty accepts all.
	BotUsername string
	Now         func() time.Time
}

// Router dispatches events: commands first, then admin buttons, then the
// sender's session state. Anything else is ignored.
type Router struct {
	sessions  session.Store
	gate      access.Gate
	responder Responder
	journal   Journal
	stats     stats.Provider
	notifier  Notifier
	botName   string
	now       func() time.Time

	commands []commandRoute
	buttons  []buttonRoute
}

type commandRoute struct {
	name      string
	adminOnly bool
	handle    func(ctx context.Context, ev Event, args string) error
}

type buttonRoute struct {
	label  string
	handle func(ctx context.Context, ev Event) error
}

// NewRouter validates deps and builds the dispatch tables.
func NewRouter(d Deps) (*Router, error) {
	switch {
	case d.Sessions == nil:
		return nil, errors.New("flow: nil session store")
	case d.Gate == nil:
		return nil, errors.New("flow: nil admin gate")
	case d.Responder == nil:
		return nil, errors.New("flow: nil responder")
	case d.Journal == nil:
		return nil, errors.New("flow: nil journal")
	case d.Stats == nil:
		return nil, errors.New("flow: nil stats provider")
	}
	now := d.Now
	if now == nil {
		now = time.Now
	}
	r := &Router{
		sessions:  d.Sessions,
		gate:      d.Gate,
		responder: d.Responder,
		journal:   d.Journal,
		stats:     d.Stats,
		notifier:  d.Notifier,
		botName:   d.BotUsername,
		now:       now,
	}
	r.commands = []commandRoute{
		{name: CmdStart, handle: r.cmdStart},
		{name: CmdHelp, handle: r.cmdStart},
		{name: CmdCancel, handle: r.cmdCancel},
		{name: CmdAdmin, adminOnly: true, handle: r.cmdAdmin},
		{name: CmdStats, adminOnly: true, handle: r.cmdStats},
		{name: CmdUsers, adminOnly: true, handle: r.cmdUsers},
		{name: CmdBroadcast, adminOnly: true, handle: r.cmdBroadcast},
		{name: CmdUserInfo, adminOnly: true, handle: r.cmdUserInfo},
	}
	r.buttons = []buttonRoute{
		{label: ButtonStats, handle: r.btnStats},
		{label: ButtonBroadcast, handle: r.btnBroadcast},
		{label: ButtonUsers, handle: r.btnUsers},
		{label: ButtonFindUser, handle: r.btnFindUser},
	}
	return r, nil
}

// Handle processes one event under the sender's session lock.
// The returned error reports a failed reply; session changes are kept regardless.
func (r *Router) Handle(ctx context.Context, ev Event) error {
	if ev.SenderID == 0 {
		return errors.New("flow: event without sender")
	}
	unlock := r.sessions.Lock(ev.SenderID)
	defer unlock()

	if cmd, ok := parseCommand(ev.Text); ok {
		if !cmd.addressedTo(r.botName) {
			r.logIgnored(ctx, ev, "foreign_bot")
			return nil
		}
		for _, route := range r.commands {
			if route.name != cmd.Name {
				continue
			}
			if route.adminOnly && !r.gate.IsAdmin(ev.SenderID) {
				logger.Info(ctx, component, "admin.reject",
					slog.String("status", "rejected"),
					slog.Int64("user_id", ev.SenderID),
					slog.String("command", cmd.Name),
				)
				return r.reply(ctx, ev, TextNoPermission, KeyboardKeep)
			}
			return route.handle(ctx, ev, cmd.Args)
		}
	}

	if r.gate.IsAdmin(ev.SenderID) {
		for _, b := range r.buttons {
			if b.label == ev.Text {
				return b.handle(ctx, ev)
			}
		}
	}

	sess := r.sessions.Get(ev.SenderID)
	switch sess.State {
	case session.StateChoosingCategory:
		return r.onChoosingCategory(ctx, ev)
	case session.StateWritingMessage:
		return r.onWritingMessage(ctx, ev, sess)
	case session.StateBroadcastComposing:
		return r.onBroadcastText(ctx, ev)
	case session.StateUserLookup:
		return r.onLookupText(ctx, ev)
	case session.StateIdle:
		if ev.Text == ButtonMainMenu {
			return r.mainMenu(ctx, ev)
		}
	}
	r.logIgnored(ctx, ev, string(sess.State))
	return nil
}

func (r *Router) cmdStart(ctx context.Context, ev Event, _ string) error {
	r.transition(ctx, ev, session.StateChoosingCategory)
	err := r.reply(ctx, ev, welcomeText(r.gate.IsAdmin(ev.SenderID)), KeyboardMain)
	r.logAction(ctx, ev.SenderID, "started bot")
	return err
}

func (r *Router) cmdCancel(ctx context.Context, ev Event, _ string) error {
	if r.sessions.Get(ev.SenderID).State == session.StateIdle {
		return r.reply(ctx, ev, TextNothingToCancel, KeyboardKeep)
	}
	r.clear(ctx, ev)
	err := r.reply(ctx, ev, TextCancelled, KeyboardMain)
	r.logAction(ctx, ev.SenderID, "cancelled action")
	return err
}

func (r *Router) cmdAdmin(ctx context.Context, ev Event, _ string) error {
	err := r.reply(ctx, ev, textAdminPanel, KeyboardAdmin)
	r.logAction(ctx, ev.SenderID, "opened admin panel")
	return err
}

func (r *Router) cmdStats(ctx context.Context, ev Event, _ string) error {
	return r.showStats(ctx, ev, "viewed statistics via command")
}

func (r *Router) btnStats(ctx context.Context, ev Event) error {
	return r.showStats(ctx, ev, "viewed statistics via button")
}

func (r *Router) showStats(ctx context.Context, ev Event, action string) error {
	counts, err := r.stats.CategoryCounts(ctx)
	if err != nil {
		r.logCollaboratorErr(ctx, ev, "stats.counts", err)
		return r.reply(ctx, ev, TextStatsUnavailable, KeyboardKeep)
	}
	us, err := r.stats.UserStats(ctx)
	if err != nil {
		r.logCollaboratorErr(ctx, ev, "stats.users", err)
		return r.reply(ctx, ev, TextStatsUnavailable, KeyboardKeep)
	}
	sendErr := r.reply(ctx, ev, statsText(us, counts), KeyboardKeep)
	r.logAction(ctx, ev.SenderID, action)
	return sendErr
}

func (r *Router) cmdUsers(ctx context.Context, ev Event, _ string) error {
	return r.showUsers(ctx, ev, usersCommandHint, "viewed users list")
}

func (r *Router) btnUsers(ctx context.Context, ev Event) error {
	return r.showUsers(ctx, ev, usersButtonHint, "viewed users via button")
}

func (r *Router) showUsers(ctx context.Context, ev Event, hint, action string) error {
	us, err := r.stats.UserStats(ctx)
	if err != nil {
		r.logCollaboratorErr(ctx, ev, "stats.users", err)
		return r.reply(ctx, ev, TextStatsUnavailable, KeyboardKeep)
	}
	sendErr := r.reply(ctx, ev, usersText(us, hint), KeyboardKeep)
	r.logAction(ctx, ev.SenderID, action)
	return sendErr
}

func (r *Router) cmdBroadcast(ctx context.Context, ev Event, args string) error {
	if args == "" {
		return r.startBroadcast(ctx, ev, "started broadcast via command")
	}
	err := r.confirmBroadcast(ctx, ev, args, KeyboardKeep)
	r.logAction(ctx, ev.SenderID, "broadcast via command: "+format.Truncate(args, 50))
	return err
}

func (r *Router) btnBroadcast(ctx context.Context, ev Event) error {
	return r.startBroadcast(ctx, ev, "started broadcast via button")
}

func (r *Router) startBroadcast(ctx context.Context, ev Event, action string) error {
	r.transition(ctx, ev, session.StateBroadcastComposing)
	err := r.reply(ctx, ev, textBroadcast, KeyboardRemove)
	r.logAction(ctx, ev.SenderID, action)
	return err
}

func (r *Router) onBroadcastText(ctx context.Context, ev Event) error {
	r.clear(ctx, ev)
	err := r.confirmBroadcast(ctx, ev, ev.Text, KeyboardAdmin)
	r.logAction(ctx, ev.SenderID, "sent broadcast: "+format.Truncate(ev.Text, 50))
	return err
}

func (r *Router) confirmBroadcast(ctx context.Context, ev Event, text string, kb Keyboard) error {
	recipients := 0
	if us, err := r.stats.UserStats(ctx); err != nil {
		r.logCollaboratorErr(ctx, ev, "stats.users", err)
	} else {
		recipients = us.Total
	}
	return r.reply(ctx, ev, broadcastText(text, recipients), kb)
}

func (r *Router) cmdUserInfo(ctx context.Context, ev Event, args string) error {
	if args == "" {
		return r.startLookup(ctx, ev, "started user lookup")
	}
	id, ok := parseUserID(firstField(args))
	if !ok {
		return r.reply(ctx, ev, TextInvalidUserID, KeyboardKeep)
	}
	return r.lookup(ctx, ev, id, false, KeyboardKeep, "searched user info for ID: ")
}

func (r *Router) btnFindUser(ctx context.Context, ev Event) error {
	return r.startLookup(ctx, ev, "started user search via button")
}

func (r *Router) startLookup(ctx context.Context, ev Event, action string) error {
	r.transition(ctx, ev, session.StateUserLookup)
	err := r.reply(ctx, ev, textLookup, KeyboardRemove)
	r.logAction(ctx, ev.SenderID, action)
	return err
}

func (r *Router) onLookupText(ctx context.Context, ev Event) error {
	id, ok := parseUserID(ev.Text)
	if !ok {
		return r.reply(ctx, ev, TextInvalidLookupID, KeyboardKeep)
	}
	r.clear(ctx, ev)
	return r.lookup(ctx, ev, id, true, KeyboardAdmin, "found user info for ID: ")
}

func (r *Router) lookup(ctx context.Context, ev Event, id int64, withNote bool, kb Keyboard, action string) error {
	rec, err := r.stats.LookupUser(ctx, id)
	if err != nil {
		r.logCollaboratorErr(ctx, ev, "stats.lookup", err, slog.Int64("target_id", id))
		return r.reply(ctx, ev, TextStatsUnavailable, kb)
	}
	sendErr := r.reply(ctx, ev, userInfoText(rec, withNote), kb)
	r.logAction(ctx, ev.SenderID, action+strconv.FormatInt(id, 10))
	return sendErr
}

func (r *Router) mainMenu(ctx context.Context, ev Event) error {
	r.transition(ctx, ev, session.StateChoosingCategory)
	err := r.reply(ctx, ev, textMainMenu, KeyboardMain)
	r.logAction(ctx, ev.SenderID, "returned to main menu")
	return err
}

func (r *Router) onChoosingCategory(ctx context.Context, ev Event) error {
	c, ok := session.ParseCategory(ev.Text)
	if !ok {
		return r.reply(ctx, ev, TextChooseCategory, KeyboardKeep)
	}
	if err := r.sessions.SetCategory(ev.SenderID, c); err != nil {
		// Unreachable while the sender lock is held.
		return fmt.Errorf("flow: set category: %w", err)
	}
	logger.Debug(ctx, component, "transition",
		slog.Int64("user_id", ev.SenderID),
		slog.String("state", session.StateChoosingCategory.String()),
		slog.String("next_state", session.StateWritingMessage.String()),
		slog.String("category", string(c)),
	)
	err := r.reply(ctx, ev, categoryChosenText(c), KeyboardRemove)
	r.logAction(ctx, ev.SenderID, "selected category: "+string(c))
	return err
}

func (r *Router) onWritingMessage(ctx context.Context, ev Event, sess session.Session) error {
	if !sess.HasCategory() {
		r.clear(ctx, ev)
		return r.reply(ctx, ev, TextMissingCategory, KeyboardMain)
	}

	entry := journal.Entry{
		Category:    sess.Category,
		SenderID:    ev.SenderID,
		DisplayName: ev.DisplayName,
		Text:        ev.Text,
		At:          r.now(),
	}
	appendErr := r.journal.Append(ctx, entry)
	r.clear(ctx, ev)

	reply := savedText(sess.Category, ev.Text)
	if appendErr != nil {
		r.logCollaboratorErr(ctx, ev, "journal.append", appendErr, slog.String("category", string(sess.Category)))
		reply = TextSaveFailed
	} else {
		logger.Info(ctx, component, "submission.saved",
			slog.String("status", "ok"),
			slog.Int64("user_id", ev.SenderID),
			slog.String("category", string(sess.Category)),
		)
	}
	err := r.reply(ctx, ev, reply, KeyboardMain)
	r.logAction(ctx, ev.SenderID, "saved message in "+string(sess.Category))
	return err
}

func (r *Router) transition(ctx context.Context, ev Event, next session.State) {
	prev := r.sessions.Get(ev.SenderID).State
	r.sessions.SetState(ev.SenderID, next)
	logger.Debug(ctx, component, "transition",
		slog.Int64("user_id", ev.SenderID),
		slog.String("state", prev.String()),
		slog.String("next_state", next.String()),
	)
}

func (r *Router) clear(ctx context.Context, ev Event) {
	prev := r.sessions.Get(ev.SenderID).State
	r.sessions.Clear(ev.SenderID)
	logger.Debug(ctx, component, "transition",
		slog.Int64("user_id", ev.SenderID),
		slog.String("state", prev.String()),
		slog.String("next_state", session.StateIdle.String()),
	)
}

func (r *Router) reply(ctx context.Context, ev Event, text string, kb Keyboard) error {
	if err := r.responder.Send(ctx, ev.replyTo(), text, kb); err != nil {
		return fmt.Errorf("flow: reply: %w", err)
	}
	return nil
}

// logAction notifies the operator channel; failures are logged only.
func (r *Router) logAction(ctx context.Context, userID int64, action string) {
	if r.notifier == nil {
		return
	}
	if err := r.notifier.Notify(ctx, ActionText(userID, action, r.now())); err != nil {
		logger.Warn(ctx, "notify", "action",
			slog.String("status", "fail"),
			slog.Int64("user_id", userID),
			slog.String("err", err.Error()),
		)
	}
}

func (r *Router) logCollaboratorErr(ctx context.Context, ev Event, op string, err error, attrs ...slog.Attr) {
	base := []slog.Attr{
		slog.String("status", "fail"),
		slog.String("op", op),
		slog.Int64("user_id", ev.SenderID),
		slog.String("err", err.Error()),
	}
	logger.Error(ctx, component, "collaborator", append(base, attrs...)...)
}

func (r *Router) logIgnored(ctx context.Context, ev Event, reason string) {
	logger.Debug(ctx, component, "ignored",
		slog.String("status", "ignored"),
		slog.Int64("user_id", ev.SenderID),
		slog.String("reason", reason),
	)
}

func parseUserID(s string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
