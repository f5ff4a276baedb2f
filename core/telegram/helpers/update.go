// Package helpers extracts request metadata from telebot contexts.
package helpers

import (
	"context"
	"strings"

	"github.com/m3rciful/feedbackbot/core/logger"

	tele "gopkg.in/telebot.v4"
)

const (
	contextKey = "logger_ctx"
	ridKey     = "rid"
)

// AnonymousName is shown for senders without a username or first name.
const AnonymousName = "Anonymous"

// IDs returns the sender and chat ids of an update; absent parts are zero.
func IDs(c tele.Context) (userID, chatID int64) {
	if u := c.Sender(); u != nil {
		userID = u.ID
	}
	if ch := c.Chat(); ch != nil {
		chatID = ch.ID
	}
	return userID, chatID
}

// DisplayName picks the username, then the first name, then AnonymousName.
func DisplayName(u *tele.User) string {
	if u == nil {
		return AnonymousName
	}
	if name := strings.TrimSpace(u.Username); name != "" {
		return name
	}
	if name := strings.TrimSpace(u.FirstName); name != "" {
		return name
	}
	return AnonymousName
}

// BuildContext returns the request context for an update, creating and
// caching it on first use. It carries the rid plus update, user and chat ids.
func BuildContext(c tele.Context) context.Context {
	if v, ok := c.Get(contextKey).(context.Context); ok && v != nil {
		return v
	}

	upd := c.Update()
	userID, chatID := IDs(c)

	rid, _ := c.Get(ridKey).(string)
	if rid == "" {
		rid = logger.BuildRID(upd.ID, chatID, userID)
		c.Set(ridKey, rid)
	}

	ctx := logger.WithRID(context.Background(), rid)
	ctx = logger.WithUpdateMeta(ctx, upd.ID, userID, chatID)
	ctx = logger.WithLogger(ctx, logger.Component("tg"))
	c.Set(contextKey, ctx)
	return ctx
}

// WithHandler records the handler name on the cached context.
func WithHandler(c tele.Context, handler string) context.Context {
	ctx := BuildContext(c)
	if handler == "" {
		return ctx
	}
	ctx = logger.WithHandler(ctx, handler)
	c.Set(contextKey, ctx)
	return ctx
}
