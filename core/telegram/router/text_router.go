// Package router binds telebot endpoints to application handlers.
package router

import (
	"context"
	"log/slog"
	"time"

	tg "github.com/m3rciful/feedbackbot/core/telegram"
	tghelpers "github.com/m3rciful/feedbackbot/core/telegram/helpers"
	"github.com/m3rciful/feedbackbot/core/telegram/worker"

	tele "gopkg.in/telebot.v4"
)

// Handler processes one text update. The context carries the request
// metadata built by the logger middleware.
type Handler func(ctx context.Context, c tele.Context) error

// Queue runs jobs serially per key.
type Queue interface {
	Submit(key int64, job worker.Job) error
	Pending(key int64) int
}

// TextOptions controls how text updates are dispatched.
type TextOptions struct {
	// Registry names command handlers in logs; optional.
	Registry *tg.Registry
	// Queue serializes updates per sender. Nil runs the handler inline.
	Queue Queue
}

// TextRoutes builds the OnText route. Every text update, command or not,
// goes to handle; updates without a sender are skipped.
func TextRoutes(handle Handler, opts TextOptions) []tg.Route {
	handler := func(c tele.Context) error {
		name := handlerName(opts.Registry, c.Text())
		sum := newSummary(c, name)

		user := c.Sender()
		if user == nil || handle == nil {
			sum.log("skip", nil)
			return nil
		}

		reqCtx := tghelpers.WithHandler(c, name)
		if opts.Queue == nil {
			return sum.run(func() error {
				return handle(reqCtx, c)
			})
		}

		queued := time.Now()
		err := opts.Queue.Submit(user.ID, func(jobCtx context.Context) {
			ctx, cancel := context.WithCancel(reqCtx)
			stop := context.AfterFunc(jobCtx, cancel)
			defer stop()
			defer cancel()

			wait := time.Since(queued)
			err := handle(ctx, c)
			sum.log("", err, slog.Int64("queue_wait_ms", wait.Milliseconds()))
		})
		if err != nil {
			sum.log("rejected", err,
				slog.Int("queue_len", opts.Queue.Pending(user.ID)))
			return err
		}
		return nil
	}

	return []tg.Route{{Endpoint: tele.OnText, Handler: handler}}
}

func handlerName(reg *tg.Registry, text string) string {
	if reg != nil {
		if key, _, ok := reg.LookupCommand(text); ok && len(text) > 0 && text[0] == '/' {
			return normalizeHandlerName(key)
		}
	}
	if len(text) > 0 && text[0] == '/' {
		return "unknown_command"
	}
	return "text"
}
