package router

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/m3rciful/feedbackbot/core/logger"
	tghelpers "github.com/m3rciful/feedbackbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

const maxErrLen = 256

// summary emits one "handler.handled" line per update.
type summary struct {
	c     tele.Context
	name  string
	start time.Time
}

func newSummary(c tele.Context, name string) summary {
	return summary{c: c, name: name, start: time.Now()}
}

// run executes fn and logs its result.
func (s summary) run(fn func() error) error {
	err := fn()
	s.log("", err)
	return err
}

// log records the outcome. An empty status is derived from err.
func (s summary) log(status string, err error, extras ...slog.Attr) {
	outcome := "ok"
	if err != nil {
		outcome = "fail"
	}
	if status == "" {
		status = outcome
	}

	attrs := make([]slog.Attr, 0, 7+len(extras))
	attrs = append(attrs,
		slog.String("status", status),
		slog.String("handler", s.name),
		slog.String("outcome", outcome),
		slog.Int64("duration_ms", logger.RoundMS(time.Since(s.start)).Milliseconds()),
	)
	if err != nil {
		attrs = append(attrs,
			slog.String("err", logger.SanitizeLimit(err.Error(), maxErrLen)),
			slog.String("err_code", deriveErrorCode(err)),
			slog.String("cause", s.name),
		)
	}
	attrs = append(attrs, extras...)

	ctx := tghelpers.WithHandler(s.c, s.name)
	logger.LogEvent(ctx, logger.Component("tg"), slog.LevelInfo, "handler.handled", attrs...)
}

// normalizeHandlerName turns "/Find User" into "find_user".
func normalizeHandlerName(name string) string {
	name = strings.TrimPrefix(strings.TrimSpace(name), "/")
	if name == "" {
		return "unknown"
	}
	return strings.ToLower(strings.ReplaceAll(name, " ", "_"))
}

// deriveErrorCode prefers an explicit Code() and falls back to the
// dynamic type name of err.
func deriveErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var coded interface{ Code() string }
	if errors.As(err, &coded) {
		if code := strings.TrimSpace(coded.Code()); code != "" {
			return toCode(code)
		}
	}
	name := strings.TrimLeft(fmt.Sprintf("%T", err), "*")
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	if name == "" {
		return "UNKNOWN_ERROR"
	}
	return toCode(name)
}

func toCode(s string) string {
	return strings.ToUpper(strings.ReplaceAll(s, " ", "_"))
}
