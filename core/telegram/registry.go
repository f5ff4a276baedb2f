package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/m3rciful/feedbackbot/core/logger"

	tele "gopkg.in/telebot.v4"
)

// Command is a command-menu entry. Handling happens elsewhere; the registry
// only feeds Telegram's client-side menu and handler names for logs.
type Command struct {
	Description string
	AdminOnly   bool
	Hidden      bool
	Aliases     []string
}

// Registry holds bot commands in registration order.
type Registry struct {
	order    []string
	commands map[string]Command
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{commands: make(map[string]Command)}
}

// RegisterCommand adds a command; name must start with "/".
func (r *Registry) RegisterCommand(name string, cmd Command) error {
	var reason string
	switch {
	case name == "" || cmd.Description == "":
		reason = "invalid"
	case name[0] != '/':
		reason = "no_slash_prefix"
	}
	if reason != "" {
		logger.TWire.LogAttrs(context.Background(), slog.LevelWarn, "register.command.skip",
			slog.String("name", name),
			slog.String("reason", reason),
		)
		return fmt.Errorf("telegram: register %q: %s", name, reason)
	}
	if _, exists := r.commands[name]; exists {
		logger.TWire.LogAttrs(context.Background(), slog.LevelWarn, "register.command.duplicate",
			slog.String("name", name),
		)
		return fmt.Errorf("telegram: command already registered: %s", name)
	}
	r.commands[name] = cmd
	r.order = append(r.order, name)
	return nil
}

// ListCommands returns the menu in registration order. Hidden commands are
// never listed; admin-only ones only when includeAdmin is set.
func (r *Registry) ListCommands(includeAdmin bool) []tele.Command {
	list := make([]tele.Command, 0, len(r.order))
	for _, name := range r.order {
		meta := r.commands[name]
		if meta.Hidden || (meta.AdminOnly && !includeAdmin) {
			continue
		}
		list = append(list, tele.Command{Text: strings.TrimPrefix(name, "/"), Description: meta.Description})
	}
	return list
}

// LookupCommand resolves "/name", "/name@bot args" or an alias to the canonical key.
func (r *Registry) LookupCommand(text string) (string, Command, bool) {
	name := strings.TrimSpace(text)
	if i := strings.IndexAny(name, " \n\t"); i >= 0 {
		name = name[:i]
	}
	name, _, _ = strings.Cut(name, "@")
	if !strings.HasPrefix(name, "/") {
		name = "/" + name
	}
	name = strings.ToLower(name)
	if cmd, ok := r.commands[name]; ok {
		return name, cmd, true
	}
	for _, key := range r.order {
		cmd := r.commands[key]
		for _, alias := range cmd.Aliases {
			if alias == name || "/"+alias == name {
				return key, cmd, true
			}
		}
	}
	return "", Command{}, false
}

// Len reports the number of registered commands.
func (r *Registry) Len() int { return len(r.order) }

// CommandSetter is the part of *tele.Bot used to publish the menu.
type CommandSetter interface {
	SetCommands(opts ...interface{}) error
}

// InitBotCommands publishes the public menu for everyone and the full menu
// in each admin's private chat.
func InitBotCommands(bot CommandSetter, reg *Registry, adminIDs []int64) error {
	var errs []error
	if err := bot.SetCommands(reg.ListCommands(false)); err != nil {
		errs = append(errs, fmt.Errorf("default scope: %w", err))
	}
	full := reg.ListCommands(true)
	for _, id := range adminIDs {
		scope := tele.CommandScope{Type: tele.CommandScopeChat, ChatID: id}
		if err := bot.SetCommands(full, scope); err != nil {
			errs = append(errs, fmt.Errorf("admin %d scope: %w", id, err))
		}
	}
	err := errors.Join(errs...)
	if err != nil {
		logger.TWire.LogAttrs(context.Background(), slog.LevelError, "register.commands.set_failed",
			slog.String("err", err.Error()),
		)
		return err
	}
	logger.TWire.LogAttrs(context.Background(), slog.LevelInfo, "register.commands.set",
		slog.Int("commands", len(full)),
		slog.Int("admins", len(adminIDs)),
	)
	return nil
}
