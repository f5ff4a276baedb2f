// Package app wires the feedback bot: storage, conversation router and
// Telegram transport.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/m3rciful/feedbackbot/core/bootstrap"
	coreconfig "github.com/m3rciful/feedbackbot/core/config"
	"github.com/m3rciful/feedbackbot/core/logger"
	tg "github.com/m3rciful/feedbackbot/core/telegram"
	"github.com/m3rciful/feedbackbot/core/telegram/router"
	tgsender "github.com/m3rciful/feedbackbot/core/telegram/sender"
	"github.com/m3rciful/feedbackbot/core/telegram/worker"
	"github.com/m3rciful/feedbackbot/internal/access"
	"github.com/m3rciful/feedbackbot/internal/bot"
	"github.com/m3rciful/feedbackbot/internal/flow"
	"github.com/m3rciful/feedbackbot/internal/journal"
	"github.com/m3rciful/feedbackbot/internal/session"
	"github.com/m3rciful/feedbackbot/internal/stats"

	tele "gopkg.in/telebot.v4"
)

const drainTimeout = 10 * time.Second

// App holds the wired bot.
type App struct {
	cfg   *coreconfig.Config
	infra *bootstrap.Result

	api        *tele.Bot
	username   string
	registry   *tg.Registry
	dispatcher *tgsender.Dispatcher
	pool       *worker.Pool
	admins     *access.AllowList
	notifier   *bot.Notifier
	router     *flow.Router
}

// Bootstrap brings up infrastructure and the bot client, then wires the app.
func Bootstrap(cfg *coreconfig.Config) (*App, error) {
	infra, err := bootstrap.Run(bootstrap.Options{Config: cfg})
	if err != nil {
		return nil, err
	}
	api, err := tg.BuildBot(cfg)
	if err != nil {
		_ = infra.Close()
		return nil, err
	}
	a, err := New(cfg, infra, api)
	if err != nil {
		_ = infra.Close()
		return nil, err
	}
	return a, nil
}

// New wires the app around an existing bot client. infra may be nil for
// the file journal.
func New(cfg *coreconfig.Config, infra *bootstrap.Result, api *tele.Bot) (*App, error) {
	if cfg == nil || api == nil {
		return nil, errors.New("app: nil config or bot")
	}

	store, err := openJournal(cfg, infra)
	if err != nil {
		return nil, err
	}

	registry, err := bot.CommandRegistry()
	if err != nil {
		return nil, fmt.Errorf("app: command menu: %w", err)
	}

	dispatcher := tgsender.NewDispatcher(tgsender.Options{MaxRetries: cfg.Telegram.SendRetries})
	notifier, err := bot.NewNotifier(api, dispatcher, cfg.Telegram.NotifyChat)
	if err != nil {
		dispatcher.Close()
		return nil, fmt.Errorf("app: notify chat: %w", err)
	}

	username := ""
	if api.Me != nil {
		username = api.Me.Username
	}
	admins := access.NewAllowList(cfg.Telegram.AdminIDs...)
	fr, err := flow.NewRouter(flow.Deps{
		Sessions:    session.NewMemoryStore(),
		Gate:        admins,
		Responder:   bot.NewResponder(api, cfg.Telegram.SendRetries),
		Journal:     store,
		Stats:       stats.NewPlaceholder(store),
		Notifier:    notifier,
		BotUsername: username,
	})
	if err != nil {
		dispatcher.Close()
		return nil, err
	}

	return &App{
		cfg:        cfg,
		infra:      infra,
		api:        api,
		username:   username,
		registry:   registry,
		dispatcher: dispatcher,
		pool:       worker.New(worker.Options{Workers: cfg.Telegram.Workers}),
		admins:     admins,
		notifier:   notifier,
		router:     fr,
	}, nil
}

func openJournal(cfg *coreconfig.Config, infra *bootstrap.Result) (journal.Journal, error) {
	switch cfg.Storage.Driver {
	case coreconfig.StoragePostgres:
		if infra == nil || infra.DB == nil {
			return nil, errors.New("app: postgres storage without a database connection")
		}
		return journal.NewPostgresJournal(infra.DB), nil
	default:
		j, err := journal.NewFileJournal(cfg.Storage.JournalDir)
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		return j, nil
	}
}

// TelegramRunOptions implements cmd.TelegramApp.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	return tg.RunOptions{
		Config:      a.cfg,
		Bot:         a.api,
		Registry:    a.registry,
		Dispatcher:  a.dispatcher,
		Middlewares: tg.DefaultMiddlewares(a.cfg, nil),
		Routes: router.TextRoutes(bot.Handle(a.router), router.TextOptions{
			Registry: a.registry,
			Queue:    a.pool,
		}),
		OnStart: a.onStart,
		OnStop:  a.onStop,
	}, nil
}

func (a *App) onStart(ctx context.Context, _ tg.Runtime) error {
	logger.Info(ctx, "app", "bot.started",
		slog.String("username", a.username),
		slog.Int("admins", a.admins.Len()),
		slog.Any("admin_ids", a.admins.IDs()),
		slog.Bool("notify", a.notifier.Enabled()),
	)
	_ = a.notifier.Notify(ctx, bot.TextStarted)
	return nil
}

// onStop drains in-flight events before the shutdown notice so their
// replies still go out.
func (a *App) onStop(ctx context.Context, _ tg.Runtime) error {
	drainCtx, cancel := context.WithTimeout(ctx, drainTimeout)
	defer cancel()
	if err := a.pool.Close(drainCtx); err != nil {
		logger.Warn(ctx, "app", "pool.drain", slog.String("err", err.Error()))
	}
	_ = a.notifier.Notify(ctx, bot.TextStopped)
	logger.Info(ctx, "app", "bot.stopped",
		slog.Uint64("sent", a.dispatcher.SentCount()),
		slog.Uint64("send_errors", a.dispatcher.ErrorCount()),
	)
	return nil
}

// Close releases the worker pool and the database connection.
func (a *App) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	return errors.Join(a.pool.Close(ctx), a.infra.Close())
}
