// Package sender runs fire-and-forget Telegram calls on a bounded queue.
package sender

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m3rciful/feedbackbot/core/logger"
	"github.com/m3rciful/feedbackbot/core/telegram/netutil"
)

var (
	// ErrQueueClosed is returned by Enqueue after Close.
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull is returned when the buffer has no room for the job.
	ErrQueueFull = errors.New("telegram sender: queue full")
)

const component = "tg.sender"

// Options tunes the dispatcher. Zero values pick defaults.
type Options struct {
	QueueSize int
	Workers   int
	// MaxRetries is extra attempts per job; zero disables retrying.
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration bounds one job, retries included.
	MaxDuration time.Duration
}

func (o Options) withDefaults() Options {
	if o.QueueSize <= 0 {
		o.QueueSize = 256
	}
	if o.Workers <= 0 {
		o.Workers = 2
	}
	o.MaxRetries = max(o.MaxRetries, 0)
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 2 * time.Second
	}
	if o.MaxDuration <= 0 {
		o.MaxDuration = 12 * time.Second
	}
	return o
}

type job struct {
	ctx      context.Context
	action   string
	endpoint string
	run      func() error
}

// Dispatcher executes outbound Telegram calls on a fixed set of workers.
type Dispatcher struct {
	opts Options

	mu     sync.RWMutex
	queue  chan job
	closed bool

	wg   sync.WaitGroup
	sent atomic.Uint64
	errs atomic.Uint64
}

// NewDispatcher starts the workers.
func NewDispatcher(opts Options) *Dispatcher {
	opts = opts.withDefaults()
	d := &Dispatcher{opts: opts, queue: make(chan job, opts.QueueSize)}
	for range opts.Workers {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for j := range d.queue {
				d.execute(j)
			}
		}()
	}
	return d
}

// Enqueue schedules run without blocking. With retries enabled run may be
// called more than once.
func (d *Dispatcher) Enqueue(ctx context.Context, action, endpoint string, run func() error) error {
	if run == nil {
		return errors.New("telegram sender: nil run function")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrQueueClosed
	}
	select {
	case d.queue <- job{ctx: ctx, action: action, endpoint: endpoint, run: run}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Do enqueues run, running it on the caller's goroutine when the queue is
// full or closed. A nil Dispatcher always runs inline.
func (d *Dispatcher) Do(ctx context.Context, action, endpoint string, run func() error) error {
	if d == nil {
		return run()
	}
	err := d.Enqueue(ctx, action, endpoint, run)
	if errors.Is(err, ErrQueueFull) || errors.Is(err, ErrQueueClosed) {
		logger.Warn(ctx, component, "queue.fallback",
			slog.String("action", action),
			slog.String("endpoint", endpoint),
			slog.String("err", err.Error()),
		)
		return run()
	}
	return err
}

// SentCount is the number of jobs that succeeded.
func (d *Dispatcher) SentCount() uint64 { return d.sent.Load() }

// ErrorCount is the number of jobs that failed for good.
func (d *Dispatcher) ErrorCount() uint64 { return d.errs.Load() }

// Close stops intake and waits for queued jobs. Safe to call twice.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) execute(j job) {
	// the job outlives the update that queued it
	ctx, cancel := context.WithTimeout(context.WithoutCancel(j.ctx), d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	tries, err := d.attempt(ctx, j)
	elapsed := slog.Int64("elapsed_ms", logger.RoundMS(time.Since(start)).Milliseconds())

	if err == nil {
		d.sent.Add(1)
		attrs := append(jobAttrs(j), elapsed)
		if tries > 1 {
			attrs = append(attrs, slog.Int("attempt", tries))
		}
		logger.Debug(j.ctx, component, "send.success", attrs...)
		return
	}

	d.errs.Add(1)
	logger.Error(j.ctx, component, "send.fail", append(jobAttrs(j),
		slog.String("err", sanitizeErrorMessage(err)),
		slog.String("error_kind", classifyError(err)),
		slog.Int("attempts", tries),
		elapsed,
	)...)
}

// attempt runs j until it succeeds, fails permanently, runs out of retries
// or ctx expires. It returns the number of calls made.
func (d *Dispatcher) attempt(ctx context.Context, j job) (int, error) {
	var err error
	tries := 0
	for tries <= d.opts.MaxRetries {
		if cerr := ctx.Err(); cerr != nil {
			return tries, cerr
		}
		tries++
		if err = j.run(); err == nil || !netutil.ShouldRetry(err) || tries > d.opts.MaxRetries {
			return tries, err
		}

		delay := netutil.RetryAfter(err)
		if delay <= 0 {
			delay = d.opts.RetryBackoff * time.Duration(tries)
		}
		logger.Debug(j.ctx, component, "send.retry.backoff",
			append(jobAttrs(j), slog.Int("attempt", tries), slog.Duration("delay", delay))...)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return tries, ctx.Err()
		case <-timer.C:
		}
	}
	return tries, err
}

func jobAttrs(j job) []slog.Attr {
	attrs := []slog.Attr{slog.String("action", j.action)}
	if j.endpoint != "" {
		attrs = append(attrs, slog.String("endpoint", j.endpoint))
	}
	return attrs
}
