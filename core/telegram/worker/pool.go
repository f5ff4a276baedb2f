// Package worker runs update handlers serially per key and concurrently across keys.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/m3rciful/feedbackbot/core/logger"
)

var (
	// ErrPoolClosed is returned by Submit after Close.
	ErrPoolClosed = errors.New("worker: pool closed")
	// ErrQueueFull is returned when a key already has MaxPending jobs waiting.
	ErrQueueFull = errors.New("worker: queue full")
)

// Job is one unit of work. The context is cancelled when the pool is closed
// with a deadline that expires.
type Job func(ctx context.Context)

// Options configures a Pool.
type Options struct {
	// Workers bounds jobs running at the same time across all keys.
	Workers int
	// MaxPending bounds queued jobs per key; 0 means 64.
	MaxPending int
}

// Pool keeps one FIFO queue per key. A queue is drained by a single goroutine,
// so jobs of one key never overlap; the goroutine exits once its queue is empty.
type Pool struct {
	sem        chan struct{}
	maxPending int

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	queues map[int64][]Job
	closed bool
	wg     sync.WaitGroup
}

// New builds a pool; Workers <= 0 means 1.
func New(opts Options) *Pool {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.MaxPending <= 0 {
		opts.MaxPending = 64
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		sem:        make(chan struct{}, opts.Workers),
		maxPending: opts.MaxPending,
		ctx:        ctx,
		cancel:     cancel,
		queues:     make(map[int64][]Job),
	}
}

// Submit appends job to key's queue and starts a drainer if none is running.
func (p *Pool) Submit(key int64, job Job) error {
	if job == nil {
		return errors.New("worker: nil job")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPoolClosed
	}
	q, running := p.queues[key]
	if len(q) >= p.maxPending {
		return fmt.Errorf("%w: key %d", ErrQueueFull, key)
	}
	p.queues[key] = append(q, job)
	if !running {
		p.wg.Add(1)
		go p.drain(key)
	}
	return nil
}

// Pending reports queued (not yet started) jobs for key.
func (p *Pool) Pending(key int64) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queues[key])
}

// Close rejects new jobs and waits for queued ones. If ctx expires first the
// job context is cancelled and ctx.Err() is returned.
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		return ctx.Err()
	}
}

func (p *Pool) drain(key int64) {
	defer p.wg.Done()
	for {
		p.mu.Lock()
		q := p.queues[key]
		if len(q) == 0 {
			delete(p.queues, key)
			p.mu.Unlock()
			return
		}
		job := q[0]
		q[0] = nil
		p.queues[key] = q[1:]
		p.mu.Unlock()

		p.sem <- struct{}{}
		p.run(key, job)
		<-p.sem
	}
}

func (p *Pool) run(key int64, job Job) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error(p.ctx, "tg", "worker.panic",
				slog.String("status", "fail"),
				slog.Int64("user_id", key),
				slog.Any("err", r),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()
	job(p.ctx)
}
