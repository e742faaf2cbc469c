package sender

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m3rciful/intakebot/core/logger"
	"github.com/m3rciful/intakebot/core/telegram/netutil"
)

var (
	// ErrQueueClosed is returned when enqueue is attempted after Close.
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull indicates the queue is saturated and the job was not accepted.
	ErrQueueFull = errors.New("telegram sender: queue full")
)

const component = "tg.sender"

// Options controls the behaviour of the outbound dispatcher.
type Options struct {
	// QueueSize is the backlog of each worker.
	QueueSize    int
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration bounds the time spent retrying a single job.
	MaxDuration time.Duration
	// OnDone, if set, observes the final result of every job.
	OnDone func(action string, err error)
}

type job struct {
	ctx      context.Context
	action   string
	endpoint string
	run      func() error
}

// Dispatcher executes outbound Telegram calls asynchronously with retries.
// Jobs of one chat always go to the same worker and run in enqueue order.
type Dispatcher struct {
	opts   Options
	queues []chan job
	once   sync.Once
	wg     sync.WaitGroup
	errs   atomic.Uint64
	next   atomic.Uint64

	// closeMu keeps Enqueue from sending on closed queues.
	closeMu sync.RWMutex
	closed  bool
}

// NewDispatcher starts a dispatcher with sane defaults if options are zeroed.
func NewDispatcher(opts Options) *Dispatcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 2 * time.Second
	}
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = 12 * time.Second
	}

	d := &Dispatcher{
		opts:   opts,
		queues: make([]chan job, opts.Workers),
	}

	d.wg.Add(opts.Workers)
	for i := range d.queues {
		d.queues[i] = make(chan job, opts.QueueSize)
		go d.worker(d.queues[i])
	}

	return d
}

// shard picks the worker for a chat; jobs without a chat are spread round-robin.
func (d *Dispatcher) shard(ctx context.Context) chan job {
	n := uint64(len(d.queues))
	if chatID := logger.ChatIDFrom(ctx); chatID != 0 {
		return d.queues[uint64(chatID)%n]
	}
	return d.queues[d.next.Add(1)%n]
}

// Enqueue schedules the provided function for asynchronous execution.
// The run closure must be idempotent if retries are desired.
func (d *Dispatcher) Enqueue(ctx context.Context, action, endpoint string, run func() error) error {
	if run == nil {
		return errors.New("telegram sender: nil run function")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	d.closeMu.RLock()
	defer d.closeMu.RUnlock()
	if d.closed {
		return ErrQueueClosed
	}

	j := job{
		ctx:      ctx,
		action:   action,
		endpoint: endpoint,
		run:      run,
	}

	select {
	case d.shard(ctx) <- j:
		return nil
	default:
		return ErrQueueFull
	}
}

// ErrorCount returns the number of failed jobs.
func (d *Dispatcher) ErrorCount() uint64 {
	return d.errs.Load()
}

// Close stops workers and waits for them to finish processing queued jobs.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		d.closeMu.Lock()
		d.closed = true
		for _, q := range d.queues {
			close(q)
		}
		d.closeMu.Unlock()
		d.wg.Wait()
	})
}

func (d *Dispatcher) worker(jobs <-chan job) {
	defer d.wg.Done()
	for j := range jobs {
		err := d.handleJob(j)
		if d.opts.OnDone != nil {
			d.opts.OnDone(j.action, err)
		}
	}
}

// handleJob runs j until it succeeds, fails permanently, runs out of
// attempts or exceeds MaxDuration.
func (d *Dispatcher) handleJob(j job) error {
	ctx, cancel := context.WithTimeout(j.ctx, d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	attrs := []slog.Attr{slog.String("action", j.action)}
	if j.endpoint != "" {
		attrs = append(attrs, slog.String("endpoint", j.endpoint))
	}

	var (
		attempts = d.opts.MaxRetries + 1
		attempt  int
		err      error
	)
	for attempt = 1; attempt <= attempts; attempt++ {
		if err = j.run(); err == nil {
			break
		}
		if !netutil.ShouldRetry(err) || attempt == attempts {
			break
		}
		delay := netutil.RetryDelay(err, d.opts.RetryBackoff, attempt)
		logger.Debug(j.ctx, component, "send.retry", append(attrs,
			slog.String("status", "retry"),
			slog.Int("attempt", attempt),
			slog.String("error_kind", netutil.Classify(err)),
			slog.Duration("delay", delay),
		)...)
		if werr := wait(ctx, delay); werr != nil {
			err = werr
			break
		}
	}

	attrs = append(attrs, slog.Int("attempts", attempt), slog.Duration("elapsed", time.Since(start)))
	if err != nil {
		d.errs.Add(1)
		logger.Error(j.ctx, component, "send", append(attrs,
			slog.String("status", "fail"),
			slog.String("err", netutil.Redact(err)),
			slog.String("error_kind", netutil.Classify(err)),
		)...)
		return err
	}
	if attempt > 1 {
		logger.Info(j.ctx, component, "send", append(attrs, slog.String("status", "ok"))...)
	} else {
		logger.Debug(j.ctx, component, "send", append(attrs, slog.String("status", "ok"))...)
	}
	return nil
}

func wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
