package backend

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Task is one best-effort backend call.
type Task func(ctx context.Context) error

// Default notifier settings.
const (
	DefaultTaskTimeout = 10 * time.Second
	DefaultQueueSize   = 256

	// releasedKeep bounds how many released keys are remembered.
	releasedKeep = 4096
)

// Notifier runs fire-and-forget backend calls. Failures are logged and never
// returned to the caller. Submission never blocks.
type Notifier struct {
	timeout   time.Duration
	queueSize int
	logger    *slog.Logger
	onFailure func(op string, err error)

	mu     sync.Mutex
	closed bool
	queues map[string]chan job
	wg     sync.WaitGroup

	// Released keys refuse further Enqueue calls. Oldest entries are
	// forgotten past releasedKeep.
	released     map[string]struct{}
	releasedList []string
}

type job struct {
	op string
	fn Task
}

// NotifierOption configures a Notifier.
type NotifierOption func(*Notifier)

// WithTaskTimeout bounds each task.
func WithTaskTimeout(d time.Duration) NotifierOption {
	return func(n *Notifier) {
		n.timeout = d
	}
}

// WithQueueSize sets the per-key queue capacity.
func WithQueueSize(size int) NotifierOption {
	return func(n *Notifier) {
		n.queueSize = size
	}
}

// WithFailureHook is called after every failed task.
func WithFailureHook(fn func(op string, err error)) NotifierOption {
	return func(n *Notifier) {
		n.onFailure = fn
	}
}

// WithNotifierLogger sets the logger.
func WithNotifierLogger(logger *slog.Logger) NotifierOption {
	return func(n *Notifier) {
		n.logger = logger
	}
}

// NewNotifier creates a Notifier.
func NewNotifier(opts ...NotifierOption) *Notifier {
	n := &Notifier{
		timeout:   DefaultTaskTimeout,
		queueSize: DefaultQueueSize,
		logger:    slog.Default(),
		queues:    make(map[string]chan job),
		released:  make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(n)
	}
	n.logger = n.logger.With("component", "backend.notifier")
	return n
}

// Go runs fn on its own goroutine. Calls submitted through Go are unordered.
func (n *Notifier) Go(op string, fn Task) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return ErrNotifierClosed
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.run(job{op: op, fn: fn})
	}()
	return nil
}

// Enqueue runs fn after every task previously enqueued under key.
// A full queue drops the task. A key that has been released takes no more
// work.
func (n *Notifier) Enqueue(key, op string, fn Task) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return ErrNotifierClosed
	}
	if _, ok := n.released[key]; ok {
		n.logger.Debug("dropping task for released key", "key", key, "op", op)
		return ErrReleased
	}

	q, ok := n.queues[key]
	if !ok {
		q = make(chan job, n.queueSize)
		n.queues[key] = q
		n.wg.Add(1)
		go n.worker(q)
	}

	select {
	case q <- job{op: op, fn: fn}:
		return nil
	default:
		n.logger.Warn("notifier queue full, dropping task", "key", key, "op", op)
		if n.onFailure != nil {
			n.onFailure(op, ErrQueueFull)
		}
		return ErrQueueFull
	}
}

// Release stops the worker for key once its queued tasks have run. Later
// Enqueue calls for key return ErrReleased.
func (n *Notifier) Release(key string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if q, ok := n.queues[key]; ok {
		delete(n.queues, key)
		close(q)
	}
	if _, ok := n.released[key]; ok {
		return
	}
	n.released[key] = struct{}{}
	n.releasedList = append(n.releasedList, key)
	if len(n.releasedList) > releasedKeep {
		delete(n.released, n.releasedList[0])
		n.releasedList = n.releasedList[1:]
	}
}

// Pending returns the number of live per-key queues.
func (n *Notifier) Pending() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.queues)
}

// Close stops accepting work and waits for running tasks or ctx.
func (n *Notifier) Close(ctx context.Context) error {
	n.mu.Lock()
	if !n.closed {
		n.closed = true
		for key, q := range n.queues {
			delete(n.queues, key)
			close(q)
		}
	}
	n.mu.Unlock()

	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (n *Notifier) worker(q <-chan job) {
	defer n.wg.Done()
	for j := range q {
		n.run(j)
	}
}

func (n *Notifier) run(j job) {
	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()

	if err := j.fn(ctx); err != nil {
		n.logger.Warn("best-effort call failed", "op", j.op, "error", err)
		if n.onFailure != nil {
			n.onFailure(j.op, err)
		}
	}
}
