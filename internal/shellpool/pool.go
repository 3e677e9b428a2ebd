// SPDX-License-Identifier: MPL-2.0

// Package shellpool maintains a bounded set of reusable shell workers to
// amortize process-start cost across many small commands (tool checks,
// installs). Callers get Execute with a per-command timeout; framing,
// worker replacement, and tiered shutdown are internal.
package shellpool

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

var (
	// ErrPoolExhausted means no worker became available within the wait
	// budget. Retryable, not fatal.
	ErrPoolExhausted = errors.New("shell pool exhausted: no worker available within wait budget")

	// ErrTimeout means the command exceeded its timeout. The worker that ran
	// it is discarded, never reused: its pipes still hold unread output that
	// would leak into the next command.
	ErrTimeout = errors.New("command timed out")

	// ErrClosed means the pool has been shut down.
	ErrClosed = errors.New("shell pool is closed")
)

const (
	// DefaultSize is the worker cap when Options.Size is zero.
	DefaultSize = 4
	// DefaultWaitBudget bounds how long Execute queues for a free worker.
	DefaultWaitBudget = 5 * time.Second
	// DefaultTimeout bounds a command when the caller passes none.
	DefaultTimeout = 10 * time.Second
	// shutdownGrace is the per-tier wait during worker shutdown.
	shutdownGrace = 2 * time.Second
)

type (
	// Options configures a Pool.
	Options struct {
		// Size is the worker cap. Zero means DefaultSize. Negative disables
		// pooling entirely: every Execute runs in a fresh process that is
		// closed afterwards.
		Size int
		// Shell is the worker shell binary. Empty means "sh" from PATH.
		Shell string
		// WaitBudget bounds queueing for a free worker before
		// ErrPoolExhausted. Zero means DefaultWaitBudget.
		WaitBudget time.Duration
		// Logger receives worker lifecycle debug output.
		Logger *log.Logger
	}

	// Pool is a bounded set of reusable shell workers. Safe for concurrent
	// use; no two callers ever hold the same worker.
	Pool struct {
		opts      Options
		logger    *log.Logger
		closeOnce sync.Once

		// idle holds workers ready for lease.
		idle chan *worker
		// slots limits the number of live workers; holding a slot is the
		// right to have one worker (idle or leased) alive.
		slots chan struct{}
		// closed signals shutdown to acquirers.
		closed chan struct{}
	}
)

// New creates a Pool. The shell binary is resolved eagerly so a missing shell
// fails construction, not the first check.
func New(opts Options) (*Pool, error) {
	if opts.Shell == "" {
		opts.Shell = "sh"
	}
	shellPath, err := exec.LookPath(opts.Shell)
	if err != nil {
		return nil, fmt.Errorf("resolve shell %q: %w", opts.Shell, err)
	}
	opts.Shell = shellPath

	size := opts.Size
	if size == 0 {
		size = DefaultSize
	}
	if size < 0 {
		size = 0 // per-command processes, no reuse
	}
	if opts.WaitBudget <= 0 {
		opts.WaitBudget = DefaultWaitBudget
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default().WithPrefix("shellpool")
	}

	return &Pool{
		opts:   opts,
		logger: logger,
		idle:   make(chan *worker, size),
		slots:  make(chan struct{}, max(size, 1)),
		closed: make(chan struct{}),
	}, nil
}

// Execute runs command in a pool worker with the given timeout (zero means
// DefaultTimeout). On timeout the request fails with ErrTimeout and the
// worker is replaced. Cancelling ctx releases the caller's claim on the pool.
func (p *Pool) Execute(ctx context.Context, command string, timeout time.Duration) (Result, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	w, err := p.acquire(ctx)
	if err != nil {
		return Result{}, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case fr := <-w.run(command):
		if fr.err != nil {
			// Framing broke (worker died or stream corrupted); replace it.
			p.discard(w)
			return Result{}, fr.err
		}
		p.release(w)
		return fr.result, nil
	case <-timer.C:
		w.broken = true
		p.discard(w)
		return Result{}, fmt.Errorf("%w after %s: %s", ErrTimeout, timeout, command)
	case <-ctx.Done():
		w.broken = true
		p.discard(w)
		return Result{}, fmt.Errorf("command canceled: %w", ctx.Err())
	}
}

// acquire leases an idle worker, provisions one below the cap, or queues up
// to the wait budget.
func (p *Pool) acquire(ctx context.Context) (*worker, error) {
	select {
	case <-p.closed:
		return nil, ErrClosed
	default:
	}

	// Fast path: an idle worker is ready.
	select {
	case w := <-p.idle:
		return w, nil
	default:
	}

	wait := time.NewTimer(p.opts.WaitBudget)
	defer wait.Stop()

	select {
	case w := <-p.idle:
		return w, nil
	case p.slots <- struct{}{}:
		w, err := startWorker(p.opts.Shell)
		if err != nil {
			<-p.slots
			return nil, err
		}
		p.logger.Debug("provisioned worker", "pid", w.cmd.Process.Pid)
		return w, nil
	case <-wait.C:
		return nil, ErrPoolExhausted
	case <-ctx.Done():
		return nil, fmt.Errorf("acquire worker: %w", ctx.Err())
	case <-p.closed:
		return nil, ErrClosed
	}
}

// release returns a healthy worker to the idle set. With pooling disabled
// (Size < 0) workers are single-use and closed immediately.
func (p *Pool) release(w *worker) {
	if w.broken || p.opts.Size < 0 {
		p.discard(w)
		return
	}
	select {
	case <-p.closed:
		p.discard(w)
	case p.idle <- w:
	}
}

// discard shuts a worker down and frees its slot so a replacement can be
// provisioned.
func (p *Pool) discard(w *worker) {
	go func() {
		w.close(shutdownGrace)
		<-p.slots
	}()
}

// Close shuts the pool down: no new acquisitions, idle workers closed with
// tiered escalation, leased workers closed as they are released.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.closed)
		for {
			select {
			case w := <-p.idle:
				w.close(shutdownGrace)
				<-p.slots
			default:
				return
			}
		}
	})
}
