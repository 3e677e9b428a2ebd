// SPDX-License-Identifier: MPL-2.0

package toolcheck

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"fibr-cli/internal/shellpool"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

// DefaultTimeout bounds a single check so one hung tool degrades to
// StatusError for that tool alone, never a global stall.
const DefaultTimeout = 10 * time.Second

// DefaultConcurrency bounds concurrent checks in a batch when the caller
// passes a non-positive value.
const DefaultConcurrency = 4

// Executor runs shell commands with a timeout. *shellpool.Pool satisfies it;
// tests substitute instrumented fakes.
type Executor interface {
	Execute(ctx context.Context, command string, timeout time.Duration) (shellpool.Result, error)
}

// Checker is the tool status engine. It is safe for concurrent use.
type Checker struct {
	exec    Executor
	logger  *log.Logger
	timeout time.Duration
}

// Option configures a Checker.
type Option func(*Checker)

// WithTimeout overrides the default per-check timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Checker) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the logger used for per-check debug output.
func WithLogger(logger *log.Logger) Option {
	return func(c *Checker) { c.logger = logger }
}

// New creates a Checker that runs external checks through exec.
func New(exec Executor, opts ...Option) *Checker {
	c := &Checker{
		exec:    exec,
		logger:  log.Default().WithPrefix("toolcheck"),
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check determines the status of one tool. A ConfigurationError (more than
// one check method configured) is returned as the error and fails fast;
// execution failures never produce an error — they degrade to a Result with
// StatusError so sibling tools keep their own verdicts.
func (c *Checker) Check(ctx context.Context, name string, cfg Config) (Result, error) {
	if err := cfg.Validate(name); err != nil {
		return Result{}, err
	}

	// Optional tools with nothing to check stay unknown, not missing.
	if cfg.Optional && !cfg.HasCheck() && cfg.VersionCommand == "" {
		return Result{Status: StatusUnknown}, nil
	}

	installed, detail, err := c.runCheck(ctx, name, cfg)
	if err != nil {
		c.logger.Debug("check errored", "tool", name, "err", err)
		return errorResult(err.Error()), nil
	}
	if !installed {
		c.logger.Debug("tool not installed", "tool", name, "detail", detail)
		return notInstalledResult(), nil
	}

	res := Result{Installed: true, Status: StatusInstalled, Detail: detail}
	if cfg.VersionCommand == "" {
		res.ValidVersion = true
		return res, nil
	}

	valid, detected, verr := c.checkVersion(ctx, name, cfg)
	if verr != nil {
		// The tool is present; only the version verdict is degraded.
		res.Detail = verr.Error()
		return res, nil
	}
	res.ValidVersion = valid
	res.Detail = detected
	return res, nil
}

// BatchCheck runs checks for all tools with at most concurrency in flight.
// Each check is independently timeboxed by timeout (falling back to the
// checker default) and cancellable via ctx without stalling siblings.
// Results are unordered across tools but internally consistent per tool:
// the map is only ever updated by whole-entry replacement.
func (c *Checker) BatchCheck(ctx context.Context, tools map[string]Config, concurrency int, timeout time.Duration) map[string]Result {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if timeout <= 0 {
		timeout = c.timeout
	}

	var (
		mu      sync.Mutex
		results = make(map[string]Result, len(tools))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for name, cfg := range tools {
		g.Go(func() error {
			var res Result
			if err := gctx.Err(); err != nil {
				res = errorResult(fmt.Sprintf("check canceled: %v", err))
			} else {
				checkCtx, cancel := context.WithTimeout(gctx, timeout)
				var cerr error
				res, cerr = c.Check(checkCtx, name, cfg)
				cancel()
				if cerr != nil {
					res = errorResult(cerr.Error())
				}
			}
			mu.Lock()
			results[name] = res
			mu.Unlock()
			// Check failures are captured per tool; never abort the batch.
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// runCheck executes the effective check method and reports installation.
func (c *Checker) runCheck(ctx context.Context, name string, cfg Config) (installed bool, detail string, err error) {
	switch cfg.ResolveMethod() {
	case MethodCommand:
		return c.runShellCheck(ctx, cfg.CheckCommand)
	case MethodPath:
		return checkPath(cfg.CheckPath)
	case MethodEval:
		return evalCheck(ctx, cfg.CheckEval)
	case MethodBrew:
		return c.runShellCheck(ctx, fmt.Sprintf("brew list --formula %s", shellQuote(cfg.CheckBrew)))
	case MethodBrewCask:
		return c.runShellCheck(ctx, fmt.Sprintf("brew list --cask %s", shellQuote(cfg.CheckBrewCask)))
	default:
		return c.runShellCheck(ctx, fmt.Sprintf("command -v %s", shellQuote(name)))
	}
}

// runShellCheck executes command through the pool; zero exit means installed.
func (c *Checker) runShellCheck(ctx context.Context, command string) (bool, string, error) {
	res, err := c.exec.Execute(ctx, command, c.timeout)
	if err != nil {
		return false, "", fmt.Errorf("check command failed: %w", err)
	}
	if res.ExitCode != 0 {
		return false, strings.TrimSpace(res.Stderr), nil
	}
	return true, strings.TrimSpace(res.Stdout), nil
}

// checkVersion runs the version command and compares against the expectation.
func (c *Checker) checkVersion(ctx context.Context, name string, cfg Config) (valid bool, detected string, err error) {
	res, rerr := c.exec.Execute(ctx, cfg.VersionCommand, c.timeout)
	if rerr != nil {
		return false, "", fmt.Errorf("version command for %q failed: %w", name, rerr)
	}
	output := res.Stdout
	if strings.TrimSpace(output) == "" {
		// Tools like python print their version on stderr.
		output = res.Stderr
	}
	if cfg.ExpectedVersion == "" {
		tok, terr := extractVersion(output)
		if terr != nil {
			return false, "", terr
		}
		return true, tok, nil
	}
	return versionSatisfies(output, cfg.ExpectedVersion)
}

// checkPath reports whether the (possibly ~-prefixed) path exists.
func checkPath(path string) (bool, string, error) {
	expanded := path
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return false, "", fmt.Errorf("expand %q: %w", path, err)
		}
		expanded = filepath.Join(home, path[2:])
	}
	if _, err := os.Stat(expanded); err != nil {
		if os.IsNotExist(err) {
			return false, expanded, nil
		}
		return false, "", fmt.Errorf("stat %q: %w", expanded, err)
	}
	return true, expanded, nil
}

// shellQuote single-quotes s for safe shell interpolation.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
