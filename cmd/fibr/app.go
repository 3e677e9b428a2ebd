// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"fibr-cli/internal/config"
	"fibr-cli/internal/discovery"
	"fibr-cli/internal/issue"
	"fibr-cli/internal/module"
	"fibr-cli/internal/shellpool"
	"fibr-cli/internal/statuscache"
	"fibr-cli/internal/toolcheck"

	"github.com/charmbracelet/log"
)

// App is the composition root for the CLI layer: command handlers receive an
// App and delegate through its services rather than constructing their own.
type App struct {
	Config    *config.Config
	Discovery *discovery.Discovery
	Pool      *shellpool.Pool
	Checker   *toolcheck.Checker
	Cache     *statuscache.Cache
	Logger    *log.Logger
}

// newApp loads configuration and wires the production services. Callers must
// Close the returned App.
func newApp() (*App, error) {
	cfg, err := config.Load(config.LoadOptions{ConfigFilePath: cfgFile})
	if err != nil {
		fmt.Fprintln(os.Stderr, issue.Get(issue.ConfigLoadFailedId).Render())
		return nil, err
	}
	if rootDir != "" {
		cfg.Root = rootDir
	}
	if verbose {
		cfg.Verbose = true
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: false})
	if cfg.Verbose {
		logger.SetLevel(log.DebugLevel)
	}

	pool, err := shellpool.New(shellpool.Options{
		Size:   cfg.PoolSize,
		Shell:  cfg.Shell,
		Logger: logger.WithPrefix("shellpool"),
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, issue.Get(issue.ShellNotFoundId).Render())
		return nil, err
	}

	checker := toolcheck.New(pool,
		toolcheck.WithTimeout(cfg.CheckTimeout),
		toolcheck.WithLogger(logger.WithPrefix("toolcheck")))

	var cache *statuscache.Cache
	if cachePath, pathErr := statuscache.DefaultPath(); pathErr != nil {
		logger.Warn("tool status cache unavailable", "err", pathErr)
	} else {
		cache = statuscache.Open(cachePath, cfg.CacheTTL)
	}

	disc := discovery.New(cfg, discovery.WithLogger(logger.WithPrefix("discovery")))

	return &App{
		Config:    cfg,
		Discovery: disc,
		Pool:      pool,
		Checker:   checker,
		Cache:     cache,
		Logger:    logger,
	}, nil
}

// Close flushes the status cache and shuts the pool down.
func (a *App) Close() {
	if a.Cache != nil {
		if err := a.Cache.Flush(); err != nil {
			a.Logger.Warn("flush tool status cache", "err", err)
			fmt.Fprintln(os.Stderr, issue.Get(issue.CacheWriteFailedId).Render())
		}
	}
	a.Pool.Close()
}

// scriptActivator runs a module's init script through the shell pool when
// the module loads.
type scriptActivator struct {
	pool    *shellpool.Pool
	timeout time.Duration
}

func (a scriptActivator) Activate(ctx context.Context, m *module.Module) error {
	if m.InitScript == "" {
		return nil
	}
	command := fmt.Sprintf("cd %s && sh %s", shellQuote(m.Dir), shellQuote(m.InitScript))
	res, err := a.pool.Execute(ctx, command, a.timeout)
	if err != nil {
		return fmt.Errorf("init script: %w", err)
	}
	if !res.Success() {
		return fmt.Errorf("init script exited %d: %s", res.ExitCode, firstLine(res.Stderr))
	}
	return nil
}

func shellQuote(s string) string {
	out := "'"
	for _, r := range s {
		if r == '\'' {
			out += `'\''`
			continue
		}
		out += string(r)
	}
	return out + "'"
}
