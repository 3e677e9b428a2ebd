// SPDX-License-Identifier: MPL-2.0

// Package provision installs missing tools on behalf of the resolver. Each
// install method maps to a shell command run through the execution pool;
// the resolver decides when to install and when to re-check, provision only
// performs the acquisition.
package provision

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fibr-cli/internal/shellpool"
	"fibr-cli/internal/toolcheck"

	"github.com/charmbracelet/log"
)

// DefaultTimeout bounds one install invocation. Installs routinely download,
// so the budget is far larger than a status check's.
const DefaultTimeout = 5 * time.Minute

// ErrInstall is the sentinel wrapped by every install failure.
var ErrInstall = errors.New("tool install failed")

type (
	// Executor runs a shell command. Satisfied by *shellpool.Pool via a thin
	// adapter in the composition root.
	Executor interface {
		Execute(ctx context.Context, command string, timeout time.Duration) (shellpool.Result, error)
	}

	// Manager dispatches install methods to shell commands.
	Manager struct {
		exec    Executor
		logger  *log.Logger
		timeout time.Duration
	}

	// InstallError reports a failed acquisition with the command's output
	// attached for diagnosis.
	InstallError struct {
		Tool   string
		Method toolcheck.InstallMethod
		Detail string
	}
)

// Error implements the error interface for InstallError.
func (e *InstallError) Error() string {
	return fmt.Sprintf("installing %q via %s: %s", e.Tool, e.Method, e.Detail)
}

// Unwrap returns ErrInstall for errors.Is() compatibility.
func (e *InstallError) Unwrap() error { return ErrInstall }

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the install logger.
func WithLogger(logger *log.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithTimeout overrides the per-install budget.
func WithTimeout(d time.Duration) Option {
	return func(m *Manager) { m.timeout = d }
}

// NewManager creates an installer over the given executor.
func NewManager(exec Executor, opts ...Option) *Manager {
	m := &Manager{
		exec:    exec,
		logger:  log.Default().WithPrefix("provision"),
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Install acquires a tool per its declared install method. The returned
// error wraps ErrInstall; the tool's actual availability is established by a
// subsequent status check, never assumed from a zero exit here.
func (m *Manager) Install(ctx context.Context, tool string, cfg toolcheck.Config) error {
	command, err := installCommand(tool, cfg)
	if err != nil {
		return err
	}
	m.logger.Info("installing tool", "tool", tool, "method", cfg.Install)

	res, err := m.exec.Execute(ctx, command, m.timeout)
	if err != nil {
		return &InstallError{Tool: tool, Method: cfg.Install, Detail: err.Error()}
	}
	if !res.Success() {
		detail := strings.TrimSpace(res.Stderr)
		if detail == "" {
			detail = strings.TrimSpace(res.Stdout)
		}
		if detail == "" {
			detail = fmt.Sprintf("exit status %d", res.ExitCode)
		}
		return &InstallError{Tool: tool, Method: cfg.Install, Detail: detail}
	}
	return nil
}

// installCommand builds the shell command for a tool's install method. The
// spec argument is quoted; the "command" and "script" methods run their spec
// verbatim since the declaration author controls it.
func installCommand(tool string, cfg toolcheck.Config) (string, error) {
	spec := cfg.InstallSpec
	switch cfg.Install {
	case toolcheck.InstallBrew:
		if spec == "" {
			spec = tool
		}
		return "brew install " + shellQuote(spec), nil
	case toolcheck.InstallGit:
		if spec == "" {
			return "", &InstallError{Tool: tool, Method: cfg.Install, Detail: "git install requires a repository spec"}
		}
		return fmt.Sprintf("git clone --depth 1 %s", shellQuote(spec)), nil
	case toolcheck.InstallScript:
		if spec == "" {
			return "", &InstallError{Tool: tool, Method: cfg.Install, Detail: "script install requires a script path"}
		}
		return "sh " + shellQuote(spec), nil
	case toolcheck.InstallArchive:
		if spec == "" {
			return "", &InstallError{Tool: tool, Method: cfg.Install, Detail: "archive install requires a URL"}
		}
		return fmt.Sprintf("curl -fsSL %s | tar -xz", shellQuote(spec)), nil
	case toolcheck.InstallCommand:
		if spec == "" {
			return "", &InstallError{Tool: tool, Method: cfg.Install, Detail: "command install requires a command"}
		}
		return spec, nil
	default:
		return "", &InstallError{Tool: tool, Method: cfg.Install, Detail: "unknown install method"}
	}
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
