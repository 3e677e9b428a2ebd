// SPDX-License-Identifier: MPL-2.0

package shellpool

// Result is the captured outcome of one command execution.
type Result struct {
	// Stdout is the command's standard output between the framing sentinels.
	Stdout string
	// Stderr is the command's standard error between the framing sentinels.
	Stderr string
	// ExitCode is the command's exit status as echoed by the worker shell.
	ExitCode int
}

// NewErrorResult creates a Result with the given exit code for failed
// infrastructure paths.
func NewErrorResult(code int) Result {
	return Result{ExitCode: code}
}

// Success reports whether the command exited zero.
func (r Result) Success() bool { return r.ExitCode == 0 }
