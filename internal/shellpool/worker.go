// SPDX-License-Identifier: MPL-2.0

package shellpool

import (
	"bufio"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
)

// worker is one long-lived, non-interactive shell process. Because the
// process outlives individual commands, command boundaries are detected by
// wrapping each command with start/end sentinels and an explicit exit-status
// echo, then parsing the output streams between them. Sentinels are freshly
// randomized per call: a fixed sentinel would let any command that prints it
// corrupt framing for every subsequent command.
//
// A worker runs at most one command at a time; the pool never leases the same
// worker to two callers.
type worker struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
	stderr *bufio.Reader

	// broken marks the worker unusable (timeout left unread output in its
	// pipes, or a pipe failed). Broken workers are discarded, never reused.
	broken bool

	// waitOnce guards cmd.Wait, which must be called exactly once.
	waitOnce sync.Once
	waitErr  error
}

// frame is the parsed output of one framed command.
type frame struct {
	result Result
	err    error
}

// startWorker launches a shell process ready to receive framed commands.
func startWorker(shellPath string) (*worker, error) {
	cmd := exec.Command(shellPath)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("open stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("open stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("open stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start shell %q: %w", shellPath, err)
	}
	return &worker{
		cmd:    cmd,
		stdin:  stdin,
		stdout: bufio.NewReader(stdout),
		stderr: bufio.NewReader(stderr),
	}, nil
}

// run executes one command and parses the framed output. The done channel
// carries exactly one frame; callers select against their own timeout and
// must mark the worker broken (and discard it) when they stop waiting, since
// the unread remainder of the frame is still in the pipes.
func (w *worker) run(command string) <-chan frame {
	done := make(chan frame, 1)

	mark := uuid.NewString()
	begin := "FIBR-BEGIN-" + mark
	end := "FIBR-END-" + mark

	go func() {
		var (
			wg        sync.WaitGroup
			result    Result
			outErr    error
			errStderr error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			out, code, err := readFramedStdout(w.stdout, begin, end)
			result.Stdout, result.ExitCode, outErr = out, code, err
		}()
		go func() {
			defer wg.Done()
			out, err := readFramed(w.stderr, begin, end)
			result.Stderr, errStderr = out, err
		}()

		// The wrapped script: sentinels bracket both streams, and the end
		// sentinel on stdout carries the command's exit status. The command
		// body runs in a grouped subshell so multi-line commands and early
		// `exit` cannot skip the trailing echoes. End sentinels are preceded
		// by a forced newline so a command whose output lacks a trailing
		// newline cannot glue the sentinel onto its last line; collectFrame
		// strips that synthetic newline back out of the body.
		script := strings.Join([]string{
			"printf '%s\\n' '" + begin + "'",
			"printf '%s\\n' '" + begin + "' 1>&2",
			"( " + command + "\n) < /dev/null",
			"__fibr_status=$?",
			"printf '\\n%s %d\\n' '" + end + "' \"$__fibr_status\"",
			"printf '\\n%s\\n' '" + end + "' 1>&2",
			"",
		}, "\n")

		if _, err := io.WriteString(w.stdin, script); err != nil {
			done <- frame{err: fmt.Errorf("write command to worker: %w", err)}
			return
		}

		wg.Wait()
		if outErr != nil {
			done <- frame{err: outErr}
			return
		}
		if errStderr != nil {
			done <- frame{err: errStderr}
			return
		}
		done <- frame{result: result}
	}()

	return done
}

// readFramedStdout collects stdout lines between the sentinels and parses the
// exit status carried by the end sentinel line.
func readFramedStdout(r *bufio.Reader, begin, end string) (string, int, error) {
	body, endLine, err := collectFrame(r, begin, end)
	if err != nil {
		return "", 0, err
	}
	fields := strings.Fields(strings.TrimPrefix(endLine, end))
	if len(fields) != 1 {
		return "", 0, fmt.Errorf("malformed end sentinel line %q", endLine)
	}
	code, err := strconv.Atoi(fields[0])
	if err != nil {
		return "", 0, fmt.Errorf("malformed exit status in %q: %w", endLine, err)
	}
	return body, code, nil
}

// readFramed collects stderr lines between the sentinels.
func readFramed(r *bufio.Reader, begin, end string) (string, error) {
	body, _, err := collectFrame(r, begin, end)
	return body, err
}

// collectFrame skips to the begin sentinel, then accumulates lines until the
// line starting with the end sentinel, which is returned separately. The
// forced newline printed ahead of the end sentinel always lands in the body
// (either terminating a partial last line or adding a blank one), so exactly
// one trailing newline is synthetic and removed.
func collectFrame(r *bufio.Reader, begin, end string) (body, endLine string, err error) {
	started := false
	var sb strings.Builder
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return "", "", fmt.Errorf("worker stream closed mid-frame: %w", err)
		}
		trimmed := strings.TrimRight(line, "\n")
		if !started {
			if trimmed == begin {
				started = true
			}
			continue
		}
		if strings.HasPrefix(trimmed, end) {
			return strings.TrimSuffix(sb.String(), "\n"), trimmed, nil
		}
		sb.WriteString(line)
	}
}

// close shuts the worker down in three tiers: ask the shell to exit, wait,
// escalate to SIGTERM, wait, then SIGKILL. This bounds shutdown latency while
// avoiding orphaned processes.
func (w *worker) close(grace time.Duration) {
	if w.cmd.Process == nil {
		return
	}

	// Tier 1: graceful. Closing stdin EOFs the shell's command loop.
	_, _ = io.WriteString(w.stdin, "exit\n")
	_ = w.stdin.Close()
	if w.waitWithTimeout(grace) {
		return
	}

	// Tier 2: polite termination signal.
	_ = w.cmd.Process.Signal(syscall.SIGTERM)
	if w.waitWithTimeout(grace) {
		return
	}

	// Tier 3: forceful.
	_ = w.cmd.Process.Kill()
	w.waitWithTimeout(grace)
}

// waitWithTimeout reaps the process, reporting whether it exited within d.
func (w *worker) waitWithTimeout(d time.Duration) bool {
	done := make(chan struct{})
	go func() {
		w.waitOnce.Do(func() { w.waitErr = w.cmd.Wait() })
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(d):
		return false
	}
}
