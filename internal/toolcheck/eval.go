// SPDX-License-Identifier: MPL-2.0

package toolcheck

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// ValidateEval parses an eval check expression without running it, so invalid
// expressions surface as configuration problems at discovery time instead of
// check-time errors.
func ValidateEval(expr string) error {
	_, err := syntax.NewParser().Parse(strings.NewReader(expr), "check_eval")
	if err != nil {
		return fmt.Errorf("check_eval syntax error: %w", err)
	}
	return nil
}

// evalCheck runs an eval expression in-process via the embedded shell
// interpreter. Zero exit marks the tool installed; a non-zero exit marks it
// missing; anything else is a check error.
func evalCheck(ctx context.Context, expr string) (installed bool, detail string, err error) {
	prog, err := syntax.NewParser().Parse(strings.NewReader(expr), "check_eval")
	if err != nil {
		return false, "", fmt.Errorf("parse check_eval: %w", err)
	}

	var stdout, stderr bytes.Buffer
	runner, err := interp.New(interp.StdIO(nil, &stdout, &stderr))
	if err != nil {
		return false, "", fmt.Errorf("create interpreter: %w", err)
	}

	if err := runner.Run(ctx, prog); err != nil {
		var exitStatus interp.ExitStatus
		if errors.As(err, &exitStatus) {
			return false, strings.TrimSpace(stderr.String()), nil
		}
		return false, "", fmt.Errorf("eval check failed: %w", err)
	}
	return true, strings.TrimSpace(stdout.String()), nil
}
