// SPDX-License-Identifier: MPL-2.0

package toolcheck

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/mod/semver"
)

// ErrInvalidVersion indicates a version string is not valid semver.
var ErrInvalidVersion = errors.New("invalid semantic version")

// versionToken matches the first dotted numeric version in arbitrary tool
// output ("psql (PostgreSQL) 16.3", "git version 2.44.0", "v1.2.3-rc1").
var versionToken = regexp.MustCompile(`v?\d+(\.\d+)+(-[0-9A-Za-z.\-]+)?`)

// normalizeVersion ensures the version string has the "v" prefix required by
// the semver package and validates the result. Two-segment versions ("1.2")
// are padded to three segments.
func normalizeVersion(v string) (string, error) {
	norm := strings.TrimSpace(v)
	if !strings.HasPrefix(norm, "v") {
		norm = "v" + norm
	}
	// semver requires major.minor.patch; tools often print only major.minor.
	if base, _, _ := strings.Cut(norm, "-"); strings.Count(base, ".") == 1 {
		if rest, found := strings.CutPrefix(norm, base); found {
			norm = base + ".0" + rest
		}
	}
	if !semver.IsValid(norm) {
		return "", fmt.Errorf("%w: %q", ErrInvalidVersion, v)
	}
	return norm, nil
}

// extractVersion pulls the first version-shaped token out of a version
// command's output.
func extractVersion(output string) (string, error) {
	tok := versionToken.FindString(output)
	if tok == "" {
		return "", fmt.Errorf("%w: no version found in output %q", ErrInvalidVersion, strings.TrimSpace(output))
	}
	return tok, nil
}

// versionSatisfies reports whether detected (raw tool output) meets the
// declared minimum expected version under semantic comparison.
func versionSatisfies(output, expected string) (bool, string, error) {
	tok, err := extractVersion(output)
	if err != nil {
		return false, "", err
	}
	detected, err := normalizeVersion(tok)
	if err != nil {
		return false, "", err
	}
	want, err := normalizeVersion(expected)
	if err != nil {
		return false, detected, err
	}
	return semver.Compare(detected, want) >= 0, detected, nil
}
