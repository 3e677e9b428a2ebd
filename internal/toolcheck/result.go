// SPDX-License-Identifier: MPL-2.0

package toolcheck

// Status is the overall verdict of a tool check.
type Status int

const (
	// StatusUnknown means the tool was not checked (e.g., an optional tool
	// with no configured check method).
	StatusUnknown Status = iota
	// StatusInstalled means the check succeeded.
	StatusInstalled
	// StatusNotInstalled means the check ran and reported the tool missing.
	StatusNotInstalled
	// StatusError means the check itself errored or timed out. Distinct from
	// NotInstalled; dependents treat it as an unmet tool dependency.
	StatusError
)

// String returns the status name used in status output and the cache file.
func (s Status) String() string {
	switch s {
	case StatusInstalled:
		return "installed"
	case StatusNotInstalled:
		return "not-installed"
	case StatusError:
		return "error"
	case StatusUnknown:
		return "unknown"
	default:
		return "unknown"
	}
}

// ParseStatus is the inverse of Status.String. Unrecognized input maps to
// StatusUnknown.
func ParseStatus(s string) Status {
	switch s {
	case "installed":
		return StatusInstalled
	case "not-installed":
		return StatusNotInstalled
	case "error":
		return StatusError
	default:
		return StatusUnknown
	}
}

// Result is the verdict for one tool. Results are stored keyed by tool name
// and always replaced whole, never field-by-field, so concurrent readers see
// internally consistent entries.
type Result struct {
	// Installed reports whether the check found the tool.
	Installed bool
	// ValidVersion reports whether the version check (if configured) passed.
	// A tool with no version command is ValidVersion whenever Installed.
	ValidVersion bool
	// Status is the overall verdict.
	Status Status
	// Detail carries supporting information: the detected version, or the
	// failure description for StatusError.
	Detail string
}

// Satisfied reports whether the result meets a non-optional tool dependency.
func (r Result) Satisfied() bool {
	return r.Installed && r.ValidVersion
}

// errorResult builds the Result for a check that itself failed.
func errorResult(detail string) Result {
	return Result{Status: StatusError, Detail: detail}
}

// notInstalledResult builds the Result for a tool confirmed missing.
func notInstalledResult() Result {
	return Result{Status: StatusNotInstalled}
}
