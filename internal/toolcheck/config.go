// SPDX-License-Identifier: MPL-2.0

// Package toolcheck determines whether the external tools a module depends on
// are actually present and version-valid. Checks run through a shell executor
// (normally the shellpool) and can be batched with a bounded concurrency.
package toolcheck

import (
	"errors"
	"fmt"
	"strings"
)

// ErrConfiguration is the sentinel error wrapped by ConfigurationError.
var ErrConfiguration = errors.New("tool configuration error")

type (
	// Method identifies how a tool's presence is verified.
	Method int

	// InstallMethod identifies which installer executor acquires a missing
	// tool. The engine only selects the installer; mechanics live behind the
	// provision boundary.
	InstallMethod string

	// Config declares how one tool is checked and optionally installed.
	// Exactly one check method may be configured; setting more than one is a
	// ConfigurationError surfaced at discovery time.
	Config struct {
		// CheckCommand is a shell command whose zero exit marks the tool
		// installed.
		CheckCommand string
		// CheckPath marks the tool installed when the path exists.
		CheckPath string
		// CheckEval is a shell expression evaluated in-process; zero exit
		// marks the tool installed.
		CheckEval string
		// CheckBrew marks the tool installed when the named formula is
		// present in the package manager.
		CheckBrew string
		// CheckBrewCask is the cask variant of CheckBrew.
		CheckBrewCask string

		// VersionCommand prints the tool's version; its output is compared
		// against ExpectedVersion to decide ValidVersion.
		VersionCommand string
		// ExpectedVersion is the minimum acceptable semantic version.
		ExpectedVersion string

		// Install selects the installer executor ("brew", "git", "script",
		// "archive", "command"). Empty means the tool is not auto-installable.
		Install InstallMethod
		// InstallSpec is the method-specific argument (formula name, clone
		// URL, script URL, archive URL, or raw command).
		InstallSpec string

		// Optional tools never gate module activation. With no configured
		// check they report StatusUnknown rather than StatusNotInstalled.
		Optional bool
	}

	// ConfigurationError reports an invalid tool declaration, e.g. two
	// exclusive check methods set on the same tool.
	ConfigurationError struct {
		Tool    string
		Methods []Method
		Detail  string
	}
)

const (
	// MethodDefault is the inferred fallback: `command -v <name>`.
	MethodDefault Method = iota
	MethodCommand
	MethodPath
	MethodEval
	MethodBrew
	MethodBrewCask
)

const (
	InstallBrew    InstallMethod = "brew"
	InstallGit     InstallMethod = "git"
	InstallScript  InstallMethod = "script"
	InstallArchive InstallMethod = "archive"
	InstallCommand InstallMethod = "command"
)

// String returns the method name used in errors and status output.
func (m Method) String() string {
	switch m {
	case MethodCommand:
		return "command"
	case MethodPath:
		return "path"
	case MethodEval:
		return "eval"
	case MethodBrew:
		return "brew"
	case MethodBrewCask:
		return "brew-cask"
	case MethodDefault:
		return "default"
	default:
		return "unknown"
	}
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	if len(e.Methods) > 1 {
		names := make([]string, len(e.Methods))
		for i, m := range e.Methods {
			names[i] = m.String()
		}
		return fmt.Sprintf("tool %q: check methods are mutually exclusive, got %s", e.Tool, strings.Join(names, ", "))
	}
	return fmt.Sprintf("tool %q: %s", e.Tool, e.Detail)
}

// Unwrap returns ErrConfiguration for errors.Is() compatibility.
func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

// configuredMethods lists the explicitly configured check methods.
func (c Config) configuredMethods() []Method {
	var methods []Method
	if c.CheckCommand != "" {
		methods = append(methods, MethodCommand)
	}
	if c.CheckPath != "" {
		methods = append(methods, MethodPath)
	}
	if c.CheckEval != "" {
		methods = append(methods, MethodEval)
	}
	if c.CheckBrew != "" {
		methods = append(methods, MethodBrew)
	}
	if c.CheckBrewCask != "" {
		methods = append(methods, MethodBrewCask)
	}
	return methods
}

// Validate enforces check-method exclusivity for the named tool. It fails
// fast: an invalid declaration never silently picks one of the methods.
func (c Config) Validate(tool string) error {
	methods := c.configuredMethods()
	if len(methods) > 1 {
		return &ConfigurationError{Tool: tool, Methods: methods}
	}
	if c.ExpectedVersion != "" && c.VersionCommand == "" {
		return &ConfigurationError{Tool: tool, Detail: "expected_version requires version_command"}
	}
	return nil
}

// ResolveMethod returns the effective check method after applying the
// inference precedence: command > path > eval > brew formula/cask > default
// PATH lookup on the tool's own name. Config must already be validated.
func (c Config) ResolveMethod() Method {
	methods := c.configuredMethods()
	if len(methods) == 0 {
		return MethodDefault
	}
	return methods[0]
}

// HasCheck reports whether any check method is explicitly configured.
func (c Config) HasCheck() bool {
	return len(c.configuredMethods()) > 0
}
