// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for fibr.
//
// This package implements the Cobra command hierarchy: the root command,
// module loading and status, tool checks, configuration management, and the
// declaration watcher.
package cmd
