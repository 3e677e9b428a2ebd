// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable error handling with user-friendly messages.
//
// This package defines error types that carry remediation steps, plus a small
// catalog of known failure classes with guidance the CLI prints when they occur.
package issue
