// SPDX-License-Identifier: MPL-2.0

// Package discovery turns the on-disk module layout into the typed module
// graph: it enumerates the core module and its sibling fibers, their flat and
// nested chains, merges each candidate's effective configuration (built-in
// defaults < declaration file < user override), and extracts dependency
// lists, tool declarations, and the enabled flag into module records.
//
// Dependency names are recorded as-is without existence validation: a
// dependency might legitimately resolve later (a lazily discovered chain) or
// never (a distinct failure reason), and only the resolver can tell which.
package discovery
