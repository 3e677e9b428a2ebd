// SPDX-License-Identifier: MPL-2.0

// Package config loads the user-level fibr configuration: the central
// config.yaml under the platform config directory, FIBR_* environment
// overrides, and built-in defaults. It also resolves the per-module user
// override subtrees that form the highest-precedence layer of every module's
// effective configuration.
package config
