// SPDX-License-Identifier: MPL-2.0

package discovery

import (
	"io"

	"github.com/charmbracelet/log"
)

// testLogger returns a logger that discards output so test runs stay quiet.
func testLogger() *log.Logger {
	return log.New(io.Discard)
}
