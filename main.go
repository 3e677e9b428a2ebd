// SPDX-License-Identifier: MPL-2.0

// Command fibr bootstraps shell environments from modular fiber
// declarations.
package main

import cmd "fibr-cli/cmd/fibr"

func main() {
	cmd.Execute()
}
