// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"os"
	"os/signal"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	// The root command already reported any error in the "<label>: <error>"
	// format, so here we only need to set the exit code.
	err := newRootCmd().ExecuteContext(ctx)
	cancel()
	if err != nil {
		osExit(1)
	}
}

// For CLI unit tests...
var osExit = os.Exit
