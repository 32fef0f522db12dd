// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

// ExitInterrupted is the conventional status for a run stopped by
// SIGINT or SIGTERM.
const ExitInterrupted = 130

// Fatal reports err and exits. Use it in main() for errors from run(),
// where the structured logger may not be initialized. A cancelled
// context exits quietly with ExitInterrupted; anything else prints
// "error: err" and exits 1.
func Fatal(err error) {
	os.Exit(report(os.Stderr, err))
}

func report(w io.Writer, err error) int {
	if errors.Is(err, context.Canceled) {
		return ExitInterrupted
	}
	fmt.Fprintf(w, "error: %v\n", err)
	return 1
}
