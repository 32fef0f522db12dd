// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestReport(t *testing.T) {
	var buffer bytes.Buffer
	if code := report(&buffer, errors.New("simulator not found")); code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	if got := buffer.String(); got != "error: simulator not found\n" {
		t.Errorf("stderr = %q", got)
	}

	buffer.Reset()
	if code := report(&buffer, fmt.Errorf("reset: %w", context.Canceled)); code != ExitInterrupted {
		t.Errorf("exit code = %d, want %d", code, ExitInterrupted)
	}
	if buffer.Len() != 0 {
		t.Errorf("cancellation printed %q", buffer.String())
	}
}
