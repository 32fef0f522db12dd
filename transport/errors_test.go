// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestTimeoutErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  *TimeoutError
		want []string
	}{
		{
			name: "unknown process",
			err:  &TimeoutError{Timeout: time.Second, Elapsed: 1001 * time.Millisecond},
			want: []string{"within 1s", "waited 1.001s"},
		},
		{
			name: "supervised process",
			err:  &TimeoutError{Timeout: 3 * time.Second, Elapsed: 3 * time.Second, PID: 4242},
			want: []string{"pid 4242", "within 3s"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("reset: %w", tt.err)
			var timeoutError *TimeoutError
			if !errors.As(wrapped, &timeoutError) {
				t.Fatalf("errors.As did not find *TimeoutError in %v", wrapped)
			}
			if timeoutError.Timeout != tt.err.Timeout {
				t.Errorf("Timeout = %s, want %s", timeoutError.Timeout, tt.err.Timeout)
			}
			for _, fragment := range tt.want {
				if !strings.Contains(wrapped.Error(), fragment) {
					t.Errorf("%q does not mention %q", wrapped.Error(), fragment)
				}
			}
		})
	}
}
