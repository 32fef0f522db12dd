// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/gymnet/lib/testutil"
)

func bind(t *testing.T) *Endpoint {
	t.Helper()
	endpoint, err := Bind("", nil)
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	t.Cleanup(func() { endpoint.Close() })
	return endpoint
}

func dial(t *testing.T, endpoint *Endpoint) *Requester {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	requester, err := Dial(ctx, endpoint.Address())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { requester.Close() })
	return requester
}

type result struct {
	body []byte
	err  error
}

// send issues one request from a goroutine and returns the channel
// that will carry the reply.
func send(requester *Requester, body []byte) <-chan result {
	results := make(chan result, 1)
	go func() {
		reply, err := requester.Request(context.Background(), body)
		results <- result{reply, err}
	}()
	return results
}

func TestRequestReply(t *testing.T) {
	endpoint := bind(t)
	if endpoint.Port() == 0 {
		t.Fatal("ephemeral port not reported")
	}
	requester := dial(t, endpoint)

	for i := range 3 {
		body := []byte(testutil.UniqueID("request"))
		replies := send(requester, body)

		request, err := endpoint.Receive(context.Background(), 5*time.Second)
		if err != nil {
			t.Fatalf("round %d: Receive: %v", i, err)
		}
		if !bytes.Equal(request.Body, body) {
			t.Errorf("round %d: body = %q, want %q", i, request.Body, body)
		}
		if err := request.Reply(append([]byte("re:"), body...)); err != nil {
			t.Fatalf("round %d: Reply: %v", i, err)
		}

		got := testutil.RequireReceive(t, replies, 5*time.Second, "waiting for reply")
		if got.err != nil {
			t.Fatalf("round %d: Request: %v", i, got.err)
		}
		if want := append([]byte("re:"), body...); !bytes.Equal(got.body, want) {
			t.Errorf("round %d: reply = %q, want %q", i, got.body, want)
		}
	}
}

func TestEmptyAndLargeMessages(t *testing.T) {
	endpoint := bind(t)
	requester := dial(t, endpoint)

	large := bytes.Repeat([]byte("x"), 1<<20)
	replies := send(requester, large)
	request, err := endpoint.Receive(context.Background(), 5*time.Second)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if !bytes.Equal(request.Body, large) {
		t.Fatalf("large body corrupted (%d bytes)", len(request.Body))
	}
	if err := request.Reply(nil); err != nil {
		t.Fatalf("Reply: %v", err)
	}
	got := testutil.RequireReceive(t, replies, 5*time.Second, "waiting for empty reply")
	if got.err != nil || len(got.body) != 0 {
		t.Errorf("reply = %q, %v; want empty", got.body, got.err)
	}
}

func TestReceiveTimeout(t *testing.T) {
	const timeout = 200 * time.Millisecond
	for _, connected := range []bool{false, true} {
		name := "no peer"
		if connected {
			name = "silent peer"
		}
		t.Run(name, func(t *testing.T) {
			endpoint := bind(t)
			if connected {
				dial(t, endpoint)
			}
			start := time.Now()
			_, err := endpoint.Receive(context.Background(), timeout)
			elapsed := time.Since(start)

			var timeoutError *TimeoutError
			if !errors.As(err, &timeoutError) {
				t.Fatalf("error = %v, want *TimeoutError", err)
			}
			if elapsed < timeout {
				t.Errorf("Receive returned after %v, before the %v timeout", elapsed, timeout)
			}
			if elapsed > timeout+2*time.Second {
				t.Errorf("Receive returned after %v, far beyond the %v timeout", elapsed, timeout)
			}
			if timeoutError.Timeout != timeout || timeoutError.Elapsed < timeout {
				t.Errorf("TimeoutError = %+v", timeoutError)
			}
		})
	}
}

func TestReceiveCancelledByContext(t *testing.T) {
	endpoint := bind(t)
	dial(t, endpoint)

	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() {
		_, err := endpoint.Receive(ctx, time.Minute)
		errs <- err
	}()
	cancel()
	if err := testutil.RequireReceive(t, errs, 5*time.Second, "waiting for cancelled Receive"); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestCloseUnblocksReceive(t *testing.T) {
	for _, connected := range []bool{false, true} {
		endpoint := bind(t)
		if connected {
			dial(t, endpoint)
		}
		errs := make(chan error, 1)
		go func() {
			_, err := endpoint.Receive(context.Background(), 0)
			errs <- err
		}()
		// Give Receive a chance to block; Close must work either way.
		time.Sleep(20 * time.Millisecond)
		if err := endpoint.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
		if err := testutil.RequireReceive(t, errs, 5*time.Second, "waiting for closed Receive"); !errors.Is(err, ErrClosed) {
			t.Errorf("connected=%v: error = %v, want ErrClosed", connected, err)
		}
		if err := endpoint.Close(); err != nil {
			t.Errorf("second Close: %v", err)
		}
		if _, err := endpoint.Receive(context.Background(), time.Second); !errors.Is(err, ErrClosed) {
			t.Errorf("Receive after Close: %v, want ErrClosed", err)
		}
	}
}

func TestReconnectWithinDeadline(t *testing.T) {
	endpoint := bind(t)
	first := dial(t, endpoint)

	// The first peer connects, then disappears without sending.
	first.Close()

	second := dial(t, endpoint)
	replies := send(second, []byte("hello"))

	request, err := endpoint.Receive(context.Background(), 5*time.Second)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if string(request.Body) != "hello" {
		t.Errorf("body = %q", request.Body)
	}
	request.Reply([]byte("ok"))
	if got := testutil.RequireReceive(t, replies, 5*time.Second, "reply"); got.err != nil {
		t.Fatalf("Request: %v", got.err)
	}
}

func TestRejectsIncompatibleSocketType(t *testing.T) {
	var logs bytes.Buffer
	endpoint, err := Bind("", slog.New(slog.NewTextHandler(&logs, nil)))
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	defer endpoint.Close()

	conn, err := net.Dial("tcp", endpoint.Address())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	go handshake(conn, "PUB", "REP")

	_, err = endpoint.Receive(context.Background(), 300*time.Millisecond)
	var timeoutError *TimeoutError
	if !errors.As(err, &timeoutError) {
		t.Errorf("Receive error = %v, want *TimeoutError", err)
	}
	if !strings.Contains(logs.String(), "rejected simulator connection") || !strings.Contains(logs.String(), "PUB") {
		t.Errorf("PUB peer was not rejected; logs:\n%s", logs.String())
	}
}

func TestAlternationViolationsPanic(t *testing.T) {
	endpoint := bind(t)
	requester := dial(t, endpoint)
	send(requester, []byte("one"))

	request, err := endpoint.Receive(context.Background(), 5*time.Second)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}

	requirePanic(t, "Receive before Reply", func() {
		endpoint.Receive(context.Background(), time.Millisecond)
	})

	if err := request.Reply(nil); err != nil {
		t.Fatalf("Reply: %v", err)
	}
	requirePanic(t, "second Reply", func() {
		request.Reply(nil)
	})
}

func TestReplyAfterCloseReturnsErrClosed(t *testing.T) {
	endpoint := bind(t)
	requester := dial(t, endpoint)
	send(requester, []byte("one"))

	request, err := endpoint.Receive(context.Background(), 5*time.Second)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	endpoint.Close()
	if err := request.Reply(nil); !errors.Is(err, ErrClosed) {
		t.Errorf("Reply after Close = %v, want ErrClosed", err)
	}
}

func TestRequesterContextDeadline(t *testing.T) {
	endpoint := bind(t)
	requester := dial(t, endpoint)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if _, err := requester.Request(ctx, []byte("unanswered")); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Request error = %v, want context.DeadlineExceeded", err)
	}
	if _, err := requester.Request(context.Background(), []byte("again")); !errors.Is(err, ErrClosed) {
		t.Errorf("Request after abandoned exchange = %v, want ErrClosed", err)
	}
}

func requirePanic(t *testing.T, what string, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Errorf("%s did not panic", what)
		}
	}()
	fn()
}
