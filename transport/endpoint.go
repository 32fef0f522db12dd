// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/bureau-foundation/gymnet/lib/netutil"
)

// DefaultAddress binds an ephemeral loopback port.
const DefaultAddress = "127.0.0.1:0"

// replyTimeout bounds a single reply write.
const replyTimeout = 10 * time.Second

// Endpoint is the reply side of a request/reply exchange. It accepts
// one peer at a time over TCP and speaks ZMTP as a REP socket, so a
// ZeroMQ REQ socket can connect to it directly.
//
// Requests and replies alternate strictly: Receive returns a *Request
// and the next Receive may only start after that request's Reply.
// Breaking the alternation is a programming error and panics.
//
// Close may be called from any goroutine, including while Receive is
// blocked.
type Endpoint struct {
	listener *net.TCPListener
	logger   *slog.Logger

	mu         sync.Mutex
	peer       *peer
	connecting net.Conn
	pending    *Request
	receiving  bool
	closed     bool
}

// Bind listens on address, which must be a TCP host:port. An empty
// address selects DefaultAddress. A nil logger discards logs.
func Bind(address string, logger *slog.Logger) (*Endpoint, error) {
	if address == "" {
		address = DefaultAddress
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	tcpAddress, err := net.ResolveTCPAddr("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("resolving endpoint address %q: %w", address, err)
	}
	listener, err := net.ListenTCP("tcp", tcpAddress)
	if err != nil {
		return nil, fmt.Errorf("binding endpoint on %s: %w", address, err)
	}
	return &Endpoint{listener: listener, logger: logger}, nil
}

// Address returns the bound address in host:port form.
func (e *Endpoint) Address() string {
	return e.listener.Addr().String()
}

// Port returns the bound TCP port.
func (e *Endpoint) Port() int {
	return e.listener.Addr().(*net.TCPAddr).Port
}

// Receive blocks until a complete request arrives, the timeout
// elapses, ctx is cancelled, or the endpoint is closed. It returns
// a *TimeoutError, ctx.Err(), or ErrClosed respectively. A timeout of
// zero or less waits without limit.
//
// If the peer disconnects, Receive accepts the next connection within
// the same deadline.
func (e *Endpoint) Receive(ctx context.Context, timeout time.Duration) (*Request, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, ErrClosed
	}
	if e.receiving {
		e.mu.Unlock()
		panic("transport: concurrent Receive on one endpoint")
	}
	if e.pending != nil {
		e.mu.Unlock()
		panic("transport: Receive called before the previous request was answered")
	}
	e.receiving = true
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.receiving = false
		e.mu.Unlock()
	}()

	start := time.Now()
	var deadline time.Time
	if timeout > 0 {
		deadline = start.Add(timeout)
	}
	stop := context.AfterFunc(ctx, e.interrupt)
	defer stop()

	fail := func(err error) error {
		if e.isClosed() {
			return ErrClosed
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return &TimeoutError{Timeout: timeout, Elapsed: time.Since(start)}
		}
		return err
	}

	for {
		current, err := e.connect(ctx, deadline)
		if err != nil {
			if isRetryable(err) {
				continue
			}
			return nil, fail(err)
		}

		if err := current.conn.SetReadDeadline(deadline); err != nil {
			e.drop(current, err)
			continue
		}
		if err := e.stopped(ctx); err != nil {
			return nil, err
		}
		frames, err := current.readMessage()
		if err != nil {
			e.drop(current, err)
			if e.stopped(ctx) != nil || errors.Is(err, os.ErrDeadlineExceeded) {
				return nil, fail(err)
			}
			continue
		}
		envelope, body, err := splitEnvelope(frames)
		if err != nil {
			e.drop(current, err)
			continue
		}

		request := &Request{Body: body, endpoint: e, peer: current, envelope: envelope}
		e.mu.Lock()
		if e.closed {
			e.mu.Unlock()
			return nil, ErrClosed
		}
		e.pending = request
		e.mu.Unlock()
		return request, nil
	}
}

// retryableError marks a failed connection attempt after which Receive
// keeps waiting for another peer.
type retryableError struct{ err error }

func (r retryableError) Error() string { return r.err.Error() }
func (r retryableError) Unwrap() error { return r.err }

func isRetryable(err error) bool {
	var retryable retryableError
	return errors.As(err, &retryable)
}

// connect returns the current peer or accepts and handshakes a new
// one.
func (e *Endpoint) connect(ctx context.Context, deadline time.Time) (*peer, error) {
	e.mu.Lock()
	current := e.peer
	e.mu.Unlock()
	if current != nil {
		return current, nil
	}

	if err := e.listener.SetDeadline(deadline); err != nil {
		return nil, err
	}
	if err := e.stopped(ctx); err != nil {
		return nil, err
	}
	conn, err := e.listener.AcceptTCP()
	if err != nil {
		return nil, err
	}
	if err := conn.SetDeadline(deadline); err != nil {
		conn.Close()
		return nil, retryableError{err}
	}
	remote := conn.RemoteAddr().String()
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		conn.Close()
		return nil, ErrClosed
	}
	e.connecting = conn
	e.mu.Unlock()
	if err := e.stopped(ctx); err != nil {
		e.clearConnecting()
		conn.Close()
		return nil, err
	}

	accepted, err := handshake(conn, "REP", "REQ", "DEALER")
	e.clearConnecting()
	if err != nil {
		conn.Close()
		if errors.Is(err, os.ErrDeadlineExceeded) || e.stopped(ctx) != nil {
			return nil, err
		}
		e.logger.Warn("rejected simulator connection", "remote", remote, "error", err)
		return nil, retryableError{err}
	}
	conn.SetWriteDeadline(time.Time{})

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		conn.Close()
		return nil, ErrClosed
	}
	e.peer = accepted
	e.logger.Debug("simulator connected", "remote", remote, "socket_type", accepted.socketType)
	return accepted, nil
}

func (e *Endpoint) clearConnecting() {
	e.mu.Lock()
	e.connecting = nil
	e.mu.Unlock()
}

// stopped returns the error a cancelled or closed Receive reports, or
// nil if neither has happened.
func (e *Endpoint) stopped(ctx context.Context) error {
	if e.isClosed() {
		return ErrClosed
	}
	return ctx.Err()
}

// interrupt forces blocked accept and read calls to return.
func (e *Endpoint) interrupt() {
	past := time.Unix(1, 0)
	e.listener.SetDeadline(past)
	e.mu.Lock()
	current, connecting := e.peer, e.connecting
	e.mu.Unlock()
	if current != nil {
		current.conn.SetReadDeadline(past)
	}
	if connecting != nil {
		connecting.SetDeadline(past)
	}
}

func (e *Endpoint) drop(current *peer, reason error) {
	e.mu.Lock()
	if e.peer == current {
		e.peer = nil
	}
	e.mu.Unlock()
	remote := current.conn.RemoteAddr().String()
	current.conn.Close()
	if netutil.IsDisconnect(reason) || errors.Is(reason, os.ErrDeadlineExceeded) {
		e.logger.Debug("simulator disconnected", "remote", remote, "reason", reason)
		return
	}
	e.logger.Warn("simulator connection dropped", "remote", remote, "error", reason)
}

func (e *Endpoint) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// Close stops accepting connections and disconnects the peer. It is
// idempotent.
func (e *Endpoint) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	current, connecting := e.peer, e.connecting
	e.peer = nil
	e.mu.Unlock()

	err := e.listener.Close()
	if current != nil {
		current.conn.Close()
	}
	if connecting != nil {
		connecting.Close()
	}
	if err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("closing endpoint: %w", err)
	}
	return nil
}

// Request is one received message awaiting its reply. Reply must be
// called exactly once.
type Request struct {
	// Body is the message content with the routing envelope removed.
	Body []byte

	endpoint *Endpoint
	peer     *peer
	envelope [][]byte
	replied  bool
}

// Reply sends body as the answer to this request. Calling Reply twice
// panics. If the endpoint closed or the peer disconnected since the
// request arrived, Reply returns ErrClosed or ErrPeerGone and the
// endpoint is ready for the next Receive.
func (r *Request) Reply(body []byte) error {
	e := r.endpoint
	e.mu.Lock()
	if r.replied {
		e.mu.Unlock()
		panic("transport: Reply called twice for one request")
	}
	r.replied = true
	if e.pending == r {
		e.pending = nil
	}
	closed := e.closed
	current := e.peer
	e.mu.Unlock()

	if closed {
		return ErrClosed
	}
	if current != r.peer {
		return ErrPeerGone
	}

	r.peer.conn.SetWriteDeadline(time.Now().Add(replyTimeout))
	frames := append(slices.Clone(r.envelope), body)
	if err := r.peer.writeMessage(frames...); err != nil {
		e.drop(r.peer, err)
		if e.isClosed() {
			return ErrClosed
		}
		if netutil.IsDisconnect(err) {
			return ErrPeerGone
		}
		return fmt.Errorf("sending reply: %w", err)
	}
	return nil
}
