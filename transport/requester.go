// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"
)

// Requester is the request side of the exchange: a ZMTP REQ peer for
// an Endpoint or any ZeroMQ REP socket. The mock simulator and tests
// use it to play the simulator's role.
//
// Like a ZeroMQ REQ socket, a Requester connects eagerly but completes
// the ZMTP handshake with the first Request, so the reply side does not
// have to be receiving at dial time.
type Requester struct {
	conn net.Conn

	mu     sync.Mutex
	peer   *peer
	closed bool
}

// Dial opens a TCP connection to a REP endpoint at address.
func Dial(ctx context.Context, address string) (*Requester, error) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", address, err)
	}
	return &Requester{conn: conn}, nil
}

// Request sends body and waits for the reply. Concurrent callers take
// turns. If ctx ends before the reply arrives the connection is closed,
// since a late reply could otherwise be taken for the answer to the
// next request.
func (r *Requester) Request(ctx context.Context, body []byte) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrClosed
	}

	deadline, _ := ctx.Deadline()
	r.conn.SetDeadline(deadline)
	stop := context.AfterFunc(ctx, func() { r.conn.SetDeadline(time.Unix(1, 0)) })
	defer stop()

	reply, err := r.exchange(body)
	if err != nil {
		r.closed = true
		r.conn.Close()
		switch {
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case errors.Is(err, net.ErrClosed):
			return nil, ErrClosed
		case errors.Is(err, os.ErrDeadlineExceeded):
			return nil, context.DeadlineExceeded
		}
		return nil, err
	}
	return reply, nil
}

func (r *Requester) exchange(body []byte) ([]byte, error) {
	if r.peer == nil {
		accepted, err := handshake(r.conn, "REQ", "REP", "ROUTER")
		if err != nil {
			return nil, err
		}
		r.peer = accepted
	}
	if err := r.peer.writeMessage(nil, body); err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	frames, err := r.peer.readMessage()
	if err != nil {
		return nil, fmt.Errorf("reading reply: %w", err)
	}
	_, reply, err := splitEnvelope(frames)
	if err != nil {
		return nil, err
	}
	return reply, nil
}

// Close disconnects. It is idempotent and may be called while Request
// is blocked.
func (r *Requester) Close() error {
	// A blocked Request holds the mutex; closing the connection first
	// releases it.
	r.conn.Close()
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return nil
}
