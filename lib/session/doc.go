// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package session sequences one simulator episode: bind an endpoint,
// launch the simulator, complete the Init handshake, then exchange one
// action for one observation per step until the simulator asks to shut
// down.
//
// A [Controller] moves through four states:
//
//	Idle ──Reset──▶ AwaitingInit ──Init+Step──▶ Ready ──Close──▶ Closed
//	                                             │  ▲
//	                                             └──┘ Step
//
// Reset tears down whatever session came before, so it is valid from
// every state. The Init acknowledgement and the wait for the first
// observation happen inside one Reset call.
//
// The simulator speaks first: every receive on the endpoint is
// answered before the next, and the request that carried the latest
// observation stays pending until the next Step replies to it with an
// action.
//
// Any error from Reset or Step ends the episode: the endpoint is
// closed and the simulator terminated before the error is returned.
// Nothing is retried; call Reset to start over. Close may be called at
// any time, from any goroutine, including while Reset or Step is
// blocked waiting for the simulator.
package session
