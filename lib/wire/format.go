// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"fmt"
	"slices"
)

// Format converts messages to and from bytes. Implementations are
// stateless and safe for concurrent use.
type Format interface {
	// Name is the identifier used in configuration.
	Name() string

	EncodeRequest(Request) ([]byte, error)
	DecodeRequest([]byte) (Request, error)

	// EncodeReply returns an empty slice for an acknowledgement.
	EncodeReply(Reply) ([]byte, error)
	DecodeReply([]byte) (Reply, error)
}

var formats = map[string]Format{
	Protobuf.Name(): Protobuf,
	CBOR.Name():     CBOR,
}

// Names lists the registered format names in sorted order.
func Names() []string {
	names := make([]string, 0, len(formats))
	for name := range formats {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// ByName returns the format registered under name.
func ByName(name string) (Format, error) {
	format, ok := formats[name]
	if !ok {
		return nil, fmt.Errorf("unknown wire format %q (known: %v)", name, Names())
	}
	return format, nil
}
