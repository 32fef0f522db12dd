// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package spacecodec

import (
	"github.com/bureau-foundation/gymnet/lib/space"
	"github.com/bureau-foundation/gymnet/lib/wire"
)

// Codec binds a wire format to an action encoder. It is the only piece
// of the engine that touches message bytes.
type Codec struct {
	format  wire.Format
	encoder ActionEncoder
}

// New returns a codec. A nil format selects wire.Protobuf and a nil
// encoder selects DictBoxEncoder.
func New(format wire.Format, encoder ActionEncoder) *Codec {
	if format == nil {
		format = wire.Protobuf
	}
	if encoder == nil {
		encoder = DictBoxEncoder{}
	}
	return &Codec{format: format, encoder: encoder}
}

// Format returns the wire format in use.
func (c *Codec) Format() wire.Format {
	return c.format
}

// DecodeRequest parses one request from the simulator.
func (c *Codec) DecodeRequest(data []byte) (wire.Request, error) {
	request, err := c.format.DecodeRequest(data)
	if err != nil {
		return wire.Request{}, protocolError("decode request", err, "invalid %s message", c.format.Name())
	}
	return request, nil
}

// EncodeAck returns the empty reply that acknowledges an Init.
func (c *Codec) EncodeAck() ([]byte, error) {
	return c.format.EncodeReply(wire.Reply{})
}

// EncodeAction encodes action with the configured encoder.
func (c *Codec) EncodeAction(action any, descriptor space.Descriptor) ([]byte, error) {
	tree, err := c.encoder.EncodeAction(action, descriptor)
	if err != nil {
		return nil, err
	}
	return c.encodeReply(tree)
}

// EncodeFillerAction encodes a sampled action. The configured encoder
// is tried first so the simulator sees its usual shape; values the
// encoder cannot express are sent as their plain wire tree.
func (c *Codec) EncodeFillerAction(action space.Value, descriptor space.Descriptor) ([]byte, error) {
	tree, err := c.encoder.EncodeAction(action, descriptor)
	if err != nil {
		if tree, err = FromValue(action); err != nil {
			return nil, err
		}
	}
	return c.encodeReply(tree)
}

func (c *Codec) encodeReply(tree wire.Space) ([]byte, error) {
	data, err := c.format.EncodeReply(wire.Reply{Action: &tree})
	if err != nil {
		return nil, protocolError("encode action", err, "invalid %s reply", c.format.Name())
	}
	return data, nil
}
