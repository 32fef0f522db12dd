// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"slices"
)

// ZMTP 3.x constants (https://rfc.zeromq.org/spec/23/).
const (
	greetingSize    = 64
	mechanismOffset = 12
	mechanismSize   = 20

	flagMore    = 0x01
	flagLong    = 0x02
	flagCommand = 0x04

	// maxFrameSize caps a single frame so a corrupt or hostile size
	// field cannot trigger a huge allocation.
	maxFrameSize = 64 << 20

	socketTypeProperty = "Socket-Type"
)

var errFrameTooLarge = errors.New("zmtp frame exceeds 64 MiB")

// greeting returns the 64-byte ZMTP 3.0 greeting for the NULL
// mechanism.
func greeting() []byte {
	data := make([]byte, greetingSize)
	data[0] = 0xFF
	data[9] = 0x7F
	data[10] = 3
	data[11] = 0
	copy(data[mechanismOffset:], "NULL")
	return data
}

func checkGreeting(data []byte) error {
	if data[0] != 0xFF || data[9] != 0x7F {
		return errors.New("peer is not speaking ZMTP")
	}
	if data[10] < 3 {
		return fmt.Errorf("peer speaks ZMTP %d.%d, need 3.0 or later", data[10], data[11])
	}
	mechanism := string(bytes.TrimRight(data[mechanismOffset:mechanismOffset+mechanismSize], "\x00"))
	if mechanism != "NULL" {
		return fmt.Errorf("peer requests security mechanism %q, only NULL is supported", mechanism)
	}
	return nil
}

// frame is one ZMTP frame.
type frame struct {
	command bool
	more    bool
	body    []byte
}

func appendFrame(data []byte, flags byte, body []byte) []byte {
	if len(body) > 255 {
		data = append(data, flags|flagLong)
		data = binary.BigEndian.AppendUint64(data, uint64(len(body)))
	} else {
		data = append(data, flags, byte(len(body)))
	}
	return append(data, body...)
}

func readFrame(reader *bufio.Reader) (frame, error) {
	flags, err := reader.ReadByte()
	if err != nil {
		return frame{}, err
	}
	var size uint64
	if flags&flagLong != 0 {
		var header [8]byte
		if _, err := io.ReadFull(reader, header[:]); err != nil {
			return frame{}, err
		}
		size = binary.BigEndian.Uint64(header[:])
	} else {
		short, err := reader.ReadByte()
		if err != nil {
			return frame{}, err
		}
		size = uint64(short)
	}
	if size > maxFrameSize {
		return frame{}, errFrameTooLarge
	}
	body := make([]byte, size)
	if _, err := io.ReadFull(reader, body); err != nil {
		return frame{}, err
	}
	return frame{command: flags&flagCommand != 0, more: flags&flagMore != 0, body: body}, nil
}

// command builds a command body: a length-prefixed name followed by
// data.
func command(name string, data []byte) []byte {
	body := append([]byte{byte(len(name))}, name...)
	return append(body, data...)
}

func parseCommand(body []byte) (string, []byte, error) {
	if len(body) < 1 || len(body) < 1+int(body[0]) {
		return "", nil, errors.New("truncated zmtp command")
	}
	size := int(body[0])
	return string(body[1 : 1+size]), body[1+size:], nil
}

// readyCommand builds a READY command announcing socketType.
func readyCommand(socketType string) []byte {
	var properties []byte
	properties = append(properties, byte(len(socketTypeProperty)))
	properties = append(properties, socketTypeProperty...)
	properties = binary.BigEndian.AppendUint32(properties, uint32(len(socketType)))
	properties = append(properties, socketType...)
	return command("READY", properties)
}

// parseProperties decodes READY metadata.
func parseProperties(data []byte) (map[string]string, error) {
	properties := make(map[string]string)
	for len(data) > 0 {
		nameSize := int(data[0])
		if len(data) < 1+nameSize+4 {
			return nil, errors.New("truncated zmtp property")
		}
		name := string(data[1 : 1+nameSize])
		data = data[1+nameSize:]
		valueSize := binary.BigEndian.Uint32(data)
		data = data[4:]
		if uint64(len(data)) < uint64(valueSize) {
			return nil, errors.New("truncated zmtp property value")
		}
		properties[name] = string(data[:valueSize])
		data = data[valueSize:]
	}
	return properties, nil
}

// peer is a connection that has completed the ZMTP handshake.
type peer struct {
	conn       net.Conn
	reader     *bufio.Reader
	socketType string
}

// handshake exchanges greetings and READY commands on conn. The
// peer's socket type must be one of accepted. Deadlines are the
// caller's responsibility.
func handshake(conn net.Conn, socketType string, accepted ...string) (*peer, error) {
	if _, err := conn.Write(greeting()); err != nil {
		return nil, fmt.Errorf("sending zmtp greeting: %w", err)
	}
	reader := bufio.NewReader(conn)
	remote := make([]byte, greetingSize)
	if _, err := io.ReadFull(reader, remote); err != nil {
		return nil, fmt.Errorf("reading zmtp greeting: %w", err)
	}
	if err := checkGreeting(remote); err != nil {
		return nil, err
	}

	if _, err := conn.Write(appendFrame(nil, flagCommand, readyCommand(socketType))); err != nil {
		return nil, fmt.Errorf("sending zmtp READY: %w", err)
	}
	ready, err := readFrame(reader)
	if err != nil {
		return nil, fmt.Errorf("reading zmtp READY: %w", err)
	}
	if !ready.command {
		return nil, errors.New("peer sent a message before READY")
	}
	name, data, err := parseCommand(ready.body)
	if err != nil {
		return nil, err
	}
	switch name {
	case "READY":
	case "ERROR":
		return nil, fmt.Errorf("peer rejected handshake: %s", errorReason(data))
	default:
		return nil, fmt.Errorf("expected READY command, got %q", name)
	}
	properties, err := parseProperties(data)
	if err != nil {
		return nil, err
	}
	peerType := properties[socketTypeProperty]
	if !slices.Contains(accepted, peerType) {
		return nil, fmt.Errorf("peer socket type %q is incompatible with %s", peerType, socketType)
	}
	return &peer{conn: conn, reader: reader, socketType: peerType}, nil
}

func errorReason(data []byte) string {
	if len(data) == 0 || len(data) < 1+int(data[0]) {
		return "no reason given"
	}
	return string(data[1 : 1+int(data[0])])
}

// readMessage returns the frames of the next message. Commands between
// messages are skipped; an ERROR command ends the connection.
func (p *peer) readMessage() ([][]byte, error) {
	var frames [][]byte
	for {
		next, err := readFrame(p.reader)
		if err != nil {
			return nil, err
		}
		if next.command {
			name, data, err := parseCommand(next.body)
			if err != nil {
				return nil, err
			}
			if name == "ERROR" {
				return nil, fmt.Errorf("peer reported error: %s", errorReason(data))
			}
			continue
		}
		frames = append(frames, next.body)
		if !next.more {
			return frames, nil
		}
	}
}

// writeMessage sends frames as one message in a single write.
func (p *peer) writeMessage(frames ...[]byte) error {
	var data []byte
	for i, body := range frames {
		var flags byte
		if i < len(frames)-1 {
			flags = flagMore
		}
		data = appendFrame(data, flags, body)
	}
	_, err := p.conn.Write(data)
	return err
}

// splitEnvelope separates the routing envelope, which ends with an
// empty delimiter frame, from the content frames. Content frames are
// concatenated into one body.
func splitEnvelope(frames [][]byte) (envelope [][]byte, body []byte, err error) {
	for i, part := range frames {
		if len(part) == 0 {
			envelope = frames[:i+1]
			for _, content := range frames[i+1:] {
				body = append(body, content...)
			}
			if body == nil {
				body = []byte{}
			}
			return envelope, body, nil
		}
	}
	return nil, nil, errors.New("message has no envelope delimiter")
}
