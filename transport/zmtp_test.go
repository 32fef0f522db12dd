// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	bodies := [][]byte{{}, []byte("short"), bytes.Repeat([]byte{0xab}, 255), bytes.Repeat([]byte{0xcd}, 70000)}
	var data []byte
	for i, body := range bodies {
		var flags byte
		if i < len(bodies)-1 {
			flags = flagMore
		}
		data = appendFrame(data, flags, body)
	}

	reader := bufio.NewReader(bytes.NewReader(data))
	for i, body := range bodies {
		decoded, err := readFrame(reader)
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if !bytes.Equal(decoded.body, body) {
			t.Errorf("frame %d body mismatch (%d bytes, want %d)", i, len(decoded.body), len(body))
		}
		if decoded.more != (i < len(bodies)-1) {
			t.Errorf("frame %d more = %v", i, decoded.more)
		}
		if decoded.command {
			t.Errorf("frame %d decoded as command", i)
		}
	}
}

func TestFrameUsesLongSizeAbove255(t *testing.T) {
	short := appendFrame(nil, 0, bytes.Repeat([]byte{1}, 255))
	if short[0]&flagLong != 0 || short[1] != 255 {
		t.Errorf("255-byte frame header = %x", short[:2])
	}
	long := appendFrame(nil, 0, bytes.Repeat([]byte{1}, 256))
	if long[0]&flagLong == 0 || binary.BigEndian.Uint64(long[1:9]) != 256 {
		t.Errorf("256-byte frame header = %x", long[:9])
	}
}

func TestFrameRejectsOversize(t *testing.T) {
	header := []byte{flagLong}
	header = binary.BigEndian.AppendUint64(header, maxFrameSize+1)
	_, err := readFrame(bufio.NewReader(bytes.NewReader(header)))
	if !errors.Is(err, errFrameTooLarge) {
		t.Fatalf("error = %v, want errFrameTooLarge", err)
	}
}

func TestReadyProperties(t *testing.T) {
	frame := readyCommand("REP")
	name, data, err := parseCommand(frame)
	if err != nil {
		t.Fatal(err)
	}
	if name != "READY" {
		t.Errorf("command name = %q", name)
	}
	properties, err := parseProperties(data)
	if err != nil {
		t.Fatal(err)
	}
	if properties[socketTypeProperty] != "REP" {
		t.Errorf("properties = %v", properties)
	}

	if _, err := parseProperties(data[:len(data)-1]); err == nil {
		t.Error("truncated properties accepted")
	}
}

func TestCheckGreeting(t *testing.T) {
	if err := checkGreeting(greeting()); err != nil {
		t.Fatalf("own greeting rejected: %v", err)
	}

	oldVersion := greeting()
	oldVersion[10] = 2
	if err := checkGreeting(oldVersion); err == nil {
		t.Error("ZMTP 2 greeting accepted")
	}

	curve := greeting()
	copy(curve[mechanismOffset:], "CURVE")
	if err := checkGreeting(curve); err == nil {
		t.Error("CURVE mechanism accepted")
	}

	garbage := make([]byte, greetingSize)
	if err := checkGreeting(garbage); err == nil {
		t.Error("garbage greeting accepted")
	}
}

func TestSplitEnvelope(t *testing.T) {
	envelope, body, err := splitEnvelope([][]byte{{}, []byte("ab"), []byte("cd")})
	if err != nil {
		t.Fatal(err)
	}
	if len(envelope) != 1 || string(body) != "abcd" {
		t.Errorf("envelope = %q, body = %q", envelope, body)
	}

	_, body, err = splitEnvelope([][]byte{{}})
	if err != nil || body == nil || len(body) != 0 {
		t.Errorf("empty message: body = %v, err = %v", body, err)
	}

	if _, _, err := splitEnvelope([][]byte{[]byte("no delimiter")}); err == nil {
		t.Error("message without delimiter accepted")
	}
}
