// Copyright (c) 2015-2026 TetraOps
//
// Licensed under GPL-2.0. See LICENSE.md.
package logapi

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// DefaultBufferSize is the recommended rolling-buffer capacity. A single
// record can never exceed the largest signaling record (680 bytes), so
// 4 KiB leaves ample room for datagram bursts.
const DefaultBufferSize = 4096

// ErrBufferOverflow reports that a datagram cannot be appended without
// exceeding the rolling buffer. It only fires when the unconsumed tail
// plus the new datagram exceed capacity, which means a single record
// larger than the buffer: a fatal configuration error.
var ErrBufferOverflow = errors.New("logapi: rolling buffer overflow")

// Parser extracts signaling and voice events from a fragmented UDP byte
// stream. Fragments carried over from a previous datagram are compacted
// to the head of the buffer, so a record split across datagrams is never
// dropped.
type Parser struct {
	buf []byte
	n   int // valid bytes in buf

	// clock stamps events at header match; injectable for tests.
	clock func() time.Time
}

// NewParser allocates a parser with the given rolling-buffer capacity
// (DefaultBufferSize when zero or negative).
func NewParser(capacity int) *Parser {
	if capacity <= 0 {
		capacity = DefaultBufferSize
	}
	return &Parser{
		buf:   make([]byte, capacity),
		n:     0,
		clock: time.Now,
	}
}

// Pending returns the number of unconsumed bytes carried in the buffer.
func (p *Parser) Pending() int { return p.n }

// Feed appends one datagram payload and scans the buffer for complete
// records. It returns every event extracted, in wire order. An empty
// datagram is a no-op.
func (p *Parser) Feed(data []byte) ([]Event, error) {
	if len(data) == 0 {
		return nil, nil
	}
	if p.n+len(data) > len(p.buf) {
		return nil, fmt.Errorf("%w: %d pending + %d incoming > %d capacity",
			ErrBufferOverflow, p.n, len(data), len(p.buf))
	}
	copy(p.buf[p.n:], data)
	p.n += len(data)

	events := p.scan()
	return events, nil
}

// scan walks the buffer emitting events until fewer than 4 bytes remain
// or the next record is incomplete, then compacts the tail to offset 0.
func (p *Parser) scan() []Event {
	var events []Event
	off := 0

	for p.n-off >= 4 {
		sig := binary.LittleEndian.Uint32(p.buf[off:])

		switch sig {
		case SignalingSignature:
			if p.n-off < HeaderLen {
				// Header split across datagrams; await the rest.
				goto done
			}
			id := MsgID(p.buf[off+7])
			size, known := RecordSize(id)
			if !known {
				// Unknown id: record length is unknowable, so favor
				// resynchronization over guessing.
				off++
				continue
			}
			if p.n-off < size {
				goto done
			}
			at := p.clock()
			rec, err := DecodeRecord(p.buf[off : off+size])
			if err == nil {
				events = append(events, Event{At: at, Record: rec})
			}
			off += size

		case VoiceSignature:
			if p.n-off < VoicePrefixLen+G711FrameLen {
				goto done
			}
			at := p.clock()
			vf, err := DecodeVoicePrefix(p.buf[off : off+VoicePrefixLen])
			if err == nil && vf.Payload1Kind == PayloadG711Alaw {
				vf.Payload = make([]byte, G711FrameLen)
				copy(vf.Payload, p.buf[off+VoicePrefixLen:off+VoicePrefixLen+G711FrameLen])
				events = append(events, Event{At: at, Voice: vf})
			}
			// Non-G.711 payloads are skipped; the advance is fixed either way.
			off += VoicePrefixLen + G711FrameLen

		default:
			// Junk byte: resynchronize one byte at a time.
			off++
		}
	}

done:
	if off > 0 {
		copy(p.buf, p.buf[off:p.n])
		p.n -= off
	}
	return events
}
