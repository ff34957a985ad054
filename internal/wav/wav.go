// Copyright (c) 2015-2026 TetraOps
//
// Licensed under GPL-2.0. See LICENSE.md.

// Package wav renders G.711 A-law recordings as WAVE files: complete
// in-memory files for the persister and an append-patched on-disk file
// for the collector's live debug output.
package wav

import (
	"encoding/binary"
	"fmt"
	"os"
	"time"
)

// HeaderLen is the fixed size of the WAVE header used throughout:
// RIFF/WAVE ids, an 18-byte fmt chunk, a fact chunk and the data chunk
// header.
const HeaderLen = 58

// headerBaseSize is the RIFF content size of an empty file: "WAVE" plus
// the fmt, fact and data chunk framing.
const headerBaseSize = 4 + 26 + 12 + 8

const (
	formatALaw = 6
	sampleRate = 8000
)

// Header renders the WAVE header for an A-law recording of dataSize
// payload bytes. Stereo selects two channels with byte-interleaved
// samples; everything else is mono.
func Header(stereo bool, dataSize int) []byte {
	channels := uint16(1)
	if stereo {
		channels = 2
	}

	h := make([]byte, 0, HeaderLen)
	h = append(h, "RIFF"...)
	h = binary.LittleEndian.AppendUint32(h, uint32(headerBaseSize+dataSize))
	h = append(h, "WAVE"...)

	h = append(h, "fmt "...)
	h = binary.LittleEndian.AppendUint32(h, 18)
	h = binary.LittleEndian.AppendUint16(h, formatALaw)
	h = binary.LittleEndian.AppendUint16(h, channels)
	h = binary.LittleEndian.AppendUint32(h, sampleRate)
	h = binary.LittleEndian.AppendUint32(h, sampleRate*uint32(channels))
	h = binary.LittleEndian.AppendUint16(h, channels) // block align: 1 byte per sample
	h = binary.LittleEndian.AppendUint16(h, 8)        // bits per sample
	h = binary.LittleEndian.AppendUint16(h, 0)        // cbSize

	h = append(h, "fact"...)
	h = binary.LittleEndian.AppendUint32(h, 4)
	h = binary.LittleEndian.AppendUint32(h, uint32(dataSize))

	h = append(h, "data"...)
	h = binary.LittleEndian.AppendUint32(h, uint32(dataSize))
	return h
}

// File renders a complete WAVE file around the given A-law payload.
func File(stereo bool, data []byte) []byte {
	out := make([]byte, 0, HeaderLen+len(data))
	out = append(out, Header(stereo, len(data))...)
	return append(out, data...)
}

// Duration reports the play time of a rendered file of the given total
// size, at the stream's byte rate.
func Duration(stereo bool, fileSize int) time.Duration {
	rate := sampleRate
	if stereo {
		rate *= 2
	}
	// The RIFF content size, not the bare payload, is what the duration
	// has always been derived from.
	riffSize := fileSize - 8
	return time.Duration(float64(riffSize) / float64(rate) * float64(time.Second))
}

// Interleave merges the A and B legs of a duplex call into a stereo
// stream, one byte per channel in lockstep. Both legs must be the same
// length.
func Interleave(a, b []byte) ([]byte, error) {
	if len(a) != len(b) {
		return nil, fmt.Errorf("wav: leg lengths differ: %d vs %d", len(a), len(b))
	}
	out := make([]byte, 2*len(a))
	for i := range a {
		out[2*i] = a[i]
		out[2*i+1] = b[i]
	}
	return out, nil
}

// AppendFrame appends one mono A-law frame to the file at path, creating
// it with an empty header first if needed, then patches the header
// sizes in place. This is the collector's per-call debug output, so it
// favors simplicity over write batching.
func AppendFrame(path string, frame []byte) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.WriteFile(path, Header(false, 0), 0o644); err != nil {
			return err
		}
	}

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Seek(0, 2); err != nil {
		return err
	}
	if _, err := f.Write(frame); err != nil {
		return err
	}

	hdr := make([]byte, HeaderLen)
	if _, err := f.ReadAt(hdr, 0); err != nil {
		return err
	}
	n := uint32(len(frame))
	patch := func(off int) {
		binary.LittleEndian.PutUint32(hdr[off:], binary.LittleEndian.Uint32(hdr[off:])+n)
	}
	patch(4)  // riffSize
	patch(46) // dwSampleLength
	patch(54) // dataSize

	_, err = f.WriteAt(hdr, 0)
	return err
}
