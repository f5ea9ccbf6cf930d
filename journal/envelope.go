package journal

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// Entries are written to the journal stream inside a self-delimiting
// envelope: an 8-byte sentinel for de-synchronization detection, a
// little-endian uint32 payload length, the opaque payload, and a trailing
// little-endian uint64 echo of the journal offset at which the envelope
// began. The trailer lets a reader confirm the declared length without
// decoding the payload, and rejects envelopes relocated by corruption.

const (
	// Sentinel begins every well-formed envelope.
	Sentinel uint64 = 0x3141592653589793

	// MaxEventSize is the largest plausible payload length. Envelope headers
	// declaring more are treated as corruption.
	MaxEventSize = 4 << 20

	envelopeHeaderLength  = 8 + 4
	envelopeTrailerLength = 8

	// EnvelopeOverhead is the encoding overhead of one entry: an entry whose
	// payload is n bytes occupies n + EnvelopeOverhead bytes of the stream.
	EnvelopeOverhead = envelopeHeaderLength + envelopeTrailerLength
)

// EncodeEnvelope appends an envelope of |payload|, to be written at journal
// offset |offset|, onto |b| and returns the extended buffer.
func EncodeEnvelope(b []byte, offset uint64, payload []byte) []byte {
	var hdr [envelopeHeaderLength]byte
	binary.LittleEndian.PutUint64(hdr[0:8], Sentinel)
	binary.LittleEndian.PutUint32(hdr[8:12], uint32(len(payload)))

	b = append(b, hdr[:]...)
	b = append(b, payload...)

	var tr [envelopeTrailerLength]byte
	binary.LittleEndian.PutUint64(tr[:], offset)
	return append(b, tr[:]...)
}

// parseEnvelopeHeader reads an envelope header from the front of |b|,
// returning the declared payload length. It reports false if |b| does not
// begin with the sentinel or declares an implausible length. |b| must hold
// at least envelopeHeaderLength bytes.
func parseEnvelopeHeader(b []byte) (uint32, bool) {
	if binary.LittleEndian.Uint64(b[0:8]) != Sentinel {
		return 0, false
	}
	var length = binary.LittleEndian.Uint32(b[8:12])
	if length == 0 || length > MaxEventSize {
		return 0, false
	}
	return length, true
}

// decodeEnvelope extracts the payload of a complete raw envelope known to
// begin at journal offset |offset|, verifying its trailer echo.
func decodeEnvelope(raw []byte, offset uint64) ([]byte, error) {
	var length, ok = parseEnvelopeHeader(raw)
	if !ok {
		return nil, errors.Wrap(ErrDecode, "bad envelope header")
	}
	if uint64(len(raw)) != uint64(length)+EnvelopeOverhead {
		return nil, errors.Wrapf(ErrDecode, "envelope length mismatch (declared %d, have %d)", length, len(raw))
	}
	var echo = binary.LittleEndian.Uint64(raw[len(raw)-envelopeTrailerLength:])
	if echo != offset {
		return nil, errors.Wrapf(ErrDecode, "envelope offset echo %#x does not match offset %#x", echo, offset)
	}
	return raw[envelopeHeaderLength : len(raw)-envelopeTrailerLength], nil
}

// sentinelIndex returns the index of the first sentinel occurrence within
// |b| at or after |from|, or -1. It is the forward search used to re-acquire
// entry framing after corruption.
func sentinelIndex(b []byte, from int) int {
	for i := from; i+8 <= len(b); i++ {
		if binary.LittleEndian.Uint64(b[i:i+8]) == Sentinel {
			return i
		}
	}
	return -1
}
