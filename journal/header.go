package journal

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"
)

// Header is the persisted journal header record: stream pointers bounding
// the live region of the journal, and the stream layout from which object
// names and stride arithmetic are derived.
type Header struct {
	Version     uint32 `json:"version"`
	Trim        uint64 `json:"trim"`
	Expire      uint64 `json:"expire"`
	Write       uint64 `json:"write"`
	StrideSize  uint64 `json:"stride_size"`
	StrideCount uint32 `json:"stride_count"`
	Pool        int64  `json:"pool"`
}

const (
	// HeaderVersion is the current header encoding version.
	HeaderVersion = 1

	// DefaultStrideSize is the stride size assumed when the journal header
	// is missing or undecodable and layout must still be chosen.
	DefaultStrideSize = 4 << 20

	// HeaderEncodedLength is the fixed size of an encoded Header.
	HeaderEncodedLength = 8 + 4 + 8 + 8 + 8 + 8 + 4 + 8
)

// headerMagic precedes every encoded Header.
var headerMagic = [8]byte{'M', 'D', 'J', 'H', 'D', 'R', 0x00, 0x01}

// Encode returns the fixed little-endian binary form of the Header.
func (h Header) Encode() []byte {
	var b = make([]byte, HeaderEncodedLength)
	copy(b[0:8], headerMagic[:])
	binary.LittleEndian.PutUint32(b[8:12], h.Version)
	binary.LittleEndian.PutUint64(b[12:20], h.Trim)
	binary.LittleEndian.PutUint64(b[20:28], h.Expire)
	binary.LittleEndian.PutUint64(b[28:36], h.Write)
	binary.LittleEndian.PutUint64(b[36:44], h.StrideSize)
	binary.LittleEndian.PutUint32(b[44:48], h.StrideCount)
	binary.LittleEndian.PutUint64(b[48:56], uint64(h.Pool))
	return b
}

// DecodeHeader decodes and self-consistency checks a Header. It is total
// over arbitrary input: malformed bytes return an error caused by ErrDecode,
// never a panic.
func DecodeHeader(b []byte) (Header, error) {
	var h Header

	if len(b) < HeaderEncodedLength {
		return h, errors.Wrapf(ErrDecode, "header is truncated (%d of %d bytes)", len(b), HeaderEncodedLength)
	}
	if !bytes.Equal(b[0:8], headerMagic[:]) {
		return h, errors.Wrap(ErrDecode, "bad header magic")
	}
	h.Version = binary.LittleEndian.Uint32(b[8:12])
	h.Trim = binary.LittleEndian.Uint64(b[12:20])
	h.Expire = binary.LittleEndian.Uint64(b[20:28])
	h.Write = binary.LittleEndian.Uint64(b[28:36])
	h.StrideSize = binary.LittleEndian.Uint64(b[36:44])
	h.StrideCount = binary.LittleEndian.Uint32(b[44:48])
	h.Pool = int64(binary.LittleEndian.Uint64(b[48:56]))

	if err := h.Validate(); err != nil {
		return h, err
	}
	return h, nil
}

// Validate checks the Header's self-consistency invariants.
func (h Header) Validate() error {
	if h.Version != HeaderVersion {
		return errors.Wrapf(ErrDecode, "unsupported header version %d", h.Version)
	} else if h.StrideSize == 0 {
		return errors.Wrap(ErrDecode, "header stride size is zero")
	} else if h.Trim > h.Expire || h.Expire > h.Write {
		return errors.Wrapf(ErrDecode, "header pointers are mis-ordered (trim %d, expire %d, write %d)",
			h.Trim, h.Expire, h.Write)
	}
	return nil
}
