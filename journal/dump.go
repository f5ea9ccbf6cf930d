package journal

import (
	"context"
	"encoding/binary"
	"io"
	"sort"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sennajox/journaltool/stores"
)

// A journal dump is a flat container: an 8-byte magic, the encoded journal
// header, and then each exported entry as a fixed record prefix (the entry's
// absolute journal offset and its raw envelope size) followed by its raw
// envelope bytes, verbatim. Offsets are preserved so an import reconstructs
// the journal byte-for-byte, envelope trailer echoes included.

var dumpMagic = [8]byte{'M', 'D', 'J', 'D', 'U', 'M', 'P', 0x01}

const dumpRecordPrefixLength = 8 + 4

// Export recovers the journal and writes every valid entry to a dump file at
// |path|. A ".gz" suffix selects gzip compression of the container. Damaged
// regions of the journal are skipped, logged, and do not fail the export:
// salvaging the readable remainder is the point.
func (j Journal) Export(ctx context.Context, fs afero.Fs, path string) error {
	var result, err = j.Recover(ctx, nil)
	if err != nil {
		return err
	}

	f, err := fs.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating %s", path)
	}
	defer f.Close()

	var w io.Writer = f
	var gz *gzip.Writer
	if strings.HasSuffix(path, ".gz") {
		gz = gzip.NewWriter(f)
		w = gz
	}

	if _, err = w.Write(dumpMagic[:]); err != nil {
		return errors.Wrap(err, "writing dump magic")
	}
	if _, err = w.Write(result.Header.Encode()); err != nil {
		return errors.Wrap(err, "writing dump header")
	}

	// Events is keyed by offset; walk it in stream order.
	var offsets = make([]uint64, 0, len(result.Events))
	for pos := range result.Events {
		offsets = append(offsets, pos)
	}
	sort.Slice(offsets, func(a, b int) bool { return offsets[a] < offsets[b] })

	var prefix [dumpRecordPrefixLength]byte
	for _, pos := range offsets {
		var rec = result.Events[pos]

		raw, err := j.readRaw(ctx, result.Header, pos, uint64(rec.RawSize))
		if err != nil {
			log.WithFields(log.Fields{"offset": pos, "err": err}).
				Warn("skipping entry whose raw bytes could not be re-read")
			continue
		}

		binary.LittleEndian.PutUint64(prefix[0:8], pos)
		binary.LittleEndian.PutUint32(prefix[8:12], rec.RawSize)

		if _, err = w.Write(prefix[:]); err != nil {
			return errors.Wrap(err, "writing dump record")
		}
		if _, err = w.Write(raw); err != nil {
			return errors.Wrap(err, "writing dump record")
		}
	}

	if gz != nil {
		if err = gz.Close(); err != nil {
			return errors.Wrap(err, "finalizing gzip stream")
		}
	}
	if err = f.Close(); err != nil {
		return errors.Wrapf(err, "closing %s", path)
	}

	log.WithFields(log.Fields{
		"path":    path,
		"entries": len(offsets),
	}).Info("journal exported")
	return nil
}

// Import replaces the journal's contents with those of a dump file: prior
// data objects are removed, the dump's header is written, and each record's
// raw bytes land at their original journal offsets. Unlike Export, any fault
// is fatal: a partial import is not a journal.
func (j Journal) Import(ctx context.Context, fs afero.Fs, path string) error {
	f, err := fs.Open(path)
	if err != nil {
		return errors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, gerr := gzip.NewReader(f)
		if gerr != nil {
			return errors.Wrapf(gerr, "reading gzip stream of %s", path)
		}
		defer gz.Close()
		r = gz
	}

	var magic [8]byte
	if _, err = io.ReadFull(r, magic[:]); err != nil {
		return errors.Wrapf(err, "reading dump magic")
	}
	if magic != dumpMagic {
		return errors.Wrapf(ErrDecode, "%s is not a journal dump", path)
	}

	var hb = make([]byte, HeaderEncodedLength)
	if _, err = io.ReadFull(r, hb); err != nil {
		return errors.Wrap(err, "reading dump header")
	}
	h, err := DecodeHeader(hb)
	if err != nil {
		return err
	}

	// Clear prior data objects so stale bytes can't bleed into gaps between
	// imported records.
	var prefix = JournalPrefix(j.Rank)
	err = j.Store.List(ctx, prefix, func(name string) error {
		if _, ok := parseStrideIndex(name); !ok {
			return nil
		}
		return j.Store.Remove(ctx, prefix+name)
	})
	if err != nil {
		return errors.Wrap(err, "removing prior journal objects")
	}

	if err = j.Store.Write(ctx, HeaderObject(j.Rank), 0, h.Encode()); err != nil {
		return errors.Wrap(err, "writing imported header")
	}

	var pfx [dumpRecordPrefixLength]byte
	var entries int
	for {
		if _, err = io.ReadFull(r, pfx[:]); err == io.EOF {
			break
		} else if err != nil {
			return errors.Wrap(err, "reading dump record")
		}
		var pos = binary.LittleEndian.Uint64(pfx[0:8])
		var size = binary.LittleEndian.Uint32(pfx[8:12])

		if size < EnvelopeOverhead || size > MaxEventSize+EnvelopeOverhead {
			return errors.Wrapf(ErrDecode, "dump record at %#x declares implausible size %d", pos, size)
		}
		var raw = make([]byte, size)
		if _, err = io.ReadFull(r, raw); err != nil {
			return errors.Wrap(err, "reading dump record")
		}
		if err = j.writeRaw(ctx, h, pos, raw); err != nil {
			return err
		}
		entries++
	}

	log.WithFields(log.Fields{
		"path":    path,
		"entries": entries,
	}).Info("journal imported")
	return nil
}

// readRaw fetches the raw journal bytes [pos, pos+size), stitching across
// stride boundaries.
func (j Journal) readRaw(ctx context.Context, h *Header, pos, size uint64) ([]byte, error) {
	var out = make([]byte, 0, size)
	var end = pos + size

	for pos < end {
		var (
			idx  = pos / h.StrideSize
			rel  = pos - idx*h.StrideSize
			n    = end - pos
			name = StrideObject(j.Rank, idx)
		)
		if rel+n > h.StrideSize {
			n = h.StrideSize - rel
		}

		var b, err = j.Store.Read(ctx, name, int64(rel), int64(n))
		if err != nil {
			return nil, errors.Wrapf(err, "reading %s", name)
		}
		if uint64(len(b)) != n {
			return nil, errors.Wrapf(stores.ErrNotFound, "%s holds %d of %d bytes", name, len(b), n)
		}
		out = append(out, b...)
		pos += n
	}
	return out, nil
}

// writeRaw writes |data| at journal offset |pos|, splitting across stride
// boundaries and creating objects as needed.
func (j Journal) writeRaw(ctx context.Context, h Header, pos uint64, data []byte) error {
	for len(data) != 0 {
		var (
			idx  = pos / h.StrideSize
			rel  = pos - idx*h.StrideSize
			n    = uint64(len(data))
			name = StrideObject(j.Rank, idx)
		)
		if rel+n > h.StrideSize {
			n = h.StrideSize - rel
		}
		if err := j.Store.Write(ctx, name, int64(rel), data[:n]); err != nil {
			return errors.Wrapf(err, "writing %s", name)
		}
		data, pos = data[n:], pos+n
	}
	return nil
}
