package journal

import (
	"context"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/sennajox/journaltool/stores"
)

// Journal binds a store and rank pair: the context which every diagnosis
// and repair operation runs against. Callers construct one per invocation
// and thread it explicitly.
type Journal struct {
	Store stores.Store
	Rank  int
}

// NewScanner returns a single-use Scanner over the Journal.
func (j Journal) NewScanner(filter *Filter) *Scanner {
	return NewScanner(j.Store, j.Rank, filter)
}

// EraseRegion overwrites the byte range [pos, pos+length) of the journal
// stream with zeroes. Only strides whose objects exist are touched, and only
// the portion of each which is actually populated: missing strides remain
// gaps, and no object is created or extended. Any write failure aborts
// immediately, since a partial erase leaves the journal in a state worse
// than either endpoint.
func (j Journal) EraseRegion(ctx context.Context, h *Header, pos, length uint64) error {
	if h == nil || h.Validate() != nil {
		return errors.Wrap(ErrInvalidArgument, "erase requires a valid header")
	}
	if length == 0 {
		return errors.Wrap(ErrInvalidArgument, "erase region is empty")
	}
	var (
		stride = h.StrideSize
		end    = pos + length
	)
	for idx := pos / stride; idx*stride < end; idx++ {
		var name = StrideObject(j.Rank, idx)

		var size, err = j.Store.Stat(ctx, name)
		if errors.Cause(err) == stores.ErrNotFound {
			continue // A gap holds nothing to erase.
		} else if err != nil {
			return errors.Wrapf(err, "stat %s", name)
		}

		// Intersect [pos, end) with the populated extent of this stride.
		var lo, hi = idx * stride, idx*stride + uint64(size)
		if pos > lo {
			lo = pos
		}
		if end < hi {
			hi = end
		}
		if lo >= hi {
			continue
		}

		log.WithFields(log.Fields{
			"object": name,
			"start":  lo,
			"end":    hi,
		}).Info("zero-filling region")

		if err = j.Store.Write(ctx, name, int64(lo-idx*stride), make([]byte, hi-lo)); err != nil {
			return errors.Wrapf(err, "zero-filling %s", name)
		}
	}
	return nil
}

// Reset discards the journal's contents: every data object under the journal
// prefix is removed and a fresh header is written in its place. When the
// prior header was valid its write offset is retained, rounded up to a
// stride boundary, so that identifiers of future entries don't collide with
// any which may have escaped into downstream consumers. Otherwise the
// journal restarts at offset zero.
func (j Journal) Reset(ctx context.Context, prior *ScanResult) error {
	var h = Header{
		Version:     HeaderVersion,
		StrideSize:  DefaultStrideSize,
		StrideCount: 1,
	}
	if prior != nil && prior.HeaderValid {
		h.StrideSize = prior.Header.StrideSize
		h.StrideCount = prior.Header.StrideCount
		h.Pool = prior.Header.Pool

		var write = prior.Header.Write
		if rem := write % h.StrideSize; rem != 0 {
			write += h.StrideSize - rem
		}
		h.Trim, h.Expire, h.Write = write, write, write
	}

	var prefix = JournalPrefix(j.Rank)
	var err = j.Store.List(ctx, prefix, func(name string) error {
		if _, ok := parseStrideIndex(name); !ok {
			return nil // Not a data object.
		}
		log.WithField("object", prefix+name).Info("removing journal object")
		return j.Store.Remove(ctx, prefix+name)
	})
	if err != nil {
		return errors.Wrap(err, "removing journal objects")
	}

	if err = j.Store.Write(ctx, HeaderObject(j.Rank), 0, h.Encode()); err != nil {
		return errors.Wrap(err, "writing reset header")
	}
	log.WithFields(log.Fields{
		"rank":  j.Rank,
		"write": h.Write,
	}).Info("journal reset")
	return nil
}

// Recover scans the journal, synthesizing and persisting a replacement
// header first if the stored one is missing or undecodable. The layout of a
// synthesized header is inferred from the data objects which exist: the
// default stride size, trim at the start of the first stride, and write at
// the end of the last. The returned result reflects a scan under the
// now-valid header.
func (j Journal) Recover(ctx context.Context, filter *Filter) (*ScanResult, error) {
	var s = j.NewScanner(filter)
	if err := s.Scan(ctx); err != nil {
		return nil, err
	}
	if s.HeaderValid {
		return s.Result(), nil
	}

	var first, last uint64
	var found bool
	var prefix = JournalPrefix(j.Rank)
	var err = j.Store.List(ctx, prefix, func(name string) error {
		var idx, ok = parseStrideIndex(name)
		if !ok {
			return nil
		}
		if !found || idx < first {
			first = idx
		}
		if !found || idx > last {
			last = idx
		}
		found = true
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "listing journal objects")
	}

	var h = Header{
		Version:     HeaderVersion,
		StrideSize:  DefaultStrideSize,
		StrideCount: 1,
	}
	if found {
		h.Trim = first * h.StrideSize
		h.Expire = h.Trim

		var size, serr = j.Store.Stat(ctx, StrideObject(j.Rank, last))
		if serr != nil {
			return nil, errors.Wrap(serr, "sizing last journal object")
		}
		h.Write = last*h.StrideSize + uint64(size)
	}

	log.WithFields(log.Fields{
		"rank":  j.Rank,
		"trim":  h.Trim,
		"write": h.Write,
	}).Warn("journal header was unusable; persisting a synthesized replacement")

	if err = j.Store.Write(ctx, HeaderObject(j.Rank), 0, h.Encode()); err != nil {
		return nil, errors.Wrap(err, "writing synthesized header")
	}

	s = j.NewScanner(filter)
	if err = s.Scan(ctx); err != nil {
		return nil, err
	}
	return s.Result(), nil
}
