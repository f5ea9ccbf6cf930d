package journal

import (
	"context"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/sennajox/journaltool/stores"
)

const (
	// maxConsecutiveGaps bounds a scan whose header is missing or invalid:
	// with no recorded write offset to stop at, the scan ends once this
	// many consecutive missing strides are taken as end-of-journal.
	maxConsecutiveGaps = 4

	// readAttempts bounds retries of an object read which fails with a
	// transport error. NotFound is never retried.
	readAttempts = 3
)

// Range is a half-open byte range [Start, End) of the journal stream.
type Range struct {
	Start uint64 `json:"start"`
	End   uint64 `json:"end"`
}

// EventRecord pairs a decoded entry with its raw encoded size: the stream
// bytes it occupies from its start offset, envelope overhead included.
type EventRecord struct {
	Entry   *Entry `json:"entry"`
	RawSize uint32 `json:"raw_size"`
}

// ScanResult is the aggregated output of one scan. It exclusively owns its
// decoded entries for its lifetime; results are produced fresh by each scan
// and never partially reused.
type ScanResult struct {
	HeaderPresent bool    `json:"header_present"`
	HeaderValid   bool    `json:"header_valid"`
	Header        *Header `json:"header,omitempty"`

	// ObjectsValid are names of objects fetched successfully, in walk order.
	ObjectsValid []string `json:"objects_valid"`
	// ObjectsMissing are stride indexes whose objects were not found.
	ObjectsMissing []uint64 `json:"objects_missing"`
	// RangesInvalid are maximal disjoint byte ranges in which no valid
	// envelope could be located.
	RangesInvalid []Range `json:"ranges_invalid"`
	// EventsValid are offsets of well-formed entries, whether or not they
	// passed the filter, in strictly increasing order.
	EventsValid []uint64 `json:"events_valid"`
	// Events maps offsets of entries which passed the filter to their
	// decoded records.
	Events map[uint64]EventRecord `json:"events"`
}

// IsHealthy is true iff the header is present and valid and the scan found
// no missing objects and no invalid ranges.
func (r *ScanResult) IsHealthy() bool {
	return r.HeaderPresent && r.HeaderValid &&
		len(r.ObjectsMissing) == 0 && len(r.RangesInvalid) == 0
}

type scanState int

const (
	stateNotScanned scanState = iota
	stateHeaderScanned
	stateEventsScanned
)

// Scanner performs one sequential, corruption-tolerant walk of a journal.
// A Scanner is single-use and must not be copied: obtain a new Scanner for
// each scan.
type Scanner struct {
	noCopy noCopy

	store  stores.Store
	rank   int
	filter *Filter
	state  scanState

	// corruptFrom is the start of the invalid span being skipped, if any.
	corruptFrom *uint64

	ScanResult
}

// NewScanner returns a Scanner over the rank's journal in the store, bound
// to the Filter. A nil filter matches all entries.
func NewScanner(store stores.Store, rank int, filter *Filter) *Scanner {
	if filter == nil {
		filter = &Filter{}
	}
	return &Scanner{
		store:  store,
		rank:   rank,
		filter: filter,
		ScanResult: ScanResult{
			Events: make(map[uint64]EventRecord),
		},
	}
}

// Scan runs the header phase then the event phase.
func (s *Scanner) Scan(ctx context.Context) error {
	if err := s.ScanHeader(ctx); err != nil {
		return err
	}
	return s.ScanEvents(ctx)
}

// ScanHeader fetches and decodes the journal header object. A missing
// object leaves the header absent; an undecodable one leaves it present but
// invalid. Neither is an error: only transport failures are.
func (s *Scanner) ScanHeader(ctx context.Context) error {
	if s.state != stateNotScanned {
		return errors.New("scanner is single-use: header phase already ran")
	}
	s.state = stateHeaderScanned

	var b, err = s.readObject(ctx, HeaderObject(s.rank), HeaderEncodedLength)
	if errors.Cause(err) == stores.ErrNotFound {
		log.WithField("rank", s.rank).Warn("journal header object not found")
		return nil
	} else if err != nil {
		return err
	}
	s.HeaderPresent = true

	h, err := DecodeHeader(b)
	if err != nil {
		log.WithFields(log.Fields{"rank": s.rank, "err": err}).Warn("journal header is undecodable")
		return nil
	}
	s.Header, s.HeaderValid = &h, true
	return nil
}

// ScanEvents performs the forward walk of journal strides, extracting
// entries from envelopes and recording gaps and corrupt ranges as it goes.
// The header phase must have run first, even unsuccessfully, to fix the
// stride size and start offset.
func (s *Scanner) ScanEvents(ctx context.Context) error {
	if s.state == stateNotScanned {
		return errors.New("header phase has not run")
	} else if s.state == stateEventsScanned {
		return errors.New("scanner is single-use: event phase already ran")
	}
	s.state = stateEventsScanned

	var (
		stride = uint64(DefaultStrideSize)
		pos    uint64 // Offset of the next unexamined stream byte.
		bound  uint64 // Write offset at which to stop; 0 in heuristic mode.
	)
	if s.HeaderValid {
		stride, pos, bound = s.Header.StrideSize, s.Header.Trim, s.Header.Write
	}

	var (
		buf  []byte // Fetched but unconsumed stream bytes, beginning at |pos|.
		gaps int    // Consecutive missing strides.
		idx  = pos / stride
	)

	for bound == 0 || pos < bound {
		var name = StrideObject(s.rank, idx)
		var obj, err = s.readObject(ctx, name, int64(stride))

		if errors.Cause(err) == stores.ErrNotFound {
			// A gap. Entry bytes buffered ahead of it cannot complete.
			if len(buf) != 0 {
				s.markCorrupt(pos)
			}
			s.flushCorrupt(idx * stride)
			s.ObjectsMissing = append(s.ObjectsMissing, idx)

			buf, pos = nil, (idx+1)*stride
			idx, gaps = idx+1, gaps+1

			if bound == 0 && gaps == maxConsecutiveGaps {
				// Trailing consecutive gaps are the end-of-journal heuristic
				// firing, not damage: drop the probing strides again.
				s.ObjectsMissing = s.ObjectsMissing[:len(s.ObjectsMissing)-maxConsecutiveGaps]
				return nil
			}
			continue
		} else if err != nil {
			return err
		}

		s.ObjectsValid = append(s.ObjectsValid, name)
		gaps = 0

		// Append the stride's bytes from where buffered data ends. The
		// buffer, when non-empty, holds a partial entry carried over from
		// prior strides and ends exactly at this stride's start; otherwise
		// the walk may begin mid-stride, at the trim offset.
		if rel := pos + uint64(len(buf)) - idx*stride; rel < uint64(len(obj)) {
			buf = append(buf, obj[rel:]...)
		}
		buf, pos = s.consume(buf, pos, bound)

		var tail = idx*stride + uint64(len(obj)) // First absent byte of the stride.
		if uint64(len(obj)) < stride {
			if bound == 0 {
				// A short object in heuristic mode is the end of written data.
				break
			}
			if tail < bound {
				// The header promises bytes this short object doesn't hold.
				s.markCorrupt(pos)
				buf, pos = nil, (idx+1)*stride
				if pos > bound {
					pos = bound
				}
				s.flushCorrupt(pos)
			}
		}
		idx++
	}

	// Whatever remains buffered or mid-span is unusable.
	if len(buf) != 0 {
		s.markCorrupt(pos)
	}
	var end = pos + uint64(len(buf))
	if bound != 0 && end > bound {
		end = bound
	}
	s.flushCorrupt(end)
	return nil
}

// consume extracts envelopes from the front of |buf|, whose first byte sits
// at stream offset |pos|, until more data is needed or |bound| is reached.
// It returns the unconsumed remainder and the advanced position.
func (s *Scanner) consume(buf []byte, pos, bound uint64) ([]byte, uint64) {
	for {
		if bound != 0 && pos >= bound {
			return nil, pos
		}
		if len(buf) < envelopeHeaderLength {
			return buf, pos // Need more data.
		}

		var length, ok = parseEnvelopeHeader(buf)
		var total = uint64(length) + EnvelopeOverhead

		if ok && uint64(len(buf)) < total {
			return buf, pos // Entry continues in the next stride.
		}

		var payload []byte
		var err error
		if ok {
			payload, err = decodeEnvelope(buf[:total], pos)
		}
		if !ok || err != nil {
			// Mis-framed, or a plausible header with an inconsistent
			// trailer. Search forward for the next plausible envelope.
			s.markCorrupt(pos)
			if i := sentinelIndex(buf, 1); i != -1 {
				buf, pos = buf[i:], pos+uint64(i)
			} else {
				// Keep a potential partial sentinel at the tail.
				var keep = len(buf) - 7
				buf, pos = buf[keep:], pos+uint64(keep)
				return buf, pos
			}
			continue
		}

		// A well-formed envelope closes any open corrupt span.
		s.flushCorrupt(pos)

		if entry, derr := DecodeEntry(payload); derr != nil {
			// Sound envelope, rotten payload. Record the span and move on.
			log.WithFields(log.Fields{"offset": pos, "err": derr}).Warn("entry payload is undecodable")
			s.markCorrupt(pos)
			s.flushCorrupt(pos + total)
		} else {
			s.EventsValid = append(s.EventsValid, pos)
			if s.filter.Apply(pos, entry) {
				s.Events[pos] = EventRecord{Entry: entry, RawSize: uint32(total)}
			}
		}
		buf, pos = buf[total:], pos+total
	}
}

// markCorrupt begins an invalid span at |at| unless one is already open.
func (s *Scanner) markCorrupt(at uint64) {
	if s.corruptFrom == nil {
		s.corruptFrom = &at
	}
}

// flushCorrupt closes any open invalid span at |end|, merging with a
// touching predecessor so recorded ranges stay maximal and disjoint.
func (s *Scanner) flushCorrupt(end uint64) {
	if s.corruptFrom == nil {
		return
	}
	var start = *s.corruptFrom
	s.corruptFrom = nil

	if end <= start {
		return
	}
	if n := len(s.RangesInvalid); n != 0 && s.RangesInvalid[n-1].End == start {
		s.RangesInvalid[n-1].End = end
	} else {
		s.RangesInvalid = append(s.RangesInvalid, Range{Start: start, End: end})
	}
}

// IsReadable is weaker than IsHealthy: the header is usable for layout and
// the first live stride is present, sufficient to attempt sequential replay
// despite later damage.
func (s *Scanner) IsReadable() bool {
	if !s.HeaderValid {
		return false
	}
	if s.Header.Trim == s.Header.Write {
		return true // An empty journal reads trivially.
	}
	var first = StrideObject(s.rank, s.Header.Trim/s.Header.StrideSize)
	for _, name := range s.ObjectsValid {
		if name == first {
			return true
		}
	}
	return false
}

// Result returns the scan's report.
func (s *Scanner) Result() *ScanResult { return &s.ScanResult }

// readObject fetches up to |length| bytes of an object, retrying transport
// errors a bounded number of times. NotFound passes through immediately.
func (s *Scanner) readObject(ctx context.Context, name string, length int64) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt != readAttempts; attempt++ {
		var b, err = s.store.Read(ctx, name, 0, length)
		if err == nil || errors.Cause(err) == stores.ErrNotFound {
			return b, err
		}
		lastErr = err
		log.WithFields(log.Fields{
			"object":  name,
			"attempt": attempt,
			"err":     err,
		}).Warn("retrying object read")
	}
	return nil, errors.Wrapf(lastErr, "reading object %s", name)
}

// noCopy triggers `go vet` copylocks checks on types which embed it.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}
