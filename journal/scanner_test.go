package journal

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sennajox/journaltool/stores"
)

// journalFixture builds journals in a MemoryStore, tracking the offset and
// raw size of each appended entry so tests can assert against exact stream
// positions.
type journalFixture struct {
	Journal
	store   *stores.MemoryStore
	header  Header
	offsets []uint64
	sizes   []uint32
}

func newJournalFixture(strideSize uint64) *journalFixture {
	var store = stores.NewMemoryStore()
	return &journalFixture{
		Journal: Journal{Store: store, Rank: 0},
		store:   store,
		header:  Header{Version: HeaderVersion, StrideSize: strideSize, StrideCount: 1},
	}
}

func (f *journalFixture) append(t *testing.T, e Entry) {
	var payload, err = e.Encode()
	require.NoError(t, err)

	var raw = EncodeEnvelope(nil, f.header.Write, payload)
	require.NoError(t, f.writeRaw(context.Background(), f.header, f.header.Write, raw))

	f.offsets = append(f.offsets, f.header.Write)
	f.sizes = append(f.sizes, uint32(len(raw)))
	f.header.Write += uint64(len(raw))
}

// seal persists the fixture's header, completing the journal.
func (f *journalFixture) seal(t *testing.T) {
	require.NoError(t, f.store.Write(context.Background(), HeaderObject(f.Rank), 0, f.header.Encode()))
}

// zero overwrites stream bytes [from, to) with zeroes, simulating corruption.
func (f *journalFixture) zero(t *testing.T, from, to uint64) {
	require.NoError(t, f.writeRaw(context.Background(), f.header, from, make([]byte, to-from)))
}

func updateEntry(i int) Entry {
	return Entry{Type: EventUpdate, Detail: fmt.Sprintf("entry-%02d", i)}
}

func TestScanOfHealthyJournal(t *testing.T) {
	var f = newJournalFixture(64)
	for i := 0; i != 5; i++ {
		f.append(t, updateEntry(i))
	}
	f.seal(t)

	var s = f.NewScanner(nil)
	require.NoError(t, s.Scan(context.Background()))

	assert.True(t, s.HeaderPresent)
	assert.True(t, s.HeaderValid)
	assert.Equal(t, f.header, *s.Header)

	assert.Equal(t, f.offsets, s.EventsValid)
	assert.Empty(t, s.ObjectsMissing)
	assert.Empty(t, s.RangesInvalid)
	assert.True(t, s.IsHealthy())
	assert.True(t, s.IsReadable())

	require.Len(t, s.Events, 5)
	for i, pos := range f.offsets {
		var rec, ok = s.Events[pos]
		require.True(t, ok)
		assert.Equal(t, updateEntry(i).Detail, rec.Entry.Detail)
		assert.Equal(t, f.sizes[i], rec.RawSize)
	}

	// Every populated stride was visited by name.
	var strides = (f.header.Write + 63) / 64
	require.Len(t, s.ObjectsValid, int(strides))
	for i, name := range s.ObjectsValid {
		assert.Equal(t, StrideObject(0, uint64(i)), name)
	}
}

func TestScanOfEntriesSpanningStrides(t *testing.T) {
	var f = newJournalFixture(32)

	// Each small entry straddles at least one stride boundary, and the
	// oversized entry covers several whole strides on its own.
	for i := 0; i != 3; i++ {
		f.append(t, updateEntry(i))
	}
	f.append(t, Entry{Type: EventUpdate, Detail: strings.Repeat("x", 200)})
	f.append(t, updateEntry(4))
	f.seal(t)

	var s = f.NewScanner(nil)
	require.NoError(t, s.Scan(context.Background()))

	assert.Equal(t, f.offsets, s.EventsValid)
	assert.Empty(t, s.ObjectsMissing)
	assert.Empty(t, s.RangesInvalid)
	assert.True(t, s.IsHealthy())

	require.Len(t, s.Events, 5)
	for i, pos := range f.offsets {
		assert.Equal(t, f.sizes[i], s.Events[pos].RawSize)
	}
}

func TestScanOfEmptyJournal(t *testing.T) {
	var f = newJournalFixture(64)
	f.seal(t)

	var s = f.NewScanner(nil)
	require.NoError(t, s.Scan(context.Background()))

	assert.True(t, s.IsHealthy())
	assert.True(t, s.IsReadable())
	assert.Empty(t, s.EventsValid)
}

func TestScanWithMissingObject(t *testing.T) {
	var f = newJournalFixture(64)
	for i := 0; i != 5; i++ {
		f.append(t, updateEntry(i))
	}
	f.seal(t)

	// Drop the object holding stream bytes [64, 128). Entry 1 straddles into
	// it, entry 2 begins within it, and entry 3 begins after it.
	require.NoError(t, f.store.Remove(context.Background(), StrideObject(0, 1)))

	var s = f.NewScanner(nil)
	require.NoError(t, s.Scan(context.Background()))

	assert.Equal(t, []uint64{1}, s.ObjectsMissing)
	assert.False(t, s.IsHealthy())
	assert.True(t, s.IsReadable())

	// Entries clear of the gap survive, at their original offsets.
	assert.Equal(t, []uint64{f.offsets[0], f.offsets[3], f.offsets[4]}, s.EventsValid)

	// The straddling entry's head is invalid up to the gap, and bytes after
	// the gap are invalid until framing re-acquires at entry 3.
	assert.Equal(t, []Range{
		{Start: f.offsets[1], End: 64},
		{Start: 128, End: f.offsets[3]},
	}, s.RangesInvalid)
}

func TestScanWithCorruptRegion(t *testing.T) {
	var f = newJournalFixture(64)
	for i := 0; i != 5; i++ {
		f.append(t, updateEntry(i))
	}
	f.seal(t)

	// Clobber entry 2's sentinel. Framing is lost at its offset and
	// re-acquired at entry 3's sentinel.
	f.zero(t, f.offsets[2], f.offsets[2]+8)

	var s = f.NewScanner(nil)
	require.NoError(t, s.Scan(context.Background()))

	assert.Equal(t, []uint64{f.offsets[0], f.offsets[1], f.offsets[3], f.offsets[4]}, s.EventsValid)
	assert.Equal(t, []Range{{Start: f.offsets[2], End: f.offsets[3]}}, s.RangesInvalid)
	assert.Empty(t, s.ObjectsMissing)
	assert.False(t, s.IsHealthy())
	assert.True(t, s.IsReadable())
}

func TestScanWithCorruptionSpanningEntries(t *testing.T) {
	var f = newJournalFixture(64)
	for i := 0; i != 6; i++ {
		f.append(t, updateEntry(i))
	}
	f.seal(t)

	// Zero from inside entry 1's sentinel through entry 3's sentinel. One
	// maximal invalid range results, closed at entry 4.
	f.zero(t, f.offsets[1]+4, f.offsets[3]+4)

	var s = f.NewScanner(nil)
	require.NoError(t, s.Scan(context.Background()))

	assert.Equal(t, []uint64{f.offsets[0], f.offsets[4], f.offsets[5]}, s.EventsValid)
	assert.Equal(t, []Range{{Start: f.offsets[1], End: f.offsets[4]}}, s.RangesInvalid)
}

func TestScanOfUndecodablePayload(t *testing.T) {
	var f = newJournalFixture(64)
	f.append(t, updateEntry(0))

	// A well-framed envelope holding an unintelligible payload.
	var raw = EncodeEnvelope(nil, f.header.Write, []byte(`{"type":"frobnicate"}`))
	require.NoError(t, f.writeRaw(context.Background(), f.header, f.header.Write, raw))
	var badStart = f.header.Write
	f.header.Write += uint64(len(raw))

	f.append(t, updateEntry(2))
	f.seal(t)

	var s = f.NewScanner(nil)
	require.NoError(t, s.Scan(context.Background()))

	// The envelope frames but its payload doesn't decode: it is an invalid
	// range, and scanning resumes cleanly at the next entry.
	assert.Equal(t, []uint64{f.offsets[0], f.offsets[1]}, s.EventsValid)
	assert.Equal(t, []Range{{Start: badStart, End: badStart + uint64(len(raw))}}, s.RangesInvalid)
}

func TestScanWithoutHeaderUsesHeuristicBound(t *testing.T) {
	var f = newJournalFixture(DefaultStrideSize)
	for i := 0; i != 3; i++ {
		f.append(t, updateEntry(i))
	}
	// Deliberately not sealed: no header object exists.

	var s = f.NewScanner(nil)
	require.NoError(t, s.Scan(context.Background()))

	assert.False(t, s.HeaderPresent)
	assert.False(t, s.HeaderValid)
	assert.Equal(t, f.offsets, s.EventsValid)
	assert.Empty(t, s.ObjectsMissing)
	assert.Empty(t, s.RangesInvalid)

	// Absent a header the journal is never considered healthy or readable.
	assert.False(t, s.IsHealthy())
	assert.False(t, s.IsReadable())
}

func TestScanWithUndecodableHeader(t *testing.T) {
	var f = newJournalFixture(DefaultStrideSize)
	f.append(t, updateEntry(0))
	require.NoError(t, f.store.Write(context.Background(), HeaderObject(0), 0, []byte("not a header")))

	var s = f.NewScanner(nil)
	require.NoError(t, s.Scan(context.Background()))

	assert.True(t, s.HeaderPresent)
	assert.False(t, s.HeaderValid)
	assert.Nil(t, s.Header)
	assert.Equal(t, f.offsets, s.EventsValid)
}

func TestScanAppliesFilter(t *testing.T) {
	var f = newJournalFixture(64)
	f.append(t, Entry{Type: EventUpdate, Client: "client.1"})
	f.append(t, Entry{Type: EventNoOp})
	f.append(t, Entry{Type: EventUpdate, Client: "client.2"})
	f.seal(t)

	var filter Filter
	require.NoError(t, filter.ParseArgs([]string{"--type", "update"}))

	var s = f.NewScanner(&filter)
	require.NoError(t, s.Scan(context.Background()))

	// All entries are structurally valid, but only matches are retained.
	assert.Equal(t, f.offsets, s.EventsValid)
	require.Len(t, s.Events, 2)
	assert.Contains(t, s.Events, f.offsets[0])
	assert.Contains(t, s.Events, f.offsets[2])
}

func TestScannerIsSingleUse(t *testing.T) {
	var f = newJournalFixture(64)
	f.seal(t)

	var s = f.NewScanner(nil)
	require.NoError(t, s.Scan(context.Background()))

	assert.Error(t, s.Scan(context.Background()))
	assert.Error(t, s.ScanHeader(context.Background()))
	assert.Error(t, s.ScanEvents(context.Background()))

	// The event phase requires the header phase.
	s = f.NewScanner(nil)
	assert.Error(t, s.ScanEvents(context.Background()))
}
