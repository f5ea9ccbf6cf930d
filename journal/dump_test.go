package journal

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sennajox/journaltool/stores"
)

func TestExportImportRoundTrip(t *testing.T) {
	for _, path := range []string{"journal.dump", "journal.dump.gz"} {
		t.Run(path, func(t *testing.T) {
			var f = newJournalFixture(64)
			for i := 0; i != 5; i++ {
				f.append(t, updateEntry(i))
			}
			f.seal(t)

			var ctx = context.Background()
			var fs = afero.NewMemMapFs()
			require.NoError(t, f.Export(ctx, fs, path))

			// Import into an empty store.
			var restored = Journal{Store: stores.NewMemoryStore(), Rank: 0}
			require.NoError(t, restored.Import(ctx, fs, path))

			var s = restored.NewScanner(nil)
			require.NoError(t, s.Scan(ctx))

			assert.True(t, s.IsHealthy())
			assert.Equal(t, f.header, *s.Header)
			assert.Equal(t, f.offsets, s.EventsValid)
			for i, pos := range f.offsets {
				assert.Equal(t, updateEntry(i).Detail, s.Events[pos].Entry.Detail)
			}
		})
	}
}

func TestExportSkipsDamageAndImportRestoresTheRest(t *testing.T) {
	var f = newJournalFixture(64)
	for i := 0; i != 5; i++ {
		f.append(t, updateEntry(i))
	}
	f.seal(t)

	var ctx = context.Background()
	f.zero(t, f.offsets[2], f.offsets[2]+8)

	var fs = afero.NewMemMapFs()
	require.NoError(t, f.Export(ctx, fs, "salvage.dump"))

	var restored = Journal{Store: stores.NewMemoryStore(), Rank: 0}
	require.NoError(t, restored.Import(ctx, fs, "salvage.dump"))

	var s = restored.NewScanner(nil)
	require.NoError(t, s.Scan(ctx))

	// The damaged entry is gone; the rest survive at their original offsets.
	assert.Equal(t, []uint64{f.offsets[0], f.offsets[1], f.offsets[3], f.offsets[4]}, s.EventsValid)
	for _, pos := range s.EventsValid {
		assert.Contains(t, s.Events, pos)
	}
}

func TestImportReplacesPriorContents(t *testing.T) {
	var f = newJournalFixture(64)
	f.append(t, updateEntry(0))
	f.seal(t)

	var ctx = context.Background()
	var fs = afero.NewMemMapFs()
	require.NoError(t, f.Export(ctx, fs, "snap.dump"))

	// The journal moves on after the export.
	for i := 1; i != 4; i++ {
		f.append(t, updateEntry(i))
	}
	f.seal(t)

	require.NoError(t, f.Import(ctx, fs, "snap.dump"))

	var s = f.NewScanner(nil)
	require.NoError(t, s.Scan(ctx))

	// Only the snapshot's entry remains.
	assert.Equal(t, []uint64{f.offsets[0]}, s.EventsValid)
	assert.True(t, s.IsHealthy())
}

func TestImportRejectsForeignFiles(t *testing.T) {
	var fs = afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "bogus.dump", []byte("this is not a journal dump at all"), 0644))

	var j = Journal{Store: stores.NewMemoryStore(), Rank: 0}
	var err = j.Import(context.Background(), fs, "bogus.dump")
	assert.Error(t, err)
}
