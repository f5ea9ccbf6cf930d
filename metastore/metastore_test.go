package metastore

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sennajox/journaltool/journal"
	"github.com/sennajox/journaltool/stores"
)

var testFrag = journal.Dirfrag{Ino: 0x10000000000, Frag: 0}

func blobFixture(dentries ...journal.DentryRecord) *journal.MetaBlob {
	return &journal.MetaBlob{Lumps: []journal.DirLump{{
		Dirfrag:  testFrag,
		Path:     "/home/alice",
		Dentries: dentries,
	}}}
}

func readTable(t *testing.T, store stores.Store, df journal.Dirfrag) dirTable {
	var b, err = store.Read(context.Background(), dirTableObject(df), 0, -1)
	require.NoError(t, err)

	var table dirTable
	require.NoError(t, json.Unmarshal(b, &table))
	return table
}

func TestReplayWritesDentries(t *testing.T) {
	var store = stores.NewMemoryStore()
	var r = NewReplayer(store)
	var ctx = context.Background()

	var report, err = r.Apply(ctx, blobFixture(
		journal.DentryRecord{Name: "notes.txt", Ino: 0x101, Version: 1},
		journal.DentryRecord{Name: "todo.txt", Ino: 0x102, Version: 2},
	), false)
	require.NoError(t, err)

	assert.Equal(t, Report{DirsTouched: 1, DentriesWritten: 2}, report)

	var table = readTable(t, store, testFrag)
	assert.Equal(t, uint64(2), table.Version)
	assert.Equal(t, dentry{Ino: 0x101, Version: 1}, table.Dentries["notes.txt"])
	assert.Equal(t, dentry{Ino: 0x102, Version: 2}, table.Dentries["todo.txt"])
}

func TestReplayIsIdempotent(t *testing.T) {
	var store = stores.NewMemoryStore()
	var ctx = context.Background()
	var blob = blobFixture(journal.DentryRecord{Name: "notes.txt", Ino: 0x101, Version: 5})

	var r = NewReplayer(store)
	var _, err = r.Apply(ctx, blob, false)
	require.NoError(t, err)

	// Replaying the same blob again, with a fresh Replayer so the table is
	// re-read from the store, lands nothing.
	r = NewReplayer(store)
	report, err := r.Apply(ctx, blob, false)
	require.NoError(t, err)
	assert.Equal(t, Report{DentriesStale: 1}, report)

	// A newer version of the same dentry does land.
	report, err = r.Apply(ctx, blobFixture(
		journal.DentryRecord{Name: "notes.txt", Ino: 0x103, Version: 6}), false)
	require.NoError(t, err)
	assert.Equal(t, Report{DirsTouched: 1, DentriesWritten: 1}, report)

	var table = readTable(t, store, testFrag)
	assert.Equal(t, dentry{Ino: 0x103, Version: 6}, table.Dentries["notes.txt"])
}

func TestReplayRemovesDentries(t *testing.T) {
	var store = stores.NewMemoryStore()
	var r = NewReplayer(store)
	var ctx = context.Background()

	var _, err = r.Apply(ctx, blobFixture(
		journal.DentryRecord{Name: "notes.txt", Ino: 0x101, Version: 1}), false)
	require.NoError(t, err)

	report, err := r.Apply(ctx, blobFixture(
		journal.DentryRecord{Name: "notes.txt", Version: 2, Removed: true}), false)
	require.NoError(t, err)
	assert.Equal(t, Report{DirsTouched: 1, DentriesRemoved: 1}, report)

	var table = readTable(t, store, testFrag)
	assert.NotContains(t, table.Dentries, "notes.txt")

	// Removing a dentry which was never linked is a stale no-op.
	report, err = r.Apply(ctx, blobFixture(
		journal.DentryRecord{Name: "ghost.txt", Version: 3, Removed: true}), false)
	require.NoError(t, err)
	assert.Equal(t, Report{DentriesStale: 1}, report)
}

func TestDryRunWritesNothing(t *testing.T) {
	var store = stores.NewMemoryStore()
	var r = NewReplayer(store)
	var ctx = context.Background()
	var blob = blobFixture(journal.DentryRecord{Name: "notes.txt", Ino: 0x101, Version: 1})

	var report, err = r.Apply(ctx, blob, true)
	require.NoError(t, err)
	assert.Equal(t, Report{DirsTouched: 1, DentriesWritten: 1, DryRun: true}, report)

	// Nothing landed in the store, and a subsequent real apply is unaffected
	// by the dry run's bookkeeping.
	assert.Empty(t, store.Content)

	report, err = r.Apply(ctx, blob, false)
	require.NoError(t, err)
	assert.Equal(t, Report{DirsTouched: 1, DentriesWritten: 1}, report)

	var table = readTable(t, store, testFrag)
	assert.Equal(t, dentry{Ino: 0x101, Version: 1}, table.Dentries["notes.txt"])
}
