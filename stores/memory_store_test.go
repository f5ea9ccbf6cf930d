package stores

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreReadSemantics(t *testing.T) {
	var ctx = context.Background()
	var m = NewMemoryStore()

	var _, err = m.Read(ctx, "absent", 0, 10)
	assert.Equal(t, ErrNotFound, err)

	require.NoError(t, m.Write(ctx, "obj", 0, []byte("hello world")))

	// Bounded read.
	b, err := m.Read(ctx, "obj", 0, 5)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), b)

	// Short read of a shorter object.
	b, err = m.Read(ctx, "obj", 6, 100)
	require.NoError(t, err)
	assert.Equal(t, []byte("world"), b)

	// Read to end.
	b, err = m.Read(ctx, "obj", 6, -1)
	require.NoError(t, err)
	assert.Equal(t, []byte("world"), b)

	// Read past the end is empty, not an error.
	b, err = m.Read(ctx, "obj", 100, 10)
	require.NoError(t, err)
	assert.Empty(t, b)
}

func TestMemoryStoreWriteZeroFillsGaps(t *testing.T) {
	var ctx = context.Background()
	var m = NewMemoryStore()

	require.NoError(t, m.Write(ctx, "obj", 4, []byte("data")))

	var b, err = m.Read(ctx, "obj", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, append(make([]byte, 4), []byte("data")...), b)

	// Overwrite in place.
	require.NoError(t, m.Write(ctx, "obj", 0, []byte("head")))
	b, err = m.Read(ctx, "obj", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []byte("headdata"), b)

	size, err := m.Stat(ctx, "obj")
	require.NoError(t, err)
	assert.Equal(t, int64(8), size)
}

func TestMemoryStoreListAndRemove(t *testing.T) {
	var ctx = context.Background()
	var m = NewMemoryStore()

	for _, name := range []string{"journal/0/header", "journal/0/b", "journal/0/a", "journal/1/x"} {
		require.NoError(t, m.Write(ctx, name, 0, []byte("x")))
	}

	// Listing is prefix-trimmed and sorted.
	var listed []string
	require.NoError(t, m.List(ctx, "journal/0/", func(name string) error {
		listed = append(listed, name)
		return nil
	}))
	assert.Equal(t, []string{"a", "b", "header"}, listed)

	require.NoError(t, m.Remove(ctx, "journal/0/a"))
	assert.Equal(t, ErrNotFound, m.Remove(ctx, "journal/0/a"))

	_, err := m.Stat(ctx, "journal/0/a")
	assert.Equal(t, ErrNotFound, err)
}

func TestOpenDispatchesOnScheme(t *testing.T) {
	RegisterProvider("unittest", func(ep *url.URL) (Store, error) { return NewMemoryStore(), nil })

	var s, err = Open("unittest://whatever")
	require.NoError(t, err)
	assert.Equal(t, "memory", s.Provider())

	_, err = Open("nosuchscheme://x")
	assert.Error(t, err)
}

func TestPatchGrowsAndOverlays(t *testing.T) {
	var b = Patch(nil, 2, []byte("ab"))
	assert.Equal(t, []byte{0, 0, 'a', 'b'}, b)

	b = Patch(b, 0, []byte("XY"))
	assert.Equal(t, []byte{'X', 'Y', 'a', 'b'}, b)

	b = Patch(b, 3, []byte("cd"))
	assert.Equal(t, []byte{'X', 'Y', 'a', 'c', 'd'}, b)
}
