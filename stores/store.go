// Package stores provides an abstraction over object storage systems which
// back metadata journals. Journal strides and the journal header are small,
// named, mutable objects; Store exposes the offset-addressed read and write
// surface which the journal scanner and repair engine are built against.
package stores

import (
	"context"
	"net/url"
	"sync"

	"github.com/pkg/errors"
)

// ErrNotFound is returned by Read, Stat and Remove when the named object
// does not exist in the store. Callers treat it as a recoverable gap during
// reads, and as a hard failure during writes.
var ErrNotFound = errors.New("object not found")

// Store is an object store holding journal strides, the journal header,
// and backing metadata tables.
type Store interface {
	// Provider returns the name of the storage backend (e.g., "s3", "gcs", "fs").
	Provider() string

	// Read returns up to |length| bytes of the named object starting at
	// |offset|, or the object's remainder if |length| is negative. It
	// returns ErrNotFound if the object does not exist, and may return
	// fewer than |length| bytes if the object is shorter.
	Read(ctx context.Context, name string, offset, length int64) ([]byte, error)

	// Write durably writes |data| into the named object at |offset|,
	// creating the object if it does not exist and zero-filling any gap
	// between the current object size and |offset|.
	Write(ctx context.Context, name string, offset int64, data []byte) error

	// Stat returns the size of the named object, or ErrNotFound.
	Stat(ctx context.Context, name string) (int64, error)

	// Remove deletes the named object. It returns ErrNotFound if the object
	// does not exist.
	Remove(ctx context.Context, name string) error

	// List enumerates objects under |prefix|, invoking |callback| with each
	// object's name relative to the prefix. If the callback returns an
	// error, listing stops and that error is returned.
	List(ctx context.Context, prefix string, callback func(name string) error) error
}

// Constructor builds a Store from a configuring URL.
// Each storage backend provides its own Constructor.
type Constructor func(*url.URL) (Store, error)

var (
	constructors  = make(map[string]Constructor)
	constructorMu sync.RWMutex
)

// RegisterProvider registers the Constructor of a URL scheme.
// Backends register themselves at init.
func RegisterProvider(scheme string, c Constructor) {
	constructorMu.Lock()
	defer constructorMu.Unlock()
	constructors[scheme] = c
}

// Open builds a Store from the store URL, dispatching on its scheme.
func Open(storeURL string) (Store, error) {
	var ep, err = url.Parse(storeURL)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing store URL %q", storeURL)
	}

	constructorMu.RLock()
	var c, ok = constructors[ep.Scheme]
	constructorMu.RUnlock()

	if !ok {
		return nil, errors.Errorf("unsupported store scheme: %s", ep.Scheme)
	}
	return c(ep)
}

// Patch overlays |data| at |offset| onto |content|, growing and zero-filling
// |content| as needed, and returns the result. It's shared by backends which
// implement offset writes as read-modify-write of the whole object.
func Patch(content []byte, offset int64, data []byte) []byte {
	var end = offset + int64(len(data))
	if int64(len(content)) < end {
		var grown = make([]byte, end)
		copy(grown, content)
		content = grown
	}
	copy(content[offset:end], data)
	return content
}
