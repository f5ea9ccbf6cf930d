// Package fs implements a Store over the local filesystem, for development
// and for repairing journals staged out of a cluster.
package fs

import (
	"context"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/sennajox/journaltool/stores"
)

func init() { stores.RegisterProvider("file", New) }

type store struct {
	root string
}

// New creates a filesystem Store rooted at the path of a file:// URL.
func New(ep *url.URL) (stores.Store, error) {
	if ep.Path == "" {
		return nil, errors.New("file:// store URL requires a path")
	}
	return &store{root: filepath.FromSlash(ep.Path)}, nil
}

func (s *store) Provider() string { return "fs" }

func (s *store) abs(name string) string {
	return filepath.Join(s.root, filepath.FromSlash(name))
}

func (s *store) Read(ctx context.Context, name string, offset, length int64) ([]byte, error) {
	var f, err = os.Open(s.abs(name))
	if os.IsNotExist(err) {
		return nil, stores.ErrNotFound
	} else if err != nil {
		return nil, err
	}
	defer f.Close()

	if length < 0 {
		info, serr := f.Stat()
		if serr != nil {
			return nil, serr
		}
		length = info.Size() - offset
		if length <= 0 {
			return nil, nil
		}
	}
	var buf = make([]byte, length)
	n, err := f.ReadAt(buf, offset)
	if err == io.EOF {
		err = nil
	}
	return buf[:n], err
}

func (s *store) Write(ctx context.Context, name string, offset int64, data []byte) error {
	var path = s.abs(name)
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0640)
	if err != nil {
		return err
	}
	if _, err = f.WriteAt(data, offset); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func (s *store) Stat(ctx context.Context, name string) (int64, error) {
	var info, err = os.Stat(s.abs(name))
	if os.IsNotExist(err) {
		return 0, stores.ErrNotFound
	} else if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (s *store) Remove(ctx context.Context, name string) error {
	var err = os.Remove(s.abs(name))
	if os.IsNotExist(err) {
		return stores.ErrNotFound
	}
	return err
}

func (s *store) List(ctx context.Context, prefix string, callback func(name string) error) error {
	var dir = s.abs(prefix)

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil
	}
	return filepath.Walk(dir,
		func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			} else if info.IsDir() {
				return nil // Descend into directory.
			}
			rel, err := filepath.Rel(dir, path)
			if err != nil {
				return err
			}
			// Listing keys are slash-separated regardless of host OS.
			return callback(strings.TrimPrefix(filepath.ToSlash(rel), "/"))
		})
}
