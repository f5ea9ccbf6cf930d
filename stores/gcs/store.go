// Package gcs implements a Store over Google Cloud Storage.
package gcs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/gorilla/schema"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/sennajox/journaltool/stores"
)

func init() { stores.RegisterProvider("gs", New) }

// StoreQueryArgs contains fields parsed from the query arguments of a
// gs:// store URL. There are none at present; unknown arguments are
// still rejected.
type StoreQueryArgs struct{}

type store struct {
	bucket string
	prefix string
	client *storage.Client
}

// New creates a GCS Store from the provided URL.
func New(ep *url.URL) (stores.Store, error) {
	var args StoreQueryArgs
	if err := parseStoreArgs(ep, &args); err != nil {
		return nil, err
	}
	var bucket, prefix = ep.Host, strings.TrimPrefix(ep.Path, "/")

	var ctx = context.Background()
	creds, err := google.FindDefaultCredentials(ctx, storage.ScopeFullControl)
	if err != nil {
		return nil, err
	}
	client, err := storage.NewClient(ctx, option.WithTokenSource(creds.TokenSource))
	if err != nil {
		return nil, err
	}
	log.WithField("ProjectID", creds.ProjectID).Info("constructed new GCS client")

	return &store{bucket: bucket, prefix: prefix, client: client}, nil
}

func (s *store) Provider() string { return "gcs" }

func (s *store) object(name string) *storage.ObjectHandle {
	return s.client.Bucket(s.bucket).Object(s.prefix + name)
}

func (s *store) Read(ctx context.Context, name string, offset, length int64) ([]byte, error) {
	var r, err = s.object(name).NewRangeReader(ctx, offset, length)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, stores.ErrNotFound
	} else if err != nil {
		// A range beginning at or beyond the object size is an empty read.
		if gErr := (&googleapi.Error{}); errors.As(err, &gErr) && gErr.Code == http.StatusRequestedRangeNotSatisfiable {
			return nil, nil
		}
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// Write is read-modify-write of the whole object, as GCS objects are
// immutable once written.
func (s *store) Write(ctx context.Context, name string, offset int64, data []byte) error {
	var content, err = s.Read(ctx, name, 0, -1)
	if err == stores.ErrNotFound {
		content, err = nil, nil
	}
	if err != nil {
		return err
	}
	content = stores.Patch(content, offset, data)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wc = s.object(name).NewWriter(ctx)
	if _, err = io.Copy(wc, bytes.NewReader(content)); err != nil {
		return err
	}
	return wc.Close()
}

func (s *store) Stat(ctx context.Context, name string) (int64, error) {
	var attrs, err = s.object(name).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return 0, stores.ErrNotFound
	} else if err != nil {
		return 0, err
	}
	return attrs.Size, nil
}

func (s *store) Remove(ctx context.Context, name string) error {
	var err = s.object(name).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return stores.ErrNotFound
	}
	return err
}

func (s *store) List(ctx context.Context, prefix string, callback func(name string) error) error {
	prefix = s.prefix + prefix
	var (
		q   = storage.Query{Prefix: prefix}
		it  = s.client.Bucket(s.bucket).Objects(ctx, &q)
		obj *storage.ObjectAttrs
		err error
	)
	for obj, err = it.Next(); err == nil; obj, err = it.Next() {
		if strings.HasSuffix(obj.Name, "/") {
			continue // Ignore directory-like objects.
		}
		if err := callback(strings.TrimPrefix(obj.Name, prefix)); err != nil {
			return err
		}
	}
	if err == iterator.Done {
		err = nil
	}
	return err
}

func parseStoreArgs(ep *url.URL, args interface{}) error {
	var decoder = schema.NewDecoder()
	decoder.IgnoreUnknownKeys(false)

	if q, err := url.ParseQuery(ep.RawQuery); err != nil {
		return err
	} else if err = decoder.Decode(args, q); err != nil {
		return fmt.Errorf("parsing store URL arguments: %s", err)
	}
	return nil
}
