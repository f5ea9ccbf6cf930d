// Package metastore applies journaled metadata mutations to the backing
// store's directory-fragment tables. It is the offline replay half of the
// tool: given decoded mutation blobs in journal order, it folds each one
// into the per-fragment dentry tables which live alongside the journal.
package metastore

import (
	"context"
	"encoding/json"
	"fmt"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/sennajox/journaltool/journal"
	"github.com/sennajox/journaltool/stores"
)

// dirTableCacheSize bounds the number of dirfrag tables held decoded in
// memory between blobs. Replay touches fragments with strong locality, so a
// modest cache elides most re-reads.
const dirTableCacheSize = 128

// dirTableObject names the store object holding a fragment's dentry table.
func dirTableObject(df journal.Dirfrag) string {
	return fmt.Sprintf("meta/dir/%x.%x", df.Ino, df.Frag)
}

// dentry is one stored directory entry.
type dentry struct {
	Ino     uint64 `json:"ino"`
	Version uint64 `json:"version"`
}

// dirTable is the stored form of one directory fragment: a version and its
// live dentries by name.
type dirTable struct {
	Version  uint64            `json:"version"`
	Dentries map[string]dentry `json:"dentries"`
}

// Report summarizes the effects of replaying one or more blobs.
type Report struct {
	DirsTouched     int  `json:"dirs_touched"`
	DentriesWritten int  `json:"dentries_written"`
	DentriesRemoved int  `json:"dentries_removed"`
	DentriesStale   int  `json:"dentries_stale"`
	DryRun          bool `json:"dry_run"`
}

// Add folds another Report into this one.
func (r *Report) Add(o Report) {
	r.DirsTouched += o.DirsTouched
	r.DentriesWritten += o.DentriesWritten
	r.DentriesRemoved += o.DentriesRemoved
	r.DentriesStale += o.DentriesStale
}

// Replayer folds mutation blobs into dirfrag tables. It is not safe for
// concurrent use: replay is inherently ordered.
type Replayer struct {
	store stores.Store
	cache *lru.Cache // journal.Dirfrag -> *dirTable
}

// NewReplayer returns a Replayer over the store.
func NewReplayer(store stores.Store) *Replayer {
	var cache, err = lru.New(dirTableCacheSize)
	if err != nil {
		panic(err) // Only errors on a non-positive size.
	}
	return &Replayer{store: store, cache: cache}
}

// Apply folds one blob into the store's dirfrag tables. Each dentry record
// lands only if its version is ahead of the stored one; stale records are
// counted and skipped, which makes replay idempotent. With |dryRun| set, the
// intended effects are computed and logged but nothing is written and no
// cached table is mutated.
func (r *Replayer) Apply(ctx context.Context, blob *journal.MetaBlob, dryRun bool) (Report, error) {
	var report = Report{DryRun: dryRun}

	for i := range blob.Lumps {
		var lump = &blob.Lumps[i]

		var table, err = r.loadTable(ctx, lump.Dirfrag)
		if err != nil {
			return report, err
		}
		if dryRun {
			table = table.copyTable()
		}

		var dirty bool
		for _, rec := range lump.Dentries {
			var prior, exists = table.Dentries[rec.Name]
			if exists && prior.Version >= rec.Version {
				report.DentriesStale++
				continue
			}

			if rec.Removed {
				if exists {
					delete(table.Dentries, rec.Name)
					report.DentriesRemoved++
					dirty = true
				} else {
					report.DentriesStale++
				}
			} else {
				table.Dentries[rec.Name] = dentry{Ino: rec.Ino, Version: rec.Version}
				report.DentriesWritten++
				dirty = true
			}
			if rec.Version > table.Version {
				table.Version = rec.Version
			}
		}
		if !dirty {
			continue
		}
		report.DirsTouched++

		if dryRun {
			log.WithFields(log.Fields{
				"dirfrag":  lump.Dirfrag,
				"dentries": len(table.Dentries),
				"version":  table.Version,
			}).Info("dry-run: would persist dirfrag table")
			continue
		}
		if err = r.persistTable(ctx, lump.Dirfrag, table); err != nil {
			return report, err
		}
	}
	return report, nil
}

// loadTable fetches a fragment's table, consulting the cache first. A
// fragment with no stored table starts empty.
func (r *Replayer) loadTable(ctx context.Context, df journal.Dirfrag) (*dirTable, error) {
	if cached, ok := r.cache.Get(df); ok {
		return cached.(*dirTable), nil
	}

	var table = &dirTable{Dentries: make(map[string]dentry)}

	var b, err = r.store.Read(ctx, dirTableObject(df), 0, -1)
	if errors.Cause(err) == stores.ErrNotFound {
		// New fragment.
	} else if err != nil {
		return nil, errors.Wrapf(err, "reading dirfrag table %s", df)
	} else if err = json.Unmarshal(b, table); err != nil {
		return nil, errors.Wrapf(err, "decoding dirfrag table %s", df)
	}
	if table.Dentries == nil {
		table.Dentries = make(map[string]dentry)
	}

	r.cache.Add(df, table)
	return table, nil
}

// persistTable writes a fragment's table back to the store. The prior object
// is removed first: writes patch in place, and a shrinking table must not
// leave stale trailing bytes behind.
func (r *Replayer) persistTable(ctx context.Context, df journal.Dirfrag, table *dirTable) error {
	var b, err = json.Marshal(table)
	if err != nil {
		return errors.Wrapf(err, "encoding dirfrag table %s", df)
	}

	var name = dirTableObject(df)
	if err = r.store.Remove(ctx, name); err != nil && errors.Cause(err) != stores.ErrNotFound {
		return errors.Wrapf(err, "removing dirfrag table %s", df)
	}
	if err = r.store.Write(ctx, name, 0, b); err != nil {
		return errors.Wrapf(err, "writing dirfrag table %s", df)
	}
	return nil
}

func (t *dirTable) copyTable() *dirTable {
	var c = &dirTable{
		Version:  t.Version,
		Dentries: make(map[string]dentry, len(t.Dentries)),
	}
	for k, v := range t.Dentries {
		c.Dentries[k] = v
	}
	return c
}
