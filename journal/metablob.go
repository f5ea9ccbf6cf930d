package journal

import (
	"fmt"
	"strings"
)

// Dirfrag identifies one fragment of a directory: the directory inode and
// the fragment bits within it.
type Dirfrag struct {
	Ino  uint64 `json:"ino"`
	Frag uint32 `json:"frag"`
}

func (d Dirfrag) String() string { return fmt.Sprintf("%#x.%x", d.Ino, d.Frag) }

// DentryRecord is one dentry mutation within a DirLump: a (re)linked or
// removed name under the lump's directory fragment.
type DentryRecord struct {
	Name    string `json:"name"`
	Ino     uint64 `json:"ino"`
	Version uint64 `json:"version"`
	Removed bool   `json:"removed,omitempty"`
}

// DirLump groups the dentry mutations of one directory fragment.
type DirLump struct {
	Dirfrag Dirfrag `json:"dirfrag"`
	// Path of the directory, when the writer recorded it.
	Path     string         `json:"path,omitempty"`
	Dentries []DentryRecord `json:"dentries,omitempty"`
}

// MetaBlob is a decoded mutation payload describing one or more metadata
// mutations. The Scanner treats it as opaque; it is consumed by the filter's
// content predicates and by offline replay.
type MetaBlob struct {
	Lumps []DirLump `json:"lumps"`
}

// HasInode reports whether the blob touches the inode: as a lump's
// directory, or as the target of any dentry.
func (mb *MetaBlob) HasInode(ino uint64) bool {
	for i := range mb.Lumps {
		if mb.Lumps[i].Dirfrag.Ino == ino {
			return true
		}
		for j := range mb.Lumps[i].Dentries {
			if mb.Lumps[i].Dentries[j].Ino == ino {
				return true
			}
		}
	}
	return false
}

// PathsMatch reports whether any full dentry path within the blob contains
// |expr| as a substring.
func (mb *MetaBlob) PathsMatch(expr string) bool {
	for i := range mb.Lumps {
		var lump = &mb.Lumps[i]
		if strings.Contains(lump.Path, expr) {
			return true
		}
		for j := range lump.Dentries {
			if strings.Contains(lump.Path+"/"+lump.Dentries[j].Name, expr) {
				return true
			}
		}
	}
	return false
}

// HasDirfrag reports whether the blob carries a lump for |df| and, when
// |dentry| is non-empty, a mutation of that dentry name within it.
func (mb *MetaBlob) HasDirfrag(df Dirfrag, dentry string) bool {
	for i := range mb.Lumps {
		if mb.Lumps[i].Dirfrag != df {
			continue
		}
		if dentry == "" {
			return true
		}
		for j := range mb.Lumps[i].Dentries {
			if mb.Lumps[i].Dentries[j].Name == dentry {
				return true
			}
		}
	}
	return false
}
