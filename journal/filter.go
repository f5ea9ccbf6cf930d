package journal

import (
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Filter is a conjunction of optional predicates narrowing a search through
// the journal. The zero Filter matches every entry: each predicate, when
// left at its unset sentinel, matches everything.
type Filter struct {
	rangeStart uint64
	rangeEnd   uint64 // 0 when unbounded
	pathExpr   string
	inode      uint64
	eventType  EventType
	frag       *Dirfrag
	fragDentry string
	client     string
}

// rangeSeparator splits the two bounds of a --range argument.
const rangeSeparator = ".."

// Apply evaluates the conjunction against an entry and the journal offset
// at which it was read. It is true iff every configured predicate matches.
func (f *Filter) Apply(pos uint64, e *Entry) bool {
	if pos < f.rangeStart {
		return false
	}
	if f.rangeEnd != 0 && pos >= f.rangeEnd {
		return false
	}
	if f.eventType != EventAny && e.Type != f.eventType {
		return false
	}
	if f.client != "" && e.Client != f.client {
		return false
	}
	if f.pathExpr != "" && (e.Blob == nil || !e.Blob.PathsMatch(f.pathExpr)) {
		return false
	}
	if f.inode != 0 && (e.Blob == nil || !e.Blob.HasInode(f.inode)) {
		return false
	}
	if f.frag != nil && (e.Blob == nil || !e.Blob.HasDirfrag(*f.frag, f.fragDentry)) {
		return false
	}
	return true
}

// GetRange reports whether a bounded offset range was configured, and
// returns it. An unbounded filter reports [0, MaxUint64) and false.
func (f *Filter) GetRange() (start, end uint64, bounded bool) {
	start, end = f.rangeStart, f.rangeEnd
	if end == 0 {
		end = math.MaxUint64
	}
	bounded = f.rangeStart != 0 || f.rangeEnd != 0
	return start, end, bounded
}

// ParseArgs consumes filter arguments in a restricted grammar:
//
//	--range a..b   --path expr   --inode n
//	--type t       --frag id[/dentry]   --client name
//
// Values parse with a flexible base (0x.. hex accepted). Malformed syntax
// and unrecognized flags fail with an error caused by ErrInvalidArgument,
// before any I/O is attempted.
func (f *Filter) ParseArgs(args []string) error {
	for i := 0; i < len(args); i++ {
		var flag, value = args[i], ""

		if j := strings.IndexByte(flag, '='); j != -1 {
			flag, value = flag[:j], flag[j+1:]
		} else if i+1 < len(args) {
			i, value = i+1, args[i+1]
		} else {
			return errors.Wrapf(ErrInvalidArgument, "%s requires a value", flag)
		}

		var err error
		switch flag {
		case "--range":
			err = f.parseRange(value)
		case "--path":
			f.pathExpr = value
		case "--inode":
			f.inode, err = strconv.ParseUint(value, 0, 64)
		case "--type":
			f.eventType, err = ParseEventType(value)
		case "--frag":
			err = f.parseFrag(value)
		case "--client":
			f.client = value
		default:
			return errors.Wrapf(ErrInvalidArgument, "unrecognized filter flag %q", flag)
		}
		if err != nil {
			if errors.Cause(err) != ErrInvalidArgument {
				err = errors.Wrapf(ErrInvalidArgument, "%s: %s", flag, err)
			}
			return err
		}
	}
	return nil
}

func (f *Filter) parseRange(value string) error {
	var lo, hi, ok = strings.Cut(value, rangeSeparator)
	if !ok {
		return errors.Wrapf(ErrInvalidArgument, "range %q lacks separator %q", value, rangeSeparator)
	}
	var err error
	if lo != "" {
		if f.rangeStart, err = strconv.ParseUint(lo, 0, 64); err != nil {
			return errors.Wrapf(ErrInvalidArgument, "range start %q: %s", lo, err)
		}
	}
	if hi != "" {
		if f.rangeEnd, err = strconv.ParseUint(hi, 0, 64); err != nil {
			return errors.Wrapf(ErrInvalidArgument, "range end %q: %s", hi, err)
		}
		if f.rangeEnd == 0 || f.rangeEnd <= f.rangeStart {
			return errors.Wrapf(ErrInvalidArgument, "range %q is empty", value)
		}
	}
	return nil
}

func (f *Filter) parseFrag(value string) error {
	var id, dentry, _ = strings.Cut(value, "/")
	var ino, frag = id, ""
	if j := strings.LastIndexByte(id, '.'); j != -1 {
		ino, frag = id[:j], id[j+1:]
	}

	var df Dirfrag
	var err error
	if df.Ino, err = strconv.ParseUint(ino, 0, 64); err != nil {
		return errors.Wrapf(ErrInvalidArgument, "dirfrag inode %q: %s", ino, err)
	}
	if frag != "" {
		var bits uint64
		if bits, err = strconv.ParseUint(frag, 16, 32); err != nil {
			return errors.Wrapf(ErrInvalidArgument, "dirfrag bits %q: %s", frag, err)
		}
		df.Frag = uint32(bits)
	}
	f.frag, f.fragDentry = &df, dentry
	return nil
}
