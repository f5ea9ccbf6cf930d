package journal

import (
	"fmt"
	"strconv"
)

// Object naming is a deterministic function of (rank, stride index), and the
// header object name of rank alone. Stride objects sort lexicographically in
// stride order.

// JournalPrefix returns the object name prefix under which all of a rank's
// journal objects live.
func JournalPrefix(rank int) string { return fmt.Sprintf("journal/%d/", rank) }

// HeaderObject returns the name of the rank's journal header object.
func HeaderObject(rank int) string { return JournalPrefix(rank) + "header" }

// StrideObject returns the name of the object backing stride |idx| of the
// rank's journal.
func StrideObject(rank int, idx uint64) string {
	return fmt.Sprintf("%s%016x", JournalPrefix(rank), idx)
}

// parseStrideIndex parses a stride index from an object name relative to
// JournalPrefix, as returned by store listings. It reports false for the
// header object and for foreign names.
func parseStrideIndex(rel string) (uint64, bool) {
	if len(rel) != 16 {
		return 0, false
	}
	var idx, err = strconv.ParseUint(rel, 16, 64)
	if err != nil {
		return 0, false
	}
	return idx, true
}
