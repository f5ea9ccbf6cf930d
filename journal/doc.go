// Package journal implements a sequential, corruption-tolerant reader for
// metadata journals striped across objects of a distributed object store,
// and the repair primitives built on top of it: surgical region erasure,
// full reset, header recovery, and filtered export/import.
//
// Unlike the metadata service's own journal reader, the Scanner here is
// written to detect, record, and read past corruptions and missing objects.
// It is less efficient but more plainly written, and it never aborts on
// per-object or per-entry damage: every byte range of the journal ends up
// classified as a valid entry, a valid-but-filtered entry, or an invalid or
// missing range of the scan report.
package journal
