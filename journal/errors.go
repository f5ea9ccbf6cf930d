package journal

import "github.com/pkg/errors"

var (
	// ErrDecode is the cause of errors returned when a header, envelope, or
	// event payload fails to decode. At entry granularity decode failures
	// are recovered via forward search and recorded into the scan report;
	// at header granularity they are fatal unless a reset or recovery is
	// explicitly requested.
	ErrDecode = errors.New("decode error")

	// ErrInvalidArgument is the cause of errors returned for malformed
	// filter or range syntax. It is surfaced before any I/O is attempted.
	ErrInvalidArgument = errors.New("invalid argument")
)
