package journal

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// EventType tags the kind of a journal entry. The set is closed: decoding
// rejects unknown tags rather than dispatching over them.
type EventType int

const (
	// EventAny is the filter wildcard. It is never a decoded entry's type.
	EventAny EventType = iota
	EventUpdate
	EventOpen
	EventSession
	EventSessions
	EventSubtreeMap
	EventExport
	EventImportStart
	EventImportFinish
	EventFragment
	EventResetJournal
	EventNoOp
)

var eventTypeNames = map[EventType]string{
	EventAny:          "any",
	EventUpdate:       "update",
	EventOpen:         "open",
	EventSession:      "session",
	EventSessions:     "sessions",
	EventSubtreeMap:   "subtreemap",
	EventExport:       "export",
	EventImportStart:  "importstart",
	EventImportFinish: "importfinish",
	EventFragment:     "fragment",
	EventResetJournal: "resetjournal",
	EventNoOp:         "noop",
}

func (t EventType) String() string {
	if n, ok := eventTypeNames[t]; ok {
		return n
	}
	return "unknown"
}

// ParseEventType maps a type tag to its EventType. Unknown tags are an
// error caused by ErrInvalidArgument.
func ParseEventType(s string) (EventType, error) {
	for t, n := range eventTypeNames {
		if n == s {
			return t, nil
		}
	}
	return EventAny, errors.Wrapf(ErrInvalidArgument, "unknown event type %q", s)
}

// MarshalJSON renders the EventType as its string tag.
func (t EventType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON parses a string tag, rejecting unknown tags and the "any"
// wildcard (which is a filter value, not an entry value).
func (t *EventType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return errors.Wrap(ErrDecode, "event type is not a string")
	}
	parsed, err := ParseEventType(s)
	if err != nil || parsed == EventAny {
		return errors.Wrapf(ErrDecode, "unknown event type %q", s)
	}
	*t = parsed
	return nil
}

// Entry is one decoded journal entry: a typed metadata mutation record.
// Its payload encoding is self-describing JSON; the journal stream is
// oblivious to it and frames entries only by their envelope.
type Entry struct {
	Type EventType `json:"type"`
	// Client identity which submitted the mutation, eg "client.4121".
	Client string `json:"client,omitempty"`
	// Detail is a brief human-readable description used by list output.
	Detail string `json:"detail,omitempty"`
	// Blob is the decoded mutation, present on entry types which carry one.
	Blob *MetaBlob `json:"metablob,omitempty"`
}

// DecodeEntry decodes an entry payload. It is total over arbitrary bytes:
// malformed input returns an error caused by ErrDecode.
func DecodeEntry(payload []byte) (*Entry, error) {
	var e Entry
	if err := json.Unmarshal(payload, &e); err != nil {
		if errors.Cause(err) == ErrDecode {
			return nil, err
		}
		return nil, errors.Wrapf(ErrDecode, "entry payload: %s", err)
	}
	if e.Type == EventAny {
		return nil, errors.Wrap(ErrDecode, "entry payload has no type")
	}
	return &e, nil
}

// Encode returns the Entry's payload encoding.
func (e *Entry) Encode() ([]byte, error) {
	if e.Type == EventAny {
		return nil, errors.Wrap(ErrInvalidArgument, "entry has no concrete type")
	}
	return json.Marshal(e)
}
