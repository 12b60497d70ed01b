package pipeline

import (
	"errors"
	"fmt"

	"horse.fit/archivist/internal/cas"
)

// State names the ingestion stage an error surfaced in.
type State string

const (
	StateFetched      State = "fetched"
	StateAddressed    State = "addressed"
	StateDedupChecked State = "dedup_checked"
	StateExtracted    State = "extracted"
	StateNormalized   State = "normalized"
	StateAssembled    State = "assembled"
	StatePersisted    State = "persisted"
	StateIndexed      State = "indexed"
)

// Kind classifies an ingestion failure.
type Kind string

const (
	KindFetch               Kind = "fetch_error"
	KindExtraction          Kind = "extraction_error"
	KindMetadataParse       Kind = "metadata_parse_error"
	KindIncompleteAssertion Kind = "incomplete_assertion_input"
	KindStorage             Kind = "storage_unavailable"
)

// Error is an ingestion-level failure tagged with the state it occurred in.
type Error struct {
	State State
	Kind  Kind
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s in state %s: %v", e.Kind, e.State, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether redelivering the upload event can succeed.
// Parse and contract failures are deterministic and fail again on retry;
// oversized payloads never shrink.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindMetadataParse, KindIncompleteAssertion:
		return false
	case KindStorage:
		return !errors.Is(e.Err, cas.ErrPayloadTooLarge)
	default:
		return true
	}
}

func stateError(state State, kind Kind, err error) *Error {
	return &Error{State: state, Kind: kind, Err: err}
}
