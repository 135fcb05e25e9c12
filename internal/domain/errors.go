package domain

import "errors"

// Error taxonomy shared by every pipeline stage.
// Per-instrument errors are classified with errors.Is, counted and logged;
// only ErrStoreUnavailable aborts a whole cycle.
var (
	// ErrDataInsufficient means fewer bars than a computation's minimum window.
	ErrDataInsufficient = errors.New("insufficient data")
	// ErrDataInvalid means non-numeric or contradictory fields.
	ErrDataInvalid = errors.New("invalid data")
	// ErrPersistenceConflict means a concurrent write collided on a natural key.
	ErrPersistenceConflict = errors.New("persistence conflict")
	// ErrExternalFetchFailure means price or history could not be obtained.
	ErrExternalFetchFailure = errors.New("external fetch failure")
	// ErrStoreUnavailable means the persistence layer cannot be reached.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrExcluded means the instrument is excluded by category rules.
	ErrExcluded = errors.New("instrument excluded")
	// ErrUnknownSource means no pipeline is registered under the given name.
	ErrUnknownSource = errors.New("unknown source")
)

// SkipReason maps a per-instrument error to the label used in run summaries.
func SkipReason(err error) string {
	switch {
	case errors.Is(err, ErrDataInsufficient):
		return "data_insufficient"
	case errors.Is(err, ErrDataInvalid):
		return "data_invalid"
	case errors.Is(err, ErrExternalFetchFailure):
		return "fetch_failed"
	case errors.Is(err, ErrExcluded):
		return "excluded"
	case errors.Is(err, ErrPersistenceConflict):
		return "conflict"
	default:
		return "error"
	}
}
