package sismos

import "errors"

var (
	// ErrNotFound is returned by every read when no usable snapshot exists,
	// whether the file is missing, corrupt, or matches neither known shape.
	ErrNotFound = errors.New("no earthquake data available")

	// ErrNetwork covers timeouts, connection errors, and non-success statuses from the feed.
	ErrNetwork = errors.New("feed request failed")

	// ErrDecode covers malformed JSON and payloads that fail schema validation.
	ErrDecode = errors.New("feed payload could not be decoded")

	// ErrPersistence covers snapshot write failures.
	ErrPersistence = errors.New("snapshot could not be persisted")
)
