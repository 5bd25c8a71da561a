package archive

import "errors"

// Common archive errors
var (
	ErrNilLogger = errors.New("logger cannot be nil")

	// ErrMissingStore is returned by Build when no store was supplied
	ErrMissingStore = errors.New("archive store is required")

	// ErrMissingRegistry is returned by Build when no decoder registry was supplied
	ErrMissingRegistry = errors.New("task registry is required")

	// ErrMalformedEncoding is returned for encodings that are not a JSON object
	// with a string "type" field, or whose fields do not match the declared type.
	ErrMalformedEncoding = errors.New("malformed task encoding")

	// ErrUnknownTaskType is returned when no decoder is registered for the type tag
	ErrUnknownTaskType = errors.New("unknown task type")

	// ErrDuplicateType is returned when a type tag is registered twice
	ErrDuplicateType = errors.New("task type already registered")
)
