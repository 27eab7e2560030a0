package extract

import "errors"

var (
	// ErrMalformedOutput means the reply contains no parseable JSON object.
	ErrMalformedOutput = errors.New("malformed model output")
	// ErrSchemaViolation means the JSON parsed but a required field is absent or invalid.
	ErrSchemaViolation = errors.New("model output violates classification schema")
)
