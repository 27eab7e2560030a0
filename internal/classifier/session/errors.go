package session

import (
	"errors"
	"fmt"

	"github.com/mailsort/server/internal/classifier/model"
)

// ErrEmptyContent is returned for blank email content.
var ErrEmptyContent = errors.New("email content is empty")

// ErrorKind is the terminal failure state of a classification session.
type ErrorKind string

const (
	KindInvalidInput        ErrorKind = "invalid_input"
	KindUpstreamUnavailable ErrorKind = "upstream_unavailable"
	KindInvalidModelOutput  ErrorKind = "invalid_model_output"
	KindMisconfigured       ErrorKind = "misconfigured"
	KindAborted             ErrorKind = "aborted"
)

// Error is a failed session: one terminal cause plus the attempt trail.
type Error struct {
	Kind     ErrorKind
	Cause    error
	Attempts []model.Attempt
	Warnings []string
}

func (e *Error) Error() string {
	return fmt.Sprintf("classification %s: %v", e.Kind, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}
