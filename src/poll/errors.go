package poll

import "errors"

var (
	// ErrNotFound means no poll matches the given id or message reference.
	ErrNotFound = errors.New("poll not found")

	// ErrClosed is the normal outcome of voting on a poll that has ended,
	// whether by timer, manual close, or an end time that passed before the
	// timer fired.
	ErrClosed = errors.New("poll is closed")

	// ErrAlreadyClosed is returned by a second close attempt. It is distinct
	// from ErrClosed so callers can tell "someone already ended this" apart
	// from "this poll was over when you voted".
	ErrAlreadyClosed = errors.New("poll already closed")

	// ErrInvalidOption means the option index is outside the poll's range.
	ErrInvalidOption = errors.New("invalid option index")
)

// ValidationError reports bad input at creation time: option count, text
// length, or duration out of bounds.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Field + " " + e.Reason
}

// IsValidation reports whether err is a creation-time input error.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
