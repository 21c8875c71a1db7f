package fetch

import (
	"errors"
	"fmt"
)

// ErrMalformedRecord marks an upstream row missing its natural key or
// carrying unparseable values. Such rows are quarantined at the mapping
// stage and never fail a page insert.
var ErrMalformedRecord = errors.New("malformed record")

// TransientError is a retryable fetch failure: non-2xx status, timeout, or
// transport error. Retry exhaustion aborts the dataset, not its siblings.
type TransientError struct {
	Status int
	Err    error
}

func (e *TransientError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("transient fetch error (HTTP %d): %v", e.Status, e.Err)
	}
	return fmt.Sprintf("transient fetch error: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is a retryable fetch failure.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
