package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/gridsync/internal/remote"
)

var (
	// ErrConcurrentSaveIgnored is returned by an explicit save requested
	// while another save is in flight. Nothing was changed; it is a signal,
	// not a failure.
	ErrConcurrentSaveIgnored = errors.New("save already in progress; request ignored")

	// ErrSaveInProgress is returned by Discard and Load while a save is in
	// flight.
	ErrSaveInProgress = errors.New("save in progress")

	// ErrUnknownRow is returned when a gesture names a row the table does
	// not hold.
	ErrUnknownRow = errors.New("unknown row")
)

// RemoteError reports a failed remote call during a save.
//
// Op identifies the batch (or the refresh read) that failed; Count is the
// number of items it carried. The first failure aborts the rest of the
// save, so at most one RemoteError comes out of a save.
type RemoteError struct {
	// Op is the remote operation that failed.
	Op remote.Op

	// Count is the batch size (0 for the refresh read).
	Count int

	// Err is the underlying transport or store error.
	Err error
}

// Error implements the error interface.
func (e *RemoteError) Error() string {
	if e.Count > 0 {
		return fmt.Sprintf("remote %s (%d rows): %v", e.Op, e.Count, e.Err)
	}
	return fmt.Sprintf("remote %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *RemoteError) Unwrap() error {
	return e.Err
}

// IsRemoteError returns true if err is or wraps a RemoteError.
// Uses errors.As to handle wrapped errors.
func IsRemoteError(err error) bool {
	var re *RemoteError
	return errors.As(err, &re)
}

// RemoteOp returns the failed operation if err wraps a RemoteError.
func RemoteOp(err error) (remote.Op, bool) {
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Op, true
	}
	return "", false
}
