package interfaces

import "errors"

// ErrNotFound is returned by storage implementations when a key or holding
// does not exist. Callers distinguish it from I/O failures with errors.Is.
var ErrNotFound = errors.New("not found")
