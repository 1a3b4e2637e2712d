package repositories

import "errors"

// ErrDuplicateKey is returned when an insert collides with an existing
// document's primary key. Callers decide whether that is fatal.
var ErrDuplicateKey = errors.New("duplicate key")
