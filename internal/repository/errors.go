package repository

import "errors"

var (
	// ErrStaleVersion means the row changed since it was loaded.
	ErrStaleVersion = errors.New("stale version")
	ErrDuplicate    = errors.New("duplicate record")
)
