package domain

import "errors"

var (
	ErrNotFound    = errors.New("not found")
	ErrLockHeld    = errors.New("lock already held")
	ErrObjectFetch = errors.New("object fetch failed")
	ErrParse       = errors.New("fill data parse failed")
	ErrPersistence = errors.New("persistence failed")
)
