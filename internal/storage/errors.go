package storage

import "errors"

var (
	// ErrUnavailable means the backing database file could not be opened.
	// Fatal to the process; nothing works without the store.
	ErrUnavailable = errors.New("storage unavailable")

	// ErrBusy means a write lost the busy-timeout race against another
	// writer. The driver already retried for the configured timeout
	// before this surfaces.
	ErrBusy = errors.New("storage busy")

	// ErrOwnerNotFound means an attachment referenced a clip id that does
	// not exist.
	ErrOwnerNotFound = errors.New("owning clip not found")
)
