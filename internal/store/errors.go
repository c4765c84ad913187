package store

import "errors"

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUnsupportedDriver is returned by Open for an unknown driver name.
	ErrUnsupportedDriver = errors.New("unsupported database driver")
	// ErrInvalidDSN is returned by Open when the DSN does not suit the driver.
	ErrInvalidDSN = errors.New("invalid database DSN")
)
