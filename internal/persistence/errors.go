package persistence

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrDuplicate is returned when a uniqueness constraint rejects a write.
	ErrDuplicate = errors.New("persistence: duplicate record")
	// ErrConstraintViolation is returned when a CHECK or NOT NULL constraint rejects a write.
	ErrConstraintViolation = errors.New("persistence: constraint violation")
	// ErrForeignKeyViolation is returned when a referenced row is missing.
	ErrForeignKeyViolation = errors.New("persistence: foreign key violation")
	// ErrLiveClaim is returned when a point cannot be removed because it holds a claimed row.
	ErrLiveClaim = errors.New("persistence: point has a live claim")
	// ErrTransient is returned for connectivity, lock, and timeout failures.
	ErrTransient = errors.New("persistence: transient failure")
)
