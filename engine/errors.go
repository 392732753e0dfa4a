package engine

import "errors"

var (
	// ErrClosed is returned when an operation is attempted on a closed engine.
	ErrClosed = errors.New("engine closed")

	// ErrUnavailable is returned while the engine is recovering or after its
	// recovery failed. The cause is wrapped alongside it.
	ErrUnavailable = errors.New("engine unavailable")

	// ErrRecovering is the cause attached to ErrUnavailable during recovery.
	ErrRecovering = errors.New("recovery in progress")

	// ErrReadOnly is returned when a write is attempted on a read-only engine.
	ErrReadOnly = errors.New("engine is read-only")

	// ErrAlreadyRegistered is returned by Register for an id with a live record.
	ErrAlreadyRegistered = errors.New("account already registered")

	// ErrNotFound is returned by Unregister for an id without a live record.
	ErrNotFound = errors.New("account not found")

	// ErrInvalidArgument is returned for invalid query options.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNoStore is returned by Checkpoint when no blob store is configured.
	ErrNoStore = errors.New("no checkpoint store configured")

	// ErrSnapshotReleased is returned when querying a released snapshot.
	ErrSnapshotReleased = errors.New("snapshot released")
)
