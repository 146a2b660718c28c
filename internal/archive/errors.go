package archive

import "errors"

var (
	// ErrNotFound indicates no record carries the requested id.
	ErrNotFound = errors.New("archive: record not found")

	// ErrPersist indicates the collection could not be durably written.
	ErrPersist = errors.New("archive: durable write failed")

	// ErrInvalidImport indicates an import payload lacks a metadata or results section.
	ErrInvalidImport = errors.New("archive: import payload missing metadata or results")

	// ErrClosed indicates the store has been closed.
	ErrClosed = errors.New("archive: store closed")
)
