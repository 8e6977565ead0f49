package store

import "errors"

var (
	// ErrUnknownBackend is returned by NewWithConfig for an unsupported backend.
	ErrUnknownBackend = errors.New("unknown vector store backend")

	// ErrInvalidBlob is returned when a stored embedding cannot be decoded.
	ErrInvalidBlob = errors.New("invalid embedding blob")

	// ErrMissingID is returned when a record without an ID is upserted.
	ErrMissingID = errors.New("record ID must be set")
)
