package source

import "errors"

var (
	// ErrMissingColumn is returned when the header lacks a required column.
	ErrMissingColumn = errors.New("missing required column")

	// ErrInvalidNumber is returned when a numeric cell cannot be parsed.
	ErrInvalidNumber = errors.New("invalid number")

	// ErrNoTable is returned when an HTML document contains no <table>.
	ErrNoTable = errors.New("no table found")

	// ErrInvalidDelimiter is returned for a delimiter that is not a single character.
	ErrInvalidDelimiter = errors.New("delimiter must be a single character")
)
