package storage

import (
	"errors"

	"github.com/jackc/pgx/v5"
)

var (
	// ErrNotFound means the filter matched no record. It is distinct from
	// an operation failure.
	ErrNotFound = errors.New("record not found")

	// ErrUnknownColumn means an update named a column the collection does
	// not expose for writing.
	ErrUnknownColumn = errors.New("unknown column")
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, pgx.ErrNoRows)
}
