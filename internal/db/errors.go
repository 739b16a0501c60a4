package db

import "errors"

var (
	// ErrKeyNotFound is returned by Get for a missing key.
	ErrKeyNotFound = errors.New("db: key not found")
	// ErrIndexNotFound is returned when the FT index does not exist.
	ErrIndexNotFound = errors.New("db: index not found")
	// ErrIndexExists is returned by CreateIndex for a name already in use.
	ErrIndexExists = errors.New("db: index already exists")
)

// Command names used as Error.Op.
const (
	OpGet         = "GET"
	OpSet         = "SET"
	OpHSet        = "HSET"
	OpHGetAll     = "HGETALL"
	OpSearch      = "FT.SEARCH"
	OpCreateIndex = "FT.CREATE"
	OpDropIndex   = "FT.DROPINDEX"
	OpIndexInfo   = "FT.INFO"
)

// Error tags a server or transport failure with the command that hit it.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }
