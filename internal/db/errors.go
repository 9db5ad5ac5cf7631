package db

import "errors"

// Sentinel errors for database operations.
var (
	ErrKeyNotFound       = errors.New("db: key not found")
	ErrRowNotFound       = errors.New("db: row not found")
	ErrDuplicate         = errors.New("db: duplicate key")
	ErrDimensionMismatch = errors.New("db: embedding dimension mismatch")
)

// Op constants name the failing operation for error context.
// Key-value ops follow Valkey command names.
const (
	OpGet     = "GET"
	OpMGet    = "MGET"
	OpSet     = "SET"
	OpIncrBy  = "INCRBY"
	OpExpire  = "EXPIRE"
	OpMigrate = "migrate"
	OpInsert  = "insert_document"
	OpSelect  = "select_document"
	OpList    = "list_documents"
	OpDelete  = "delete_document"
	OpNearest = "nearest_chunks"
)

// Error wraps an underlying error with the operation name for diagnostics.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
