package db

import (
	"context"
	"errors"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Repository failures fall into three kinds. Transient means a retry may
// help (write contention, locked database). Conflict means another writer
// won a race the caller may re-read around. Fatal means the store itself is
// unusable and the offending session should be dropped.
var (
	ErrTransient = errors.New("transient storage error")
	ErrConflict  = errors.New("storage conflict")
	ErrFatal     = errors.New("storage failure")
)

// classify wraps a driver error with one of the repository error kinds so
// callers can branch with errors.Is without knowing the driver.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return errors.Join(ErrTransient, err)
		case sqlite3.SQLITE_CONSTRAINT:
			return errors.Join(ErrConflict, err)
		case sqlite3.SQLITE_CORRUPT, sqlite3.SQLITE_NOTADB, sqlite3.SQLITE_IOERR:
			return errors.Join(ErrFatal, err)
		}
	}
	return errors.Join(ErrFatal, err)
}

// IsTransient reports whether the operation may succeed if retried.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// IsFatal reports whether the store should be considered unusable for the
// affected session.
func IsFatal(err error) bool {
	return errors.Is(err, ErrFatal)
}
