package db

import (
	"database/sql"
	"strings"

	"github.com/teranos/govpipe/errors"
)

// ErrDatabaseClosed marks operations attempted after the connection was closed
var ErrDatabaseClosed = errors.New("database is closed")

// IsDatabaseClosed reports whether err comes from a closed database: marked
// with ErrDatabaseClosed, sql.ErrConnDone, or the driver's own message.
func IsDatabaseClosed(err error) bool {
	if err == nil {
		return false
	}
	if errors.IsAny(err, ErrDatabaseClosed, sql.ErrConnDone) {
		return true
	}
	return strings.Contains(err.Error(), "database is closed")
}

// MarkClosed tags a closed-database driver error with ErrDatabaseClosed so
// callers can match it with errors.Is. Other errors pass through unchanged.
func MarkClosed(err error) error {
	if err == nil || errors.Is(err, ErrDatabaseClosed) || !IsDatabaseClosed(err) {
		return err
	}
	return errors.Mark(err, ErrDatabaseClosed)
}
