package sqlite

import "errors"

// ErrDatabaseError is returned when a database operation fails.
var ErrDatabaseError = errors.New("database error")
