package activation

import (
	"errors"
	"strings"
)

// Drivers report these through their own error types (mattn, modernc, pgx),
// the messages are what they have in common.
var (
	lockContentionMessages = []string{
		"database is locked",
		"database table is locked",
		"sqlite_busy",
		"sqlite_locked",
	}
	uniqueViolationMessages = []string{
		"unique constraint failed",
		"duplicate key value violates unique constraint",
		"sqlite_constraint_unique",
		"sqlite_constraint_primarykey",
	}
)

// isLockContention reports whether err means another connection holds the
// database write lock.
func isLockContention(err error) bool {
	return chainContains(err, lockContentionMessages)
}

// isUniqueViolation reports whether err comes from a unique index.
func isUniqueViolation(err error) bool {
	return chainContains(err, uniqueViolationMessages)
}

func chainContains(err error, messages []string) bool {
	for ; err != nil; err = errors.Unwrap(err) {
		msg := strings.ToLower(err.Error())
		for _, m := range messages {
			if strings.Contains(msg, m) {
				return true
			}
		}
	}
	return false
}
