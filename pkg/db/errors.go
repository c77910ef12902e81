package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const pgUniqueViolation = "23505"

// IsUniqueViolation reports whether err is a unique constraint failure. When
// constraintName is provided the constraint must match as well.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != pgUniqueViolation {
			return false
		}
		return constraintName == "" || pgErr.ConstraintName == constraintName
	}
	msg := err.Error()
	if constraintName != "" && strings.Contains(msg, constraintName) {
		return true
	}
	// sqlite reports the offending columns instead of a constraint name.
	if strings.Contains(msg, "UNIQUE constraint failed") {
		return constraintName == "" || sqliteColumnMatch(msg, constraintName)
	}
	return constraintName == "" && strings.Contains(msg, "duplicate key value")
}

// IsNotFound reports whether err is gorm's record-not-found sentinel.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// sqliteColumnMatch maps a postgres-style "<table>_<column>_key" constraint
// name onto sqlite's "<table>.<column>" wording.
func sqliteColumnMatch(msg, constraintName string) bool {
	name := strings.TrimSuffix(constraintName, "_key")
	for i := 0; i < len(name); i++ {
		if name[i] != '_' {
			continue
		}
		if strings.Contains(msg, name[:i]+"."+name[i+1:]) {
			return true
		}
	}
	return false
}
