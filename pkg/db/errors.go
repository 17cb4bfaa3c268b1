package db

import (
	"strings"

	pkgerrors "github.com/kicksnairobi/footwear-backend/pkg/errors"
)

const pgUniqueViolation = "23505"

// IsUniqueViolation reports whether err is a unique constraint violation.
// When constraintName is provided the violation must reference it.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	if pg, ok := pkgerrors.PG(err); ok {
		return pg.Code == pgUniqueViolation && (constraintName == "" || pg.Constraint == constraintName)
	}

	// sqlite and wrapped driver errors only expose text
	msg := err.Error()
	if !strings.Contains(msg, "duplicate key value") && !strings.Contains(msg, "UNIQUE constraint failed") {
		return false
	}
	return constraintName == "" || strings.Contains(msg, constraintName)
}
