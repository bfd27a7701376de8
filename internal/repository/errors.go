// Package repository provides SQL persistence for users, sessions, products
// and categories. Queries are written with ? placeholders and rebound to the
// connection's dialect.
package repository

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"

	"github.com/credihogar/catalog/internal/apperr"
)

const (
	pqUniqueViolation   = "23505"
	mysqlDuplicateEntry = 1062
)

// isUniqueViolation reports whether err is a unique constraint failure in
// either supported driver.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pqUniqueViolation
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDuplicateEntry
	}
	return false
}

// conflict turns a unique violation into a 409 backend error.
func conflict(err error, msg string) error {
	if isUniqueViolation(err) {
		return apperr.Backend(http.StatusConflict, msg)
	}
	return err
}

// notFound turns sql.ErrNoRows into a classified not-found error.
func notFound(err error, msg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound(msg)
	}
	return err
}
