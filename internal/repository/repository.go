// Package repository contains the data access layer. Every list query goes
// through the shared visibility scope so soft-deleted rows and rows owned by
// other users never leak to non-admin callers.
package repository

import (
	"strings"

	"bulletinboard/internal/models"

	"gorm.io/gorm"
)

// PageSize is the fixed number of records per listing page.
const PageSize = 5

// Page is one page of a listing result.
type Page[T any] struct {
	Records    []T
	Number     int
	TotalPages int
	Total      int64
}

// HasPrev reports whether an earlier page exists.
func (p Page[T]) HasPrev() bool { return p.Number > 1 }

// HasNext reports whether a later page exists.
func (p Page[T]) HasNext() bool { return p.Number < p.TotalPages }

// visibleTo returns a scope applying the soft-delete predicate plus the
// role-based ownership narrowing for the caller.
func visibleTo(caller models.Caller) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		db = db.Where("delete_user_id IS NULL AND deleted_at IS NULL")
		if !caller.Admin() {
			db = db.Where("created_user_id = ?", caller.ID)
		}
		return db
	}
}

// clampPage converts a requested 1-based page number into a valid page number
// and offset for the given row count. Out-of-range requests clamp to the
// nearest valid page.
func clampPage(requested int, total int64) (page, totalPages, offset int) {
	totalPages = int((total + PageSize - 1) / PageSize)
	if totalPages < 1 {
		totalPages = 1
	}
	page = requested
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}
	offset = (page - 1) * PageSize
	return page, totalPages, offset
}

// isUniqueConstraintError reports whether err came from a unique index
// violation. Matched textually so both the postgres and sqlite drivers are
// covered.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "unique failed")
}
