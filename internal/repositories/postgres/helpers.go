package postgres

import (
	"strings"

	"gorm.io/gorm"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// SharedHelpers holds query helpers common to the repositories
type SharedHelpers struct {
	db *gorm.DB
}

func NewSharedHelpers(db *gorm.DB) *SharedHelpers {
	return &SharedHelpers{db: db}
}

// ApplyPaginationAndSort applies ordering restricted to allowed columns and
// a bounded page size.
func (h *SharedHelpers) ApplyPaginationAndSort(query *gorm.DB, sortBy, sortOrder string, allowed map[string]bool, fallback string, limit, offset int) *gorm.DB {
	column := fallback
	if allowed[sortBy] {
		column = sortBy
	}
	direction := "asc"
	if strings.EqualFold(sortOrder, "desc") {
		direction = "desc"
	}
	query = query.Order(column + " " + direction)

	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	query = query.Limit(limit)
	if offset > 0 {
		query = query.Offset(offset)
	}
	return query
}

func (h *SharedHelpers) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return h.db
}
