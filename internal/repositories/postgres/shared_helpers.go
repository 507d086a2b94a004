package postgres

import (
	"fmt"

	"gorm.io/gorm"
)

// handleDBError is a package-level helper for handling database errors.
// gorm.ErrRecordNotFound and gorm.ErrDuplicatedKey are passed through
// untouched so callers can detect them with repositories.IsNotFoundError
// and repositories.IsDuplicateError.
func handleDBError(err error, operation string) error {
	if err == nil {
		return nil
	}
	if err == gorm.ErrRecordNotFound || err == gorm.ErrDuplicatedKey {
		return err
	}
	return fmt.Errorf("%s failed: %w", operation, err)
}

// applyPaginationAndSorting applies pagination and sorting with a column
// whitelist. Map logical API sort keys to SQL-safe column names.
func applyPaginationAndSorting(query *gorm.DB, limit, offset int, sortBy, sortOrder string, sortKeyToColumn map[string]string) *gorm.DB {
	column, ok := sortKeyToColumn[sortBy]
	if !ok {
		column = "created_at"
	}

	order := "DESC"
	if sortOrder == "asc" || sortOrder == "ASC" {
		order = "ASC"
	}

	// Use only mapped SQL column name and constant sort order
	query = query.Order(fmt.Sprintf("%s %s", column, order))

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	return query
}
