package postgres

import (
	"context"

	"github.com/SAP-F-2025/cat-service/internal/repositories"
	"gorm.io/gorm"
)

type repository struct {
	db       *gorm.DB
	items    repositories.ItemRepository
	sessions repositories.SessionRepository
}

// NewRepository wires the gorm-backed repositories around one connection.
func NewRepository(db *gorm.DB) repositories.Repository {
	return &repository{
		db:       db,
		items:    NewItemPostgreSQL(db),
		sessions: NewSessionPostgreSQL(db),
	}
}

func (r *repository) Item() repositories.ItemRepository {
	return r.items
}

func (r *repository) Session() repositories.SessionRepository {
	return r.sessions
}

// WithTransaction runs fn in a transaction, rolling back when fn returns an
// error or panics.
func (r *repository) WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}
