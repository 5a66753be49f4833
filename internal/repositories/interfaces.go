package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/SAP-F-2025/cat-service/internal/models"
	"gorm.io/gorm"
)

// ===== SHARED FILTER STRUCTS =====

type ItemFilters struct {
	ContentDomain *string            `json:"content_domain"`
	Status        *models.ItemStatus `json:"status"`
	BloomLevel    *models.BloomLevel `json:"bloom_level"`
	Limit         int                `json:"limit"`
	Offset        int                `json:"offset"`
	SortBy        string             `json:"sort_by"`    // "id", "difficulty", "created_at"
	SortOrder     string             `json:"sort_order"` // "asc", "desc"
}

type SessionFilters struct {
	Status    *models.SessionStatus `json:"status"`
	ExamType  *string               `json:"exam_type"`
	DateFrom  *time.Time            `json:"date_from"`
	DateTo    *time.Time            `json:"date_to"`
	Limit     int                   `json:"limit"`
	Offset    int                   `json:"offset"`
	SortBy    string                `json:"sort_by"`    // "start_time", "end_time"
	SortOrder string                `json:"sort_order"` // "asc", "desc"
}

// ===== REPOSITORY INTERFACES =====

// ItemRepository interface for item bank operations
type ItemRepository interface {
	// Basic CRUD operations
	Create(ctx context.Context, tx *gorm.DB, item *models.Item) error
	CreateBatch(ctx context.Context, tx *gorm.DB, items []*models.Item) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Item, error)
	Update(ctx context.Context, tx *gorm.DB, item *models.Item) error
	UpdateStatus(ctx context.Context, tx *gorm.DB, id uint, status models.ItemStatus, publishedAt *time.Time) error

	// Query operations
	List(ctx context.Context, tx *gorm.DB, filters ItemFilters) ([]*models.Item, int64, error)
	GetPublished(ctx context.Context, tx *gorm.DB, contentDomain string, excludeIDs []uint) ([]*models.Item, error)

	// Exposure tracking
	IncrementExposure(ctx context.Context, tx *gorm.DB, id uint) error
}

// SessionRepository interface for CAT session operations
type SessionRepository interface {
	Create(ctx context.Context, tx *gorm.DB, session *models.Session) error
	GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.Session, error)
	GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id string) (*models.Session, error)
	GetByIDWithResponses(ctx context.Context, tx *gorm.DB, id string) (*models.Session, error)
	Update(ctx context.Context, tx *gorm.DB, session *models.Session) error

	// Responses
	AppendResponse(ctx context.Context, tx *gorm.DB, response *models.Response) error
	GetResponses(ctx context.Context, tx *gorm.DB, sessionID string) ([]models.Response, error)

	// History
	ListByUser(ctx context.Context, tx *gorm.DB, userID string, filters SessionFilters) ([]*models.Session, int64, error)
}

// Repository groups the repositories and owns the transaction boundary.
type Repository interface {
	Item() ItemRepository
	Session() SessionRepository
	WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// IsNotFoundError reports whether err means the record does not exist
func IsNotFoundError(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
