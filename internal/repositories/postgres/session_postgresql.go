package postgres

import (
	"context"

	"github.com/SAP-F-2025/cat-service/internal/models"
	"github.com/SAP-F-2025/cat-service/internal/repositories"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var sessionSortColumns = map[string]bool{
	"start_time":     true,
	"end_time":       true,
	"items_answered": true,
}

type SessionPostgreSQL struct {
	db      *gorm.DB
	helpers *SharedHelpers
}

func NewSessionPostgreSQL(db *gorm.DB) repositories.SessionRepository {
	return &SessionPostgreSQL{
		db:      db,
		helpers: NewSharedHelpers(db),
	}
}

func (r *SessionPostgreSQL) Create(ctx context.Context, tx *gorm.DB, session *models.Session) error {
	db := r.helpers.getDB(tx)
	return db.WithContext(ctx).Omit(clause.Associations).Create(session).Error
}

func (r *SessionPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.Session, error) {
	db := r.helpers.getDB(tx)
	var session models.Session
	if err := db.WithContext(ctx).Where("id = ?", id).First(&session).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

// GetByIDForUpdate locks the session row for the rest of the transaction.
func (r *SessionPostgreSQL) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id string) (*models.Session, error) {
	db := r.helpers.getDB(tx)
	var session models.Session
	if err := db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&session).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *SessionPostgreSQL) GetByIDWithResponses(ctx context.Context, tx *gorm.DB, id string) (*models.Session, error) {
	db := r.helpers.getDB(tx)
	var session models.Session
	if err := db.WithContext(ctx).
		Preload("Responses", func(db *gorm.DB) *gorm.DB {
			return db.Order("sequence asc")
		}).
		Where("id = ?", id).
		First(&session).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *SessionPostgreSQL) Update(ctx context.Context, tx *gorm.DB, session *models.Session) error {
	db := r.helpers.getDB(tx)
	return db.WithContext(ctx).Omit(clause.Associations).Save(session).Error
}

func (r *SessionPostgreSQL) AppendResponse(ctx context.Context, tx *gorm.DB, response *models.Response) error {
	db := r.helpers.getDB(tx)
	return db.WithContext(ctx).Create(response).Error
}

func (r *SessionPostgreSQL) GetResponses(ctx context.Context, tx *gorm.DB, sessionID string) ([]models.Response, error) {
	db := r.helpers.getDB(tx)
	var responses []models.Response
	if err := db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("sequence asc").
		Find(&responses).Error; err != nil {
		return nil, err
	}
	return responses, nil
}

func (r *SessionPostgreSQL) ListByUser(ctx context.Context, tx *gorm.DB, userID string, filters repositories.SessionFilters) ([]*models.Session, int64, error) {
	db := r.helpers.getDB(tx)
	var sessions []*models.Session
	var total int64

	query := db.WithContext(ctx).Model(&models.Session{}).Where("user_id = ?", userID)
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.ExamType != nil {
		query = query.Where("exam_type = ?", *filters.ExamType)
	}
	if filters.DateFrom != nil {
		query = query.Where("start_time >= ?", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		query = query.Where("start_time <= ?", *filters.DateTo)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	sortOrder := filters.SortOrder
	if filters.SortBy == "" && sortOrder == "" {
		sortOrder = "desc"
	}
	query = r.helpers.ApplyPaginationAndSort(query, filters.SortBy, sortOrder, sessionSortColumns, "start_time", filters.Limit, filters.Offset)
	if err := query.Find(&sessions).Error; err != nil {
		return nil, 0, err
	}

	return sessions, total, nil
}
