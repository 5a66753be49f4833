package postgres

import (
	"context"
	"time"

	"github.com/SAP-F-2025/cat-service/internal/models"
	"github.com/SAP-F-2025/cat-service/internal/repositories"
	"gorm.io/gorm"
)

var itemSortColumns = map[string]bool{
	"id":             true,
	"difficulty":     true,
	"discrimination": true,
	"exposure_count": true,
	"created_at":     true,
}

type ItemPostgreSQL struct {
	db      *gorm.DB
	helpers *SharedHelpers
}

func NewItemPostgreSQL(db *gorm.DB) repositories.ItemRepository {
	return &ItemPostgreSQL{
		db:      db,
		helpers: NewSharedHelpers(db),
	}
}

func (r *ItemPostgreSQL) Create(ctx context.Context, tx *gorm.DB, item *models.Item) error {
	db := r.helpers.getDB(tx)
	return db.WithContext(ctx).Create(item).Error
}

func (r *ItemPostgreSQL) CreateBatch(ctx context.Context, tx *gorm.DB, items []*models.Item) error {
	if len(items) == 0 {
		return nil
	}
	db := r.helpers.getDB(tx)
	return db.WithContext(ctx).CreateInBatches(items, 100).Error
}

func (r *ItemPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Item, error) {
	db := r.helpers.getDB(tx)
	var item models.Item
	if err := db.WithContext(ctx).First(&item, id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *ItemPostgreSQL) Update(ctx context.Context, tx *gorm.DB, item *models.Item) error {
	db := r.helpers.getDB(tx)
	return db.WithContext(ctx).Save(item).Error
}

func (r *ItemPostgreSQL) UpdateStatus(ctx context.Context, tx *gorm.DB, id uint, status models.ItemStatus, publishedAt *time.Time) error {
	db := r.helpers.getDB(tx)
	updates := map[string]interface{}{"status": status}
	if publishedAt != nil {
		updates["published_at"] = *publishedAt
	}
	result := db.WithContext(ctx).Model(&models.Item{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *ItemPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.ItemFilters) ([]*models.Item, int64, error) {
	db := r.helpers.getDB(tx)
	var items []*models.Item
	var total int64

	// apply filter first
	query := db.WithContext(ctx).Model(&models.Item{})
	if filters.ContentDomain != nil {
		query = query.Where("content_domain = ?", *filters.ContentDomain)
	}
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.BloomLevel != nil {
		query = query.Where("bloom_level = ?", *filters.BloomLevel)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// then apply pagination and sorting
	query = r.helpers.ApplyPaginationAndSort(query, filters.SortBy, filters.SortOrder, itemSortColumns, "id", filters.Limit, filters.Offset)
	if err := query.Find(&items).Error; err != nil {
		return nil, 0, err
	}

	return items, total, nil
}

// GetPublished returns published items of a domain ("" for all domains)
// ordered by id, excluding the given ids.
func (r *ItemPostgreSQL) GetPublished(ctx context.Context, tx *gorm.DB, contentDomain string, excludeIDs []uint) ([]*models.Item, error) {
	db := r.helpers.getDB(tx)
	var items []*models.Item

	query := db.WithContext(ctx).Where("status = ?", models.ItemPublished)
	if contentDomain != "" {
		query = query.Where("content_domain = ?", contentDomain)
	}
	if len(excludeIDs) > 0 {
		query = query.Where("id NOT IN ?", excludeIDs)
	}

	if err := query.Order("id asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// IncrementExposure bumps the lifetime counter in SQL so concurrent sessions
// never lose an update.
func (r *ItemPostgreSQL) IncrementExposure(ctx context.Context, tx *gorm.DB, id uint) error {
	db := r.helpers.getDB(tx)
	return db.WithContext(ctx).
		Model(&models.Item{}).
		Where("id = ?", id).
		UpdateColumn("exposure_count", gorm.Expr("exposure_count + ?", 1)).Error
}
