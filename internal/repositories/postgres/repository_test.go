package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/SAP-F-2025/cat-service/internal/models"
	"github.com/SAP-F-2025/cat-service/internal/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestRepository(t *testing.T) repositories.Repository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, AutoMigrate(db))
	return NewRepository(db)
}

func newItem(domain string, status models.ItemStatus, difficulty float64) *models.Item {
	return &models.Item{
		Text: "Identify the priority action",
		Options: datatypes.NewJSONType([]models.ItemOption{
			{Key: "A", Text: "first"},
			{Key: "B", Text: "second"},
		}),
		CorrectAnswer:  "A",
		ContentDomain:  domain,
		Status:         status,
		Difficulty:     difficulty,
		Discrimination: 1,
	}
}

func TestItemRepository_GetPublished(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	items := []*models.Item{
		newItem("pharmacology", models.ItemPublished, -1),
		newItem("pharmacology", models.ItemDraft, 0),
		newItem("pharmacology", models.ItemPublished, 1),
		newItem("basic_care", models.ItemPublished, 2),
		newItem("basic_care", models.ItemRetired, 3),
	}
	require.NoError(t, repo.Item().CreateBatch(ctx, nil, items))

	got, err := repo.Item().GetPublished(ctx, nil, "pharmacology", nil)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, items[0].ID, got[0].ID)
	assert.Equal(t, items[2].ID, got[1].ID)

	got, err = repo.Item().GetPublished(ctx, nil, "", []uint{items[0].ID})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, items[2].ID, got[0].ID)
	assert.Equal(t, items[3].ID, got[1].ID)
}

func TestItemRepository_StatusAndExposure(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	item := newItem("pharmacology", models.ItemDraft, 0.5)
	require.NoError(t, repo.Item().Create(ctx, nil, item))

	now := time.Now()
	require.NoError(t, repo.Item().UpdateStatus(ctx, nil, item.ID, models.ItemPublished, &now))

	err := repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := repo.Item().IncrementExposure(ctx, tx, item.ID); err != nil {
			return err
		}
		return repo.Item().IncrementExposure(ctx, tx, item.ID)
	})
	require.NoError(t, err)

	stored, err := repo.Item().GetByID(ctx, nil, item.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ItemPublished, stored.Status)
	assert.NotNil(t, stored.PublishedAt)
	assert.EqualValues(t, 2, stored.ExposureCount)
	assert.Equal(t, "A", stored.Options.Data()[0].Key)

	err = repo.Item().UpdateStatus(ctx, nil, 404, models.ItemRetired, nil)
	assert.True(t, repositories.IsNotFoundError(err))

	_, err = repo.Item().GetByID(ctx, nil, 404)
	assert.True(t, repositories.IsNotFoundError(err))
}

func TestItemRepository_List(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Item().Create(ctx, nil, newItem("basic_care", models.ItemPublished, float64(i))))
	}
	require.NoError(t, repo.Item().Create(ctx, nil, newItem("pharmacology", models.ItemDraft, 9)))

	domain := "basic_care"
	items, total, err := repo.Item().List(ctx, nil, repositories.ItemFilters{
		ContentDomain: &domain,
		SortBy:        "difficulty",
		SortOrder:     "desc",
		Limit:         2,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 5, total)
	require.Len(t, items, 2)
	assert.Equal(t, 4.0, items[0].Difficulty)
	assert.Equal(t, 3.0, items[1].Difficulty)

	// unknown sort columns fall back to id
	items, _, err = repo.Item().List(ctx, nil, repositories.ItemFilters{SortBy: "text; drop table items"})
	require.NoError(t, err)
	assert.Len(t, items, 6)
}

func TestSessionRepository_ResponsesAndHistory(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	sessions := []*models.Session{
		{ID: "s-1", UserID: "u-1", ExamType: "practice", Status: models.SessionCompleted, StartTime: start},
		{ID: "s-2", UserID: "u-1", ExamType: "practice", Status: models.SessionInProgress, StartTime: start.Add(time.Hour)},
		{ID: "s-3", UserID: "u-2", ExamType: "practice", Status: models.SessionInProgress, StartTime: start},
	}
	for _, s := range sessions {
		s.ContentCoverage = datatypes.NewJSONType(map[string]int{"basic_care": 0})
		require.NoError(t, repo.Session().Create(ctx, nil, s))
	}

	err := repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		locked, err := repo.Session().GetByIDForUpdate(ctx, tx, "s-2")
		if err != nil {
			return err
		}
		for seq := 1; seq <= 3; seq++ {
			if err := repo.Session().AppendResponse(ctx, tx, &models.Response{
				SessionID: locked.ID, Sequence: seq, ItemID: uint(seq), IsCorrect: seq%2 == 1,
			}); err != nil {
				return err
			}
		}
		locked.ItemsAnswered = 3
		locked.ContentCoverage = datatypes.NewJSONType(map[string]int{"basic_care": 3})
		return repo.Session().Update(ctx, tx, locked)
	})
	require.NoError(t, err)

	// a sequence number can only be used once per session
	dup := repo.Session().AppendResponse(ctx, nil, &models.Response{SessionID: "s-2", Sequence: 2, ItemID: 9})
	assert.Error(t, dup)

	withResponses, err := repo.Session().GetByIDWithResponses(ctx, nil, "s-2")
	require.NoError(t, err)
	require.Len(t, withResponses.Responses, 3)
	assert.Equal(t, 1, withResponses.Responses[0].Sequence)
	assert.Equal(t, 3, withResponses.ItemsAnswered)
	assert.Equal(t, 3, withResponses.Coverage()["basic_care"])

	history, total, err := repo.Session().ListByUser(ctx, nil, "u-1", repositories.SessionFilters{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, history, 2)
	assert.Equal(t, "s-2", history[0].ID)

	status := models.SessionCompleted
	history, total, err = repo.Session().ListByUser(ctx, nil, "u-1", repositories.SessionFilters{Status: &status})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, "s-1", history[0].ID)

	_, err = repo.Session().GetByID(ctx, nil, "missing")
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}
