package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/SAP-F-2025/cat-service/internal/cache"
	"github.com/SAP-F-2025/cat-service/internal/cat"
	"github.com/SAP-F-2025/cat-service/internal/models"
	"github.com/SAP-F-2025/cat-service/internal/repositories"
	"github.com/SAP-F-2025/cat-service/internal/validator"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ItemBankService owns calibrated items, their lifecycle and exposure
type ItemBankService interface {
	// Authoring
	Create(ctx context.Context, req *CreateItemRequest, creatorID string) (*ItemResponse, error)
	GetByID(ctx context.Context, id uint) (*ItemResponse, error)
	List(ctx context.Context, filters repositories.ItemFilters) (*ItemListResponse, error)
	Update(ctx context.Context, id uint, req *UpdateItemRequest) (*ItemResponse, error)
	Publish(ctx context.Context, id uint) (*ItemResponse, error)
	Retire(ctx context.Context, id uint) (*ItemResponse, error)

	// Administration
	GetCandidateItems(ctx context.Context, tx *gorm.DB, domain string, excludeIDs []uint) ([]cat.Candidate, error)
	Source(tx *gorm.DB) cat.CandidateSource
	RecordExposure(ctx context.Context, itemID uint) error
}

// ExposurePolicy caps administrations of one item per tracker window
type ExposurePolicy struct {
	Cap int64 // 0 disables the cap
}

type itemBankService struct {
	repo      repositories.Repository
	exposure  cache.ExposureTracker
	policy    ExposurePolicy
	logger    *slog.Logger
	validator *validator.Validator
}

func NewItemBankService(
	repo repositories.Repository,
	exposure cache.ExposureTracker,
	policy ExposurePolicy,
	logger *slog.Logger,
	validator *validator.Validator,
) ItemBankService {
	return &itemBankService{
		repo:      repo,
		exposure:  exposure,
		policy:    policy,
		logger:    logger,
		validator: validator,
	}
}

// ===== AUTHORING =====

func (s *itemBankService) Create(ctx context.Context, req *CreateItemRequest, creatorID string) (*ItemResponse, error) {
	s.logger.Info("Creating item", "content_domain", req.ContentDomain, "creator_id", creatorID)

	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	item := &models.Item{
		Text:           req.Text,
		Options:        datatypes.NewJSONType(req.Options),
		CorrectAnswer:  req.CorrectAnswer,
		Rationale:      req.Rationale,
		ContentDomain:  req.ContentDomain,
		BloomLevel:     req.BloomLevel,
		Status:         models.ItemDraft,
		Difficulty:     req.Difficulty,
		Discrimination: req.Discrimination,
		Guessing:       req.Guessing,
		CreatedBy:      creatorID,
	}
	if errs := s.validator.Item().ValidateItem(item); len(errs) > 0 {
		return nil, fmt.Errorf("validation failed: %w", errs)
	}

	if err := s.repo.Item().Create(ctx, nil, item); err != nil {
		return nil, fmt.Errorf("failed to create item: %w", err)
	}

	s.logger.Info("Item created", "item_id", item.ID)
	return toItemResponse(item), nil
}

func (s *itemBankService) GetByID(ctx context.Context, id uint) (*ItemResponse, error) {
	item, err := s.getItem(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	return toItemResponse(item), nil
}

func (s *itemBankService) List(ctx context.Context, filters repositories.ItemFilters) (*ItemListResponse, error) {
	items, total, err := s.repo.Item().List(ctx, nil, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}

	out := make([]*ItemResponse, len(items))
	for i, item := range items {
		out[i] = toItemResponse(item)
	}
	return &ItemListResponse{
		Items:  out,
		Total:  total,
		Limit:  filters.Limit,
		Offset: filters.Offset,
	}, nil
}

func (s *itemBankService) Update(ctx context.Context, id uint, req *UpdateItemRequest) (*ItemResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	item, err := s.getItem(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Item().ValidateImmutable(item); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrItemImmutable, err)
	}
	if item.Status == models.ItemRetired {
		return nil, ErrItemInvalidStatus
	}

	if req.Text != nil {
		item.Text = *req.Text
	}
	if req.Options != nil {
		item.Options = datatypes.NewJSONType(*req.Options)
	}
	if req.CorrectAnswer != nil {
		item.CorrectAnswer = *req.CorrectAnswer
	}
	if req.Rationale != nil {
		item.Rationale = req.Rationale
	}
	if req.ContentDomain != nil {
		item.ContentDomain = *req.ContentDomain
	}
	if req.BloomLevel != nil {
		item.BloomLevel = *req.BloomLevel
	}
	if req.Difficulty != nil {
		item.Difficulty = *req.Difficulty
	}
	if req.Discrimination != nil {
		item.Discrimination = *req.Discrimination
	}
	if req.Guessing != nil {
		item.Guessing = *req.Guessing
	}

	if errs := s.validator.Item().ValidateItem(item); len(errs) > 0 {
		return nil, fmt.Errorf("validation failed: %w", errs)
	}
	if err := s.repo.Item().Update(ctx, nil, item); err != nil {
		return nil, fmt.Errorf("failed to update item: %w", err)
	}
	return toItemResponse(item), nil
}

// Publish makes a draft item available for administration. Publishing an
// already published item is a no-op.
func (s *itemBankService) Publish(ctx context.Context, id uint) (*ItemResponse, error) {
	item, err := s.getItem(ctx, nil, id)
	if err != nil {
		return nil, err
	}

	switch item.Status {
	case models.ItemPublished:
		return toItemResponse(item), nil
	case models.ItemRetired:
		return nil, ErrItemInvalidStatus
	}

	if errs := s.validator.Item().ValidateItem(item); len(errs) > 0 {
		return nil, fmt.Errorf("validation failed: %w", errs)
	}

	now := time.Now()
	if err := s.repo.Item().UpdateStatus(ctx, nil, id, models.ItemPublished, &now); err != nil {
		return nil, fmt.Errorf("failed to publish item: %w", err)
	}
	item.Status = models.ItemPublished
	item.PublishedAt = &now

	s.logger.Info("Item published", "item_id", id, "content_domain", item.ContentDomain)
	return toItemResponse(item), nil
}

// Retire withdraws an item from administration; past responses keep
// referencing it.
func (s *itemBankService) Retire(ctx context.Context, id uint) (*ItemResponse, error) {
	item, err := s.getItem(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if item.Status == models.ItemRetired {
		return toItemResponse(item), nil
	}

	if err := s.repo.Item().UpdateStatus(ctx, nil, id, models.ItemRetired, nil); err != nil {
		return nil, fmt.Errorf("failed to retire item: %w", err)
	}
	item.Status = models.ItemRetired

	s.logger.Info("Item retired", "item_id", id)
	return toItemResponse(item), nil
}

// ===== ADMINISTRATION =====

// GetCandidateItems returns published items of a domain ("" for any) that
// were not excluded and are below the exposure cap, each with its windowed
// exposure count.
func (s *itemBankService) GetCandidateItems(ctx context.Context, tx *gorm.DB, domain string, excludeIDs []uint) ([]cat.Candidate, error) {
	items, err := s.repo.Item().GetPublished(ctx, tx, domain, excludeIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load published items: %w", err)
	}
	if len(items) == 0 {
		return nil, nil
	}

	ids := make([]uint, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}
	counts, err := s.exposure.Counts(ctx, ids)
	if err != nil {
		// Selection proceeds uncapped rather than failing the session.
		s.logger.Warn("Exposure counts unavailable", "domain", domain, "error", err)
		counts = map[uint]int64{}
	}

	candidates := make([]cat.Candidate, 0, len(items))
	for _, item := range items {
		exposure := counts[item.ID]
		if s.policy.Cap > 0 && exposure >= s.policy.Cap {
			continue
		}
		candidates = append(candidates, cat.Candidate{
			ID:            item.ID,
			Domain:        item.ContentDomain,
			Params:        item.Params(),
			ExposureCount: exposure,
		})
	}
	return candidates, nil
}

// Source binds candidate lookups to a transaction
func (s *itemBankService) Source(tx *gorm.DB) cat.CandidateSource {
	return candidateSource{bank: s, tx: tx}
}

// RecordExposure bumps the windowed exposure counter. The lifetime counter
// is incremented inside the transaction that issues the item.
func (s *itemBankService) RecordExposure(ctx context.Context, itemID uint) error {
	if _, err := s.exposure.Increment(ctx, itemID); err != nil {
		return fmt.Errorf("failed to record exposure for item %d: %w", itemID, err)
	}
	return nil
}

func (s *itemBankService) getItem(ctx context.Context, tx *gorm.DB, id uint) (*models.Item, error) {
	item, err := s.repo.Item().GetByID(ctx, tx, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return item, nil
}

type candidateSource struct {
	bank *itemBankService
	tx   *gorm.DB
}

func (c candidateSource) Candidates(ctx context.Context, domain string, excludeIDs []uint) ([]cat.Candidate, error) {
	return c.bank.GetCandidateItems(ctx, c.tx, domain, excludeIDs)
}
