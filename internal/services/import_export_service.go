package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/SAP-F-2025/cat-service/internal/models"
	"github.com/SAP-F-2025/cat-service/internal/repositories"
	"github.com/SAP-F-2025/cat-service/internal/validator"
	"github.com/xuri/excelize/v2"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ImportExportService moves calibrated items in and out of spreadsheets
type ImportExportService interface {
	ImportItemsFromFile(ctx context.Context, reader io.Reader, filename string, creatorID string) (*ImportResult, error)
	ImportItemsFromCSV(ctx context.Context, reader io.Reader, creatorID string) (*ImportResult, error)
	ImportItemsFromExcel(ctx context.Context, reader io.Reader, creatorID string) (*ImportResult, error)

	ExportItemsToCSV(ctx context.Context, filters repositories.ItemFilters) ([]byte, error)
	ExportItemsToExcel(ctx context.Context, filters repositories.ItemFilters) ([]byte, error)
}

const (
	itemSheetName  = "Items"
	exportPageSize = 100
)

var optionColumns = []string{"option_a", "option_b", "option_c", "option_d", "option_e", "option_f"}

var exportHeaders = []string{
	"text", "option_a", "option_b", "option_c", "option_d", "option_e", "option_f",
	"correct_answer", "content_domain", "bloom_level", "difficulty", "discrimination",
	"guessing", "rationale", "status",
}

type importExportService struct {
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
}

func NewImportExportService(repo repositories.Repository, logger *slog.Logger, validator *validator.Validator) ImportExportService {
	return &importExportService{
		repo:      repo,
		logger:    logger,
		validator: validator,
	}
}

// ===== IMPORT OPERATIONS =====

func (s *importExportService) ImportItemsFromFile(ctx context.Context, reader io.Reader, filename string, creatorID string) (*ImportResult, error) {
	s.logger.Info("Starting item import", "filename", filename, "creator_id", creatorID)

	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".csv":
		return s.ImportItemsFromCSV(ctx, reader, creatorID)
	case ".xlsx":
		return s.ImportItemsFromExcel(ctx, reader, creatorID)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFileType, ext)
	}
}

func (s *importExportService) ImportItemsFromCSV(ctx context.Context, reader io.Reader, creatorID string) (*ImportResult, error) {
	csvReader := csv.NewReader(reader)
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read CSV: %v", ErrBadRequest, err)
	}
	return s.importRows(ctx, records, creatorID)
}

func (s *importExportService) ImportItemsFromExcel(ctx context.Context, reader io.Reader, creatorID string) (*ImportResult, error) {
	f, err := excelize.OpenReader(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open Excel file: %v", ErrBadRequest, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, NewValidationError("file", "Excel file has no sheets", nil)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read Excel rows: %w", err)
	}
	return s.importRows(ctx, rows, creatorID)
}

// importRows validates every row and stores the valid ones as drafts in one
// transaction.
func (s *importExportService) importRows(ctx context.Context, rows [][]string, creatorID string) (*ImportResult, error) {
	if len(rows) < 2 {
		return nil, NewValidationError("file", "file must have a header row and at least one data row", len(rows))
	}

	headerMap := make(map[string]int)
	for i, header := range rows[0] {
		headerMap[strings.ToLower(strings.TrimSpace(header))] = i
	}
	for _, col := range []string{"text", "correct_answer", "content_domain", "difficulty", "discrimination"} {
		if _, exists := headerMap[col]; !exists {
			return nil, NewValidationError("headers", fmt.Sprintf("missing required column: %s", col), col)
		}
	}

	result := &ImportResult{TotalRows: len(rows) - 1}
	var items []*models.Item
	for rowIndex, record := range rows[1:] {
		if isBlankRow(record) {
			result.TotalRows--
			continue
		}
		item, rowErrors := s.parseRow(record, headerMap, rowIndex+2, creatorID)
		if len(rowErrors) > 0 {
			result.Errors = append(result.Errors, rowErrors...)
			result.ErrorCount++
			continue
		}
		items = append(items, item)
	}

	if len(items) > 0 {
		err := s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
			return s.repo.Item().CreateBatch(ctx, tx, items)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to save imported items: %w", err)
		}
	}

	for _, item := range items {
		result.ItemIDs = append(result.ItemIDs, item.ID)
	}
	result.SuccessCount = len(items)
	switch {
	case result.ErrorCount == 0:
		result.Status = models.ImportCompleted
	case result.SuccessCount == 0:
		result.Status = models.ImportValidationFailed
	default:
		result.Status = models.ImportPartial
	}

	s.logger.Info("Item import completed",
		"total_rows", result.TotalRows,
		"success_count", result.SuccessCount,
		"error_count", result.ErrorCount)

	return result, nil
}

func (s *importExportService) parseRow(record []string, headerMap map[string]int, rowNum int, creatorID string) (*models.Item, []models.ImportRowError) {
	var errs []models.ImportRowError

	getColumn := func(name string) string {
		if index, exists := headerMap[name]; exists && index < len(record) {
			return strings.TrimSpace(record[index])
		}
		return ""
	}
	parseFloat := func(name string, fallback float64) float64 {
		raw := getColumn(name)
		if raw == "" {
			return fallback
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			errs = append(errs, models.ImportRowError{Row: rowNum, Column: name, Message: "must be a number", Value: raw})
			return fallback
		}
		return v
	}

	var options []models.ItemOption
	for i, col := range optionColumns {
		if text := getColumn(col); text != "" {
			options = append(options, models.ItemOption{Key: string(rune('A' + i)), Text: text})
		}
	}

	item := &models.Item{
		Text:           getColumn("text"),
		Options:        datatypes.NewJSONType(options),
		CorrectAnswer:  strings.ToUpper(getColumn("correct_answer")),
		ContentDomain:  getColumn("content_domain"),
		BloomLevel:     models.BloomLevel(strings.ToLower(getColumn("bloom_level"))),
		Status:         models.ItemDraft,
		Difficulty:     parseFloat("difficulty", 0),
		Discrimination: parseFloat("discrimination", 0),
		Guessing:       parseFloat("guessing", 0),
		CreatedBy:      creatorID,
	}
	if rationale := getColumn("rationale"); rationale != "" {
		item.Rationale = &rationale
	}
	if len(errs) > 0 {
		return nil, errs
	}

	if err := s.validator.ValidateStruct(item); err != nil {
		for _, ve := range validator.ToValidationErrors(err) {
			errs = append(errs, models.ImportRowError{Row: rowNum, Column: ve.Field, Message: ve.Message, Value: fmt.Sprint(ve.Value)})
		}
	}
	for _, ve := range s.validator.Item().ValidateItem(item) {
		errs = append(errs, models.ImportRowError{Row: rowNum, Column: ve.Field, Message: ve.Message, Value: fmt.Sprint(ve.Value)})
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return item, nil
}

func isBlankRow(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// ===== EXPORT OPERATIONS =====

func (s *importExportService) ExportItemsToCSV(ctx context.Context, filters repositories.ItemFilters) ([]byte, error) {
	items, err := s.itemsForExport(ctx, filters)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.Write(exportHeaders); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, item := range items {
		if err := writer.Write(itemToRow(item)); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *importExportService) ExportItemsToExcel(ctx context.Context, filters repositories.ItemFilters) ([]byte, error) {
	items, err := s.itemsForExport(ctx, filters)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(itemSheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create Excel sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to remove default sheet: %w", err)
	}

	if err := f.SetSheetRow(itemSheetName, "A1", &exportHeaders); err != nil {
		return nil, fmt.Errorf("failed to write Excel header: %w", err)
	}
	for i, item := range items {
		row := itemToRow(item)
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(itemSheetName, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write Excel row: %w", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write Excel file: %w", err)
	}
	return buf.Bytes(), nil
}

// itemsForExport pages through every item matching the filters.
func (s *importExportService) itemsForExport(ctx context.Context, filters repositories.ItemFilters) ([]*models.Item, error) {
	filters.Limit = exportPageSize
	var items []*models.Item
	for offset := 0; ; offset += exportPageSize {
		filters.Offset = offset
		page, total, err := s.repo.Item().List(ctx, nil, filters)
		if err != nil {
			return nil, fmt.Errorf("failed to list items: %w", err)
		}
		items = append(items, page...)
		if len(page) < exportPageSize || int64(len(items)) >= total {
			return items, nil
		}
	}
}

func itemToRow(item *models.Item) []string {
	row := make([]string, 0, len(exportHeaders))
	row = append(row, item.Text)

	byKey := make(map[string]string)
	for _, opt := range item.Options.Data() {
		byKey[opt.Key] = opt.Text
	}
	for i := range optionColumns {
		row = append(row, byKey[string(rune('A'+i))])
	}

	rationale := ""
	if item.Rationale != nil {
		rationale = *item.Rationale
	}
	return append(row,
		item.CorrectAnswer,
		item.ContentDomain,
		string(item.BloomLevel),
		strconv.FormatFloat(item.Difficulty, 'f', -1, 64),
		strconv.FormatFloat(item.Discrimination, 'f', -1, 64),
		strconv.FormatFloat(item.Guessing, 'f', -1, 64),
		rationale,
		string(item.Status),
	)
}
