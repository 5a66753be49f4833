package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/SAP-F-2025/cat-service/internal/models"
	"github.com/SAP-F-2025/cat-service/internal/repositories"
	"github.com/SAP-F-2025/cat-service/internal/services"
	"github.com/SAP-F-2025/cat-service/internal/utils"
	"github.com/gin-gonic/gin"
)

const (
	csvContentType   = "text/csv"
	excelContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	defaultMaxImportBytes int64 = 10 << 20
)

type ItemHandler struct {
	BaseHandler
	itemBank     services.ItemBankService
	importExport services.ImportExportService

	// maxImportBytes bounds the whole multipart request body
	maxImportBytes int64
}

func NewItemHandler(itemBank services.ItemBankService, importExport services.ImportExportService, logger utils.Logger) *ItemHandler {
	return &ItemHandler{
		BaseHandler:    NewBaseHandler(logger),
		itemBank:       itemBank,
		importExport:   importExport,
		maxImportBytes: defaultMaxImportBytes,
	}
}

// CreateItem adds a draft item to the bank
// @Summary Create item
// @Tags items
// @Accept json
// @Produce json
// @Param item body services.CreateItemRequest true "Item data"
// @Success 201 {object} services.ItemResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /items [post]
func (h *ItemHandler) CreateItem(c *gin.Context) {
	h.LogRequest(c, "Creating item")

	var req services.CreateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.RespondWithError(c, http.StatusBadRequest, CodeValidation, "Invalid request payload", err.Error())
		return
	}
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	item, err := h.itemBank.Create(c.Request.Context(), &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

// @Summary Get item
// @Tags items
// @Produce json
// @Param id path uint true "Item ID"
// @Success 200 {object} services.ItemResponse
// @Failure 404 {object} ErrorResponse
// @Router /items/{id} [get]
func (h *ItemHandler) GetItem(c *gin.Context) {
	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	item, err := h.itemBank.GetByID(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// @Summary List items
// @Tags items
// @Produce json
// @Param content_domain query string false "Content domain"
// @Param status query string false "Item status"
// @Param bloom_level query string false "Bloom level"
// @Param page query int false "Page number"
// @Param size query int false "Page size"
// @Success 200 {object} services.ItemListResponse
// @Router /items [get]
func (h *ItemHandler) ListItems(c *gin.Context) {
	resp, err := h.itemBank.List(c.Request.Context(), parseItemFilters(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// UpdateItem edits a draft item
// @Summary Update item
// @Tags items
// @Accept json
// @Produce json
// @Param id path uint true "Item ID"
// @Param item body services.UpdateItemRequest true "Fields to change"
// @Success 200 {object} services.ItemResponse
// @Failure 409 {object} ErrorResponse
// @Router /items/{id} [put]
func (h *ItemHandler) UpdateItem(c *gin.Context) {
	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	var req services.UpdateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.RespondWithError(c, http.StatusBadRequest, CodeValidation, "Invalid request payload", err.Error())
		return
	}

	item, err := h.itemBank.Update(c.Request.Context(), id, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// @Summary Publish item
// @Tags items
// @Produce json
// @Param id path uint true "Item ID"
// @Success 200 {object} services.ItemResponse
// @Router /items/{id}/publish [post]
func (h *ItemHandler) PublishItem(c *gin.Context) {
	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}
	h.LogRequest(c, "Publishing item", "item_id", id)

	item, err := h.itemBank.Publish(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// @Summary Retire item
// @Tags items
// @Produce json
// @Param id path uint true "Item ID"
// @Success 200 {object} services.ItemResponse
// @Router /items/{id}/retire [post]
func (h *ItemHandler) RetireItem(c *gin.Context) {
	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}
	h.LogRequest(c, "Retiring item", "item_id", id)

	item, err := h.itemBank.Retire(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// ImportItems loads draft items from an uploaded CSV or XLSX file
// @Summary Import items
// @Tags items
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "CSV or XLSX file"
// @Success 200 {object} services.ImportResult
// @Failure 400 {object} ErrorResponse
// @Router /items/import [post]
func (h *ItemHandler) ImportItems(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxImportBytes)
	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.RespondWithError(c, http.StatusRequestEntityTooLarge, CodeFileTooLarge,
				fmt.Sprintf("Upload exceeds %d bytes", tooLarge.Limit), nil)
			return
		}
		h.RespondWithError(c, http.StatusBadRequest, CodeValidation, "File is required", err.Error())
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		h.RespondWithError(c, http.StatusBadRequest, CodeValidation, "Cannot read uploaded file", err.Error())
		return
	}
	defer file.Close()

	h.LogRequest(c, "Importing items", "filename", fileHeader.Filename, "size", fileHeader.Size)

	result, err := h.importExport.ImportItemsFromFile(c.Request.Context(), file, fileHeader.Filename, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ExportItems downloads the filtered bank as CSV (default) or XLSX
// @Summary Export items
// @Tags items
// @Produce octet-stream
// @Param format query string false "csv or xlsx"
// @Router /items/export [get]
func (h *ItemHandler) ExportItems(c *gin.Context) {
	filters := parseItemFilters(c)

	var (
		data        []byte
		err         error
		contentType string
		filename    string
	)
	switch format := c.DefaultQuery("format", "csv"); format {
	case "csv":
		data, err = h.importExport.ExportItemsToCSV(c.Request.Context(), filters)
		contentType, filename = csvContentType, "items.csv"
	case "xlsx":
		data, err = h.importExport.ExportItemsToExcel(c.Request.Context(), filters)
		contentType, filename = excelContentType, "items.xlsx"
	default:
		h.RespondWithError(c, http.StatusBadRequest, CodeUnsupportedFile, "Unsupported export format", format)
		return
	}
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, data)
}

func parseItemFilters(c *gin.Context) repositories.ItemFilters {
	page := parseIntQuery(c, "page", 1)
	size := parseIntQuery(c, "size", 20)
	if page < 1 {
		page = 1
	}

	filters := repositories.ItemFilters{
		Limit:     size,
		Offset:    (page - 1) * size,
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}
	if domain := c.Query("content_domain"); domain != "" {
		filters.ContentDomain = &domain
	}
	if status := c.Query("status"); status != "" {
		s := models.ItemStatus(status)
		filters.Status = &s
	}
	if bloom := c.Query("bloom_level"); bloom != "" {
		b := models.BloomLevel(bloom)
		filters.BloomLevel = &b
	}
	return filters
}
