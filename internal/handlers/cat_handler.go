package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/SAP-F-2025/cat-service/internal/models"
	"github.com/SAP-F-2025/cat-service/internal/repositories"
	"github.com/SAP-F-2025/cat-service/internal/services"
	"github.com/SAP-F-2025/cat-service/internal/utils"
	"github.com/gin-gonic/gin"
)

type CATHandler struct {
	BaseHandler
	catService services.CATService
}

func NewCATHandler(catService services.CATService, logger utils.Logger) *CATHandler {
	return &CATHandler{
		BaseHandler: NewBaseHandler(logger),
		catService:  catService,
	}
}

// StartSession opens an adaptive session and returns the first item
// @Summary Start CAT session
// @Tags cat
// @Accept json
// @Produce json
// @Param request body services.StartSessionRequest true "Exam type; user_id defaults to X-User-ID"
// @Success 201 {object} services.StartSessionResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /cat/start [post]
func (h *CATHandler) StartSession(c *gin.Context) {
	var req services.StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.RespondWithError(c, http.StatusBadRequest, CodeValidation, "Invalid request payload", err.Error())
		return
	}
	if req.UserID == "" {
		req.UserID = c.GetString(userIDKey)
	}

	h.LogRequest(c, "Starting CAT session", "exam_type", req.ExamType)

	resp, err := h.catService.Start(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// SubmitAnswer scores the pending item and returns the next one or the verdict
// @Summary Answer pending item
// @Tags cat
// @Accept json
// @Produce json
// @Param request body services.AnswerRequest true "Answer"
// @Success 200 {object} services.AnswerResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /cat/answer [post]
func (h *CATHandler) SubmitAnswer(c *gin.Context) {
	var req services.AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.RespondWithError(c, http.StatusBadRequest, CodeValidation, "Invalid request payload", err.Error())
		return
	}

	resp, err := h.catService.Answer(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// @Summary Session status
// @Tags cat
// @Produce json
// @Param session_id path string true "Session ID"
// @Success 200 {object} services.SessionStatusResponse
// @Failure 404 {object} ErrorResponse
// @Router /cat/status/{session_id} [get]
func (h *CATHandler) GetStatus(c *gin.Context) {
	sessionID := ParseStringIDParam(c, "session_id")
	if sessionID == "" {
		return
	}

	resp, err := h.catService.Status(c.Request.Context(), sessionID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// FinishSession forces a session to end
// @Summary Finish CAT session
// @Tags cat
// @Accept json
// @Produce json
// @Param request body services.FinishRequest true "Mode abandon or evaluate"
// @Success 200 {object} services.SessionStatusResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /cat/finish [post]
func (h *CATHandler) FinishSession(c *gin.Context) {
	var req services.FinishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.RespondWithError(c, http.StatusBadRequest, CodeValidation, "Invalid request payload", err.Error())
		return
	}

	h.LogRequest(c, "Finishing CAT session", "session_id", req.SessionID, "mode", req.Mode)

	resp, err := h.catService.Finish(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// @Summary Abandon CAT session
// @Tags cat
// @Produce json
// @Param session_id path string true "Session ID"
// @Success 200 {object} services.SessionStatusResponse
// @Failure 404 {object} ErrorResponse
// @Router /cat/abandon/{session_id} [post]
func (h *CATHandler) AbandonSession(c *gin.Context) {
	sessionID := ParseStringIDParam(c, "session_id")
	if sessionID == "" {
		return
	}

	h.LogRequest(c, "Abandoning CAT session", "session_id", sessionID)

	resp, err := h.catService.Abandon(c.Request.Context(), sessionID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// @Summary Session results
// @Tags cat
// @Produce json
// @Param session_id path string true "Session ID"
// @Success 200 {object} services.SessionResultsResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /cat/results/{session_id} [get]
func (h *CATHandler) GetResults(c *gin.Context) {
	sessionID := ParseStringIDParam(c, "session_id")
	if sessionID == "" {
		return
	}

	resp, err := h.catService.GetResults(c.Request.Context(), sessionID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetHistory lists a user's sessions, newest first
// @Summary Session history
// @Tags cat
// @Produce json
// @Param user_id query string false "User ID, defaults to X-User-ID"
// @Param status query string false "Session status"
// @Param exam_type query string false "Exam type"
// @Param page query int false "Page number"
// @Param size query int false "Page size"
// @Success 200 {object} services.SessionHistoryResponse
// @Failure 400 {object} ErrorResponse
// @Router /cat/history [get]
func (h *CATHandler) GetHistory(c *gin.Context) {
	userID := strings.TrimSpace(c.Query("user_id"))
	if userID == "" {
		var ok bool
		if userID, ok = h.requireUserID(c); !ok {
			return
		}
	}

	resp, err := h.catService.GetHistory(c.Request.Context(), userID, parseSessionFilters(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func parseSessionFilters(c *gin.Context) repositories.SessionFilters {
	page := parseIntQuery(c, "page", 1)
	size := parseIntQuery(c, "size", 20)
	if page < 1 {
		page = 1
	}

	filters := repositories.SessionFilters{
		Limit:     size,
		Offset:    (page - 1) * size,
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}
	if status := c.Query("status"); status != "" {
		s := models.SessionStatus(status)
		filters.Status = &s
	}
	if examType := c.Query("exam_type"); examType != "" {
		filters.ExamType = &examType
	}
	if from, err := time.Parse(time.RFC3339, c.Query("date_from")); err == nil {
		filters.DateFrom = &from
	}
	if to, err := time.Parse(time.RFC3339, c.Query("date_to")); err == nil {
		filters.DateTo = &to
	}
	return filters
}
