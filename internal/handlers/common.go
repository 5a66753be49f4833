package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/SAP-F-2025/cat-service/internal/cat"
	"github.com/SAP-F-2025/cat-service/internal/services"
	"github.com/SAP-F-2025/cat-service/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ===== COMMON RESPONSE STRUCTURES =====

// ErrorResponse represents an error response
type ErrorResponse struct {
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
	Code    string      `json:"code,omitempty"`
}

// SuccessResponse represents a success response
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Error codes returned in ErrorResponse.Code
const (
	CodeValidation        = "VALIDATION_FAILED"
	CodeMalformedAnswer   = "MALFORMED_ANSWER"
	CodeUnknownExamType   = "UNKNOWN_EXAM_TYPE"
	CodeSessionNotFound   = "SESSION_NOT_FOUND"
	CodeSessionNotActive  = "SESSION_NOT_ACTIVE"
	CodeSessionNotEnded   = "SESSION_NOT_ENDED"
	CodeItemMismatch      = "ITEM_MISMATCH"
	CodeItemBankExhausted = "ITEM_BANK_EXHAUSTED"
	CodeItemNotFound      = "ITEM_NOT_FOUND"
	CodeItemImmutable     = "ITEM_IMMUTABLE"
	CodeItemInvalidStatus = "ITEM_INVALID_STATUS"
	CodeUnsupportedFile   = "UNSUPPORTED_FILE_TYPE"
	CodeFileTooLarge      = "FILE_TOO_LARGE"
	CodeUnauthenticated   = "UNAUTHENTICATED"
	CodeInternal          = "INTERNAL_ERROR"
)

const (
	userIDKey       = "user_id"
	userIDHeader    = "X-User-ID"
	requestIDHeader = "X-Request-ID"
)

// ===== BASE HANDLER STRUCT =====

// BaseHandler provides the logging and error mapping shared by all handlers
type BaseHandler struct {
	logger utils.Logger
}

func NewBaseHandler(logger utils.Logger) BaseHandler {
	return BaseHandler{
		logger: logger,
	}
}

// LogRequest logs an incoming request with its context
func (h *BaseHandler) LogRequest(c *gin.Context, message string, additionalFields ...interface{}) {
	fields := []interface{}{
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"remote_addr", c.ClientIP(),
		"request_id", c.GetHeader(requestIDHeader),
		"user_id", c.GetString(userIDKey),
	}
	h.logger.Info(message, append(fields, additionalFields...)...)
}

// LogError logs a failed request with its context
func (h *BaseHandler) LogError(c *gin.Context, err error, message string, additionalFields ...interface{}) {
	fields := []interface{}{
		"request_id", c.GetHeader(requestIDHeader),
		"user_id", c.GetString(userIDKey),
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
	}
	h.logger.LogError(err, message, append(fields, additionalFields...)...)
}

// RespondWithError sends a consistent error response
func (h *BaseHandler) RespondWithError(c *gin.Context, statusCode int, code, message string, details interface{}) {
	c.JSON(statusCode, ErrorResponse{
		Message: message,
		Details: details,
		Code:    code,
	})
}

// handleServiceError maps service errors to HTTP responses
func (h *BaseHandler) handleServiceError(c *gin.Context, err error) {
	var validationErrors services.ValidationErrors
	if errors.As(err, &validationErrors) {
		h.RespondWithError(c, http.StatusBadRequest, CodeValidation, "Validation failed", validationErrors)
		return
	}
	var validationError *services.ValidationError
	if errors.As(err, &validationError) {
		h.RespondWithError(c, http.StatusBadRequest, CodeValidation, "Validation failed", validationError)
		return
	}

	var exhausted *cat.ItemBankExhaustedError
	if errors.As(err, &exhausted) {
		details := map[string]interface{}{}
		if exhausted.SessionID != "" {
			details["session_id"] = exhausted.SessionID
		}
		if exhausted.Domain != "" {
			details["content_domain"] = exhausted.Domain
		}
		h.RespondWithError(c, http.StatusConflict, CodeItemBankExhausted, "Item bank exhausted; session ended inconclusive", details)
		return
	}

	switch {
	case errors.Is(err, services.ErrMalformedAnswer):
		h.RespondWithError(c, http.StatusBadRequest, CodeMalformedAnswer, err.Error(), nil)
	case errors.Is(err, services.ErrUnknownExamType):
		h.RespondWithError(c, http.StatusBadRequest, CodeUnknownExamType, err.Error(), nil)
	case errors.Is(err, services.ErrUnsupportedFileType):
		h.RespondWithError(c, http.StatusBadRequest, CodeUnsupportedFile, err.Error(), nil)
	case errors.Is(err, services.ErrBadRequest):
		h.RespondWithError(c, http.StatusBadRequest, CodeValidation, err.Error(), nil)
	case errors.Is(err, services.ErrSessionNotFound):
		h.RespondWithError(c, http.StatusNotFound, CodeSessionNotFound, "Session not found", nil)
	case errors.Is(err, services.ErrItemNotFound):
		h.RespondWithError(c, http.StatusNotFound, CodeItemNotFound, "Item not found", nil)
	case errors.Is(err, services.ErrSessionNotActive):
		h.RespondWithError(c, http.StatusConflict, CodeSessionNotActive, "Session is not in progress", nil)
	case errors.Is(err, services.ErrSessionNotEnded):
		h.RespondWithError(c, http.StatusConflict, CodeSessionNotEnded, "Session has not ended", nil)
	case errors.Is(err, services.ErrItemMismatch):
		h.RespondWithError(c, http.StatusConflict, CodeItemMismatch, "Answer does not match the pending item", nil)
	case errors.Is(err, services.ErrItemImmutable):
		h.RespondWithError(c, http.StatusConflict, CodeItemImmutable, "Published items cannot be edited", nil)
	case errors.Is(err, services.ErrItemInvalidStatus):
		h.RespondWithError(c, http.StatusConflict, CodeItemInvalidStatus, err.Error(), nil)
	default:
		h.LogError(c, err, "Internal server error")
		h.RespondWithError(c, http.StatusInternalServerError, CodeInternal, "Internal server error", nil)
	}
}

// requireUserID returns the caller identity or writes a 401
func (h *BaseHandler) requireUserID(c *gin.Context) (string, bool) {
	userID := c.GetString(userIDKey)
	if userID == "" {
		h.RespondWithError(c, http.StatusUnauthorized, CodeUnauthenticated, "User not authenticated", nil)
		return "", false
	}
	return userID, true
}

func (h *BaseHandler) parseIDParam(c *gin.Context, param string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(param), 10, 32)
	if err != nil || id == 0 {
		h.RespondWithError(c, http.StatusBadRequest, CodeValidation, "Invalid "+param, c.Param(param))
		return 0, false
	}
	return uint(id), true
}

func parseIntQuery(c *gin.Context, param string, defaultValue int) int {
	valueStr := c.Query(param)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// ===== MIDDLEWARE =====

// IdentityMiddleware takes the caller id from X-User-ID. Authentication
// happens upstream at the gateway.
func IdentityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID := strings.TrimSpace(c.GetHeader(userIDHeader)); userID != "" {
			c.Set(userIDKey, userID)
		}
		c.Next()
	}
}

// RequestIDMiddleware makes sure every request carries X-Request-ID and
// passes it on to service logs.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
			c.Request.Header.Set(requestIDHeader, requestID)
		}
		c.Writer.Header().Set(requestIDHeader, requestID)
		c.Request = c.Request.WithContext(services.WithRequestID(c.Request.Context(), requestID))
		c.Next()
	}
}
