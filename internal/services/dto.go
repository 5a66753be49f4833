package services

import (
	"time"

	"github.com/SAP-F-2025/cat-service/internal/models"
)

// ===== CAT SESSION DTOs =====

type StartSessionRequest struct {
	UserID   string `json:"user_id" validate:"required,max=255"`
	ExamType string `json:"exam_type" validate:"required,max=100"`
}

// AnswerRequest is scored from SelectedOption when present, otherwise from
// the client-supplied IsCorrect.
type AnswerRequest struct {
	SessionID      string  `json:"session_id" validate:"required,max=36"`
	ItemID         uint    `json:"item_id" validate:"required"`
	SelectedOption *string `json:"selected_option,omitempty" validate:"omitempty,max=10"`
	IsCorrect      *bool   `json:"is_correct,omitempty"`
	ResponseTimeMs int64   `json:"response_time_ms" validate:"gte=0"`
}

type FinishRequest struct {
	SessionID string `json:"session_id" validate:"required,max=36"`
	Mode      string `json:"mode" validate:"required,finish_mode"`
}

const (
	FinishModeAbandon  = "abandon"
	FinishModeEvaluate = "evaluate"
)

// ExamineeItem is the item as shown to the examinee. It never carries the
// answer key.
type ExamineeItem struct {
	ID             uint                `json:"id"`
	Text           string              `json:"text"`
	Options        []models.ItemOption `json:"options"`
	Category       string              `json:"category"`
	Difficulty     float64             `json:"difficulty"`
	Discrimination float64             `json:"discrimination"`
	Guessing       float64             `json:"guessing"`
	BloomLevel     models.BloomLevel   `json:"bloom_level,omitempty"`
}

type StartSessionResponse struct {
	SessionID string        `json:"session_id"`
	ExamType  string        `json:"exam_type"`
	FirstItem *ExamineeItem `json:"first_item"`
}

type AnswerResponse struct {
	SessionID     string        `json:"session_id"`
	ItemsAnswered int           `json:"items_answered"`
	Completed     bool          `json:"completed"`
	NextItem      *ExamineeItem `json:"next_item,omitempty"`

	// Set once the session completes
	Verdict            string   `json:"verdict,omitempty"`
	StopReason         string   `json:"stop_reason,omitempty"`
	FinalAbility       *float64 `json:"final_ability,omitempty"`
	StandardError      *float64 `json:"standard_error,omitempty"`
	PassingProbability *float64 `json:"passing_probability,omitempty"`
}

// SessionStatusResponse is the read-only snapshot of a session
type SessionStatusResponse struct {
	SessionID          string               `json:"session_id"`
	UserID             string               `json:"user_id"`
	ExamType           string               `json:"exam_type"`
	Status             models.SessionStatus `json:"status"`
	ItemsAnswered      int                  `json:"items_answered"`
	CurrentAbility     float64              `json:"current_ability"`
	StandardError      float64              `json:"standard_error"`
	PassingProbability float64              `json:"passing_probability"`
	LowConfidence      bool                 `json:"low_confidence"`
	ContentCoverage    map[string]int       `json:"content_coverage"`
	PendingItemID      *uint                `json:"pending_item_id,omitempty"`
	Verdict            string               `json:"verdict,omitempty"`
	StopReason         string               `json:"stop_reason,omitempty"`
	StartTime          time.Time            `json:"start_time"`
	EndTime            *time.Time           `json:"end_time,omitempty"`
}

type ResponseSummary struct {
	Sequence       int       `json:"sequence"`
	ItemID         uint      `json:"item_id"`
	ContentDomain  string    `json:"content_domain"`
	IsCorrect      bool      `json:"is_correct"`
	ResponseTimeMs int64     `json:"response_time_ms"`
	AnsweredAt     time.Time `json:"answered_at"`
	ThetaAfter     float64   `json:"theta_after"`
	SEAfter        float64   `json:"se_after"`
}

type SessionResultsResponse struct {
	SessionStatusResponse
	Responses []ResponseSummary `json:"responses"`
}

type SessionHistoryResponse struct {
	Sessions []SessionStatusResponse `json:"sessions"`
	Total    int64                   `json:"total"`
	Limit    int                     `json:"limit"`
	Offset   int                     `json:"offset"`
}

// ===== ITEM BANK DTOs =====

type CreateItemRequest struct {
	Text           string              `json:"text" validate:"required,max=5000"`
	Options        []models.ItemOption `json:"options" validate:"required,min=2,max=10,dive"`
	CorrectAnswer  string              `json:"correct_answer" validate:"required,max=10"`
	Rationale      *string             `json:"rationale,omitempty"`
	ContentDomain  string              `json:"content_domain" validate:"required,max=100"`
	BloomLevel     models.BloomLevel   `json:"bloom_level,omitempty" validate:"omitempty,bloom_level"`
	Difficulty     float64             `json:"difficulty" validate:"gte=-6,lte=6"`
	Discrimination float64             `json:"discrimination" validate:"gt=0,lte=6"`
	Guessing       float64             `json:"guessing" validate:"gte=0,lt=1"`
}

type UpdateItemRequest struct {
	Text           *string              `json:"text,omitempty" validate:"omitempty,max=5000"`
	Options        *[]models.ItemOption `json:"options,omitempty"`
	CorrectAnswer  *string              `json:"correct_answer,omitempty" validate:"omitempty,max=10"`
	Rationale      *string              `json:"rationale,omitempty"`
	ContentDomain  *string              `json:"content_domain,omitempty" validate:"omitempty,max=100"`
	BloomLevel     *models.BloomLevel   `json:"bloom_level,omitempty" validate:"omitempty,bloom_level"`
	Difficulty     *float64             `json:"difficulty,omitempty" validate:"omitempty,gte=-6,lte=6"`
	Discrimination *float64             `json:"discrimination,omitempty" validate:"omitempty,gt=0,lte=6"`
	Guessing       *float64             `json:"guessing,omitempty" validate:"omitempty,gte=0,lt=1"`
}

// ItemResponse is the authoring view of an item, answer key included
type ItemResponse struct {
	*models.Item
	Options []models.ItemOption `json:"options"`
}

type ItemListResponse struct {
	Items  []*ItemResponse `json:"items"`
	Total  int64           `json:"total"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

type ImportResult struct {
	TotalRows    int                     `json:"total_rows"`
	SuccessCount int                     `json:"success_count"`
	ErrorCount   int                     `json:"error_count"`
	Errors       []models.ImportRowError `json:"errors,omitempty"`
	ItemIDs      []uint                  `json:"item_ids,omitempty"`
	Status       models.ImportStatus     `json:"status"`
}

// ===== CONVERTERS =====

func toExamineeItem(item *models.Item) *ExamineeItem {
	if item == nil {
		return nil
	}
	return &ExamineeItem{
		ID:             item.ID,
		Text:           item.Text,
		Options:        item.Options.Data(),
		Category:       item.ContentDomain,
		Difficulty:     item.Difficulty,
		Discrimination: item.Discrimination,
		Guessing:       item.Guessing,
		BloomLevel:     item.BloomLevel,
	}
}

func toItemResponse(item *models.Item) *ItemResponse {
	return &ItemResponse{Item: item, Options: item.Options.Data()}
}

func toSessionStatus(session *models.Session) SessionStatusResponse {
	coverage := make(map[string]int)
	for k, v := range session.Coverage() {
		coverage[k] = v
	}
	var end *time.Time
	if session.EndTime != nil {
		t := session.EndTime.UTC()
		end = &t
	}
	return SessionStatusResponse{
		SessionID:          session.ID,
		UserID:             session.UserID,
		ExamType:           session.ExamType,
		Status:             session.Status,
		ItemsAnswered:      session.ItemsAnswered,
		CurrentAbility:     session.AbilityEstimate,
		StandardError:      session.StandardError,
		PassingProbability: session.PassingProbability,
		LowConfidence:      session.LowConfidence,
		ContentCoverage:    coverage,
		PendingItemID:      session.PendingItemID,
		Verdict:            session.Verdict,
		StopReason:         session.StopReason,
		StartTime:          session.StartTime.UTC(),
		EndTime:            end,
	}
}

func toResponseSummaries(responses []models.Response) []ResponseSummary {
	out := make([]ResponseSummary, len(responses))
	for i, r := range responses {
		out[i] = ResponseSummary{
			Sequence:       r.Sequence,
			ItemID:         r.ItemID,
			ContentDomain:  r.ContentDomain,
			IsCorrect:      r.IsCorrect,
			ResponseTimeMs: r.ResponseTimeMs,
			AnsweredAt:     r.AnsweredAt,
			ThetaAfter:     r.ThetaAfter,
			SEAfter:        r.SEAfter,
		}
	}
	return out
}
