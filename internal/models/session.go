package models

import (
	"time"

	"github.com/SAP-F-2025/cat-service/internal/irt"
	"gorm.io/datatypes"
)

type SessionStatus string

const (
	SessionInProgress SessionStatus = "in_progress"
	SessionCompleted  SessionStatus = "completed"
	SessionAbandoned  SessionStatus = "abandoned"
)

// IsTerminal reports whether the status accepts no further answers.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionCompleted || s == SessionAbandoned
}

// Session is one adaptive exam. It is owned and mutated by the CAT service
// only and frozen once terminal.
type Session struct {
	ID       string        `json:"id" gorm:"primaryKey;size:36"`
	UserID   string        `json:"user_id" gorm:"size:255;not null;index"`
	ExamType string        `json:"exam_type" gorm:"size:100;not null"`
	Status   SessionStatus `json:"status" gorm:"size:20;not null;index"`

	AbilityEstimate    float64 `json:"ability_estimate"`
	StandardError      float64 `json:"standard_error"`
	LowConfidence      bool    `json:"low_confidence"`
	PassingProbability float64 `json:"passing_probability"`
	Verdict            string  `json:"verdict,omitempty" gorm:"size:20"`
	StopReason         string  `json:"stop_reason,omitempty" gorm:"size:40"`

	ContentCoverage datatypes.JSONType[map[string]int] `json:"content_coverage" gorm:"type:jsonb"`
	ItemsAnswered   int                                `json:"items_answered" gorm:"not null;default:0"`
	// PendingItemID is the item issued and not yet answered.
	PendingItemID *uint `json:"pending_item_id,omitempty"`

	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`

	Responses []Response `json:"responses,omitempty" gorm:"foreignKey:SessionID"`
}

func (Session) TableName() string {
	return "cat_sessions"
}

// Response is one administered and scored item. Immutable once recorded.
type Response struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	SessionID      string    `json:"session_id" gorm:"size:36;not null;uniqueIndex:idx_response_sequence"`
	Sequence       int       `json:"sequence" gorm:"not null;uniqueIndex:idx_response_sequence"`
	ItemID         uint      `json:"item_id" gorm:"not null;index"`
	ContentDomain  string    `json:"content_domain" gorm:"size:100"`
	IsCorrect      bool      `json:"is_correct"`
	ResponseTimeMs int64     `json:"response_time_ms"`
	AnsweredAt     time.Time `json:"answered_at"`

	// Item parameters at administration time.
	Discrimination float64 `json:"discrimination"`
	Difficulty     float64 `json:"difficulty"`
	Guessing       float64 `json:"guessing"`

	// Estimate after this response.
	ThetaAfter float64 `json:"theta_after"`
	SEAfter    float64 `json:"se_after"`
}

func (Response) TableName() string {
	return "cat_responses"
}

// Observation converts the response into estimator input
func (r *Response) Observation() irt.Observation {
	return irt.Observation{
		Params: irt.ItemParams{
			Discrimination: r.Discrimination,
			Difficulty:     r.Difficulty,
			Guessing:       r.Guessing,
		},
		Correct: r.IsCorrect,
	}
}

// Coverage returns the per-domain administered counts
func (s *Session) Coverage() map[string]int {
	c := s.ContentCoverage.Data()
	if c == nil {
		return map[string]int{}
	}
	return c
}
