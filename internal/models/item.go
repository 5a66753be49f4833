package models

import (
	"time"

	"github.com/SAP-F-2025/cat-service/internal/irt"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ItemStatus string

const (
	ItemDraft     ItemStatus = "draft"
	ItemPublished ItemStatus = "published"
	ItemRetired   ItemStatus = "retired"
)

type BloomLevel string

const (
	BloomRemember   BloomLevel = "remember"
	BloomUnderstand BloomLevel = "understand"
	BloomApply      BloomLevel = "apply"
	BloomAnalyze    BloomLevel = "analyze"
	BloomEvaluate   BloomLevel = "evaluate"
	BloomCreate     BloomLevel = "create"
)

// ItemOption is one answer choice.
type ItemOption struct {
	Key  string `json:"key" validate:"required,max=10"`
	Text string `json:"text" validate:"required"`
}

// Item is a calibrated question. Published items are immutable apart from
// the exposure counter.
type Item struct {
	ID            uint                                 `json:"id" gorm:"primaryKey"`
	Text          string                               `json:"text" gorm:"type:text;not null" validate:"required,min=1,max=5000"`
	Options       datatypes.JSONType[[]ItemOption]     `json:"options" gorm:"type:jsonb"`
	CorrectAnswer string                               `json:"correct_answer" gorm:"size:10;not null" validate:"required,max=10"`
	Rationale     *string                              `json:"rationale,omitempty" gorm:"type:text"`
	ContentDomain string                               `json:"content_domain" gorm:"size:100;not null;index" validate:"required,max=100"`
	BloomLevel    BloomLevel                           `json:"bloom_level" gorm:"size:20" validate:"omitempty,bloom_level"`
	Status        ItemStatus                           `json:"status" gorm:"size:20;default:draft;index" validate:"omitempty,item_status"`

	// 3PL parameters
	Difficulty     float64 `json:"difficulty" gorm:"not null" validate:"gte=-6,lte=6"`
	Discrimination float64 `json:"discrimination" gorm:"not null" validate:"gt=0,lte=6"`
	Guessing       float64 `json:"guessing" gorm:"not null;default:0" validate:"gte=0,lt=1"`

	// Lifetime administrations; the rolling-window count lives in the
	// exposure tracker.
	ExposureCount int64 `json:"exposure_count" gorm:"not null;default:0"`

	CreatedBy   string         `json:"created_by" gorm:"size:255;index"`
	PublishedAt *time.Time     `json:"published_at"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`
}

func (Item) TableName() string {
	return "items"
}

// IsPublished reports whether the item can be administered.
func (i *Item) IsPublished() bool {
	return i.Status == ItemPublished
}

// Params returns the calibrated 3PL parameters
func (i *Item) Params() irt.ItemParams {
	return irt.ItemParams{
		Discrimination: i.Discrimination,
		Difficulty:     i.Difficulty,
		Guessing:       i.Guessing,
	}
}
