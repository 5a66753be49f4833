package models

type ImportStatus string

const (
	ImportCompleted        ImportStatus = "completed"
	ImportPartial          ImportStatus = "partial"
	ImportValidationFailed ImportStatus = "validation_failed"
)

// ImportRowError describes one rejected cell of an item import file
type ImportRowError struct {
	Row     int    `json:"row"`
	Column  string `json:"column"`
	Message string `json:"message"`
	Value   string `json:"value"`
}
