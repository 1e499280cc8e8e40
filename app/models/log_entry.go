package models

import "time"

// Placeholders stored when a client error report omits a field.
const (
	DefaultLogMessage = "No message provided"
	DefaultLogStack   = "No stack trace"
	DefaultLogURL     = "Unknown URL"
)

// LogEntry is an append-only client error report.
type LogEntry struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar"`
	Message   string    `json:"message" gorm:"type:varchar;not null"`
	Stack     string    `json:"stack" gorm:"type:varchar;not null"`
	URL       string    `json:"url" gorm:"column:url;type:varchar"`
	Timestamp time.Time `json:"timestamp" gorm:"not null"`
}

// TableName keeps the table name used by existing data files.
func (LogEntry) TableName() string { return "logentry" }
