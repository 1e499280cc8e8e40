package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"todo-api/app/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LogStore persists client error reports. Entries are never updated or deleted.
type LogStore interface {
	GetLogs(ctx context.Context) ([]models.LogEntry, error)
	CreateLog(ctx context.Context, entry models.LogEntry) error
}

// NewLogID returns an 8-character identifier for a log entry.
func NewLogID() string {
	return uuid.NewString()[:8]
}

// BuildLogEntry turns an arbitrary client payload into a LogEntry stamped at now.
// Any client-supplied timestamp is ignored.
func BuildLogEntry(payload map[string]any, now time.Time) models.LogEntry {
	id := payloadString(payload, "id", "")
	if id == "" {
		id = NewLogID()
	}
	return models.LogEntry{
		ID:        id,
		Message:   payloadString(payload, "message", models.DefaultLogMessage),
		Stack:     payloadString(payload, "stack", models.DefaultLogStack),
		URL:       payloadString(payload, "url", models.DefaultLogURL),
		Timestamp: now,
	}
}

// payloadString reads key as text. Missing or null keys yield def; non-string
// values are kept as their JSON encoding.
func payloadString(payload map[string]any, key, def string) string {
	v, ok := payload[key]
	if !ok || v == nil {
		return def
	}
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

// LogService stores log entries in a relational database.
type LogService struct {
	db *gorm.DB
}

// NewLogService creates a new instance of LogService.
func NewLogService(db *gorm.DB) *LogService {
	return &LogService{db: db}
}

// EnsureSchema creates the log table if it is missing.
func (s *LogService) EnsureSchema(ctx context.Context) error {
	return createMissingTables(s.db.WithContext(ctx), &models.LogEntry{})
}

// GetLogs retrieves every log entry in storage order.
func (s *LogService) GetLogs(ctx context.Context) ([]models.LogEntry, error) {
	logs := []models.LogEntry{}
	if err := s.db.WithContext(ctx).Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("list logs: %w", err)
	}
	return logs, nil
}

// CreateLog inserts one entry. The transaction is rolled back on failure.
func (s *LogService) CreateLog(ctx context.Context, entry models.LogEntry) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("insert log %s: %w", entry.ID, err)
		}
		return nil
	})
}
