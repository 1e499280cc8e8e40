package services

import (
	"context"
	"fmt"
	"time"

	"todo-api/app/models"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Neo4jLogService stores log entries as (:LogEntry) nodes.
type Neo4jLogService struct {
	driver neo4j.DriverWithContext
}

// NewNeo4jLogService creates a new instance of Neo4jLogService.
func NewNeo4jLogService(driver neo4j.DriverWithContext) *Neo4jLogService {
	return &Neo4jLogService{driver: driver}
}

// EnsureSchema makes log ids unique.
func (s *Neo4jLogService) EnsureSchema(ctx context.Context) error {
	return ensureConstraints(ctx, s.driver,
		"CREATE CONSTRAINT logentry_id IF NOT EXISTS FOR (l:LogEntry) REQUIRE l.id IS UNIQUE",
	)
}

// GetLogs retrieves every log entry, oldest first.
func (s *Neo4jLogService) GetLogs(ctx context.Context) ([]models.LogEntry, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, "MATCH (l:LogEntry) RETURN l ORDER BY l.timestamp", nil)
		if err != nil {
			return nil, err
		}
		logs := []models.LogEntry{}
		for res.Next(ctx) {
			node, ok := res.Record().Values[0].(neo4j.Node)
			if !ok {
				return nil, fmt.Errorf("unexpected log value %T", res.Record().Values[0])
			}
			ts, _ := node.Props["timestamp"].(time.Time)
			logs = append(logs, models.LogEntry{
				ID:        stringProp(node.Props, "id"),
				Message:   stringProp(node.Props, "message"),
				Stack:     stringProp(node.Props, "stack"),
				URL:       stringProp(node.Props, "url"),
				Timestamp: ts,
			})
		}
		if err := res.Err(); err != nil {
			return nil, err
		}
		return logs, nil
	})
	if err != nil {
		return nil, fmt.Errorf("list logs: %w", err)
	}
	return result.([]models.LogEntry), nil
}

// CreateLog inserts one entry. A duplicate id violates the uniqueness constraint.
func (s *Neo4jLogService) CreateLog(ctx context.Context, entry models.LogEntry) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx,
			"CREATE (l:LogEntry {id: $id, message: $message, stack: $stack, url: $url, timestamp: $timestamp})",
			map[string]any{
				"id":        entry.ID,
				"message":   entry.Message,
				"stack":     entry.Stack,
				"url":       entry.URL,
				"timestamp": entry.Timestamp,
			},
		)
		if err != nil {
			return nil, err
		}
		_, err = res.Consume(ctx)
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("insert log %s: %w", entry.ID, err)
	}
	return nil
}
