// Package importer loads an exported JSON document of todos and logs into the stores.
package importer

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"todo-api/app/models"
	"todo-api/app/services"

	"github.com/charmbracelet/log"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

// MigratedURL replaces an empty url on imported log entries.
const MigratedURL = "Migrated / Unknown"

const schemaURL = "db.schema.json"

//go:embed db.schema.json
var documentSchema []byte

// Document is the import file layout.
type Document struct {
	Todos []models.TodoInput `json:"todos"`
	Logs  []any              `json:"logs"`
}

// Result counts what an import wrote.
type Result struct {
	Todos       int
	Logs        int
	SkippedLogs int
}

// SchemaError lists every schema violation found in a document.
type SchemaError struct {
	Problems []string
}

func (e *SchemaError) Error() string {
	return "invalid import document: " + strings.Join(e.Problems, "; ")
}

// Importer writes documents through the regular stores.
type Importer struct {
	Todos  services.TodoStore
	Logs   services.LogStore
	Logger *log.Logger

	schema *jsonschema.Schema
	now    func() time.Time
}

// New creates an Importer.
func New(todos services.TodoStore, logs services.LogStore, logger *log.Logger) (*Importer, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaURL, bytes.NewReader(documentSchema)); err != nil {
		return nil, fmt.Errorf("load import schema: %w", err)
	}
	schema, err := compiler.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile import schema: %w", err)
	}
	return &Importer{Todos: todos, Logs: logs, Logger: logger, schema: schema, now: time.Now}, nil
}

// Import validates the document read from r and stores its contents.
// Todos are created one by one, each atomically with its subtasks.
// A log entry that cannot be converted or stored is skipped with a warning.
func (im *Importer) Import(ctx context.Context, r io.Reader) (Result, error) {
	var res Result
	data, err := io.ReadAll(r)
	if err != nil {
		return res, fmt.Errorf("read import document: %w", err)
	}
	if err := im.Validate(data); err != nil {
		return res, err
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return res, fmt.Errorf("decode import document: %w", err)
	}

	for i, in := range doc.Todos {
		if _, err := im.Todos.CreateTodo(ctx, in); err != nil {
			return res, fmt.Errorf("import todo %d: %w", i, err)
		}
		res.Todos++
	}

	for i, raw := range doc.Logs {
		entry, err := im.logEntry(raw)
		if err == nil {
			err = im.Logs.CreateLog(ctx, entry)
		}
		if err != nil {
			im.Logger.Warn("skipping a bad log entry", "index", i, "err", err)
			res.SkippedLogs++
			continue
		}
		res.Logs++
	}
	return res, nil
}

// Validate checks data against the embedded document schema.
func (im *Importer) Validate(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("decode import document: %w", err)
	}
	err := im.schema.Validate(v)
	if err == nil {
		return nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err
	}
	schemaErr := &SchemaError{}
	collectProblems(schemaErr, ve)
	return schemaErr
}

func collectProblems(out *SchemaError, err *jsonschema.ValidationError) {
	if len(err.Causes) == 0 {
		out.Problems = append(out.Problems, fmt.Sprintf("%s: %s", err.InstanceLocation, err.Message))
		return
	}
	for _, cause := range err.Causes {
		collectProblems(out, cause)
	}
}

// logEntry converts one exported log. The exported timestamp is kept when present.
func (im *Importer) logEntry(v any) (models.LogEntry, error) {
	raw, ok := v.(map[string]any)
	if !ok {
		return models.LogEntry{}, fmt.Errorf("log entry: unexpected %T", v)
	}
	ts := im.now()
	switch v := raw["timestamp"].(type) {
	case nil:
	case string:
		parsed, err := parseTimestamp(v)
		if err != nil {
			return models.LogEntry{}, err
		}
		ts = parsed
	default:
		return models.LogEntry{}, fmt.Errorf("timestamp: unexpected %T", v)
	}

	entry := services.BuildLogEntry(raw, ts)
	if url, _ := raw["url"].(string); url == "" {
		entry.URL = MigratedURL
	}
	return entry, nil
}

// parseTimestamp accepts RFC 3339 and offset-less ISO 8601 times.
func parseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02T15:04:05.999999999", s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp %q: %w", s, err)
	}
	return t, nil
}
