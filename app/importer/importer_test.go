package importer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"todo-api/app/config"
	"todo-api/app/services"

	"github.com/charmbracelet/log"
)

const sampleDocument = `{
  "todos": [
    {
      "id": 7,
      "task": "Write report",
      "completed": false,
      "priority": "High",
      "dueDate": "2026-11-01",
      "remindMe": true,
      "subTasks": [
        {"id": 1, "task": "outline", "completed": true},
        {"id": 2, "task": "draft", "completed": false}
      ]
    },
    {"task": "Call mum", "completed": true, "priority": "Low"}
  ],
  "logs": [
    {"id": "a1b2c3d4", "message": "TypeError", "stack": "at main.js:1", "url": "/todos", "timestamp": "2025-01-02T03:04:05Z"},
    {"id": "", "message": "no url", "url": null},
    {"message": "bad time", "timestamp": "yesterday"},
    "not an object"
  ]
}`

type stores struct {
	todos *services.TodoService
	logs  *services.LogService
}

func newStores(t *testing.T) stores {
	t.Helper()
	db, err := config.InitSQLite(filepath.Join(t.TempDir(), "database.db"), log.New(io.Discard))
	if err != nil {
		t.Fatal(err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { sqlDB.Close() })

	s := stores{todos: services.NewTodoService(db), logs: services.NewLogService(db)}
	if err := s.todos.EnsureSchema(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := s.logs.EnsureSchema(context.Background()); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestImport(t *testing.T) {
	s := newStores(t)
	var out bytes.Buffer
	im, err := New(s.todos, s.logs, log.New(&out))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	fixed := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	im.now = func() time.Time { return fixed }

	res, err := im.Import(context.Background(), strings.NewReader(sampleDocument))
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if res.Todos != 2 || res.Logs != 2 || res.SkippedLogs != 2 {
		t.Errorf("result = %+v", res)
	}
	if !strings.Contains(out.String(), "skipping a bad log entry") {
		t.Errorf("skip not logged: %q", out.String())
	}

	ctx := context.Background()
	todos, err := s.todos.GetTodos(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(todos) != 2 {
		t.Fatalf("got %d todos", len(todos))
	}
	first := todos[0]
	if first.Task != "Write report" || first.Priority != "High" || !first.RemindMe ||
		first.DueDate == nil || *first.DueDate != "2026-11-01" {
		t.Errorf("first todo = %+v", first)
	}
	if len(first.SubTasks) != 2 || !first.SubTasks[0].Completed || first.SubTasks[1].Task != "draft" {
		t.Errorf("subtasks = %+v", first.SubTasks)
	}
	if todos[1].DueDate != nil || !todos[1].Completed {
		t.Errorf("second todo = %+v", todos[1])
	}

	logs, err := s.logs.GetLogs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(logs) != 2 {
		t.Fatalf("got %d logs", len(logs))
	}
	byMessage := map[string]int{}
	for i, l := range logs {
		byMessage[l.Message] = i
	}
	kept := logs[byMessage["TypeError"]]
	if kept.ID != "a1b2c3d4" || kept.URL != "/todos" {
		t.Errorf("kept log = %+v", kept)
	}
	if !kept.Timestamp.Equal(time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)) {
		t.Errorf("timestamp = %v, want exported value", kept.Timestamp)
	}
	migrated := logs[byMessage["no url"]]
	if migrated.URL != MigratedURL || len(migrated.ID) != 8 {
		t.Errorf("migrated log = %+v", migrated)
	}
	if !migrated.Timestamp.Equal(fixed) {
		t.Errorf("timestamp = %v, want import time", migrated.Timestamp)
	}
}

func TestImportRejectsInvalidDocument(t *testing.T) {
	s := newStores(t)
	im, err := New(s.todos, s.logs, log.New(io.Discard))
	if err != nil {
		t.Fatal(err)
	}

	tests := map[string]string{
		"missing priority":   `{"todos":[{"task":"x","completed":false}]}`,
		"wrong type":         `{"todos":[{"task":1,"completed":false,"priority":"Low"}]}`,
		"subtask incomplete": `{"todos":[{"task":"x","completed":false,"priority":"Low","subTasks":[{"task":"y"}]}]}`,
		"logs not array":     `{"logs":{}}`,
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := im.Import(context.Background(), strings.NewReader(doc))
			var schemaErr *SchemaError
			if !errors.As(err, &schemaErr) {
				t.Fatalf("Import = %v, want SchemaError", err)
			}
			if len(schemaErr.Problems) == 0 {
				t.Error("no problems reported")
			}
		})
	}

	todos, err := s.todos.GetTodos(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(todos) != 0 {
		t.Errorf("invalid documents wrote %d todos", len(todos))
	}
}

func TestImportMalformedJSON(t *testing.T) {
	s := newStores(t)
	im, err := New(s.todos, s.logs, log.New(io.Discard))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := im.Import(context.Background(), strings.NewReader(`{"todos": [`)); err == nil {
		t.Fatal("Import accepted malformed JSON")
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2025-01-02T03:04:05Z", time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)},
		{"2025-01-02T03:04:05.5+02:00", time.Date(2025, 1, 2, 1, 4, 5, 500_000_000, time.UTC)},
		{"2025-01-02T03:04:05", time.Date(2025, 1, 2, 3, 4, 5, 0, time.Local)},
	}
	for _, tt := range tests {
		got, err := parseTimestamp(tt.in)
		if err != nil {
			t.Errorf("parseTimestamp(%q): %v", tt.in, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("parseTimestamp(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if _, err := parseTimestamp("yesterday"); err == nil {
		t.Error("parseTimestamp accepted garbage")
	}
}
