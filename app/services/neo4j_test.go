package services

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"todo-api/app/config"
	"todo-api/app/models"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// newTestNeo4j connects to the server named by NEO4J_TEST_URI, authenticating with
// NEO4J_TEST_USERNAME and NEO4J_TEST_PASSWORD, and deletes every node these stores own.
func newTestNeo4j(t *testing.T) neo4j.DriverWithContext {
	t.Helper()
	uri := os.Getenv("NEO4J_TEST_URI")
	if uri == "" {
		t.Skip("NEO4J_TEST_URI not set")
	}
	ctx := context.Background()
	driver, err := config.InitNeo4j(ctx, config.Neo4jConfig{
		URI:      uri,
		Username: os.Getenv("NEO4J_TEST_USERNAME"),
		Password: os.Getenv("NEO4J_TEST_PASSWORD"),
	})
	if err != nil {
		t.Fatalf("InitNeo4j: %v", err)
	}
	t.Cleanup(func() { driver.Close(ctx) })

	if _, err := neo4j.ExecuteQuery(ctx, driver, "MATCH (n) WHERE n:Todo OR n:SubTask OR n:LogEntry OR n:Sequence DETACH DELETE n",
		nil, neo4j.EagerResultTransformer); err != nil {
		t.Fatalf("clear graph: %v", err)
	}
	return driver
}

func TestNeo4jTodoLifecycle(t *testing.T) {
	driver := newTestNeo4j(t)
	svc := NewNeo4jTodoService(driver)
	ctx := context.Background()
	if err := svc.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}

	created, err := svc.CreateTodo(ctx, models.TodoInput{
		Task:     str("graph"),
		DueDate:  models.NullableString{Set: true, Valid: true, Value: "2026-12-24"},
		SubTasks: subInputs("a", "b"),
	})
	if err != nil {
		t.Fatalf("CreateTodo: %v", err)
	}
	if len(created.SubTasks) != 2 || created.Priority != models.DefaultPriority {
		t.Fatalf("created = %+v", created)
	}
	before := subTaskIDs(created)

	updated, err := svc.UpdateTodo(ctx, created.ID, models.TodoInput{
		DueDate:  models.NullableString{Set: true},
		SubTasks: subInputs("c"),
	})
	if err != nil {
		t.Fatalf("UpdateTodo: %v", err)
	}
	if updated.DueDate != nil || updated.Task != "graph" || len(updated.SubTasks) != 1 {
		t.Errorf("updated = %+v", updated)
	}
	if before[updated.SubTasks[0].ID] {
		t.Error("subtask id reused")
	}

	if err := svc.DeleteTodo(ctx, created.ID); err != nil {
		t.Fatalf("DeleteTodo: %v", err)
	}
	if err := svc.DeleteTodo(ctx, created.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second DeleteTodo = %v, want ErrNotFound", err)
	}
	todos, err := svc.GetTodos(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(todos) != 0 {
		t.Errorf("todos left: %+v", todos)
	}
}

func TestNeo4jLogs(t *testing.T) {
	driver := newTestNeo4j(t)
	svc := NewNeo4jLogService(driver)
	ctx := context.Background()
	if err := svc.EnsureSchema(ctx); err != nil {
		t.Fatal(err)
	}

	entry := BuildLogEntry(map[string]any{"id": "neo4j001", "message": "m"}, time.Now())
	if err := svc.CreateLog(ctx, entry); err != nil {
		t.Fatalf("CreateLog: %v", err)
	}
	if err := svc.CreateLog(ctx, entry); err == nil {
		t.Error("duplicate id accepted")
	}
	logs, err := svc.GetLogs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(logs) != 1 || logs[0].ID != "neo4j001" || logs[0].Message != "m" {
		t.Errorf("logs = %+v", logs)
	}
}
