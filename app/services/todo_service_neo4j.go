package services

import (
	"context"
	"errors"
	"fmt"

	"todo-api/app/models"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Neo4jTodoService handles todo operations on a Neo4j graph.
// Subtasks are (:SubTask) nodes linked to their (:Todo) by SUBTASK_OF.
type Neo4jTodoService struct {
	driver neo4j.DriverWithContext
}

// NewNeo4jTodoService creates a new instance of Neo4jTodoService.
func NewNeo4jTodoService(driver neo4j.DriverWithContext) *Neo4jTodoService {
	return &Neo4jTodoService{driver: driver}
}

// EnsureSchema creates the uniqueness constraints the service relies on.
func (s *Neo4jTodoService) EnsureSchema(ctx context.Context) error {
	return ensureConstraints(ctx, s.driver,
		"CREATE CONSTRAINT todo_id IF NOT EXISTS FOR (t:Todo) REQUIRE t.id IS UNIQUE",
		"CREATE CONSTRAINT subtask_id IF NOT EXISTS FOR (s:SubTask) REQUIRE s.id IS UNIQUE",
		"CREATE CONSTRAINT sequence_name IF NOT EXISTS FOR (c:Sequence) REQUIRE c.name IS UNIQUE",
	)
}

// GetTodos retrieves all todos from the database.
func (s *Neo4jTodoService) GetTodos(ctx context.Context) ([]models.Todo, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return readTodos(ctx, tx, "", nil)
	})
	if err != nil {
		return nil, fmt.Errorf("list todos: %w", err)
	}
	return result.([]models.Todo), nil
}

// CreateTodo adds a todo and its subtasks in one write transaction.
func (s *Neo4jTodoService) CreateTodo(ctx context.Context, in models.TodoInput) (*models.Todo, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		id, err := nextIDs(ctx, tx, "todo", 1)
		if err != nil {
			return nil, err
		}
		todo := models.NewTodo(in)
		res, err := tx.Run(ctx,
			"CREATE (t:Todo {id: $id, task: $task, completed: $completed, priority: $priority, "+
				"dueDate: $dueDate, remindMe: $remindMe})",
			map[string]any{
				"id":        id,
				"task":      todo.Task,
				"completed": todo.Completed,
				"priority":  todo.Priority,
				"dueDate":   derefString(todo.DueDate),
				"remindMe":  todo.RemindMe,
			},
		)
		if err != nil {
			return nil, err
		}
		if _, err := res.Consume(ctx); err != nil {
			return nil, err
		}
		if err := createSubTasks(ctx, tx, id, in.SubTasks); err != nil {
			return nil, err
		}
		return readTodo(ctx, tx, id)
	})
	if err != nil {
		return nil, fmt.Errorf("create todo: %w", err)
	}
	return result.(*models.Todo), nil
}

// UpdateTodo merges the fields present in the input and replaces every subtask.
func (s *Neo4jTodoService) UpdateTodo(ctx context.Context, id int64, in models.TodoInput) (*models.Todo, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		// A null value in the map removes the property, which clears dueDate.
		res, err := tx.Run(ctx,
			"MATCH (t:Todo {id: $id}) SET t += $props RETURN t.id",
			map[string]any{"id": id, "props": graphProps(in.Fields())},
		)
		if err != nil {
			return nil, err
		}
		if !res.Next(ctx) {
			if err := res.Err(); err != nil {
				return nil, err
			}
			return nil, ErrNotFound
		}

		res, err = tx.Run(ctx,
			"MATCH (s:SubTask)-[:SUBTASK_OF]->(:Todo {id: $id}) DETACH DELETE s",
			map[string]any{"id": id},
		)
		if err != nil {
			return nil, err
		}
		if _, err := res.Consume(ctx); err != nil {
			return nil, err
		}

		if err := createSubTasks(ctx, tx, id, in.SubTasks); err != nil {
			return nil, err
		}
		return readTodo(ctx, tx, id)
	})
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update todo %d: %w", id, err)
	}
	return result.(*models.Todo), nil
}

// DeleteTodo deletes a todo and its subtasks.
func (s *Neo4jTodoService) DeleteTodo(ctx context.Context, id int64) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, "MATCH (t:Todo {id: $id}) RETURN t.id", map[string]any{"id": id})
		if err != nil {
			return nil, err
		}
		if !res.Next(ctx) {
			if err := res.Err(); err != nil {
				return nil, err
			}
			return nil, ErrNotFound
		}

		// First, remove the subtasks
		res, err = tx.Run(ctx,
			"MATCH (s:SubTask)-[:SUBTASK_OF]->(:Todo {id: $id}) DETACH DELETE s",
			map[string]any{"id": id},
		)
		if err != nil {
			return nil, err
		}
		if _, err := res.Consume(ctx); err != nil {
			return nil, err
		}

		// Now, delete the todo itself
		res, err = tx.Run(ctx, "MATCH (t:Todo {id: $id}) DETACH DELETE t", map[string]any{"id": id})
		if err != nil {
			return nil, err
		}
		_, err = res.Consume(ctx)
		return nil, err
	})
	if errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("delete todo %d: %w", id, err)
	}
	return nil
}

// nextIDs reserves n consecutive ids from the named sequence and returns the first.
func nextIDs(ctx context.Context, tx neo4j.ManagedTransaction, sequence string, n int) (int64, error) {
	res, err := tx.Run(ctx,
		"MERGE (c:Sequence {name: $name}) ON CREATE SET c.value = 0 "+
			"SET c.value = c.value + $n RETURN c.value AS last",
		map[string]any{"name": sequence, "n": n},
	)
	if err != nil {
		return 0, err
	}
	record, err := res.Single(ctx)
	if err != nil {
		return 0, err
	}
	last, ok := record.Values[0].(int64)
	if !ok {
		return 0, fmt.Errorf("sequence %s: unexpected value %T", sequence, record.Values[0])
	}
	return last - int64(n) + 1, nil
}

func createSubTasks(ctx context.Context, tx neo4j.ManagedTransaction, todoID int64, inputs []models.SubTaskInput) error {
	if len(inputs) == 0 {
		return nil
	}
	first, err := nextIDs(ctx, tx, "subtask", len(inputs))
	if err != nil {
		return err
	}
	rows := make([]any, 0, len(inputs))
	for i, st := range models.NewSubTasks(todoID, inputs) {
		rows = append(rows, map[string]any{
			"id":        first + int64(i),
			"task":      st.Task,
			"completed": st.Completed,
		})
	}
	res, err := tx.Run(ctx,
		"MATCH (t:Todo {id: $todoId}) "+
			"UNWIND $subs AS sub "+
			"CREATE (s:SubTask {id: sub.id, task: sub.task, completed: sub.completed})-[:SUBTASK_OF]->(t)",
		map[string]any{"todoId": todoID, "subs": rows},
	)
	if err != nil {
		return err
	}
	_, err = res.Consume(ctx)
	return err
}

func readTodo(ctx context.Context, tx neo4j.ManagedTransaction, id int64) (*models.Todo, error) {
	todos, err := readTodos(ctx, tx, "WHERE t.id = $id", map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	if len(todos) == 0 {
		return nil, ErrNotFound
	}
	return &todos[0], nil
}

func readTodos(ctx context.Context, tx neo4j.ManagedTransaction, where string, params map[string]any) ([]models.Todo, error) {
	res, err := tx.Run(ctx,
		"MATCH (t:Todo) "+where+" "+
			"OPTIONAL MATCH (s:SubTask)-[:SUBTASK_OF]->(t) "+
			"WITH t, s ORDER BY s.id "+
			"WITH t, collect(s) AS subs "+
			"RETURN t, subs ORDER BY t.id",
		params,
	)
	if err != nil {
		return nil, err
	}

	todos := []models.Todo{}
	for res.Next(ctx) {
		record := res.Record()
		node, ok := record.Values[0].(neo4j.Node)
		if !ok {
			return nil, fmt.Errorf("unexpected todo value %T", record.Values[0])
		}
		subs, _ := record.Values[1].([]any)
		todo, err := todoFromNode(node, subs)
		if err != nil {
			return nil, err
		}
		todos = append(todos, todo)
	}
	if err := res.Err(); err != nil {
		return nil, err
	}
	return todos, nil
}

func todoFromNode(node neo4j.Node, subs []any) (models.Todo, error) {
	props := node.Props
	id, ok := props["id"].(int64)
	if !ok {
		return models.Todo{}, fmt.Errorf("todo node %s has no integer id", node.ElementId)
	}
	todo := models.Todo{
		ID:        id,
		Task:      stringProp(props, "task"),
		Completed: boolProp(props, "completed"),
		Priority:  stringProp(props, "priority"),
		RemindMe:  boolProp(props, "remindMe"),
		SubTasks:  make([]models.SubTask, 0, len(subs)),
	}
	if due, ok := props["dueDate"].(string); ok {
		todo.DueDate = &due
	}
	for _, raw := range subs {
		sn, ok := raw.(neo4j.Node)
		if !ok {
			continue
		}
		sid, _ := sn.Props["id"].(int64)
		todo.SubTasks = append(todo.SubTasks, models.SubTask{
			ID:        sid,
			Task:      stringProp(sn.Props, "task"),
			Completed: boolProp(sn.Props, "completed"),
			TodoID:    id,
		})
	}
	return todo, nil
}

// graphProps converts stored-field values into types the driver can send.
func graphProps(fields map[string]any) map[string]any {
	props := make(map[string]any, len(fields))
	for k, v := range fields {
		if p, ok := v.(*string); ok {
			props[k] = derefString(p)
			continue
		}
		props[k] = v
	}
	return props
}

func derefString(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func stringProp(props map[string]any, key string) string {
	s, _ := props[key].(string)
	return s
}

func boolProp(props map[string]any, key string) bool {
	b, _ := props[key].(bool)
	return b
}

func ensureConstraints(ctx context.Context, driver neo4j.DriverWithContext, statements ...string) error {
	session := driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	for _, stmt := range statements {
		res, err := session.Run(ctx, stmt, nil)
		if err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
		if _, err := res.Consume(ctx); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
