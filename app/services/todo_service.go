package services

import (
	"context"
	"errors"
	"fmt"

	"todo-api/app/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TodoStore persists todos together with their subtasks.
type TodoStore interface {
	GetTodos(ctx context.Context) ([]models.Todo, error)
	CreateTodo(ctx context.Context, in models.TodoInput) (*models.Todo, error)
	UpdateTodo(ctx context.Context, id int64, in models.TodoInput) (*models.Todo, error)
	DeleteTodo(ctx context.Context, id int64) error
}

// TodoService handles todo operations on a relational database.
type TodoService struct {
	db *gorm.DB
}

// NewTodoService creates a new instance of TodoService.
func NewTodoService(db *gorm.DB) *TodoService {
	return &TodoService{db: db}
}

// EnsureSchema creates the todo and subtask tables if they are missing.
// Existing tables are left as they are.
func (s *TodoService) EnsureSchema(ctx context.Context) error {
	return createMissingTables(s.db.WithContext(ctx), &models.Todo{}, &models.SubTask{})
}

// createMissingTables creates each table that does not exist yet, in order.
// It never alters a table, so data files written by earlier versions keep their layout.
func createMissingTables(db *gorm.DB, tables ...any) error {
	m := db.Migrator()
	for _, table := range tables {
		if m.HasTable(table) {
			continue
		}
		if err := m.CreateTable(table); err != nil {
			return fmt.Errorf("create table for %T: %w", table, err)
		}
	}
	return nil
}

func subTasksByID(db *gorm.DB) *gorm.DB {
	return db.Order("id")
}

// GetTodos retrieves all todos with their subtasks.
func (s *TodoService) GetTodos(ctx context.Context) ([]models.Todo, error) {
	todos := []models.Todo{}
	err := s.db.WithContext(ctx).
		Preload("SubTasks", subTasksByID).
		Order("id").
		Find(&todos).Error
	if err != nil {
		return nil, fmt.Errorf("list todos: %w", err)
	}
	for i := range todos {
		normalize(&todos[i])
	}
	return todos, nil
}

// CreateTodo inserts the todo, then its subtasks, in one transaction.
func (s *TodoService) CreateTodo(ctx context.Context, in models.TodoInput) (*models.Todo, error) {
	todo := models.NewTodo(in)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(&todo).Error; err != nil {
			return fmt.Errorf("insert todo: %w", err)
		}
		subs, err := insertSubTasks(tx, todo.ID, in.SubTasks)
		if err != nil {
			return err
		}
		todo.SubTasks = subs
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &todo, nil
}

// UpdateTodo merges the fields present in the input and replaces every subtask.
// Subtask ids are never carried over: each update assigns fresh ones.
func (s *TodoService) UpdateTodo(ctx context.Context, id int64, in models.TodoInput) (*models.Todo, error) {
	var updated models.Todo
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var todo models.Todo
		if err := findTodo(tx, id, &todo); err != nil {
			return err
		}

		if fields := in.Fields(); len(fields) > 0 {
			if err := tx.Model(&todo).Updates(fields).Error; err != nil {
				return fmt.Errorf("update todo %d: %w", id, err)
			}
		}

		// Clear and replace.
		if err := tx.Where("todo_id = ?", id).Delete(&models.SubTask{}).Error; err != nil {
			return fmt.Errorf("delete subtasks of todo %d: %w", id, err)
		}
		if _, err := insertSubTasks(tx, id, in.SubTasks); err != nil {
			return err
		}

		if err := tx.Preload("SubTasks", subTasksByID).First(&updated, id).Error; err != nil {
			return fmt.Errorf("reload todo %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	normalize(&updated)
	return &updated, nil
}

// DeleteTodo deletes a todo and all of its subtasks.
func (s *TodoService) DeleteTodo(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var todo models.Todo
		if err := findTodo(tx, id, &todo); err != nil {
			return err
		}
		if err := tx.Where("todo_id = ?", id).Delete(&models.SubTask{}).Error; err != nil {
			return fmt.Errorf("delete subtasks of todo %d: %w", id, err)
		}
		if err := tx.Delete(&models.Todo{}, id).Error; err != nil {
			return fmt.Errorf("delete todo %d: %w", id, err)
		}
		return nil
	})
}

func findTodo(tx *gorm.DB, id int64, todo *models.Todo) error {
	err := tx.First(todo, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("find todo %d: %w", id, err)
	}
	return nil
}

func insertSubTasks(tx *gorm.DB, todoID int64, inputs []models.SubTaskInput) ([]models.SubTask, error) {
	subs := models.NewSubTasks(todoID, inputs)
	if len(subs) == 0 {
		return subs, nil
	}
	if err := tx.Omit(clause.Associations).Create(&subs).Error; err != nil {
		return nil, fmt.Errorf("insert subtasks of todo %d: %w", todoID, err)
	}
	return subs, nil
}

// normalize makes empty subtask lists encode as [] rather than null.
func normalize(t *models.Todo) {
	if t.SubTasks == nil {
		t.SubTasks = []models.SubTask{}
	}
}
