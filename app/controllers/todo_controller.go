package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"todo-api/app/models"
	"todo-api/app/services"

	"github.com/charmbracelet/log"
	"github.com/gorilla/mux"
)

// TodoController handles HTTP requests for todos.
type TodoController struct {
	Service services.TodoStore
	Logger  *log.Logger
}

// NewTodoController creates a new TodoController.
func NewTodoController(service services.TodoStore, logger *log.Logger) *TodoController {
	return &TodoController{Service: service, Logger: logger}
}

// GetTodos handles GET /todos.
func (c *TodoController) GetTodos(w http.ResponseWriter, r *http.Request) {
	todos, err := c.Service.GetTodos(r.Context())
	if err != nil {
		c.fail(w, "list todos", err)
		return
	}
	writeJSON(w, http.StatusOK, todos)
}

// CreateTodo handles POST /todos.
func (c *TodoController) CreateTodo(w http.ResponseWriter, r *http.Request) {
	var in models.TodoInput
	if err := decodeBody(r, &in); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "Invalid request payload")
		return
	}
	if err := in.ValidateCreate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	todo, err := c.Service.CreateTodo(r.Context(), in)
	if err != nil {
		c.fail(w, "create todo", err)
		return
	}
	writeJSON(w, http.StatusOK, todo)
}

// UpdateTodo handles PUT /todos/{id}.
func (c *TodoController) UpdateTodo(w http.ResponseWriter, r *http.Request) {
	id, ok := todoID(w, r)
	if !ok {
		return
	}
	var in models.TodoInput
	if err := decodeBody(r, &in); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "Invalid request payload")
		return
	}
	if err := in.ValidateUpdate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	todo, err := c.Service.UpdateTodo(r.Context(), id, in)
	if errors.Is(err, services.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Todo not found")
		return
	}
	if err != nil {
		c.fail(w, "update todo", err)
		return
	}
	writeJSON(w, http.StatusOK, todo)
}

// DeleteTodo handles DELETE /todos/{id}.
func (c *TodoController) DeleteTodo(w http.ResponseWriter, r *http.Request) {
	id, ok := todoID(w, r)
	if !ok {
		return
	}
	err := c.Service.DeleteTodo(r.Context(), id)
	if errors.Is(err, services.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Todo not found")
		return
	}
	if err != nil {
		c.fail(w, "delete todo", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Deleted"})
}

func (c *TodoController) fail(w http.ResponseWriter, op string, err error) {
	c.Logger.Error(op, "err", err)
	writeError(w, http.StatusInternalServerError, "Internal server error")
}

func todoID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "id: value is not a valid integer")
		return 0, false
	}
	return id, true
}
