package routes

import (
	"net/http"

	"todo-api/app/controllers"

	"github.com/gorilla/mux"
)

// Controllers groups the handlers mounted by RegisterRoutes.
type Controllers struct {
	Auth *controllers.AuthController
	Todo *controllers.TodoController
	Log  *controllers.LogController
}

// RegisterRoutes sets up all routes for the application.
// requireAuth guards every route except login and log creation.
func RegisterRoutes(router *mux.Router, c Controllers, requireAuth, logLimiter mux.MiddlewareFunc) {
	router.HandleFunc("/token", c.Auth.Login).Methods(http.MethodPost)
	router.Handle("/logs", logLimiter(http.HandlerFunc(c.Log.CreateLog))).Methods(http.MethodPost)

	protected := router.NewRoute().Subrouter()
	protected.Use(requireAuth)
	protected.HandleFunc("/todos", c.Todo.GetTodos).Methods(http.MethodGet)
	protected.HandleFunc("/todos", c.Todo.CreateTodo).Methods(http.MethodPost)
	protected.HandleFunc("/todos/{id}", c.Todo.UpdateTodo).Methods(http.MethodPut)
	protected.HandleFunc("/todos/{id}", c.Todo.DeleteTodo).Methods(http.MethodDelete)
	protected.HandleFunc("/logs", c.Log.GetLogs).Methods(http.MethodGet)
}
