package controllers

import (
	"encoding/json"
	"net/http"
	"time"

	"todo-api/app/services"

	"github.com/charmbracelet/log"
)

// LogController handles client error reports.
type LogController struct {
	Service services.LogStore
	Logger  *log.Logger
	now     func() time.Time
}

// NewLogController creates a new LogController.
func NewLogController(service services.LogStore, logger *log.Logger) *LogController {
	return &LogController{Service: service, Logger: logger, now: time.Now}
}

// GetLogs handles GET /logs.
func (c *LogController) GetLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := c.Service.GetLogs(r.Context())
	if err != nil {
		c.Logger.Error("list logs", "err", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

// CreateLog handles POST /logs. The body may be any JSON object.
func (c *LogController) CreateLog(w http.ResponseWriter, r *http.Request) {
	var body any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "Invalid request payload")
		return
	}
	payload, ok := body.(map[string]any)
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, "body must be a JSON object")
		return
	}

	entry := services.BuildLogEntry(payload, c.now())
	if err := c.Service.CreateLog(r.Context(), entry); err != nil {
		c.Logger.Error("failed to save log", "id", entry.ID, "err", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}
