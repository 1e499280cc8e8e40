package controllers

import (
	"context"
	"errors"
	"net/http"

	"todo-api/app/services"

	"github.com/charmbracelet/log"
)

// TokenIssuer exchanges credentials for a bearer token.
type TokenIssuer interface {
	Authenticate(ctx context.Context, username, password string) (string, error)
}

// AuthController handles the login endpoint.
type AuthController struct {
	Service TokenIssuer
	Logger  *log.Logger
}

// NewAuthController creates a new AuthController.
func NewAuthController(service TokenIssuer, logger *log.Logger) *AuthController {
	return &AuthController{Service: service, Logger: logger}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Login handles POST /token with form fields username and password.
func (c *AuthController) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(1 << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		writeError(w, http.StatusUnprocessableEntity, "Invalid form body")
		return
	}
	for _, field := range []string{"username", "password"} {
		if _, ok := r.PostForm[field]; !ok {
			writeError(w, http.StatusUnprocessableEntity, field+": field required")
			return
		}
	}

	token, err := c.Service.Authenticate(r.Context(), r.PostForm.Get("username"), r.PostForm.Get("password"))
	if errors.Is(err, services.ErrInvalidCredentials) {
		writeError(w, http.StatusBadRequest, "Invalid credentials")
		return
	}
	if err != nil {
		c.Logger.Error("login failed", "err", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: token, TokenType: "bearer"})
}
