package controllers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
)

var errNullBody = errors.New("body may not be null")

type errorBody struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorBody{Detail: detail})
}

// decodeBody decodes the request body into v, rejecting a literal null.
func decodeBody(r *http.Request, v any) error {
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return err
	}
	if bytes.Equal(raw, []byte("null")) {
		return errNullBody
	}
	return json.Unmarshal(raw, v)
}
