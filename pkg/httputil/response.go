package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/cwrk-planet/meet-bridge/pkg/logger"
)

type envelope map[string]any

func JSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.FromContext(r.Context()).Warn("write json response failed", logger.Err(err))
	}
}

// OK оборачивает ответ в {"data": ...}.
func OK(w http.ResponseWriter, r *http.Request, data any) {
	JSON(w, r, http.StatusOK, envelope{"data": data})
}

// Error пишет {"error": {code, message, request_id}}.
func Error(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	body := envelope{"code": code, "message": msg}
	if id, ok := RequestIDFromContext(r.Context()); ok {
		body["request_id"] = id
	}
	JSON(w, r, status, envelope{"error": body})
}
