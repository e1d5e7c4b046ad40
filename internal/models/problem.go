package models

import (
	"encoding/json"
	"net/http"
)

// WriteProblem — ответ об ошибке в духе RFC 7807 (application/problem+json).
func WriteProblem(w http.ResponseWriter, status int, title, detail string, extra map[string]string) {
	w.Header().Set("Content-Type", "application/problem+json; charset=utf-8")
	w.WriteHeader(status)
	body := map[string]any{
		"title":  title,
		"detail": detail,
		"status": status,
	}
	for k, v := range extra {
		body[k] = v
	}
	_ = json.NewEncoder(w).Encode(body)
}
