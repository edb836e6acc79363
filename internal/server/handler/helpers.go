package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
)

// writeJSON marshals v and writes it with status. A marshal failure becomes
// a plain 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// queryFloat overwrites dst with the named query parameter when it parses.
func queryFloat(r *http.Request, name string, dst *float64) {
	if v := strings.TrimSpace(r.URL.Query().Get(name)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func queryInt(r *http.Request, name string, dst *int) {
	if v := strings.TrimSpace(r.URL.Query().Get(name)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func queryBool(r *http.Request, name string, dst *bool) {
	if v := strings.TrimSpace(r.URL.Query().Get(name)); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
