package utils

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

func WriteHttpResponse(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Warn("encode response failed", "error", err)
		}
	}
}

// WriteHttpError 以 JSON 形式返回错误信息
func WriteHttpError(w http.ResponseWriter, code int, msg string) {
	WriteHttpResponse(w, code, map[string]string{"error": msg})
}
