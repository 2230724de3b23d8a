package sandbox

import (
	"encoding/json"
	"net/http"

	"user-manager/usermanager/domain"
)

// Códigos de erro no corpo das respostas, no mesmo formato da plataforma.
const (
	CodeInvalidParameter = 400100
	CodeNotFound         = 400201
	CodeAlreadyExists    = 400202
	CodeInvalidToken     = 400401
	CodeRateLimited      = 500910
	CodeUnavailable      = 500503
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status, code int, message string) {
	writeJSON(w, status, domain.ErrorInfo{Error: true, Code: code, Message: message})
}
