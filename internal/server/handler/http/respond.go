package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/credihogar/catalog/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError answers with {"error": message} and the status matching the
// error's kind. Unclassified errors are reported as a generic 500.
func writeError(w http.ResponseWriter, err error) {
	status := apperr.HTTPStatus(err)
	msg := apperr.Message(err)
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		msg = "Error interno del servidor"
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "Método no permitido"})
}
