package http

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/pkg/errors"

	"github.com/mind-engage/mindengage-exams/internal/exam"
)

type errorBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// writeError maps domain errors onto status codes. Upstream failures are
// logged and answered with an opaque 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *exam.ValidationError
	switch {
	case errors.As(err, &verr):
		body := errorBody{Error: "validation failed", Fields: map[string]string{}}
		for _, f := range verr.Fields {
			body.Fields[f.Field] = f.Error
		}
		if len(body.Fields) == 0 {
			body.Error = verr.Error()
		}
		writeJSON(w, http.StatusBadRequest, body)
	case errors.Is(err, exam.ErrForbidden):
		writeJSON(w, http.StatusForbidden, errorBody{Error: "forbidden"})
	case errors.Is(err, exam.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
	case errors.Is(err, exam.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	default:
		log.Printf("%s %s: %v", r.Method, r.URL.Path, err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "bad json: " + err.Error()})
		return false
	}
	return true
}
