package pkg

import (
	"encoding/json"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"
)

// FieldError describes a single invalid request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ValidationErrors []FieldError

func (ve ValidationErrors) Error() string {
	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		msgs = append(msgs, fe.Field+": "+fe.Message)
	}
	return "validation failed: " + strings.Join(msgs, ", ")
}

func (ve *ValidationErrors) Add(field, message string) {
	*ve = append(*ve, FieldError{Field: field, Message: message})
}

// WriteValidationErrors rejects the request with a structured list of
// field-level errors, before any computation or persistence happens.
func WriteValidationErrors(w http.ResponseWriter, errs ValidationErrors) {
	resp := struct {
		Errors ValidationErrors `json:"errors"`
	}{
		Errors: errs,
	}
	respJson, err := json.Marshal(resp)
	if err != nil {
		log.Errorf("failed to marshal validation errors: %s", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	WriteResponseBytes(w, ContentType.JSON, respJson, http.StatusBadRequest)
}
