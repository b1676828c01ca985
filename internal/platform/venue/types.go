package venue

import (
	"encoding/json"
	"strings"

	"github.com/alanyoungcy/arbengine/internal/domain"
)

// scanResponse is the body of POST /v1/opportunities/scan.
type scanResponse struct {
	Opportunities []domain.Opportunity `json:"opportunities"`
}

// apiError is the error body the backend returns on non-2xx responses.
type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// errorMessage extracts a readable message from an error body, falling back
// to the raw text.
func errorMessage(raw []byte) string {
	var e apiError
	if err := json.Unmarshal(raw, &e); err == nil {
		if e.Message != "" {
			return e.Message
		}
		if e.Error != "" {
			return e.Error
		}
	}
	return strings.TrimSpace(string(raw))
}
