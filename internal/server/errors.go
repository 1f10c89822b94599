package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/TheNoZER0/ticketcalculator/pkg/ledger"
)

// jsonError represents a JSON error payload.
type jsonError struct {
	Error   string   `json:"error"`
	Details string   `json:"details,omitempty"`
	Missing []string `json:"missing_columns,omitempty"`
	Report  any      `json:"report,omitempty"`
}

// WriteJSONError writes a JSON error payload with the given status code.
func WriteJSONError(w http.ResponseWriter, status int, message, details string) {
	writeJSON(w, status, jsonError{Error: message, Details: details})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// commitStatus maps ledger errors to an HTTP status and error code.
func commitStatus(err error) (int, string) {
	switch {
	case errors.Is(err, ledger.ErrBudgetExceeded):
		return http.StatusConflict, "budget_exceeded"
	case errors.Is(err, ledger.ErrNoValidPrice):
		return http.StatusConflict, "no_valid_price"
	case errors.Is(err, ledger.ErrInputError):
		return http.StatusUnprocessableEntity, "input_error"
	}
	return http.StatusInternalServerError, "commit_failed"
}
