package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/gophdrop/internal/common"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// statusFor maps a service error onto a status code and a message that is
// safe to return. Missing and wrong-password cases share one answer.
func statusFor(err error) (int, string) {
	var ve *common.ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, ve.Msg
	case errors.Is(err, common.ErrValidation):
		return http.StatusBadRequest, "invalid request"
	case errors.Is(err, common.ErrorNotFound), errors.Is(err, common.ErrorUnauthorized):
		return http.StatusForbidden, "access denied"
	case errors.Is(err, common.ErrStorageUnavailable):
		return http.StatusServiceUnavailable, "storage unavailable, please retry"
	case errors.Is(err, common.ErrPartialFailure):
		return http.StatusInternalServerError, "download could not be completed"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}
