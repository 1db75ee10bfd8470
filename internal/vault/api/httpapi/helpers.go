package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	apperrors "github.com/louisbranch/medvault/internal/platform/errors"
	"github.com/louisbranch/medvault/internal/vault/domain"
)

// errorResponse is the JSON error envelope shared by all registry endpoints.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders err as the {code, message} envelope with the HTTP
// status mapped from its registry code. Errors without a registry code are
// masked as an internal error so store details never reach callers.
func writeError(w http.ResponseWriter, err error) {
	var domainErr *apperrors.Error
	if errors.As(err, &domainErr) && domainErr != nil {
		writeJSONStatus(w, domainErr.HTTPStatus(), errorResponse{
			Code:    string(domainErr.Code),
			Message: domainErr.Message,
		})
		return
	}

	switch {
	case errors.Is(err, domain.ErrNewAuthorityRequired),
		errors.Is(err, domain.ErrAccessorRequired):
		writeJSONStatus(w, http.StatusBadRequest, errorResponse{
			Code:    string(apperrors.CodeInvalidRequest),
			Message: err.Error(),
		})
	case errors.Is(err, domain.ErrCallerRequired):
		writeJSONStatus(w, http.StatusUnauthorized, errorResponse{
			Code:    string(apperrors.CodeAccessTokenInvalid),
			Message: "authenticated caller is required",
		})
	default:
		writeJSONStatus(w, http.StatusInternalServerError, errorResponse{
			Code:    string(apperrors.CodeUnknown),
			Message: "internal error",
		})
	}
}

func tooMany(w http.ResponseWriter, retryAfterSeconds int) {
	if retryAfterSeconds > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	}
	writeJSONStatus(w, http.StatusTooManyRequests, errorResponse{
		Code:    string(apperrors.CodeRateLimited),
		Message: "too many requests",
	})
}

// parseEntryID reads the numeric {entryID} path value.
func parseEntryID(r *http.Request) (uint64, error) {
	raw := strings.TrimSpace(r.PathValue("entryID"))
	if raw == "" {
		return 0, fmt.Errorf("entry id is required")
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse entry id %q: %w", raw, err)
	}
	return id, nil
}
