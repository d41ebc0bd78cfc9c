package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hugh/formlink/internal/access"
	"github.com/hugh/formlink/internal/api/dto"
	"github.com/hugh/formlink/internal/api/validation"
	"github.com/hugh/formlink/internal/apperr"
	"github.com/hugh/formlink/internal/database/models"
)

// maxBodyBytes caps request bodies. Form payload size is checked again by
// the links service against its own limit.
const maxBodyBytes = 1 << 20

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindUnauthenticated:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindExpired:
		return http.StatusGone
	case apperr.KindAlreadyUsed, apperr.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, dto.Envelope{Success: true, Data: data})
}

// writeError is the single place errors become responses. Infrastructure
// detail is logged and replaced by a generic message.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		appErr = apperr.Infra("unclassified error", err)
	}

	body := &dto.ErrorBody{
		Kind:    string(appErr.Kind),
		Message: appErr.Message,
		Details: appErr.Details,
	}

	switch appErr.Kind {
	case apperr.KindInfrastructure:
		logger.Error("request failed", "method", r.Method, "error", err)
		body.Message = "internal error"
		body.Details = nil
	case apperr.KindPartialFailure:
		logger.Error("operation left partially applied", "method", r.Method, "error", err)
	}

	writeJSON(w, StatusFor(appErr.Kind), dto.Envelope{Error: body})
}

func writeValidation(w http.ResponseWriter, r *http.Request, logger *slog.Logger, details map[string]string) {
	writeError(w, r, logger, apperr.Validation("validation failed", details))
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return apperr.Validation("request body too large", nil)
		case errors.Is(err, io.EOF):
			return apperr.Validation("request body is empty", nil)
		default:
			return apperr.Validation("invalid request body", nil)
		}
	}
	return nil
}

// authenticate resolves the caller through the gate and, when roles are
// given, runs the gate's role check too, writing the error response itself
// when either fails. Ownership of a specific row is checked by the service
// once the row is loaded.
func authenticate(w http.ResponseWriter, r *http.Request, gate *access.Gate, logger *slog.Logger, roles ...models.Role) (*access.Principal, bool) {
	var (
		p   *access.Principal
		err error
	)
	if len(roles) == 0 {
		p, err = gate.Authenticate(r.Context())
	} else {
		p, err = gate.Check(r.Context(), access.Policy{Roles: roles})
	}
	if err != nil {
		writeError(w, r, logger, err)
		return nil, false
	}
	return p, true
}

func chiParam(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}

// pathID parses the named URL parameter as a UUID.
func pathID(r *http.Request, name string) (uuid.UUID, error) {
	id, ok := validation.ParseUUID(chiParam(r, name))
	if !ok {
		return uuid.Nil, apperr.Validation("invalid id", map[string]string{name: "must be a UUID"})
	}
	return id, nil
}

func pagination(r *http.Request) dto.PaginationParams {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	p := dto.PaginationParams{Page: page, PerPage: perPage}
	p.Normalize()
	return p
}
