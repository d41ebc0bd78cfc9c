package handlers

import (
	"log/slog"
	"net/http"

	"github.com/hugh/formlink/internal/access"
	"github.com/hugh/formlink/internal/api/dto"
	"github.com/hugh/formlink/internal/links"
)

// FormHandler serves the token-addressed routes end-clients use.
type FormHandler struct {
	linkService *links.Service
	gate        *access.Gate
	logger      *slog.Logger
}

func NewFormHandler(linkService *links.Service, gate *access.Gate, logger *slog.Logger) *FormHandler {
	return &FormHandler{linkService: linkService, gate: gate, logger: logger}
}

// View handles GET /api/v1/forms/{token}. Expired and used links are
// reported through the state field, not as errors.
func (h *FormHandler) View(w http.ResponseWriter, r *http.Request) {
	p, ok := authenticate(w, r, h.gate, h.logger, access.EndClient...)
	if !ok {
		return
	}

	token, err := linkToken(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	view, err := h.linkService.View(r.Context(), p, token)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeData(w, http.StatusOK, dto.FormViewDTO{
		LinkID:    view.Link.ID.String(),
		State:     string(view.State),
		ExpiresAt: view.Link.ExpiresAt,
	})
}

// Submit handles POST /api/v1/forms/{token}
func (h *FormHandler) Submit(w http.ResponseWriter, r *http.Request) {
	p, ok := authenticate(w, r, h.gate, h.logger, access.EndClient...)
	if !ok {
		return
	}

	token, err := linkToken(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req dto.SubmitFormRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	sub, err := h.linkService.Submit(r.Context(), p, token, req.Data)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeData(w, http.StatusCreated, dto.SubmitFormResponse{
		SubmissionID: sub.ID.String(),
		SubmittedAt:  sub.SubmittedAt,
	})
}
