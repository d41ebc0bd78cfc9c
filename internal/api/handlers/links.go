package handlers

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/hugh/formlink/internal/access"
	"github.com/hugh/formlink/internal/api/dto"
	"github.com/hugh/formlink/internal/api/validation"
	"github.com/hugh/formlink/internal/apperr"
	"github.com/hugh/formlink/internal/database/models"
	"github.com/hugh/formlink/internal/links"
)

// FormsPath is the route prefix end-clients open links under.
const FormsPath = "/api/v1/forms/"

type LinkHandler struct {
	linkService *links.Service
	gate        *access.Gate
	logger      *slog.Logger
}

func NewLinkHandler(linkService *links.Service, gate *access.Gate, logger *slog.Logger) *LinkHandler {
	return &LinkHandler{linkService: linkService, gate: gate, logger: logger}
}

// Issue handles POST /api/v1/links
func (h *LinkHandler) Issue(w http.ResponseWriter, r *http.Request) {
	p, ok := authenticate(w, r, h.gate, h.logger, access.Console...)
	if !ok {
		return
	}

	var req dto.IssueLinkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if errors := req.Validate(h.linkService.Options().MaxTTL); len(errors) > 0 {
		writeValidation(w, r, h.logger, errors)
		return
	}

	clientID, _ := validation.ParseUUID(req.ClientID)
	agentID := uuid.Nil
	if req.AgentID != "" {
		agentID, _ = validation.ParseUUID(req.AgentID)
	}

	issued, err := h.linkService.Issue(r.Context(), p, links.IssueInput{
		ClientID: clientID,
		AgentID:  agentID,
		TTL:      req.TTL(),
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeData(w, http.StatusCreated, dto.IssuedLinkDTO{
		Link:  dto.NewLinkDTO(issued.Link, h.linkService.Now()),
		Token: issued.Token,
		Path:  FormsPath + issued.Token,
	})
}

// List handles GET /api/v1/links
func (h *LinkHandler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := authenticate(w, r, h.gate, h.logger, access.Console...)
	if !ok {
		return
	}

	filter := links.ListFilter{
		Status: models.LinkStatus(r.URL.Query().Get("status")),
	}
	if raw := r.URL.Query().Get("client_id"); raw != "" {
		id, ok := validation.ParseUUID(raw)
		if !ok {
			writeValidation(w, r, h.logger, map[string]string{"client_id": "must be a UUID"})
			return
		}
		filter.ClientID = id
	}

	page := pagination(r)
	filter.Offset = page.Offset()
	filter.Limit = page.PerPage

	list, total, err := h.linkService.List(r.Context(), p, filter)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	now := h.linkService.Now()
	items := make([]dto.LinkDTO, len(list))
	for i := range list {
		items[i] = dto.NewLinkDTO(&list[i], now)
	}
	writeData(w, http.StatusOK, dto.Paginate(items, total, page))
}

// Get handles GET /api/v1/links/{id}
func (h *LinkHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := authenticate(w, r, h.gate, h.logger, access.Console...)
	if !ok {
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	link, err := h.linkService.Get(r.Context(), p, id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeData(w, http.StatusOK, dto.NewLinkDTO(link, h.linkService.Now()))
}

// Submission handles GET /api/v1/links/{id}/submission
func (h *LinkHandler) Submission(w http.ResponseWriter, r *http.Request) {
	p, ok := authenticate(w, r, h.gate, h.logger, access.Console...)
	if !ok {
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	sub, err := h.linkService.GetSubmission(r.Context(), p, id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeData(w, http.StatusOK, dto.NewSubmissionDTO(sub))
}

// Reset handles POST /api/v1/links/{id}/reset
func (h *LinkHandler) Reset(w http.ResponseWriter, r *http.Request) {
	p, ok := authenticate(w, r, h.gate, h.logger, access.AdminOnly...)
	if !ok {
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req dto.ResetLinkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if errors := req.Validate(); len(errors) > 0 {
		writeValidation(w, r, h.logger, errors)
		return
	}
	submissionID, _ := validation.ParseUUID(req.SubmissionID)

	link, err := h.linkService.Reset(r.Context(), p, id, submissionID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeData(w, http.StatusOK, dto.NewLinkDTO(link, h.linkService.Now()))
}

// Revoke handles DELETE /api/v1/links/{id}
func (h *LinkHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	p, ok := authenticate(w, r, h.gate, h.logger, access.AdminOnly...)
	if !ok {
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if err := h.linkService.Revoke(r.Context(), p, id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeData(w, http.StatusOK, dto.MessageResponse{Message: "Link revoked"})
}

// Inconsistencies handles GET /api/v1/admin/inconsistencies
func (h *LinkHandler) Inconsistencies(w http.ResponseWriter, r *http.Request) {
	p, ok := authenticate(w, r, h.gate, h.logger, access.AdminOnly...)
	if !ok {
		return
	}

	report, err := h.linkService.Inconsistencies(r.Context(), p)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if report == nil {
		report = []links.Inconsistency{}
	}

	writeData(w, http.StatusOK, report)
}

// linkToken reads the token path parameter. Tokens that could never have
// been issued are reported as unknown links.
func linkToken(r *http.Request) (string, error) {
	token := chiParam(r, "token")
	if !validation.IsWellFormedLinkToken(token) {
		return "", apperr.New(apperr.KindNotFound, "link not found")
	}
	return token, nil
}
