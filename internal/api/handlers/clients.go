package handlers

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/hugh/formlink/internal/access"
	"github.com/hugh/formlink/internal/api/dto"
	"github.com/hugh/formlink/internal/api/validation"
	"github.com/hugh/formlink/internal/clients"
	"github.com/hugh/formlink/internal/database/models"
)

type ClientHandler struct {
	clientService *clients.Service
	gate          *access.Gate
	logger        *slog.Logger
}

func NewClientHandler(clientService *clients.Service, gate *access.Gate, logger *slog.Logger) *ClientHandler {
	return &ClientHandler{clientService: clientService, gate: gate, logger: logger}
}

// List handles GET /api/v1/clients
func (h *ClientHandler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := authenticate(w, r, h.gate, h.logger, access.Console...)
	if !ok {
		return
	}

	page := pagination(r)
	list, total, err := h.clientService.List(r.Context(), p, clients.Filter{
		Status: models.ClientStatus(r.URL.Query().Get("status")),
		Offset: page.Offset(),
		Limit:  page.PerPage,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	items := make([]dto.ClientDTO, len(list))
	for i := range list {
		items[i] = dto.NewClientDTO(&list[i])
	}
	writeData(w, http.StatusOK, dto.Paginate(items, total, page))
}

// Create handles POST /api/v1/clients
func (h *ClientHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := authenticate(w, r, h.gate, h.logger, access.Console...)
	if !ok {
		return
	}

	var req dto.CreateClientRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if errors := req.Validate(); len(errors) > 0 {
		writeValidation(w, r, h.logger, errors)
		return
	}

	agentID := uuid.Nil
	if req.AgentID != "" {
		agentID, _ = validation.ParseUUID(req.AgentID)
	}

	client, err := h.clientService.Create(r.Context(), p, clients.CreateInput{
		Email:    req.Email,
		FullName: validation.CleanName(req.FullName),
		Company:  validation.CleanName(req.Company),
		AgentID:  agentID,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeData(w, http.StatusCreated, dto.NewClientDTO(client))
}

// Get handles GET /api/v1/clients/{id}
func (h *ClientHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := authenticate(w, r, h.gate, h.logger, access.Console...)
	if !ok {
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	client, err := h.clientService.Get(r.Context(), p, id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeData(w, http.StatusOK, dto.NewClientDTO(client))
}
