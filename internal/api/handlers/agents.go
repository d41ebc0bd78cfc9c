package handlers

import (
	"log/slog"
	"net/http"

	"github.com/hugh/formlink/internal/access"
	"github.com/hugh/formlink/internal/api/dto"
	"github.com/hugh/formlink/internal/api/validation"
	"github.com/hugh/formlink/internal/auth"
	"github.com/hugh/formlink/internal/database/models"
)

type AgentHandler struct {
	authService auth.Authenticator
	gate        *access.Gate
	logger      *slog.Logger
}

func NewAgentHandler(authService auth.Authenticator, gate *access.Gate, logger *slog.Logger) *AgentHandler {
	return &AgentHandler{authService: authService, gate: gate, logger: logger}
}

// Create handles POST /api/v1/agents
func (h *AgentHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := authenticate(w, r, h.gate, h.logger, access.AdminOnly...)
	if !ok {
		return
	}

	var req dto.CreateAgentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if errors := req.Validate(); len(errors) > 0 {
		writeValidation(w, r, h.logger, errors)
		return
	}

	account, err := h.authService.CreateAgent(r.Context(), p, auth.CreateAgentInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     validation.CleanName(req.Name),
		Phone:    validation.SanitizeString(req.Phone),
		Role:     models.Role(req.Role),
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeData(w, http.StatusCreated, dto.AgentDTO{
		User:   dto.NewUserDTO(account.User),
		Status: string(account.Agent.Status),
		Phone:  account.Agent.Phone,
	})
}
