package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hugh/formlink/internal/access"
	"github.com/hugh/formlink/internal/api/dto"
	"github.com/hugh/formlink/internal/archive"
)

type ArchiveHandler struct {
	archiver *archive.Archiver
	gate     *access.Gate
	logger   *slog.Logger
}

func NewArchiveHandler(archiver *archive.Archiver, gate *access.Gate, logger *slog.Logger) *ArchiveHandler {
	return &ArchiveHandler{archiver: archiver, gate: gate, logger: logger}
}

// Get handles GET /api/v1/submissions/{id}/archive
func (h *ArchiveHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := authenticate(w, r, h.gate, h.logger, access.AdminOnly...)
	if !ok {
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	data, err := h.archiver.Fetch(r.Context(), p, id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeData(w, http.StatusOK, dto.ArchiveDTO{
		SubmissionID: id.String(),
		Data:         json.RawMessage(data),
	})
}
