package persona

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/chathub/internal/service/ai"
	"github.com/zhouzirui/chathub/pkg/utils"
)

// Profile is the public view of the assistant. Prompts stay server side.
type Profile struct {
	Name         string   `json:"name"`
	Introduction string   `json:"introduction"`
	Triggers     []string `json:"triggers"`
}

// Handler describes the automated participant to clients.
type Handler struct {
	profile Profile
}

// New creates a persona handler.
func New(p ai.Persona) *Handler {
	return &Handler{
		profile: Profile{
			Name:         p.Name,
			Introduction: p.Introduction,
			Triggers:     ai.Triggers(),
		},
	}
}

// RegisterRoutes mounts GET /assistant.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/assistant", h.handleAssistant)
}

func (h *Handler) handleAssistant(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.profile)
}
