package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/tablepos/engine/internal/database"
)

// MenuStore defines the database methods needed by menu handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type MenuStore interface {
	ListMenu(ctx context.Context) ([]database.MenuItemWithCategory, error)
}

// MenuHandler serves the sellable menu to terminals.
type MenuHandler struct {
	store MenuStore
}

// NewMenuHandler creates a new MenuHandler.
func NewMenuHandler(store MenuStore) *MenuHandler {
	return &MenuHandler{store: store}
}

// RegisterRoutes registers menu endpoints on the given Chi router.
// Expected to be mounted at /menu.
func (h *MenuHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
}

// --- Response types ---

type menuCategoryResponse struct {
	ID    uuid.UUID          `json:"id"`
	Name  string             `json:"name"`
	Items []menuItemResponse `json:"items"`
}

type menuItemResponse struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Price string    `json:"price"`
}

// --- Handlers ---

// List handles GET /menu. Items come grouped by category in display order;
// inactive items and categories are left out.
func (h *MenuHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.store.ListMenu(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("list menu")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := []menuCategoryResponse{}
	index := make(map[uuid.UUID]int)
	for _, it := range items {
		i, ok := index[it.CategoryID]
		if !ok {
			i = len(resp)
			index[it.CategoryID] = i
			resp = append(resp, menuCategoryResponse{ID: it.CategoryID, Name: it.CategoryName})
		}
		resp[i].Items = append(resp[i].Items, menuItemResponse{
			ID:    it.ID,
			Name:  it.Name,
			Price: money(it.Price),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
