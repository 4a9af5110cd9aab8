package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"github.com/tablepos/engine/internal/database"
	"github.com/tablepos/engine/internal/pricing"
	"github.com/tablepos/engine/internal/service"
)

// SettingsStore defines the database methods needed by settings handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type SettingsStore interface {
	ListSettings(ctx context.Context) ([]database.Setting, error)
	UpsertSetting(ctx context.Context, key, value string) error
}

// SettingsHandler reads and writes operator settings. Changes apply to the
// next pricing or ledger pass.
type SettingsHandler struct {
	store SettingsStore
}

// NewSettingsHandler creates a new SettingsHandler.
func NewSettingsHandler(store SettingsStore) *SettingsHandler {
	return &SettingsHandler{store: store}
}

// RegisterRoutes registers settings endpoints on the given Chi router.
// Expected to be mounted at /settings behind an admin/manager role gate.
func (h *SettingsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Put("/{key}", h.Put)
}

var knownSettings = map[string]bool{
	service.SettingRules:                 true,
	service.SettingServicePercent:        true,
	service.SettingTaxPercent:            true,
	service.SettingRequireTableForDineIn: true,
	service.SettingAllowZeroPayment:      true,
	service.SettingAllowOverpay:          true,
	service.SettingRefundMax:             true,
	service.SettingRefundRequirePIN:      true,
	service.SettingCancelRequirePIN:      true,
}

// --- Request / Response types ---

type settingResponse struct {
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type putSettingRequest struct {
	Value json.RawMessage `json:"value"`
}

// --- Handlers ---

// List handles GET /settings.
func (h *SettingsHandler) List(w http.ResponseWriter, r *http.Request) {
	rows, err := h.store.ListSettings(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("list settings")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]settingResponse, len(rows))
	for i, row := range rows {
		resp[i] = settingResponse{Key: row.Key, Value: rawValue(row.Value), UpdatedAt: row.UpdatedAt}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Put handles PUT /settings/{key}. The value is stored as JSON text.
// Malformed rules are accepted and dropped when pricing reads them; the
// response reports how many survived.
func (h *SettingsHandler) Put(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if !knownSettings[key] {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown setting"})
		return
	}

	var req putSettingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Value) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if err := h.store.UpsertSetting(r.Context(), key, string(req.Value)); err != nil {
		log.Error().Err(err).Str("key", key).Msg("upsert setting")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := map[string]any{"key": key, "value": req.Value}
	if key == service.SettingRules {
		resp["parsed_rules"] = len(pricing.ParseRules(req.Value))
	}
	writeJSON(w, http.StatusOK, resp)
}

// rawValue returns stored text as JSON, quoting bare strings written by hand.
func rawValue(s string) json.RawMessage {
	if json.Valid([]byte(s)) {
		return json.RawMessage(s)
	}
	b, _ := json.Marshal(s)
	return b
}
