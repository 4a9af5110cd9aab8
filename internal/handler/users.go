package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog/log"
	"github.com/tablepos/engine/internal/auth"
	"github.com/tablepos/engine/internal/database"
	"github.com/tablepos/engine/internal/enum"
)

// UserStore defines the database methods needed by user handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type UserStore interface {
	ListUsers(ctx context.Context) ([]database.User, error)
	UpsertUser(ctx context.Context, arg database.UpsertUserParams) (database.User, error)
}

// UserHandler manages staff accounts.
type UserHandler struct {
	store UserStore
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(store UserStore) *UserHandler {
	return &UserHandler{store: store}
}

// RegisterRoutes registers user endpoints on the given Chi router.
// Expected to be mounted at /users behind an admin role gate.
func (h *UserHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Put("/", h.Upsert)
}

// --- Request / Response types ---

type upsertUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
	// PIN authorises refunds and cancellations for managers and admins.
	PIN string `json:"pin"`
}

type userDetailResponse struct {
	ID     uuid.UUID `json:"id"`
	Name   string    `json:"name"`
	Email  string    `json:"email"`
	Role   string    `json:"role"`
	HasPIN bool      `json:"has_pin"`
	Active bool      `json:"active"`
}

func toUserDetailResponse(u database.User) userDetailResponse {
	return userDetailResponse{
		ID:     u.ID,
		Name:   u.Name,
		Email:  u.Email,
		Role:   u.Role,
		HasPIN: u.PinHash.Valid && u.PinHash.String != "",
		Active: u.Active,
	}
}

// --- Handlers ---

// List handles GET /users.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("list users")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]userDetailResponse, len(users))
	for i, u := range users {
		resp[i] = toUserDetailResponse(u)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Upsert handles PUT /users. Users are keyed by email; password and PIN are
// stored as bcrypt hashes.
func (h *UserHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var req upsertUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Email == "" || req.Password == "" || req.Name == "" || req.Role == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "email, password, name, and role are required"})
		return
	}
	if !strings.Contains(req.Email, "@") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid email format"})
		return
	}
	if !enum.ValidUserRole(req.Role) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid role"})
		return
	}
	if req.PIN != "" && (len(req.PIN) < 4 || len(req.PIN) > 6 || strings.Trim(req.PIN, "0123456789") != "") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "pin must be 4-6 digits"})
		return
	}

	passwordHash, err := auth.HashSecret(req.Password)
	if err != nil {
		log.Error().Err(err).Msg("hash password")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	var pinHash pgtype.Text
	if req.PIN != "" {
		hashed, err := auth.HashSecret(req.PIN)
		if err != nil {
			log.Error().Err(err).Msg("hash pin")
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		pinHash = pgtype.Text{String: hashed, Valid: true}
	}

	user, err := h.store.UpsertUser(r.Context(), database.UpsertUserParams{
		Name:         req.Name,
		Email:        strings.ToLower(req.Email),
		PasswordHash: passwordHash,
		PinHash:      pinHash,
		Role:         req.Role,
	})
	if err != nil {
		log.Error().Err(err).Msg("upsert user")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, toUserDetailResponse(user))
}
