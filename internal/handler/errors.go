package handler

import (
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog/log"
	"github.com/tablepos/engine/internal/auth"
	"github.com/tablepos/engine/internal/database"
	"github.com/tablepos/engine/internal/middleware"
	"github.com/tablepos/engine/internal/service"
)

// writeServiceError maps a service error onto its HTTP status. Errors the
// service does not classify are logged and hidden behind a 500.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	var (
		validation *service.ValidationError
		notFound   *service.NotFoundError
		closed     *service.ClosedOrderError
		forbidden  *service.AuthorizationError
		limit      *service.LimitExceededError
		conflict   *service.ConflictError
	)
	switch {
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.As(err, &forbidden):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})
	case errors.As(err, &notFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.As(err, &closed), errors.As(err, &limit), errors.As(err, &conflict):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		log.Error().Err(err).Str("op", op).Msg("request failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

// actorFromRequest returns the authenticated user, or false when the request
// carries no claims.
func actorFromRequest(r *http.Request) (service.Actor, bool) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		return service.Actor{}, false
	}
	return actorFromClaims(claims), true
}

func actorFromClaims(c *auth.Claims) service.Actor {
	return service.Actor{UserID: c.UserID, Role: c.Role}
}

func money(n pgtype.Numeric) string {
	return database.ToDecimal(n).StringFixed(2)
}

func optionalString(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	return &t.String
}
