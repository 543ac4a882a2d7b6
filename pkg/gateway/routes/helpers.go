package routes

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/medledger/platform/pkg/common/logger"
	"github.com/medledger/platform/pkg/common/models"
	"github.com/medledger/platform/pkg/consent"
	"github.com/medledger/platform/pkg/gateway/middleware"
	"github.com/medledger/platform/pkg/identity"
	"github.com/medledger/platform/pkg/records"
)

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.WithError(err).Error("failed to encode response")
	}
}

// resolveActor loads the authenticated user for explicit actor passing into
// services.
func resolveActor(r *http.Request, users *identity.Service) (models.User, error) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		return models.User{}, errors.New("missing claims")
	}
	return users.GetUser(r.Context(), claims.UserID)
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	return uuid.Parse(mux.Vars(r)[name])
}

// writeServiceError maps domain sentinels onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, identity.ErrEmailAlreadyExists):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, identity.ErrInvalidCredentials):
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
	case errors.Is(err, identity.ErrMalformedCredential):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, identity.ErrInvalidRole), errors.Is(err, identity.ErrNoAuthMaterial):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, identity.ErrUserNotFound):
		http.Error(w, "user not found", http.StatusNotFound)
	case errors.Is(err, consent.ErrForbidden), errors.Is(err, records.ErrForbidden):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, consent.ErrNotDoctor):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, records.ErrUnauthorized):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, records.ErrEmptyTitle), errors.Is(err, records.ErrEmptyNote):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		logger.Log.WithError(err).Error("internal error")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
