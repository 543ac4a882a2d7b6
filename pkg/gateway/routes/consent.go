package routes

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/medledger/platform/pkg/common/logger"
	"github.com/medledger/platform/pkg/common/models"
	"github.com/medledger/platform/pkg/consent"
	"github.com/medledger/platform/pkg/identity"
)

type ConsentHandler struct {
	service *consent.Service
	users   *identity.Service
}

func NewConsentHandler(service *consent.Service, users *identity.Service) *ConsentHandler {
	return &ConsentHandler{service: service, users: users}
}

func (h *ConsentHandler) Register(r *mux.Router) {
	r.HandleFunc("/patients/{id}/access/grant", h.handleGrant).Methods(http.MethodPost)
	r.HandleFunc("/patients/{id}/access/revoke", h.handleRevoke).Methods(http.MethodPost)
	r.HandleFunc("/patients/{id}/access", h.handleListForPatient).Methods(http.MethodGet)
	r.HandleFunc("/doctors/{id}/patients", h.handleListForDoctor).Methods(http.MethodGet)
}

func (h *ConsentHandler) handleGrant(w http.ResponseWriter, r *http.Request) {
	patientID, err := pathUUID(r, "id")
	if err != nil {
		http.Error(w, "invalid patient id", http.StatusBadRequest)
		return
	}

	actor, err := resolveActor(r, h.users)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req models.GrantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	perm, err := h.service.Grant(r.Context(), actor, patientID, req.DoctorID)
	if err != nil {
		logger.Log.WithError(err).Warn("grant failed")
		writeServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, perm)
}

func (h *ConsentHandler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	patientID, err := pathUUID(r, "id")
	if err != nil {
		http.Error(w, "invalid patient id", http.StatusBadRequest)
		return
	}

	actor, err := resolveActor(r, h.users)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req models.GrantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	if err := h.service.Revoke(r.Context(), actor, patientID, req.DoctorID); err != nil {
		logger.Log.WithError(err).Warn("revoke failed")
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *ConsentHandler) handleListForPatient(w http.ResponseWriter, r *http.Request) {
	patientID, err := pathUUID(r, "id")
	if err != nil {
		http.Error(w, "invalid patient id", http.StatusBadRequest)
		return
	}

	actor, err := resolveActor(r, h.users)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if actor.ID != patientID {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	perms, err := h.service.ListForPatient(r.Context(), patientID)
	if err != nil {
		logger.Log.WithError(err).Error("failed to list grants")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, perms)
}

func (h *ConsentHandler) handleListForDoctor(w http.ResponseWriter, r *http.Request) {
	doctorID, err := pathUUID(r, "id")
	if err != nil {
		http.Error(w, "invalid doctor id", http.StatusBadRequest)
		return
	}

	actor, err := resolveActor(r, h.users)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if actor.ID != doctorID {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	perms, err := h.service.ListForDoctor(r.Context(), doctorID)
	if err != nil {
		logger.Log.WithError(err).Error("failed to list patients")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, perms)
}
