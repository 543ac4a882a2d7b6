package routes

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/medledger/platform/pkg/common/logger"
	"github.com/medledger/platform/pkg/identity"
	"github.com/medledger/platform/pkg/ledger"
	"github.com/medledger/platform/pkg/records"
)

type LedgerHandler struct {
	service *ledger.Service
	users   *identity.Service
	access  records.AccessChecker
}

func NewLedgerHandler(service *ledger.Service, users *identity.Service, access records.AccessChecker) *LedgerHandler {
	return &LedgerHandler{service: service, users: users, access: access}
}

func (h *LedgerHandler) Register(r *mux.Router) {
	r.HandleFunc("/patients/{id}/chain", h.handleChain).Methods(http.MethodGet)
	r.HandleFunc("/patients/{id}/chain/verify", h.handleVerify).Methods(http.MethodGet)
}

func (h *LedgerHandler) handleChain(w http.ResponseWriter, r *http.Request) {
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
	if !canViewPatient(r, actor, patientID, h.access) {
		http.Error(w, "no access to this patient", http.StatusForbidden)
		return
	}

	blocks, err := h.service.Chain(r.Context(), patientID)
	if err != nil {
		logger.Log.WithError(err).Error("failed to load chain")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, blocks)
}

func (h *LedgerHandler) handleVerify(w http.ResponseWriter, r *http.Request) {
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
	if !canViewPatient(r, actor, patientID, h.access) {
		http.Error(w, "no access to this patient", http.StatusForbidden)
		return
	}

	report, err := h.service.VerifyChain(r.Context(), patientID)
	if err != nil {
		logger.Log.WithError(err).Error("failed to verify chain")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, report)
}
