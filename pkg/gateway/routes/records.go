package routes

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/medledger/platform/pkg/common/logger"
	"github.com/medledger/platform/pkg/common/models"
	"github.com/medledger/platform/pkg/identity"
	"github.com/medledger/platform/pkg/records"
)

// BlobReader serves stored report attachments by reference.
type BlobReader interface {
	Get(ctx context.Context, id uuid.UUID) (data []byte, contentType string, err error)
}

type RecordsHandler struct {
	service *records.Service
	users   *identity.Service
	access  records.AccessChecker
	blobs   BlobReader
}

func NewRecordsHandler(service *records.Service, users *identity.Service, access records.AccessChecker, blobs BlobReader) *RecordsHandler {
	return &RecordsHandler{service: service, users: users, access: access, blobs: blobs}
}

func (h *RecordsHandler) Register(r *mux.Router) {
	r.HandleFunc("/patients/{id}/reports", h.handleAddReport).Methods(http.MethodPost)
	r.HandleFunc("/patients/{id}/updates", h.handleAddUpdate).Methods(http.MethodPost)
	r.HandleFunc("/patients/{id}/records", h.handleHistory).Methods(http.MethodGet)
	r.HandleFunc("/patients/{id}/files/{fileID}", h.handleGetFile).Methods(http.MethodGet)
}

func (h *RecordsHandler) handleAddReport(w http.ResponseWriter, r *http.Request) {
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

	var req models.ReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	var fileData []byte
	if req.FileData != "" {
		fileData, err = base64.StdEncoding.DecodeString(req.FileData)
		if err != nil {
			http.Error(w, "invalid file data", http.StatusBadRequest)
			return
		}
	}

	rec, err := h.service.AddReport(r.Context(), actor, patientID, req.Title, fileData, req.ContentType)
	if err != nil {
		logger.Log.WithError(err).Warn("add report failed")
		writeServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, rec)
}

func (h *RecordsHandler) handleAddUpdate(w http.ResponseWriter, r *http.Request) {
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

	var req models.UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	rec, err := h.service.AddDoctorUpdate(r.Context(), actor, actor.ID, patientID, req.Note)
	if err != nil {
		logger.Log.WithError(err).Warn("add update failed")
		writeServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, rec)
}

func (h *RecordsHandler) handleHistory(w http.ResponseWriter, r *http.Request) {
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

	items, err := h.service.History(r.Context(), patientID)
	if err != nil {
		logger.Log.WithError(err).Error("failed to load history")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, items)
}

func (h *RecordsHandler) handleGetFile(w http.ResponseWriter, r *http.Request) {
	patientID, err := pathUUID(r, "id")
	if err != nil {
		http.Error(w, "invalid patient id", http.StatusBadRequest)
		return
	}
	fileID, err := pathUUID(r, "fileID")
	if err != nil {
		http.Error(w, "invalid file id", http.StatusBadRequest)
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

	data, contentType, err := h.blobs.Get(r.Context(), fileID)
	if err != nil {
		http.Error(w, "file not found", http.StatusNotFound)
		return
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// canViewPatient: patients see their own data; doctors need a live grant.
func canViewPatient(r *http.Request, actor models.User, patientID uuid.UUID, access records.AccessChecker) bool {
	if actor.ID == patientID {
		return true
	}
	if actor.Role != models.RoleDoctor {
		return false
	}
	granted, err := access.IsGranted(r.Context(), patientID, actor.ID)
	return err == nil && granted
}
