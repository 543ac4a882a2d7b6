package records

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/medledger/platform/pkg/common/logger"
	"github.com/medledger/platform/pkg/common/models"
	"github.com/medledger/platform/pkg/observability/metrics"
	"github.com/medledger/platform/pkg/phi"
)

var (
	// ErrForbidden: the actor is not the author the operation names, or has
	// the wrong role for it.
	ErrForbidden = errors.New("actor may not author this record")
	// ErrUnauthorized: the doctor holds no live grant for the patient.
	ErrUnauthorized = errors.New("no access to this patient")
	ErrEmptyTitle   = errors.New("title required")
	ErrEmptyNote    = errors.New("note required")
)

// RecordStore is the persistence contract for record items.
type RecordStore interface {
	Create(ctx context.Context, rec *models.RecordItem) error
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]models.RecordItem, error)
}

// BlobStore stores report attachments by opaque reference. The blob must be
// durable before the record referencing it is created.
type BlobStore interface {
	Put(ctx context.Context, data []byte, contentType string) (uuid.UUID, error)
}

// AccessChecker answers whether a doctor holds a live grant for a patient.
type AccessChecker interface {
	IsGranted(ctx context.Context, patientID, doctorID uuid.UUID) (bool, error)
}

// ChainAppender appends the block describing each created record.
type ChainAppender interface {
	Append(ctx context.Context, patientID uuid.UUID, payloadType string, payloadRef *uuid.UUID, authorID uuid.UUID) (models.Block, error)
}

type Service struct {
	store    RecordStore
	blobs    BlobStore
	access   AccessChecker
	chain    ChainAppender
	catalog  Catalog
	screener *phi.Screener
	now      func() time.Time
}

func NewService(store RecordStore, blobs BlobStore, access AccessChecker, chain ChainAppender, catalog Catalog, screener *phi.Screener) *Service {
	return &Service{
		store:    store,
		blobs:    blobs,
		access:   access,
		chain:    chain,
		catalog:  catalog,
		screener: screener,
		now:      time.Now,
	}
}

// AddReport persists a patient-authored report. Ordering is store file,
// then record, then block, so a chained reference never points at data that
// was not yet durable.
func (s *Service) AddReport(ctx context.Context, actor models.User, patientID uuid.UUID, title string, fileData []byte, contentType string) (models.RecordItem, error) {
	if actor.ID != patientID || actor.Role != models.RolePatient {
		return models.RecordItem{}, ErrForbidden
	}
	if strings.TrimSpace(title) == "" {
		return models.RecordItem{}, ErrEmptyTitle
	}

	rt, _ := s.catalog.Type(models.RecordTypeReport)
	title = s.cleanText(title, rt.TitleLimit)

	var fileID *uuid.UUID
	if len(fileData) > 0 {
		if s.blobs == nil {
			return models.RecordItem{}, fmt.Errorf("blob storage unavailable")
		}
		id, err := s.blobs.Put(ctx, fileData, contentType)
		if err != nil {
			return models.RecordItem{}, fmt.Errorf("storing report file: %w", err)
		}
		fileID = &id
	}

	return s.create(ctx, models.RecordItem{
		ID:         uuid.New(),
		PatientID:  patientID,
		AuthorID:   actor.ID,
		AuthorName: actor.Name,
		Type:       models.RecordTypeReport,
		Title:      title,
		FileID:     fileID,
		CreatedAt:  s.now().UTC(),
	}, models.BlockTypeReport)
}

// AddDoctorUpdate persists a clinical update authored by a doctor holding a
// live grant for the patient. The chained title is the note truncated to
// the catalog limit; full note handling lives outside the ledger.
func (s *Service) AddDoctorUpdate(ctx context.Context, actor models.User, doctorID, patientID uuid.UUID, note string) (models.RecordItem, error) {
	if actor.ID != doctorID || actor.Role != models.RoleDoctor {
		return models.RecordItem{}, ErrForbidden
	}
	if strings.TrimSpace(note) == "" {
		return models.RecordItem{}, ErrEmptyNote
	}

	rt, _ := s.catalog.Type(models.RecordTypeUpdate)
	if rt.RequiresGrant {
		granted, err := s.access.IsGranted(ctx, patientID, doctorID)
		if err != nil {
			return models.RecordItem{}, fmt.Errorf("checking grant: %w", err)
		}
		if !granted {
			return models.RecordItem{}, ErrUnauthorized
		}
	}

	return s.create(ctx, models.RecordItem{
		ID:         uuid.New(),
		PatientID:  patientID,
		AuthorID:   actor.ID,
		AuthorName: actor.Name,
		Type:       models.RecordTypeUpdate,
		Title:      s.cleanText(note, rt.TitleLimit),
		CreatedAt:  s.now().UTC(),
	}, models.BlockTypeUpdate)
}

// History returns a patient's record items in creation order. This is a
// projection separate from the ledger: a fresh patient has an empty history
// even though their chain already holds a genesis block.
func (s *Service) History(ctx context.Context, patientID uuid.UUID) ([]models.RecordItem, error) {
	return s.store.ListByPatient(ctx, patientID)
}

func (s *Service) create(ctx context.Context, rec models.RecordItem, blockType string) (models.RecordItem, error) {
	if err := s.store.Create(ctx, &rec); err != nil {
		return models.RecordItem{}, fmt.Errorf("persisting record: %w", err)
	}

	recID := rec.ID
	if _, err := s.chain.Append(ctx, rec.PatientID, blockType, &recID, rec.AuthorID); err != nil {
		return models.RecordItem{}, fmt.Errorf("chaining record: %w", err)
	}

	metrics.IncRecordCreated()
	logger.Log.WithFields(map[string]interface{}{
		"record_id":  rec.ID,
		"patient_id": rec.PatientID,
		"type":       rec.Type,
	}).Info("record created")

	return rec, nil
}

// cleanText masks PHI patterns and truncates to the display limit.
func (s *Service) cleanText(text string, limit int) string {
	if s.screener != nil {
		findings := s.screener.Detect(text)
		if len(findings) > 0 {
			total := 0
			for _, f := range findings {
				total += f.Count
			}
			metrics.IncPHIDetections(total)
			logger.Log.WithField("findings", findings).Warn("PHI masked in record text")
			text = s.screener.Mask(text)
		}
	}
	return TruncateTitle(text, limit)
}

// TruncateTitle bounds a display title, rune-safe.
func TruncateTitle(text string, limit int) string {
	if limit <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
