package consent

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/medledger/platform/pkg/common/logger"
	"github.com/medledger/platform/pkg/common/models"
	"github.com/medledger/platform/pkg/observability/metrics"
)

var (
	// ErrForbidden: only the patient who owns the edge may create or
	// destroy it.
	ErrForbidden = errors.New("only the patient may manage access grants")
	ErrNotDoctor = errors.New("grantee is not a doctor")
)

// PermissionStore is the persistence contract for grant edges.
type PermissionStore interface {
	Get(ctx context.Context, patientID, doctorID uuid.UUID) (models.Permission, error)
	Create(ctx context.Context, patientID, doctorID uuid.UUID) (models.Permission, error)
	Delete(ctx context.Context, patientID, doctorID uuid.UUID) error
	ListForPatient(ctx context.Context, patientID uuid.UUID) ([]models.Permission, error)
	ListForDoctor(ctx context.Context, doctorID uuid.UUID) ([]models.Permission, error)
}

// Directory looks up users to validate grantee roles.
type Directory interface {
	GetUser(ctx context.Context, id uuid.UUID) (models.User, error)
}

// ChainAppender records every grant and revoke on the patient's ledger.
type ChainAppender interface {
	Append(ctx context.Context, patientID uuid.UUID, payloadType string, payloadRef *uuid.UUID, authorID uuid.UUID) (models.Block, error)
}

type Service struct {
	store     PermissionStore
	directory Directory
	chain     ChainAppender
}

func NewService(store PermissionStore, directory Directory, chain ChainAppender) *Service {
	return &Service{store: store, directory: directory, chain: chain}
}

// Grant creates the patient→doctor edge. A repeated grant leaves state
// untouched but still lands an access-granted block: the ledger records
// every grant action, not just state transitions.
func (s *Service) Grant(ctx context.Context, actor models.User, patientID, doctorID uuid.UUID) (models.Permission, error) {
	if actor.ID != patientID || actor.Role != models.RolePatient {
		return models.Permission{}, ErrForbidden
	}

	doctor, err := s.directory.GetUser(ctx, doctorID)
	if err != nil {
		return models.Permission{}, fmt.Errorf("resolving doctor: %w", err)
	}
	if doctor.Role != models.RoleDoctor {
		return models.Permission{}, ErrNotDoctor
	}

	perm, err := s.store.Get(ctx, patientID, doctorID)
	switch {
	case err == nil:
		// Edge already live; fall through to the audit block.
	case errors.Is(err, ErrPermissionNotFound):
		perm, err = s.store.Create(ctx, patientID, doctorID)
		if err != nil {
			return models.Permission{}, fmt.Errorf("creating grant: %w", err)
		}
	default:
		return models.Permission{}, err
	}

	permID := perm.ID
	if _, err := s.chain.Append(ctx, patientID, models.BlockTypeAccessGranted, &permID, actor.ID); err != nil {
		return models.Permission{}, fmt.Errorf("recording grant: %w", err)
	}

	metrics.IncGrantIssued()
	logger.Log.WithFields(map[string]interface{}{
		"patient_id": patientID,
		"doctor_id":  doctorID,
	}).Info("access granted")

	return perm, nil
}

// Revoke removes the edge if present and is a state no-op otherwise. Either
// way an access-revoked block is appended; audit completeness wins over
// strict state transitions.
func (s *Service) Revoke(ctx context.Context, actor models.User, patientID, doctorID uuid.UUID) error {
	if actor.ID != patientID || actor.Role != models.RolePatient {
		return ErrForbidden
	}

	var permRef *uuid.UUID
	perm, err := s.store.Get(ctx, patientID, doctorID)
	switch {
	case err == nil:
		permID := perm.ID
		permRef = &permID
		if err := s.store.Delete(ctx, patientID, doctorID); err != nil {
			return fmt.Errorf("deleting grant: %w", err)
		}
	case errors.Is(err, ErrPermissionNotFound):
		// No live edge; the revoke action is still chained.
	default:
		return err
	}

	if _, err := s.chain.Append(ctx, patientID, models.BlockTypeAccessRevoked, permRef, actor.ID); err != nil {
		return fmt.Errorf("recording revoke: %w", err)
	}

	metrics.IncGrantRevoked()
	logger.Log.WithFields(map[string]interface{}{
		"patient_id": patientID,
		"doctor_id":  doctorID,
	}).Info("access revoked")

	return nil
}

// IsGranted is the authorization primitive consumed by record authoring.
func (s *Service) IsGranted(ctx context.Context, patientID, doctorID uuid.UUID) (bool, error) {
	_, err := s.store.Get(ctx, patientID, doctorID)
	if errors.Is(err, ErrPermissionNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) ListForPatient(ctx context.Context, patientID uuid.UUID) ([]models.Permission, error) {
	return s.store.ListForPatient(ctx, patientID)
}

func (s *Service) ListForDoctor(ctx context.Context, doctorID uuid.UUID) ([]models.Permission, error) {
	return s.store.ListForDoctor(ctx, doctorID)
}
