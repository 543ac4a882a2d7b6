package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/medledger/platform/pkg/common/logger"
	"github.com/medledger/platform/pkg/common/models"
	"github.com/medledger/platform/pkg/observability/metrics"
)

// maxAppendRetries bounds optimistic retries after a lost index race.
const maxAppendRetries = 3

// unknownAuthor is the display name recorded when author resolution fails;
// a broken lookup must not abort the append.
const unknownAuthor = "Unknown"

// Store is the persistence contract the engine appends through. The gorm
// Repository is the production implementation; tests use in-memory stores.
type Store interface {
	Chain(ctx context.Context, patientID uuid.UUID) ([]models.Block, error)
	AppendTx(ctx context.Context, patientID uuid.UUID, build func(tail *models.Block) models.Block) (models.Block, error)
}

// NameResolver maps an author id to a display name for denormalization
// into the block.
type NameResolver interface {
	DisplayName(ctx context.Context, userID uuid.UUID) (string, error)
}

// Publisher emits an event after a block is committed. Best effort: a
// publish failure never fails the append.
type Publisher interface {
	PublishLedgerEvent(ctx context.Context, blk models.Block) error
}

type Service struct {
	store     Store
	names     NameResolver
	publisher Publisher
	tips      *TipCache
	now       func() time.Time
}

func NewService(store Store, names NameResolver, publisher Publisher, tips *TipCache) *Service {
	return &Service{
		store:     store,
		names:     names,
		publisher: publisher,
		tips:      tips,
		now:       time.Now,
	}
}

// Append adds the next block to a patient's chain. Index assignment and
// prev-hash linkage are computed against the locked tail inside the store
// transaction; a concurrent winner surfaces as ErrConflict and the whole
// sequence is retried, so indices stay gapless and linkage stays intact
// under racing appends.
func (s *Service) Append(ctx context.Context, patientID uuid.UUID, payloadType string, payloadRef *uuid.UUID, authorID uuid.UUID) (models.Block, error) {
	authorName := unknownAuthor
	if s.names != nil {
		name, err := s.names.DisplayName(ctx, authorID)
		if err != nil {
			logger.Log.WithError(err).WithField("author_id", authorID).Warn("author name resolution failed")
		} else if name != "" {
			authorName = name
		}
	}

	var blk models.Block
	var err error
	for attempt := 0; attempt < maxAppendRetries; attempt++ {
		blk, err = s.store.AppendTx(ctx, patientID, func(tail *models.Block) models.Block {
			return buildBlock(tail, patientID, payloadType, payloadRef, authorID, authorName, s.now())
		})
		if err == nil {
			break
		}
		if !errors.Is(err, ErrConflict) {
			return models.Block{}, fmt.Errorf("appending block: %w", err)
		}
	}
	if err != nil {
		return models.Block{}, fmt.Errorf("appending block: %w", err)
	}

	metrics.IncLedgerAppend(payloadType)

	if s.tips != nil {
		if err := s.tips.Set(ctx, blk); err != nil {
			logger.Log.WithError(err).WithField("patient_id", patientID).Warn("tip cache update failed")
		}
	}

	if s.publisher != nil {
		if err := s.publisher.PublishLedgerEvent(ctx, blk); err != nil {
			logger.Log.WithError(err).WithField("patient_id", patientID).Warn("ledger event publish failed")
		}
	}

	return blk, nil
}

// Chain returns a patient's full ordered block sequence.
func (s *Service) Chain(ctx context.Context, patientID uuid.UUID) ([]models.Block, error) {
	return s.store.Chain(ctx, patientID)
}

// VerifyChain loads and audits a patient's chain.
func (s *Service) VerifyChain(ctx context.Context, patientID uuid.UUID) (Report, error) {
	blocks, err := s.store.Chain(ctx, patientID)
	if err != nil {
		return Report{}, fmt.Errorf("loading chain: %w", err)
	}

	report := Verify(blocks)
	metrics.ObserveVerification(len(report.Failures))
	return report, nil
}
