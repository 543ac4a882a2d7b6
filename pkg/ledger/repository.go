package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/medledger/platform/pkg/common/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrConflict signals that a concurrent append won the race for an index.
// The service retries the whole read-compute-write sequence on it.
var ErrConflict = errors.New("ledger: concurrent append conflict")

type BlockModel struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	PatientID   uuid.UUID `gorm:"type:uuid;uniqueIndex:ux_ledger_blocks_patient_idx"`
	Idx         int       `gorm:"column:idx;uniqueIndex:ux_ledger_blocks_patient_idx"`
	PrevHash    string
	Hash        string
	Timestamp   time.Time
	PayloadType string     `gorm:"index"`
	PayloadRef  *uuid.UUID `gorm:"type:uuid"`
	AuthorID    uuid.UUID  `gorm:"type:uuid;index"`
	AuthorName  string
}

func (BlockModel) TableName() string {
	return "ledger_blocks"
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&BlockModel{})
}

// Chain returns all blocks of one patient ordered by index ascending.
func (r *Repository) Chain(ctx context.Context, patientID uuid.UUID) ([]models.Block, error) {
	var rows []BlockModel
	err := r.db.WithContext(ctx).
		Where("patient_id = ?", patientID).
		Order("idx ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	blocks := make([]models.Block, 0, len(rows))
	for _, row := range rows {
		blocks = append(blocks, mapBlockModel(row))
	}
	return blocks, nil
}

// AppendTx runs build against the locked chain tail inside one transaction
// and persists the resulting block. The tail row is locked FOR UPDATE so a
// concurrent append on the same chain blocks until commit; the unique
// (patient_id, idx) index backstops the empty-chain case, surfacing a lost
// race as ErrConflict.
func (r *Repository) AppendTx(ctx context.Context, patientID uuid.UUID, build func(tail *models.Block) models.Block) (models.Block, error) {
	var out models.Block
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var tailRow BlockModel
		var tail *models.Block

		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("patient_id = ?", patientID).
			Order("idx DESC").
			First(&tailRow).Error
		if err == nil {
			t := mapBlockModel(tailRow)
			tail = &t
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		blk := build(tail)
		row := toBlockModel(blk)
		if err := tx.Create(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrConflict
			}
			return err
		}

		out = blk
		return nil
	})
	if err != nil {
		return models.Block{}, err
	}
	return out, nil
}

func mapBlockModel(row BlockModel) models.Block {
	return models.Block{
		ID:          row.ID,
		PatientID:   row.PatientID,
		Index:       row.Idx,
		PrevHash:    row.PrevHash,
		Hash:        row.Hash,
		Timestamp:   row.Timestamp,
		PayloadType: row.PayloadType,
		PayloadRef:  row.PayloadRef,
		AuthorID:    row.AuthorID,
		AuthorName:  row.AuthorName,
	}
}

func toBlockModel(blk models.Block) BlockModel {
	return BlockModel{
		ID:          blk.ID,
		PatientID:   blk.PatientID,
		Idx:         blk.Index,
		PrevHash:    blk.PrevHash,
		Hash:        blk.Hash,
		Timestamp:   blk.Timestamp,
		PayloadType: blk.PayloadType,
		PayloadRef:  blk.PayloadRef,
		AuthorID:    blk.AuthorID,
		AuthorName:  blk.AuthorName,
	}
}
