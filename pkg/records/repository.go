package records

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/medledger/platform/pkg/common/models"
	"gorm.io/gorm"
)

var ErrRecordNotFound = errors.New("record not found")

type RecordModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	PatientID  uuid.UUID `gorm:"type:uuid;index"`
	AuthorID   uuid.UUID `gorm:"type:uuid;index"`
	AuthorName string
	Type       string `gorm:"index"`
	Title      string
	FileID     *uuid.UUID `gorm:"type:uuid"`
	CreatedAt  time.Time
}

func (RecordModel) TableName() string {
	return "record_items"
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&RecordModel{})
}

func (r *Repository) Create(ctx context.Context, rec *models.RecordItem) error {
	row := RecordModel{
		ID:         rec.ID,
		PatientID:  rec.PatientID,
		AuthorID:   rec.AuthorID,
		AuthorName: rec.AuthorName,
		Type:       rec.Type,
		Title:      rec.Title,
		FileID:     rec.FileID,
		CreatedAt:  rec.CreatedAt,
	}
	return r.db.WithContext(ctx).Create(&row).Error
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (models.RecordItem, error) {
	var row RecordModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.RecordItem{}, ErrRecordNotFound
	}
	if err != nil {
		return models.RecordItem{}, err
	}
	return mapRecordModel(row), nil
}

// ListByPatient returns a patient's record history ordered by creation time
// ascending. A fresh query per call, not a cursor.
func (r *Repository) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]models.RecordItem, error) {
	var rows []RecordModel
	err := r.db.WithContext(ctx).
		Where("patient_id = ?", patientID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	items := make([]models.RecordItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapRecordModel(row))
	}
	return items, nil
}

func mapRecordModel(row RecordModel) models.RecordItem {
	return models.RecordItem{
		ID:         row.ID,
		PatientID:  row.PatientID,
		AuthorID:   row.AuthorID,
		AuthorName: row.AuthorName,
		Type:       row.Type,
		Title:      row.Title,
		FileID:     row.FileID,
		CreatedAt:  row.CreatedAt,
	}
}
