package consent

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/medledger/platform/pkg/common/models"
	"gorm.io/gorm"
)

var ErrPermissionNotFound = errors.New("permission not found")

type PermissionModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	PatientID uuid.UUID `gorm:"type:uuid;uniqueIndex:ux_permissions_pair"`
	DoctorID  uuid.UUID `gorm:"type:uuid;uniqueIndex:ux_permissions_pair;index"`
	GrantedAt time.Time
}

func (PermissionModel) TableName() string {
	return "permissions"
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&PermissionModel{})
}

func (r *Repository) Get(ctx context.Context, patientID, doctorID uuid.UUID) (models.Permission, error) {
	var row PermissionModel
	err := r.db.WithContext(ctx).
		Where("patient_id = ? AND doctor_id = ?", patientID, doctorID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Permission{}, ErrPermissionNotFound
	}
	if err != nil {
		return models.Permission{}, err
	}
	return mapPermissionModel(row), nil
}

func (r *Repository) Create(ctx context.Context, patientID, doctorID uuid.UUID) (models.Permission, error) {
	row := PermissionModel{
		ID:        uuid.New(),
		PatientID: patientID,
		DoctorID:  doctorID,
		GrantedAt: time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return models.Permission{}, err
	}
	return mapPermissionModel(row), nil
}

func (r *Repository) Delete(ctx context.Context, patientID, doctorID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("patient_id = ? AND doctor_id = ?", patientID, doctorID).
		Delete(&PermissionModel{}).Error
}

func (r *Repository) ListForPatient(ctx context.Context, patientID uuid.UUID) ([]models.Permission, error) {
	var rows []PermissionModel
	err := r.db.WithContext(ctx).
		Where("patient_id = ?", patientID).
		Order("granted_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return mapPermissionModels(rows), nil
}

func (r *Repository) ListForDoctor(ctx context.Context, doctorID uuid.UUID) ([]models.Permission, error) {
	var rows []PermissionModel
	err := r.db.WithContext(ctx).
		Where("doctor_id = ?", doctorID).
		Order("granted_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return mapPermissionModels(rows), nil
}

func mapPermissionModel(row PermissionModel) models.Permission {
	return models.Permission{
		ID:        row.ID,
		PatientID: row.PatientID,
		DoctorID:  row.DoctorID,
		GrantedAt: row.GrantedAt,
	}
}

func mapPermissionModels(rows []PermissionModel) []models.Permission {
	out := make([]models.Permission, 0, len(rows))
	for _, row := range rows {
		out = append(out, mapPermissionModel(row))
	}
	return out
}
