package blobstore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/medledger/platform/pkg/observability/metrics"
	"gorm.io/gorm"
)

var ErrBlobNotFound = errors.New("blob not found")

// Store keeps report attachments as opaque blobs keyed by uuid. Callers see
// only put/get by reference; the backing table is an implementation detail.
type Store struct {
	db *gorm.DB
}

type BlobModel struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	Data        []byte    `gorm:"type:bytea"`
	ContentType string
	Size        int64
	CreatedAt   time.Time
}

func (BlobModel) TableName() string {
	return "blobs"
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) AutoMigrate() error {
	return s.db.AutoMigrate(&BlobModel{})
}

func (s *Store) Put(ctx context.Context, data []byte, contentType string) (uuid.UUID, error) {
	row := BlobModel{
		ID:          uuid.New(),
		Data:        data,
		ContentType: contentType,
		Size:        int64(len(data)),
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return uuid.Nil, err
	}

	metrics.IncBlobStored()
	return row.ID, nil
}

func (s *Store) Get(ctx context.Context, id uuid.UUID) ([]byte, string, error) {
	var row BlobModel
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, "", ErrBlobNotFound
	}
	if err != nil {
		return nil, "", err
	}
	return row.Data, row.ContentType, nil
}
