package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/medledger/platform/pkg/common/models"
	"github.com/redis/go-redis/v9"
)

// Tip is the cached head of one patient's chain, kept for dashboards and
// quick staleness checks. The cache is advisory only; append correctness
// never reads from it.
type Tip struct {
	Index     int       `json:"index"`
	Hash      string    `json:"hash"`
	UpdatedAt time.Time `json:"updated_at"`
}

type TipCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewTipCache(client *redis.Client, ttl time.Duration) *TipCache {
	return &TipCache{client: client, ttl: ttl}
}

func tipKey(patientID uuid.UUID) string {
	return fmt.Sprintf("chain:tip:%s", patientID)
}

func (c *TipCache) Set(ctx context.Context, blk models.Block) error {
	data, err := json.Marshal(Tip{
		Index:     blk.Index,
		Hash:      blk.Hash,
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	return c.client.Set(ctx, tipKey(blk.PatientID), data, c.ttl).Err()
}

func (c *TipCache) Get(ctx context.Context, patientID uuid.UUID) (*Tip, error) {
	data, err := c.client.Get(ctx, tipKey(patientID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var tip Tip
	if err := json.Unmarshal(data, &tip); err != nil {
		return nil, err
	}
	return &tip, nil
}
