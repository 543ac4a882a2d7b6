package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/medledger/platform/pkg/common/config"
	"github.com/medledger/platform/pkg/common/logger"
	"github.com/medledger/platform/pkg/common/models"
	"github.com/segmentio/kafka-go"
)

type Producer struct {
	writer *kafka.Writer
}

func NewProducer(topic string) *Producer {
	cfg := config.Load()
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.KafkaBrokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		BatchSize:    1,
		BatchTimeout: 10 * time.Millisecond,
	}

	return &Producer{writer: writer}
}

// PublishLedgerEvent emits one message per appended block, keyed by patient
// so the relay observes each chain in append order.
func (p *Producer) PublishLedgerEvent(ctx context.Context, blk models.Block) error {
	event := models.LedgerEvent{
		ID:          uuid.New().String(),
		PatientID:   blk.PatientID,
		BlockID:     blk.ID,
		BlockIndex:  blk.Index,
		PayloadType: blk.PayloadType,
		AuthorID:    blk.AuthorID,
		Timestamp:   time.Now().UTC(),
	}

	eventBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal ledger event: %w", err)
	}

	message := kafka.Message{
		Key:   []byte(event.PatientID.String()),
		Value: eventBytes,
		Headers: []kafka.Header{
			{Key: "payload-type", Value: []byte(event.PayloadType)},
			{Key: "block-index", Value: []byte(fmt.Sprintf("%d", event.BlockIndex))},
		},
	}

	if err := p.writer.WriteMessages(ctx, message); err != nil {
		logger.Log.WithError(err).WithFields(map[string]interface{}{
			"event_id":   event.ID,
			"patient_id": event.PatientID,
		}).Error("Failed to publish ledger event")
		return err
	}

	logger.Log.WithFields(map[string]interface{}{
		"event_id":     event.ID,
		"patient_id":   event.PatientID,
		"block_index":  event.BlockIndex,
		"payload_type": event.PayloadType,
		"topic":        p.writer.Topic,
	}).Debug("Ledger event published")

	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
