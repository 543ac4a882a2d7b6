package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/medledger/platform/pkg/common/config"
	"github.com/medledger/platform/pkg/common/database"
	"github.com/medledger/platform/pkg/common/kafka"
	"github.com/medledger/platform/pkg/common/logger"
	"github.com/medledger/platform/pkg/common/models"
	"github.com/medledger/platform/pkg/ledger"
	"github.com/redis/go-redis/v9"
)

// auditStatus is the verification snapshot the relay keeps per patient.
type auditStatus struct {
	PatientID  string           `json:"patient_id"`
	BlockCount int              `json:"block_count"`
	OK         bool             `json:"ok"`
	Failures   []ledger.Failure `json:"failures"`
	CheckedAt  time.Time        `json:"checked_at"`
}

func main() {
	logger.Init()
	cfg := config.Load()

	db, err := database.GetPostgres()
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to connect to postgres")
	}

	blockRepo := ledger.NewRepository(db)
	if err := blockRepo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate ledger tables")
	}

	redisClient := database.GetRedis()

	consumer := kafka.NewConsumer(cfg.LedgerEventTopic, cfg.KafkaGroupID+"-audit")
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Log.Info("Shutting down Audit Relay...")
		cancel()
	}()

	logger.Log.WithField("topic", cfg.LedgerEventTopic).Info("Audit Relay started")

	err = consumer.Consume(ctx, func(ctx context.Context, event models.LedgerEvent) error {
		return reverify(ctx, blockRepo, redisClient, event)
	})
	if err != nil && err != context.Canceled {
		logger.Log.WithError(err).Error("consumer stopped")
	}

	database.CloseRedis()
	database.ClosePostgres()

	logger.Log.Info("Audit Relay stopped")
}

// reverify reloads the patient's chain after every append and runs the
// strict verifier, so tampering is noticed within one event of happening.
func reverify(ctx context.Context, repo *ledger.Repository, redisClient *redis.Client, event models.LedgerEvent) error {
	blocks, err := repo.Chain(ctx, event.PatientID)
	if err != nil {
		return fmt.Errorf("loading chain: %w", err)
	}

	report := ledger.Verify(blocks)
	status := auditStatus{
		PatientID:  event.PatientID.String(),
		BlockCount: len(blocks),
		OK:         report.OK,
		Failures:   report.Failures,
		CheckedAt:  time.Now().UTC(),
	}

	if !report.OK {
		logger.Log.WithFields(map[string]interface{}{
			"patient_id": event.PatientID,
			"failures":   report.Failures,
		}).Error("chain verification failed")
	}

	data, err := json.Marshal(status)
	if err != nil {
		return err
	}

	key := fmt.Sprintf("audit:status:%s", event.PatientID)
	if err := redisClient.Set(ctx, key, data, 0).Err(); err != nil {
		logger.Log.WithError(err).Warn("failed to store audit status")
	}

	return nil
}
