package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"recruit-pipeline/config"
	"recruit-pipeline/infrastructure"
	"recruit-pipeline/service"
)

// app holds what every server-side command needs.
type app struct {
	cfg   *config.Config
	log   *logrus.Logger
	db    *gorm.DB
	audit *service.AuditLog
	redis *redis.Client
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.RequireServer(); err != nil {
		return nil, err
	}
	log := infrastructure.NewLogger(cfg.LogLevel)

	db, err := infrastructure.NewDatabase(cfg, log)
	if err != nil {
		return nil, err
	}
	if err := infrastructure.Migrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}
	if err := infrastructure.SeedReference(db, cfg.SeedFile, log); err != nil {
		return nil, err
	}

	a := &app{
		cfg:   cfg,
		log:   log,
		db:    db,
		audit: service.NewAuditLog(db, log, cfg.AuditDefaultDays, cfg.StoreTimeout),
	}
	if cfg.RedisURL != "" {
		if a.redis, err = infrastructure.NewRedisClient(ctx, cfg.RedisURL); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *app) close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func (a *app) intake(ctx context.Context) (*service.Intake, error) {
	blobs, err := infrastructure.NewS3BlobStore(ctx, a.cfg)
	if err != nil {
		return nil, err
	}
	return service.NewIntake(a.db, blobs, infrastructure.NewTextExtractor(a.log), a.audit, a.log, service.IntakeConfig{
		DraftTTL:      a.cfg.DraftTTL,
		StoreTimeout:  a.cfg.StoreTimeout,
		UploadTimeout: a.cfg.UploadTimeout,
		MaxFileBytes:  a.cfg.MaxAttachmentBytes,
		MaxTotalBytes: a.cfg.MaxAttachmentTotalBytes,
	}), nil
}

func (a *app) notifier() *service.Notifier {
	sms := infrastructure.NewHTTPSMSSender(a.cfg.SMSEnabled, a.cfg.SMSEndpoint, a.cfg.SMSAPIKey)
	return service.NewNotifier(a.db, sms, a.log, a.cfg.NotifyTimeout)
}

func (a *app) cache() service.Cache {
	if a.redis != nil {
		return infrastructure.NewRedisCache(a.redis, "recruit:")
	}
	return infrastructure.NewMemoryCache()
}
