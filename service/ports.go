// Package service holds the transactional use cases of the recruitment pipeline.
package service

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"recruit-pipeline/domain"
)

// BlobStore keeps attachment files.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

type TextExtractor interface {
	Extract(data []byte, filename, contentType string) (string, error)
}

// NotificationDispatcher hands a job to whatever delivers it. It must not block on delivery.
type NotificationDispatcher interface {
	Dispatch(ctx context.Context, job domain.NotificationJob) error
}

type SMSSender interface {
	Send(ctx context.Context, msg domain.SMSMessage) (domain.SMSReceipt, error)
}

// Cache is a byte-level TTL cache.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeletePrefix(ctx context.Context, prefix string) error
}

// Actor identifies who triggered an operation, for the audit log.
type Actor struct {
	Operator  string
	RequestID string
}

// SystemActor is used for background jobs.
var SystemActor = Actor{Operator: "system"}

// Page is an offset-paginated listing.
type Page[T any] struct {
	Results []T   `json:"results"`
	Count   int64 `json:"count"`
}

func normalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = 30
	}
	if size > 100 {
		size = 100
	}
	return page, size
}

func storeError(err error) error {
	if err == nil {
		return nil
	}
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}
	return domain.NewUpstreamError(domain.CodeStorageUnavailable, "storage operation failed", err)
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
