package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"recruit-pipeline/domain"
)

const (
	regionsCacheKey = "reference:regions"
	jobsCachePrefix = "reference:jobs"
	defaultCacheTTL = 5 * time.Minute
)

// Reference serves regions and jobs through a read-through cache.
type Reference struct {
	db           *gorm.DB
	cache        Cache
	ttl          time.Duration
	log          logrus.FieldLogger
	audit        *AuditLog
	storeTimeout time.Duration
}

func NewReference(db *gorm.DB, cache Cache, ttl time.Duration, audit *AuditLog, log logrus.FieldLogger, storeTimeout time.Duration) *Reference {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	if storeTimeout <= 0 {
		storeTimeout = 5 * time.Second
	}
	return &Reference{db: db, cache: cache, ttl: ttl, audit: audit, log: log, storeTimeout: storeTimeout}
}

// cached reads key from the cache, falling back to load and storing its result.
// Cache errors only cost the round trip to the database.
func cached[T any](ctx context.Context, r *Reference, key string, load func(ctx context.Context) (T, error)) (T, error) {
	var out T
	if r.cache != nil {
		raw, ok, err := r.cache.Get(ctx, key)
		if err != nil {
			r.log.WithError(err).WithField("key", key).Warn("reference cache read failed")
		}
		if ok && json.Unmarshal(raw, &out) == nil {
			return out, nil
		}
	}

	ctx, cancel := context.WithTimeout(ctx, r.storeTimeout)
	defer cancel()
	out, err := load(ctx)
	if err != nil {
		return out, storeError(err)
	}
	if r.cache != nil {
		raw, err := json.Marshal(out)
		if err == nil {
			err = r.cache.Set(ctx, key, raw, r.ttl)
		}
		if err != nil {
			r.log.WithError(err).WithField("key", key).Warn("reference cache write failed")
		}
	}
	return out, nil
}

func (r *Reference) Regions(ctx context.Context) ([]domain.Region, error) {
	return cached(ctx, r, regionsCacheKey, func(ctx context.Context) ([]domain.Region, error) {
		regions := []domain.Region{}
		err := r.db.WithContext(ctx).Order("id ASC").Find(&regions).Error
		return regions, err
	})
}

func jobsKey(regionID uint, activeOnly bool) string {
	return fmt.Sprintf("%s:region=%d:active=%t", jobsCachePrefix, regionID, activeOnly)
}

// Jobs lists jobs, optionally of one region (0 lists all).
func (r *Reference) Jobs(ctx context.Context, regionID uint, activeOnly bool) ([]domain.Job, error) {
	return cached(ctx, r, jobsKey(regionID, activeOnly), func(ctx context.Context) ([]domain.Job, error) {
		jobs := []domain.Job{}
		tx := r.db.WithContext(ctx).Order("id ASC")
		if regionID != 0 {
			tx = tx.Where("region_id = ?", regionID)
		}
		if activeOnly {
			tx = tx.Where("active = ?", true)
		}
		err := tx.Find(&jobs).Error
		return jobs, err
	})
}

func (r *Reference) invalidateJobs(ctx context.Context) {
	if r.cache == nil {
		return
	}
	if err := r.cache.DeletePrefix(ctx, jobsCachePrefix); err != nil {
		r.log.WithError(err).Warn("failed to invalidate job cache")
	}
}

type JobInput struct {
	RegionID    uint   `json:"region_id" binding:"required"`
	Title       string `json:"title" binding:"required,max=255"`
	Description string `json:"description"`
}

func (r *Reference) CreateJob(ctx context.Context, actor Actor, in JobInput) (*domain.Job, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return nil, domain.NewValidationError("invalid job", map[string]string{"title": "required"})
	}

	sctx, cancel := context.WithTimeout(ctx, r.storeTimeout)
	defer cancel()

	var region domain.Region
	err := r.db.WithContext(sctx).First(&region, in.RegionID).Error
	if isNotFound(err) {
		return nil, domain.NewValidationError("invalid job", map[string]string{"region_id": "unknown region"})
	}
	if err != nil {
		return nil, storeError(err)
	}
	job := domain.Job{RegionID: in.RegionID, Title: in.Title, Description: in.Description, Active: true}
	if err := r.db.WithContext(sctx).Create(&job).Error; err != nil {
		return nil, storeError(err)
	}
	r.invalidateJobs(ctx)
	r.audit.Record(ctx, actor, jobAudit("create_job", &job, map[string]any{"region": region.Name}))
	return &job, nil
}

func (r *Reference) SetJobActive(ctx context.Context, actor Actor, id uint, active bool) (*domain.Job, error) {
	sctx, cancel := context.WithTimeout(ctx, r.storeTimeout)
	defer cancel()

	var job domain.Job
	err := r.db.WithContext(sctx).First(&job, id).Error
	if isNotFound(err) {
		return nil, domain.NewNotFoundError(domain.CodeJobNotFound, "job not found")
	}
	if err != nil {
		return nil, storeError(err)
	}
	if job.Active == active {
		return &job, nil
	}
	if err := r.db.WithContext(sctx).Model(&job).Update("active", active).Error; err != nil {
		return nil, storeError(err)
	}
	r.invalidateJobs(ctx)
	r.audit.Record(ctx, actor, jobAudit("set_job_active", &job, map[string]any{"active": active}))
	return &job, nil
}

func jobAudit(action string, j *domain.Job, details map[string]any) AuditEntry {
	return AuditEntry{
		Module:       domain.ModuleReference,
		Action:       action,
		SubjectType:  domain.SubjectJob,
		SubjectID:    strconv.FormatUint(uint64(j.ID), 10),
		SubjectLabel: j.Title,
		Summary:      fmt.Sprintf("%s %s", action, j.Title),
		Details:      details,
	}
}
