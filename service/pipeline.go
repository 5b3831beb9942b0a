package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"recruit-pipeline/domain"
)

type PipelineConfig struct {
	MaxRound     int
	StoreTimeout time.Duration
	BatchLimit   int
	BatchWorkers int
}

func (c PipelineConfig) withDefaults() PipelineConfig {
	if c.MaxRound < 1 {
		c.MaxRound = domain.DefaultMaxRound
	}
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = 5 * time.Second
	}
	if c.BatchLimit <= 0 {
		c.BatchLimit = 200
	}
	if c.BatchWorkers <= 0 {
		c.BatchWorkers = 4
	}
	return c
}

// Pipeline owns pool membership, the interview rounds and the offer status of candidates.
type Pipeline struct {
	db         *gorm.DB
	audit      *AuditLog
	dispatcher NotificationDispatcher
	log        logrus.FieldLogger
	cfg        PipelineConfig
	now        func() time.Time
}

func NewPipeline(db *gorm.DB, audit *AuditLog, dispatcher NotificationDispatcher, log logrus.FieldLogger, cfg PipelineConfig) *Pipeline {
	return &Pipeline{
		db:         db,
		audit:      audit,
		dispatcher: dispatcher,
		log:        log,
		cfg:        cfg.withDefaults(),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (p *Pipeline) MaxRound() int { return p.cfg.MaxRound }

type CandidateQuery struct {
	Pool        domain.Pool
	Status      domain.InterviewStatus
	OfferStatus domain.OfferStatus
	Page        int
	PageSize    int
}

func (p *Pipeline) ListCandidates(ctx context.Context, q CandidateQuery) (*Page[domain.Candidate], error) {
	if q.Pool != "" && !q.Pool.Valid() {
		return nil, domain.NewValidationError("invalid pool", map[string]string{"pool": "must be one of interview, passed, talent"})
	}
	page, size := normalizePage(q.Page, q.PageSize)

	ctx, cancel := context.WithTimeout(ctx, p.cfg.StoreTimeout)
	defer cancel()

	tx := p.db.WithContext(ctx).Model(&domain.Candidate{})
	if q.Pool != "" {
		tx = tx.Where("pool = ?", q.Pool)
	}
	if q.Status != "" {
		tx = tx.Where("status = ?", q.Status)
	}
	if q.OfferStatus != "" {
		tx = tx.Where("offer_status = ?", q.OfferStatus)
	}

	tx = tx.Session(&gorm.Session{})

	out := &Page[domain.Candidate]{Results: []domain.Candidate{}}
	if err := tx.Count(&out.Count).Error; err != nil {
		return nil, storeError(err)
	}
	err := tx.Preload("Applicant").
		Order("updated_at DESC").Order("id DESC").
		Offset((page - 1) * size).Limit(size).
		Find(&out.Results).Error
	if err != nil {
		return nil, storeError(err)
	}
	return out, nil
}

func (p *Pipeline) GetCandidate(ctx context.Context, id uint) (*domain.Candidate, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.StoreTimeout)
	defer cancel()

	var c domain.Candidate
	err := p.db.WithContext(ctx).
		Preload("Applicant").
		Preload("Rounds", func(db *gorm.DB) *gorm.DB { return db.Order("round_no ASC") }).
		First(&c, id).Error
	if isNotFound(err) {
		return nil, domain.NewNotFoundError(domain.CodeCandidateNotFound, "candidate not found")
	}
	if err != nil {
		return nil, storeError(err)
	}
	return &c, nil
}

// mutate runs fn against the locked candidate row and saves it in one transaction.
// The returned label names the candidate whenever the row was found, so
// rejected attempts can still be audited against it.
func (p *Pipeline) mutate(ctx context.Context, id uint, fn func(tx *gorm.DB, c *domain.Candidate) error) (*domain.Candidate, string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.StoreTimeout)
	defer cancel()

	var (
		out   domain.Candidate
		label string
	)
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c domain.Candidate
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Preload("Applicant").First(&c, id).Error
		if isNotFound(err) {
			return domain.NewNotFoundError(domain.CodeCandidateNotFound, "candidate not found")
		}
		if err != nil {
			return err
		}
		label = candidateLabel(&c)
		if err := fn(tx, &c); err != nil {
			return err
		}
		if err := tx.Omit(clause.Associations).Save(&c).Error; err != nil {
			return err
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, label, storeError(err)
	}
	return &out, label, nil
}

// auditSingle writes the one audit row for a single-candidate transition.
// Conflicts are recorded as failed attempts; validation and lookup errors are not.
func (p *Pipeline) auditSingle(ctx context.Context, actor Actor, module, action string, id uint, label string, err error, details map[string]any) {
	entry := AuditEntry{
		Module:       module,
		Action:       action,
		SubjectType:  domain.SubjectCandidate,
		SubjectID:    strconv.FormatUint(uint64(id), 10),
		SubjectLabel: label,
		Details:      details,
	}
	switch {
	case err == nil:
		entry.Result = domain.ResultSuccess
		entry.Summary = fmt.Sprintf("%s %s", action, entry.SubjectLabel)
	case domain.IsKind(err, domain.KindConflict):
		entry.Result = domain.ResultFailed
		entry.Summary = domain.CodeOf(err)
	default:
		return
	}
	p.audit.Record(ctx, actor, entry)
}

func candidateLabel(c *domain.Candidate) string {
	if c.Applicant != nil && c.Applicant.Name != "" {
		return c.Applicant.Name
	}
	return fmt.Sprintf("candidate #%d", c.ID)
}

type ScheduleInput struct {
	domain.ScheduleRequest
	Notify bool
}

// Schedule books or reschedules the interview. Notification is dispatched after
// commit and its failure never fails the schedule.
func (p *Pipeline) Schedule(ctx context.Context, actor Actor, id uint, in ScheduleInput) (*domain.Candidate, error) {
	now := p.now()
	c, label, err := p.mutate(ctx, id, func(_ *gorm.DB, c *domain.Candidate) error {
		if err := c.Schedule(in.ScheduleRequest, now, p.cfg.MaxRound); err != nil {
			return err
		}
		if in.Notify {
			c.Notification.MarkSending(now, false)
		} else {
			c.Notification.Reset()
		}
		return nil
	})
	details := map[string]any{"interview_at": in.At, "notify": in.Notify}
	if c != nil {
		details["round"] = c.Round
	}
	p.auditSingle(ctx, actor, domain.ModuleInterview, "schedule", id, label, err, details)
	if err != nil {
		return nil, err
	}
	if in.Notify {
		p.dispatch(ctx, c, false)
	}
	return c, nil
}

func (p *Pipeline) Cancel(ctx context.Context, actor Actor, id uint) (*domain.Candidate, error) {
	c, label, err := p.mutate(ctx, id, func(_ *gorm.DB, c *domain.Candidate) error {
		return c.Cancel()
	})
	p.auditSingle(ctx, actor, domain.ModuleInterview, "cancel_schedule", id, label, err, nil)
	return c, err
}

type ResultInput struct {
	Result domain.InterviewResult
	Scores []domain.InterviewerScore
	Note   string
}

func (p *Pipeline) RecordResult(ctx context.Context, actor Actor, id uint, in ResultInput) (*domain.Candidate, error) {
	now := p.now()
	c, label, err := p.mutate(ctx, id, func(tx *gorm.DB, c *domain.Candidate) error {
		record, err := c.RecordResult(in.Result, in.Scores, in.Note, now, p.cfg.MaxRound)
		if err != nil {
			return err
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "candidate_id"}, {Name: "round_no"}},
			DoUpdates: clause.AssignmentColumns([]string{"interview_at", "interviewers", "scores", "result", "result_note", "recorded_at", "updated_at"}),
		}).Create(record).Error
	})
	details := map[string]any{"result": in.Result}
	if c != nil {
		details["round"] = c.Round
	}
	p.auditSingle(ctx, actor, domain.ModuleInterview, "record_result", id, label, err, details)
	return c, err
}

// ResendNotification re-attempts delivery for the current schedule only.
func (p *Pipeline) ResendNotification(ctx context.Context, actor Actor, id uint) (*domain.Candidate, error) {
	now := p.now()
	c, label, err := p.mutate(ctx, id, func(_ *gorm.DB, c *domain.Candidate) error {
		return c.ResendNotification(now)
	})
	var details map[string]any
	if c != nil {
		details = map[string]any{"retry_count": c.Notification.RetryCount}
	}
	p.auditSingle(ctx, actor, domain.ModuleInterview, "resend_notification", id, label, err, details)
	if err != nil {
		return nil, err
	}
	p.dispatch(ctx, c, true)
	return c, nil
}

func (p *Pipeline) ChangeOfferStatus(ctx context.Context, actor Actor, id uint, target domain.OfferStatus) (*domain.Candidate, error) {
	var before domain.OfferStatus
	c, label, err := p.mutate(ctx, id, func(_ *gorm.DB, c *domain.Candidate) error {
		before = c.OfferStatus
		return c.ChangeOfferStatus(target)
	})
	p.auditSingle(ctx, actor, domain.ModulePassed, "change_offer_status", id, label, err,
		map[string]any{"from": before, "to": target})
	return c, err
}

func (p *Pipeline) dispatch(ctx context.Context, c *domain.Candidate, retry bool) {
	if p.dispatcher == nil {
		return
	}
	err := p.dispatcher.Dispatch(ctx, domain.NotificationJob{CandidateID: c.ID, IsRetry: retry})
	if err == nil {
		return
	}
	p.log.WithError(err).WithField("candidate_id", c.ID).Warn("failed to dispatch interview notification")

	c.Notification.MarkFailed(err.Error(), domain.CodeNotificationFailed)
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.StoreTimeout)
	defer cancel()
	res := p.db.WithContext(ctx).Model(&domain.Candidate{}).
		Where("id = ? AND notify_status = ?", c.ID, domain.NotificationSending).
		Updates(map[string]any{
			"notify_status":        c.Notification.Status,
			"notify_error":         c.Notification.Error,
			"notify_provider_code": c.Notification.ProviderCode,
		})
	if res.Error != nil {
		p.log.WithError(res.Error).WithField("candidate_id", c.ID).Warn("failed to record notification failure")
	}
}
