package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"recruit-pipeline/domain"
)

type IntakeConfig struct {
	DraftTTL      time.Duration
	StoreTimeout  time.Duration
	UploadTimeout time.Duration
	MaxFileBytes  int64
	MaxTotalBytes int64
}

func (c IntakeConfig) withDefaults() IntakeConfig {
	if c.DraftTTL <= 0 {
		c.DraftTTL = 24 * time.Hour
	}
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = 5 * time.Second
	}
	if c.UploadTimeout <= 0 {
		c.UploadTimeout = 30 * time.Second
	}
	if c.MaxFileBytes <= 0 {
		c.MaxFileBytes = 10 << 20
	}
	if c.MaxTotalBytes <= 0 {
		c.MaxTotalBytes = 50 << 20
	}
	return c
}

// Intake runs the server side of the two-phase application submission.
type Intake struct {
	db        *gorm.DB
	blobs     BlobStore
	extractor TextExtractor
	audit     *AuditLog
	log       logrus.FieldLogger
	cfg       IntakeConfig
	validate  *validator.Validate
	now       func() time.Time
}

func NewIntake(db *gorm.DB, blobs BlobStore, extractor TextExtractor, audit *AuditLog, log logrus.FieldLogger, cfg IntakeConfig) *Intake {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Intake{
		db:        db,
		blobs:     blobs,
		extractor: extractor,
		audit:     audit,
		log:       log,
		cfg:       cfg.withDefaults(),
		validate:  v,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ApplicantInput is the phase one application form.
type ApplicantInput struct {
	RegionID       uint                    `json:"region_id" validate:"required"`
	JobID          uint                    `json:"job_id" validate:"required"`
	Name           string                  `json:"name" validate:"required,max=64"`
	Gender         string                  `json:"gender" validate:"omitempty,oneof=male female other"`
	Age            int                     `json:"age" validate:"omitempty,min=16,max=80"`
	Phone          string                  `json:"phone" validate:"required,min=6,max=32"`
	Email          string                  `json:"email" validate:"omitempty,email,max=128"`
	IDNumber       string                  `json:"id_number" validate:"omitempty,max=32"`
	Education      string                  `json:"education" validate:"omitempty,max=32"`
	Address        string                  `json:"address" validate:"omitempty,max=255"`
	ExpectedSalary string                  `json:"expected_salary" validate:"omitempty,max=32"`
	AvailableDate  string                  `json:"available_date" validate:"omitempty,datetime=2006-01-02"`
	SelfEvaluation string                  `json:"self_evaluation" validate:"omitempty,max=2000"`
	WorkHistory    []domain.WorkExperience `json:"work_history" validate:"omitempty,max=20"`
	ExtraFields    map[string]string       `json:"extra_fields" validate:"omitempty,max=20"`
}

type DraftReceipt struct {
	ApplicantID     uint      `json:"applicantId"`
	AttachmentToken string    `json:"attachmentToken"`
	ExpiresAt       time.Time `json:"expiresAt"`
}

func (s *Intake) validationFields(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"form": err.Error()}
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			fields[fe.Field()] = "required"
		case "email":
			fields[fe.Field()] = "invalid email"
		case "datetime":
			fields[fe.Field()] = "must be a date (YYYY-MM-DD)"
		case "oneof":
			fields[fe.Field()] = "must be one of " + fe.Param()
		case "min", "max":
			fields[fe.Field()] = fmt.Sprintf("must satisfy %s=%s", fe.Tag(), fe.Param())
		default:
			fields[fe.Field()] = "invalid"
		}
	}
	return fields
}

func newAttachmentToken() (string, string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", "", err
	}
	token := base64.RawURLEncoding.EncodeToString(buf)
	return token, hashToken(token), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// CreateDraft validates the form and stores a draft applicant. The returned
// token is the only credential for uploading its attachments.
func (s *Intake) CreateDraft(ctx context.Context, in ApplicantInput) (*DraftReceipt, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Phone = strings.TrimSpace(in.Phone)
	if err := s.validate.Struct(in); err != nil {
		return nil, domain.NewValidationError("invalid application", s.validationFields(err))
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	var job domain.Job
	err := s.db.WithContext(ctx).First(&job, in.JobID).Error
	switch {
	case isNotFound(err):
		return nil, domain.NewValidationError("invalid application", map[string]string{"job_id": "unknown job"})
	case err != nil:
		return nil, storeError(err)
	case !job.Active:
		return nil, domain.NewValidationError("invalid application", map[string]string{"job_id": "job is not open"})
	case job.RegionID != in.RegionID:
		return nil, domain.NewValidationError("invalid application", map[string]string{"region_id": "job does not belong to region"})
	}

	token, hash, err := newAttachmentToken()
	if err != nil {
		return nil, fmt.Errorf("generate attachment token: %w", err)
	}
	expires := s.now().Add(s.cfg.DraftTTL)
	applicant := domain.Applicant{
		RegionID:       in.RegionID,
		JobID:          in.JobID,
		Name:           in.Name,
		Gender:         in.Gender,
		Age:            in.Age,
		Phone:          in.Phone,
		Email:          in.Email,
		IDNumber:       in.IDNumber,
		Education:      in.Education,
		Address:        in.Address,
		ExpectedSalary: in.ExpectedSalary,
		AvailableDate:  in.AvailableDate,
		SelfEvaluation: in.SelfEvaluation,
		WorkHistory:    in.WorkHistory,
		ExtraFields:    in.ExtraFields,
		Lifecycle:      domain.LifecycleDraft,
		TokenHash:      hash,
		TokenExpiresAt: &expires,
	}
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(&applicant).Error; err != nil {
		return nil, storeError(err)
	}
	s.log.WithField("applicant_id", applicant.ID).Info("draft application created")
	return &DraftReceipt{ApplicantID: applicant.ID, AttachmentToken: token, ExpiresAt: expires}, nil
}

// checkToken authenticates token against a locked draft row.
func (s *Intake) checkToken(a *domain.Applicant, token string, now time.Time) error {
	if !a.IsDraft() || a.TokenHash == "" {
		return domain.NewTokenError(domain.CodeTokenInvalid, "attachment token is not valid for this application")
	}
	if subtle.ConstantTimeCompare([]byte(hashToken(token)), []byte(a.TokenHash)) != 1 {
		return domain.NewTokenError(domain.CodeTokenInvalid, "attachment token is not valid for this application")
	}
	if a.TokenExpired(now) {
		return domain.NewTokenError(domain.CodeTokenExpired, "attachment token has expired")
	}
	return nil
}

func (s *Intake) lockDraft(tx *gorm.DB, id uint, token string, now time.Time) (*domain.Applicant, error) {
	if token == "" {
		return nil, domain.NewTokenError(domain.CodeTokenMissing, "attachment token is required")
	}
	var a domain.Applicant
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Preload("Attachments").First(&a, id).Error
	if isNotFound(err) {
		return nil, domain.NewTokenError(domain.CodeTokenInvalid, "attachment token is not valid for this application")
	}
	if err != nil {
		return nil, err
	}
	if err := s.checkToken(&a, token, now); err != nil {
		return nil, err
	}
	return &a, nil
}

type UploadFile struct {
	FileName    string
	ContentType string
	Data        []byte
}

func objectKey(applicantID uint, category domain.AttachmentCategory, fileName string) string {
	return fmt.Sprintf("applicants/%d/%s/%s%s", applicantID, category, uuid.NewString(), strings.ToLower(filepath.Ext(fileName)))
}

// UploadAttachments stores files for one category of a draft. A fixed category
// holds one file and a re-upload replaces it.
func (s *Intake) UploadAttachments(ctx context.Context, id uint, token string, category domain.AttachmentCategory, files []UploadFile) ([]domain.Attachment, error) {
	if token == "" {
		return nil, domain.NewTokenError(domain.CodeTokenMissing, "attachment token is required")
	}
	if !category.Valid() {
		return nil, domain.NewValidationError("invalid attachment", map[string]string{"category": "unknown category"})
	}
	if len(files) == 0 {
		return nil, domain.NewValidationError("invalid attachment", map[string]string{"file": "required"})
	}
	if category.Single() && len(files) > 1 {
		return nil, domain.NewValidationError("invalid attachment", map[string]string{"file": "only one file is allowed for " + string(category)})
	}
	var incoming int64
	for _, f := range files {
		if len(f.Data) == 0 {
			return nil, domain.NewValidationError("invalid attachment", map[string]string{"file": f.FileName + " is empty"})
		}
		if int64(len(f.Data)) > s.cfg.MaxFileBytes {
			return nil, domain.NewValidationError("invalid attachment", map[string]string{
				"file": fmt.Sprintf("%s exceeds %d bytes", f.FileName, s.cfg.MaxFileBytes),
			})
		}
		incoming += int64(len(f.Data))
	}

	now := s.now()
	var current domain.Applicant
	{
		ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
		tx := s.db.WithContext(ctx)
		a, err := s.lockDraft(tx, id, token, now)
		cancel()
		if err != nil {
			return nil, storeError(err)
		}
		current = *a
	}
	if err := s.checkTotal(&current, category, incoming); err != nil {
		return nil, err
	}

	uctx, cancel := context.WithTimeout(ctx, s.cfg.UploadTimeout)
	defer cancel()
	rows := make([]domain.Attachment, 0, len(files))
	for _, f := range files {
		key := objectKey(id, category, f.FileName)
		if err := s.blobs.Put(uctx, key, f.Data, f.ContentType); err != nil {
			s.deleteBlobs(ctx, attachmentKeys(rows))
			return nil, domain.NewUpstreamError(domain.CodeBlobStoreUnavailable, "failed to store attachment", err)
		}
		rows = append(rows, domain.Attachment{
			ApplicantID: id,
			Category:    category,
			ObjectKey:   key,
			FileName:    filepath.Base(f.FileName),
			ContentType: f.ContentType,
			Size:        int64(len(f.Data)),
		})
	}

	var resumeText string
	if category == domain.CategoryResume && s.extractor != nil {
		text, err := s.extractor.Extract(files[0].Data, files[0].FileName, files[0].ContentType)
		if err != nil {
			s.log.WithError(err).WithField("applicant_id", id).Warn("resume text extraction failed")
		}
		resumeText = text
	}

	var replaced []domain.Attachment
	sctx, scancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer scancel()
	err := s.db.WithContext(sctx).Transaction(func(tx *gorm.DB) error {
		a, err := s.lockDraft(tx, id, token, s.now())
		if err != nil {
			return err
		}
		if err := s.checkTotal(a, category, incoming); err != nil {
			return err
		}
		if category.Single() {
			for _, att := range a.Attachments {
				if att.Category == category {
					replaced = append(replaced, att)
				}
			}
			if len(replaced) > 0 {
				if err := tx.Where("applicant_id = ? AND category = ?", id, category).Delete(&domain.Attachment{}).Error; err != nil {
					return err
				}
			}
		}
		if err := tx.Create(&rows).Error; err != nil {
			return err
		}
		if category == domain.CategoryResume {
			return tx.Model(&domain.Applicant{}).Where("id = ?", id).Update("resume_text", resumeText).Error
		}
		return nil
	})
	if err != nil {
		s.deleteBlobs(ctx, attachmentKeys(rows))
		return nil, storeError(err)
	}
	s.deleteBlobs(ctx, attachmentKeys(replaced))
	s.log.WithFields(logrus.Fields{"applicant_id": id, "category": category, "files": len(rows)}).Info("attachments uploaded")
	return rows, nil
}

// checkTotal enforces the per-applicant byte limit, counting the files a
// fixed-category upload is about to replace as freed.
func (s *Intake) checkTotal(a *domain.Applicant, category domain.AttachmentCategory, incoming int64) error {
	var total int64
	for _, att := range a.Attachments {
		if category.Single() && att.Category == category {
			continue
		}
		total += att.Size
	}
	if total+incoming > s.cfg.MaxTotalBytes {
		return domain.NewValidationError("invalid attachment", map[string]string{
			"file": fmt.Sprintf("attachments exceed %d bytes in total", s.cfg.MaxTotalBytes),
		})
	}
	return nil
}

func attachmentKeys(atts []domain.Attachment) []string {
	keys := make([]string, 0, len(atts))
	for _, a := range atts {
		keys = append(keys, a.ObjectKey)
	}
	return keys
}

// deleteBlobs is best effort; leftovers are only logged.
func (s *Intake) deleteBlobs(ctx context.Context, keys []string) {
	if len(keys) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.UploadTimeout)
	defer cancel()
	for _, key := range keys {
		if err := s.blobs.Delete(ctx, key); err != nil {
			s.log.WithError(err).WithField("object_key", key).Warn("failed to delete attachment blob")
		}
	}
}

// Discard rolls back a draft. It is accepted after token expiry so a client can
// always clean up what it created.
func (s *Intake) Discard(ctx context.Context, id uint, token string) error {
	if token == "" {
		return domain.NewTokenError(domain.CodeTokenMissing, "attachment token is required")
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	var deleted domain.Applicant
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Expiry is checked against the zero time so an expired token still discards.
		a, err := s.lockDraft(tx, id, token, time.Time{})
		if err != nil {
			return err
		}
		if err := deleteApplicant(tx, a.ID); err != nil {
			return err
		}
		deleted = *a
		return nil
	})
	if err != nil {
		return storeError(err)
	}
	s.deleteBlobs(ctx, attachmentKeys(deleted.Attachments))
	s.audit.Record(ctx, Actor{Operator: "applicant"}, applicantAudit("discard_draft", &deleted, nil))
	return nil
}

func deleteApplicant(tx *gorm.DB, id uint) error {
	if err := tx.Where("applicant_id = ?", id).Delete(&domain.Attachment{}).Error; err != nil {
		return err
	}
	return tx.Delete(&domain.Applicant{}, id).Error
}

func applicantAudit(action string, a *domain.Applicant, details map[string]any) AuditEntry {
	if details == nil {
		details = map[string]any{}
	}
	if _, ok := details["lifecycle"]; !ok {
		details["lifecycle"] = domain.LifecycleDiscarded
	}
	return AuditEntry{
		Module:       domain.ModuleApplications,
		Action:       action,
		SubjectType:  domain.SubjectApplicant,
		SubjectID:    strconv.FormatUint(uint64(a.ID), 10),
		SubjectLabel: a.Name,
		Summary:      fmt.Sprintf("%s %s", action, a.Name),
		Details:      details,
	}
}

// Finalize commits a draft once every required attachment is present.
func (s *Intake) Finalize(ctx context.Context, id uint, token string) (*domain.Applicant, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	var out domain.Applicant
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.now()
		a, err := s.lockDraft(tx, id, token, now)
		if err != nil {
			return err
		}
		if err := a.Commit(now); err != nil {
			return err
		}
		if err := tx.Omit(clause.Associations).Save(a).Error; err != nil {
			return err
		}
		out = *a
		return nil
	})
	if err != nil {
		return nil, storeError(err)
	}
	s.audit.Record(ctx, Actor{Operator: "applicant"}, applicantAudit("finalize", &out,
		map[string]any{"lifecycle": domain.LifecycleCommitted, "attachments": len(out.Attachments)}))
	return &out, nil
}

func (s *Intake) GetApplicant(ctx context.Context, id uint) (*domain.Applicant, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	var a domain.Applicant
	err := s.db.WithContext(ctx).Preload("Attachments").First(&a, id).Error
	if isNotFound(err) {
		return nil, domain.NewNotFoundError(domain.CodeApplicantNotFound, "applicant not found")
	}
	if err != nil {
		return nil, storeError(err)
	}
	a.NeedsCleanup = a.IsDraft() && a.TokenExpired(s.now())
	return &a, nil
}

type ApplicantQuery struct {
	Lifecycle domain.Lifecycle
	Page      int
	PageSize  int
}

func (s *Intake) ListApplicants(ctx context.Context, q ApplicantQuery) (*Page[domain.Applicant], error) {
	if q.Lifecycle != "" && q.Lifecycle != domain.LifecycleDraft && q.Lifecycle != domain.LifecycleCommitted {
		return nil, domain.NewValidationError("invalid lifecycle", map[string]string{"lifecycle": "must be draft or committed"})
	}
	page, size := normalizePage(q.Page, q.PageSize)

	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	tx := s.db.WithContext(ctx).Model(&domain.Applicant{})
	if q.Lifecycle != "" {
		tx = tx.Where("lifecycle = ?", q.Lifecycle)
	}
	tx = tx.Session(&gorm.Session{})

	out := &Page[domain.Applicant]{Results: []domain.Applicant{}}
	if err := tx.Count(&out.Count).Error; err != nil {
		return nil, storeError(err)
	}
	err := tx.Order("created_at DESC").Order("id DESC").
		Offset((page - 1) * size).Limit(size).
		Find(&out.Results).Error
	if err != nil {
		return nil, storeError(err)
	}
	now := s.now()
	for i := range out.Results {
		a := &out.Results[i]
		a.NeedsCleanup = a.IsDraft() && a.TokenExpired(now)
	}
	return out, nil
}

// OpenAttachment returns an attachment and its bytes for operators.
func (s *Intake) OpenAttachment(ctx context.Context, applicantID, attachmentID uint) (*domain.Attachment, []byte, error) {
	var att domain.Attachment
	{
		ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
		err := s.db.WithContext(ctx).Where("applicant_id = ?", applicantID).First(&att, attachmentID).Error
		cancel()
		if isNotFound(err) {
			return nil, nil, domain.NewNotFoundError(domain.CodeApplicantNotFound, "attachment not found")
		}
		if err != nil {
			return nil, nil, storeError(err)
		}
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.UploadTimeout)
	defer cancel()
	data, err := s.blobs.Get(ctx, att.ObjectKey)
	if err != nil {
		return nil, nil, domain.NewUpstreamError(domain.CodeBlobStoreUnavailable, "failed to read attachment", err)
	}
	return &att, data, nil
}

// SweepExpiredDrafts deletes drafts whose token expired and returns how many were removed.
func (s *Intake) SweepExpiredDrafts(ctx context.Context) (int, error) {
	now := s.now()
	var expired []domain.Applicant
	{
		ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
		err := s.db.WithContext(ctx).
			Where("lifecycle = ? AND token_expires_at <= ?", domain.LifecycleDraft, now).
			Preload("Attachments").
			Limit(500).
			Find(&expired).Error
		cancel()
		if err != nil {
			return 0, storeError(err)
		}
	}

	removed := 0
	for i := range expired {
		a := &expired[i]
		ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("applicant_id = ?", a.ID).Delete(&domain.Attachment{}).Error; err != nil {
				return err
			}
			res := tx.Where("id = ? AND lifecycle = ?", a.ID, domain.LifecycleDraft).Delete(&domain.Applicant{})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				// Finalized meanwhile; the rollback keeps its attachments.
				return gorm.ErrRecordNotFound
			}
			return nil
		})
		cancel()
		if isNotFound(err) {
			continue
		}
		if err != nil {
			s.log.WithError(err).WithField("applicant_id", a.ID).Warn("failed to sweep expired draft")
			continue
		}
		s.deleteBlobs(ctx, attachmentKeys(a.Attachments))
		s.audit.Record(ctx, SystemActor, applicantAudit("sweep_expired_draft", a, nil))
		removed++
	}
	if removed > 0 {
		s.log.WithField("removed", removed).Info("expired drafts swept")
	}
	return removed, nil
}
