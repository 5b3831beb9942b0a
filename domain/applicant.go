package domain

import "time"

type Lifecycle string

const (
	LifecycleDraft     Lifecycle = "draft"
	LifecycleCommitted Lifecycle = "committed"
	// Discarded drafts are hard-deleted; the value only shows up in audit details.
	LifecycleDiscarded Lifecycle = "discarded"
)

type WorkExperience struct {
	Company  string `json:"company"`
	Position string `json:"position"`
	Start    string `json:"start"`
	End      string `json:"end"`
}

// Applicant is a submitted application. It stays owned by the intake service
// while in draft and is handed to the pipeline once committed.
type Applicant struct {
	ID             uint              `gorm:"primaryKey" json:"id"`
	RegionID       uint              `gorm:"index;not null" json:"region_id"`
	JobID          uint              `gorm:"index;not null" json:"job_id"`
	Name           string            `gorm:"size:64;not null" json:"name"`
	Gender         string            `gorm:"size:8" json:"gender"`
	Age            int               `json:"age"`
	Phone          string            `gorm:"size:32;index" json:"phone"`
	Email          string            `gorm:"size:128" json:"email"`
	IDNumber       string            `gorm:"size:32" json:"id_number"`
	Education      string            `gorm:"size:32" json:"education"`
	Address        string            `gorm:"size:255" json:"address"`
	ExpectedSalary string            `gorm:"size:32" json:"expected_salary"`
	AvailableDate  string            `gorm:"size:16" json:"available_date"`
	SelfEvaluation string            `gorm:"type:text" json:"self_evaluation"`
	WorkHistory    []WorkExperience  `gorm:"serializer:json;type:text" json:"work_history"`
	ExtraFields    map[string]string `gorm:"serializer:json;type:text" json:"extra_fields"`
	ResumeText     string            `gorm:"type:text" json:"resume_text,omitempty"`

	Lifecycle      Lifecycle  `gorm:"size:16;index;not null" json:"lifecycle"`
	TokenHash      string     `gorm:"size:64" json:"-"`
	TokenExpiresAt *time.Time `json:"-"`
	CommittedAt    *time.Time `json:"committed_at"`

	Attachments []Attachment `gorm:"foreignKey:ApplicantID" json:"attachments,omitempty"`

	// NeedsCleanup is computed on read for drafts whose token has expired.
	NeedsCleanup bool `gorm:"-" json:"needs_cleanup"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (a *Applicant) IsDraft() bool { return a.Lifecycle == LifecycleDraft }

// TokenExpired reports whether the attachment token of a draft is past its expiry.
func (a *Applicant) TokenExpired(now time.Time) bool {
	return a.TokenExpiresAt != nil && !now.Before(*a.TokenExpiresAt)
}

// MissingCategories lists required categories with no uploaded file.
// Attachments must be loaded.
func (a *Applicant) MissingCategories() []AttachmentCategory {
	present := make(map[AttachmentCategory]bool, len(a.Attachments))
	for _, att := range a.Attachments {
		present[att.Category] = true
	}
	var missing []AttachmentCategory
	for _, c := range RequiredCategories {
		if !present[c] {
			missing = append(missing, c)
		}
	}
	return missing
}

// Commit moves a draft to committed and drops its attachment token.
func (a *Applicant) Commit(now time.Time) error {
	if !a.IsDraft() {
		return NewConflictError(CodeApplicantNotDraft, "applicant is not a draft")
	}
	if missing := a.MissingCategories(); len(missing) > 0 {
		fields := make(map[string]string, len(missing))
		for _, c := range missing {
			fields[string(c)] = "required"
		}
		err := NewConflictError(CodeAttachmentsIncomplete, "required attachments are missing")
		err.Fields = fields
		return err
	}
	a.Lifecycle = LifecycleCommitted
	a.TokenHash = ""
	a.TokenExpiresAt = nil
	a.CommittedAt = &now
	return nil
}
