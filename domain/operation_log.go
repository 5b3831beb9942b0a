package domain

import "time"

const (
	ModuleApplications = "applications"
	ModuleInterview    = "interview"
	ModulePassed       = "passed"
	ModuleTalent       = "talent"
	ModuleReference    = "reference"

	ResultSuccess = "success"
	ResultFailed  = "failed"

	SubjectApplicant = "applicant"
	SubjectCandidate = "candidate"
	SubjectBatch     = "batch"
	SubjectJob       = "job"
)

// OperationLog is an append-only audit row. Only the archive job moves it out.
type OperationLog struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	Module       string         `gorm:"size:32;index;not null" json:"module"`
	Action       string         `gorm:"size:64;not null" json:"action"`
	Result       string         `gorm:"size:16;not null" json:"result"`
	Operator     string         `gorm:"size:64;index" json:"operator"`
	SubjectType  string         `gorm:"size:32" json:"subject_type"`
	SubjectID    string         `gorm:"size:64;index" json:"subject_id"`
	SubjectLabel string         `gorm:"size:128" json:"subject_label"`
	Summary      string         `gorm:"size:255" json:"summary"`
	Details      map[string]any `gorm:"serializer:json;type:text" json:"details"`
	RequestID    string         `gorm:"size:64" json:"request_id"`
	CreatedAt    time.Time      `gorm:"index" json:"created_at"`
}

// OperationLogArchive keeps an operation log row after it has aged out of the
// live table. SourceLogID is the original row id.
type OperationLogArchive struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	SourceLogID  uint           `gorm:"uniqueIndex;not null" json:"source_log_id"`
	Module       string         `gorm:"size:32;index;not null" json:"module"`
	Action       string         `gorm:"size:64;not null" json:"action"`
	Result       string         `gorm:"size:16;not null" json:"result"`
	Operator     string         `gorm:"size:64;index" json:"operator"`
	SubjectType  string         `gorm:"size:32" json:"subject_type"`
	SubjectID    string         `gorm:"size:64" json:"subject_id"`
	SubjectLabel string         `gorm:"size:128" json:"subject_label"`
	Summary      string         `gorm:"size:255" json:"summary"`
	Details      map[string]any `gorm:"serializer:json;type:text" json:"details"`
	RequestID    string         `gorm:"size:64" json:"request_id"`
	CreatedAt    time.Time      `gorm:"index" json:"created_at"`
	ArchivedAt   time.Time      `gorm:"index" json:"archived_at"`
}

func ArchiveOf(l OperationLog, at time.Time) OperationLogArchive {
	return OperationLogArchive{
		SourceLogID:  l.ID,
		Module:       l.Module,
		Action:       l.Action,
		Result:       l.Result,
		Operator:     l.Operator,
		SubjectType:  l.SubjectType,
		SubjectID:    l.SubjectID,
		SubjectLabel: l.SubjectLabel,
		Summary:      l.Summary,
		Details:      l.Details,
		RequestID:    l.RequestID,
		CreatedAt:    l.CreatedAt,
		ArchivedAt:   at,
	}
}
