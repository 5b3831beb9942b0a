package domain

import "time"

type AttachmentCategory string

const (
	CategoryPhoto   AttachmentCategory = "photo"
	CategoryIDFront AttachmentCategory = "id_front"
	CategoryIDBack  AttachmentCategory = "id_back"
	CategoryResume  AttachmentCategory = "resume"
	CategoryOther   AttachmentCategory = "other"
)

// RequiredCategories must each hold one file before a draft can be finalized.
var RequiredCategories = []AttachmentCategory{CategoryPhoto, CategoryIDFront, CategoryIDBack, CategoryResume}

func (c AttachmentCategory) Valid() bool {
	switch c {
	case CategoryPhoto, CategoryIDFront, CategoryIDBack, CategoryResume, CategoryOther:
		return true
	}
	return false
}

// Single reports whether the category holds at most one file; re-uploads replace it.
func (c AttachmentCategory) Single() bool {
	return c != CategoryOther
}

// Attachment points at one uploaded file in blob storage.
type Attachment struct {
	ID          uint               `gorm:"primaryKey" json:"id"`
	ApplicantID uint               `gorm:"index;not null" json:"applicant_id"`
	Category    AttachmentCategory `gorm:"size:16;not null" json:"category"`
	ObjectKey   string             `gorm:"size:255;not null" json:"object_key"`
	FileName    string             `gorm:"size:255" json:"file_name"`
	ContentType string             `gorm:"size:128" json:"content_type"`
	Size        int64              `json:"size"`
	CreatedAt   time.Time          `json:"created_at"`
}
