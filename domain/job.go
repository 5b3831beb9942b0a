package domain

import "time"

// Reference data read by intake validation. Managed outside the pipeline.
type Region struct {
	ID        uint      `gorm:"primaryKey" json:"id" yaml:"-"`
	Name      string    `gorm:"size:64;uniqueIndex;not null" json:"name" yaml:"name"`
	CreatedAt time.Time `json:"created_at" yaml:"-"`
}

type Job struct {
	ID          uint      `gorm:"primaryKey" json:"id" yaml:"-"`
	RegionID    uint      `gorm:"index;not null" json:"region_id" yaml:"-"`
	Title       string    `gorm:"size:255;not null" json:"title" yaml:"title"`
	Description string    `gorm:"type:text" json:"description" yaml:"description"`
	Active      bool      `gorm:"not null" json:"active" yaml:"active"`
	CreatedAt   time.Time `json:"created_at" yaml:"-"`
}
