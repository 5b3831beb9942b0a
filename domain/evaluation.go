package domain

import "time"

// InterviewerScore is one interviewer's integer score for a round.
type InterviewerScore struct {
	Interviewer string `json:"interviewer"`
	Score       int    `json:"score"`
}

// RoundRecord is the snapshot kept for each (candidate, round) once a result is recorded.
// Re-recording the same round overwrites the snapshot.
type RoundRecord struct {
	ID           uint               `gorm:"primaryKey" json:"id"`
	CandidateID  uint               `gorm:"uniqueIndex:idx_round_candidate_no;not null" json:"candidate_id"`
	RoundNo      int                `gorm:"uniqueIndex:idx_round_candidate_no;not null" json:"round_no"`
	InterviewAt  *time.Time         `json:"interview_at"`
	Interviewers []string           `gorm:"serializer:json;type:text" json:"interviewers"`
	Scores       []InterviewerScore `gorm:"serializer:json;type:text" json:"scores"`
	Result       InterviewResult    `gorm:"size:16;not null" json:"result"`
	ResultNote   string             `gorm:"type:text" json:"result_note"`
	RecordedAt   time.Time          `json:"recorded_at"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}
