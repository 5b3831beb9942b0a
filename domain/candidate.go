package domain

import "time"

type Pool string

const (
	PoolInterview Pool = "interview"
	PoolPassed    Pool = "passed"
	PoolTalent    Pool = "talent"
)

func (p Pool) Valid() bool {
	return p == PoolInterview || p == PoolPassed || p == PoolTalent
}

type InterviewStatus string

const (
	StatusPending   InterviewStatus = "pending"
	StatusScheduled InterviewStatus = "scheduled"
	StatusCompleted InterviewStatus = "completed"
)

type InterviewResult string

const (
	ResultPending   InterviewResult = "pending"
	ResultNextRound InterviewResult = "next_round"
	ResultPass      InterviewResult = "pass"
	ResultReject    InterviewResult = "reject"
)

// DefaultMaxRound is used when no limit is configured.
const DefaultMaxRound = 3

// Candidate is a promoted applicant. The single Pool column makes membership in
// the interview, passed and talent pools mutually exclusive.
type Candidate struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	ApplicantID uint       `gorm:"uniqueIndex;not null" json:"applicant_id"`
	Applicant   *Applicant `gorm:"foreignKey:ApplicantID" json:"applicant,omitempty"`
	Pool        Pool       `gorm:"size:16;index;not null" json:"pool"`

	Round        int                `gorm:"not null" json:"round"`
	Status       InterviewStatus    `gorm:"size:16;index;not null" json:"status"`
	Result       InterviewResult    `gorm:"size:16;not null" json:"result"`
	InterviewAt  *time.Time         `json:"interview_at"`
	Interviewers []string           `gorm:"serializer:json;type:text" json:"interviewers"`
	Location     string             `gorm:"size:255" json:"location"`
	ScheduleNote string             `gorm:"type:text" json:"schedule_note"`
	Scores       []InterviewerScore `gorm:"serializer:json;type:text" json:"scores"`
	ResultNote   string             `gorm:"type:text" json:"result_note"`
	ResultAt     *time.Time         `json:"result_at"`

	OfferStatus OfferStatus `gorm:"size:24;index" json:"offer_status,omitempty"`
	HiredAt     *time.Time  `json:"hired_at"`

	Notification NotificationState `gorm:"embedded;embeddedPrefix:notify_" json:"notification"`

	Rounds []RoundRecord `gorm:"foreignKey:CandidateID" json:"rounds,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewCandidate creates a fresh round-1 candidate in pool.
func NewCandidate(applicantID uint, pool Pool) *Candidate {
	c := &Candidate{ApplicantID: applicantID, Pool: pool, Round: 1}
	c.resetInterview()
	return c
}

// TransferOutcome is how a single item of a batch transfer was counted.
type TransferOutcome int

const (
	TransferMoved TransferOutcome = iota
	TransferExisting
	TransferBlocked
)

func (o TransferOutcome) String() string {
	switch o {
	case TransferMoved:
		return "moved"
	case TransferExisting:
		return "existing"
	}
	return "blocked"
}

// EnterInterview moves a benched candidate back into the interview pool.
// The round is kept so it never decreases.
func (c *Candidate) EnterInterview() TransferOutcome {
	switch c.Pool {
	case PoolInterview:
		return TransferExisting
	case PoolTalent:
		c.Pool = PoolInterview
		c.resetInterview()
		c.clearOffer()
		return TransferMoved
	}
	return TransferBlocked
}

// Bench moves the candidate into the talent pool. An interview candidate with
// an unresolved pass and a passed candidate whose offer is still live are blocked.
func (c *Candidate) Bench() TransferOutcome {
	switch c.Pool {
	case PoolTalent:
		return TransferExisting
	case PoolInterview:
		if c.Status == StatusCompleted && c.Result == ResultPass {
			return TransferBlocked
		}
	case PoolPassed:
		if c.OfferStatus != OfferRejected {
			return TransferBlocked
		}
	}
	c.Pool = PoolTalent
	if c.Status == StatusScheduled {
		c.Status = StatusPending
	}
	c.clearSchedule()
	c.clearOffer()
	c.Notification.Reset()
	return TransferMoved
}

// PromotionTarget returns the pool a completed interview candidate is eligible for.
func (c *Candidate) PromotionTarget() (Pool, bool) {
	if c.Pool != PoolInterview || c.Status != StatusCompleted {
		return "", false
	}
	switch c.Result {
	case ResultPass:
		return PoolPassed, true
	case ResultReject:
		return PoolTalent, true
	}
	return "", false
}

// Promote applies the human-confirmed move out of the interview pool.
func (c *Candidate) Promote() TransferOutcome {
	if c.Pool == PoolPassed || c.Pool == PoolTalent {
		return TransferExisting
	}
	target, ok := c.PromotionTarget()
	if !ok {
		return TransferBlocked
	}
	c.Pool = target
	if target == PoolPassed {
		c.OfferStatus = OfferPendingHire
	}
	return TransferMoved
}

func (c *Candidate) currentRound() int {
	if c.Round < 1 {
		return 1
	}
	return c.Round
}

func (c *Candidate) resetInterview() {
	c.Status = StatusPending
	c.Result = ResultPending
	c.Scores = nil
	c.ResultNote = ""
	c.ResultAt = nil
	c.clearSchedule()
	c.Notification.Reset()
}

func (c *Candidate) clearSchedule() {
	c.InterviewAt = nil
	c.Interviewers = nil
	c.Location = ""
	c.ScheduleNote = ""
}

func (c *Candidate) clearOffer() {
	c.OfferStatus = ""
	c.HiredAt = nil
}
