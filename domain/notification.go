package domain

import "time"

type NotificationStatus string

const (
	NotificationIdle    NotificationStatus = "idle"
	NotificationSending NotificationStatus = "sending"
	NotificationSuccess NotificationStatus = "success"
	NotificationFailed  NotificationStatus = "failed"
)

// NotificationState tracks delivery of the interview invitation for the current schedule.
// It never gates the interview state machine.
type NotificationState struct {
	Status        NotificationStatus `gorm:"size:16" json:"status"`
	RetryCount    int                `json:"retry_count"`
	LastAttemptAt *time.Time         `json:"last_attempt_at"`
	SentAt        *time.Time         `json:"sent_at"`
	Error         string             `gorm:"type:text" json:"error"`
	ProviderCode  string             `gorm:"size:64" json:"provider_code"`
	MessageID     string             `gorm:"size:128" json:"message_id"`
}

func (n *NotificationState) Reset() {
	*n = NotificationState{Status: NotificationIdle}
}

func (n *NotificationState) MarkSending(now time.Time, retry bool) {
	if retry {
		n.RetryCount++
	} else {
		n.RetryCount = 0
	}
	n.Status = NotificationSending
	n.LastAttemptAt = &now
	n.SentAt = nil
	n.Error = ""
	n.ProviderCode = ""
	n.MessageID = ""
}

func (n *NotificationState) MarkSuccess(now time.Time, messageID, providerCode string) {
	n.Status = NotificationSuccess
	n.SentAt = &now
	n.MessageID = messageID
	n.ProviderCode = providerCode
	n.Error = ""
}

func (n *NotificationState) MarkFailed(reason, providerCode string) {
	n.Status = NotificationFailed
	n.Error = reason
	n.ProviderCode = providerCode
}

// SMSMessage is an interview invitation handed to the SMS provider.
type SMSMessage struct {
	Phone  string
	Params map[string]string
	// OutID lets the provider echo our reference back.
	OutID string
}

// SMSReceipt is what the provider answered. ProviderCode is set on failures too.
type SMSReceipt struct {
	MessageID    string
	ProviderCode string
}

// NotificationJob is the queue message asking a worker to deliver an invitation.
type NotificationJob struct {
	CandidateID uint `json:"candidate_id"`
	IsRetry     bool `json:"is_retry"`
}
