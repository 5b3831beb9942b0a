package service

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"recruit-pipeline/domain"
)

// Notifier delivers interview invitations. It runs in the worker or, without a
// queue, behind InlineDispatcher.
type Notifier struct {
	db      *gorm.DB
	sms     SMSSender
	log     logrus.FieldLogger
	timeout time.Duration
	now     func() time.Time
}

func NewNotifier(db *gorm.DB, sms SMSSender, log logrus.FieldLogger, timeout time.Duration) *Notifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Notifier{db: db, sms: sms, log: log, timeout: timeout, now: func() time.Time { return time.Now().UTC() }}
}

// Deliver sends the invitation for the candidate's current schedule. Jobs for a
// schedule that was cancelled or already settled are dropped.
func (n *Notifier) Deliver(ctx context.Context, job domain.NotificationJob) error {
	log := n.log.WithFields(logrus.Fields{"candidate_id": job.CandidateID, "retry": job.IsRetry})

	var c domain.Candidate
	{
		ctx, cancel := context.WithTimeout(ctx, n.timeout)
		err := n.db.WithContext(ctx).Preload("Applicant").First(&c, job.CandidateID).Error
		cancel()
		if isNotFound(err) {
			log.Info("candidate gone, dropping notification")
			return nil
		}
		if err != nil {
			return storeError(err)
		}
	}
	if c.Status != domain.StatusScheduled || c.Notification.Status != domain.NotificationSending || c.InterviewAt == nil {
		log.WithField("notify_status", c.Notification.Status).Info("notification no longer pending, skipping")
		return nil
	}

	msg := domain.SMSMessage{
		Params: map[string]string{
			"round":       strconv.Itoa(c.Round),
			"time":        c.InterviewAt.Format("2006-01-02 15:04"),
			"location":    c.Location,
			"interviewer": strings.Join(c.Interviewers, ", "),
			"note":        c.ScheduleNote,
		},
		OutID: "interview-" + strconv.FormatUint(uint64(c.ID), 10) + "-" + strconv.Itoa(c.Round),
	}
	if c.Applicant != nil {
		msg.Phone = c.Applicant.Phone
		msg.Params["name"] = c.Applicant.Name
		var j domain.Job
		ctx, cancel := context.WithTimeout(ctx, n.timeout)
		if err := n.db.WithContext(ctx).Select("title").First(&j, c.Applicant.JobID).Error; err == nil {
			msg.Params["job"] = j.Title
		}
		cancel()
	}

	sctx, cancel := context.WithTimeout(ctx, n.timeout)
	receipt, sendErr := n.sms.Send(sctx, msg)
	cancel()

	state := c.Notification
	if sendErr != nil {
		code := receipt.ProviderCode
		if code == "" {
			code = domain.CodeNotificationFailed
		}
		state.MarkFailed(sendErr.Error(), code)
		log.WithError(sendErr).WithField("provider_code", code).Warn("interview notification failed")
	} else {
		state.MarkSuccess(n.now(), receipt.MessageID, receipt.ProviderCode)
		log.WithField("message_id", receipt.MessageID).Info("interview notification sent")
	}

	ctx, cancel = context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
	defer cancel()
	// Only the attempt that is still current may settle the state.
	res := n.db.WithContext(ctx).Model(&domain.Candidate{}).
		Where("id = ? AND status = ? AND notify_status = ?", c.ID, domain.StatusScheduled, domain.NotificationSending).
		Updates(map[string]any{
			"notify_status":        state.Status,
			"notify_sent_at":       state.SentAt,
			"notify_error":         state.Error,
			"notify_provider_code": state.ProviderCode,
			"notify_message_id":    state.MessageID,
		})
	if res.Error != nil {
		return storeError(res.Error)
	}
	if res.RowsAffected == 0 {
		log.Info("schedule changed during delivery, result discarded")
	}
	return nil
}

// InlineDispatcher delivers in a background goroutine of the same process.
type InlineDispatcher struct {
	notifier *Notifier
	log      logrus.FieldLogger
	wg       sync.WaitGroup
}

func NewInlineDispatcher(notifier *Notifier, log logrus.FieldLogger) *InlineDispatcher {
	return &InlineDispatcher{notifier: notifier, log: log}
}

func (d *InlineDispatcher) Dispatch(ctx context.Context, job domain.NotificationJob) error {
	ctx = context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.notifier.Deliver(ctx, job); err != nil {
			d.log.WithError(err).WithField("candidate_id", job.CandidateID).Error("inline notification delivery failed")
		}
	}()
	return nil
}

// Wait blocks until every dispatched delivery returned.
func (d *InlineDispatcher) Wait() { d.wg.Wait() }
