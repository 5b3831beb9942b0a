package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recruit-pipeline/domain"
)

func scheduledForNotify(c *domain.Candidate) {
	at := futureSlot()
	c.Status = domain.StatusScheduled
	c.InterviewAt = &at
	c.Interviewers = []string{"Bob"}
	c.Location = "Room 1"
	c.Notification.MarkSending(at, false)
}

func TestDeliverMarksSuccess(t *testing.T) {
	db := newTestDB(t)
	job := seedJob(t, db, true)
	c := seedCandidate(t, db, "Ann", domain.PoolInterview, scheduledForNotify)
	sms := &fakeSMS{receipt: domain.SMSReceipt{MessageID: "m-1", ProviderCode: "OK"}}
	n := NewNotifier(db, sms, testLogger(), 0)

	require.NoError(t, n.Deliver(context.Background(), domain.NotificationJob{CandidateID: c.ID}))

	require.Len(t, sms.sent, 1)
	msg := sms.sent[0]
	assert.Equal(t, "13800000000", msg.Phone)
	assert.Equal(t, "Ann", msg.Params["name"])
	assert.Equal(t, job.Title, msg.Params["job"])
	assert.Equal(t, "Bob", msg.Params["interviewer"])
	assert.Equal(t, "1", msg.Params["round"])

	stored := loadCandidate(t, db, c.ID)
	assert.Equal(t, domain.NotificationSuccess, stored.Notification.Status)
	assert.Equal(t, "m-1", stored.Notification.MessageID)
	assert.NotNil(t, stored.Notification.SentAt)
}

func TestDeliverMarksFailureWithProviderCode(t *testing.T) {
	db := newTestDB(t)
	c := seedCandidate(t, db, "Ann", domain.PoolInterview, scheduledForNotify)
	sms := &fakeSMS{receipt: domain.SMSReceipt{ProviderCode: "isv.MOBILE_NUMBER_ILLEGAL"}, err: errors.New("rejected")}
	n := NewNotifier(db, sms, testLogger(), 0)

	require.NoError(t, n.Deliver(context.Background(), domain.NotificationJob{CandidateID: c.ID}))

	stored := loadCandidate(t, db, c.ID)
	assert.Equal(t, domain.NotificationFailed, stored.Notification.Status)
	assert.Equal(t, "isv.MOBILE_NUMBER_ILLEGAL", stored.Notification.ProviderCode)
	assert.Equal(t, "rejected", stored.Notification.Error)
	// The interview itself is untouched.
	assert.Equal(t, domain.StatusScheduled, stored.Status)
}

func TestDeliverSkipsCancelledSchedule(t *testing.T) {
	db := newTestDB(t)
	c := seedCandidate(t, db, "Ann", domain.PoolInterview, nil)
	sms := &fakeSMS{}
	n := NewNotifier(db, sms, testLogger(), 0)

	require.NoError(t, n.Deliver(context.Background(), domain.NotificationJob{CandidateID: c.ID}))
	require.NoError(t, n.Deliver(context.Background(), domain.NotificationJob{CandidateID: 999}))
	assert.Empty(t, sms.sent)
}

func TestInlineDispatcherDeliversInBackground(t *testing.T) {
	db := newTestDB(t)
	sms := &fakeSMS{receipt: domain.SMSReceipt{MessageID: "m-2", ProviderCode: "OK"}}
	d := NewInlineDispatcher(NewNotifier(db, sms, testLogger(), 0), testLogger())
	p := NewPipeline(db, newTestAudit(db), d, testLogger(), PipelineConfig{})
	c := seedCandidate(t, db, "Ann", domain.PoolInterview, nil)

	_, err := p.Schedule(context.Background(), testActor, c.ID, ScheduleInput{
		ScheduleRequest: domain.ScheduleRequest{At: futureSlot()},
		Notify:          true,
	})
	require.NoError(t, err)
	d.Wait()

	assert.Len(t, sms.sent, 1)
	assert.Equal(t, domain.NotificationSuccess, loadCandidate(t, db, c.ID).Notification.Status)
}
