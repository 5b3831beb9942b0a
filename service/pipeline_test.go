package service

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"recruit-pipeline/domain"
)

func newTestPipeline(t *testing.T) (*Pipeline, *gorm.DB, *fakeDispatcher) {
	t.Helper()
	db := newTestDB(t)
	d := &fakeDispatcher{}
	p := NewPipeline(db, newTestAudit(db), d, testLogger(), PipelineConfig{MaxRound: 3})
	return p, db, d
}

func futureSlot() time.Time {
	return time.Now().UTC().Add(48 * time.Hour).Truncate(time.Minute)
}

func TestScheduleDispatchesAfterCommit(t *testing.T) {
	p, db, d := newTestPipeline(t)
	c := seedCandidate(t, db, "Ann", domain.PoolInterview, nil)

	got, err := p.Schedule(context.Background(), testActor, c.ID, ScheduleInput{
		ScheduleRequest: domain.ScheduleRequest{At: futureSlot(), Interviewers: []string{"Bob"}, Location: "Room 1"},
		Notify:          true,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusScheduled, got.Status)
	assert.Equal(t, domain.NotificationSending, got.Notification.Status)

	jobs := d.sent()
	require.Len(t, jobs, 1)
	assert.Equal(t, domain.NotificationJob{CandidateID: c.ID}, jobs[0])

	rows := auditRows(t, db)
	require.Len(t, rows, 1)
	assert.Equal(t, "schedule", rows[0].Action)
	assert.Equal(t, domain.ResultSuccess, rows[0].Result)
	assert.Equal(t, "alice", rows[0].Operator)
	assert.Equal(t, "req-1", rows[0].RequestID)
	assert.Equal(t, "Ann", rows[0].SubjectLabel)
}

func TestScheduleWithoutNotifyLeavesNotificationIdle(t *testing.T) {
	p, db, d := newTestPipeline(t)
	c := seedCandidate(t, db, "Ann", domain.PoolInterview, nil)

	got, err := p.Schedule(context.Background(), testActor, c.ID, ScheduleInput{
		ScheduleRequest: domain.ScheduleRequest{At: futureSlot()},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.NotificationIdle, got.Notification.Status)
	assert.Empty(t, d.sent())
}

func TestScheduleSurvivesDispatchFailure(t *testing.T) {
	p, db, d := newTestPipeline(t)
	d.err = errors.New("broker down")
	c := seedCandidate(t, db, "Ann", domain.PoolInterview, nil)

	_, err := p.Schedule(context.Background(), testActor, c.ID, ScheduleInput{
		ScheduleRequest: domain.ScheduleRequest{At: futureSlot()},
		Notify:          true,
	})
	require.NoError(t, err)

	stored := loadCandidate(t, db, c.ID)
	assert.Equal(t, domain.StatusScheduled, stored.Status)
	assert.Equal(t, domain.NotificationFailed, stored.Notification.Status)
	assert.Equal(t, "broker down", stored.Notification.Error)
}

func TestSchedulePastTimeIsRejectedAndNotAudited(t *testing.T) {
	p, db, _ := newTestPipeline(t)
	c := seedCandidate(t, db, "Ann", domain.PoolInterview, nil)

	_, err := p.Schedule(context.Background(), testActor, c.ID, ScheduleInput{
		ScheduleRequest: domain.ScheduleRequest{At: time.Now().Add(-time.Hour)},
	})
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindValidation))
	assert.Empty(t, auditRows(t, db))
	assert.Equal(t, domain.StatusPending, loadCandidate(t, db, c.ID).Status)
}

func TestCancelWithoutScheduleIsAuditedAsFailed(t *testing.T) {
	p, db, _ := newTestPipeline(t)
	c := seedCandidate(t, db, "Ann", domain.PoolInterview, nil)

	_, err := p.Cancel(context.Background(), testActor, c.ID)
	require.Error(t, err)
	assert.Equal(t, domain.CodeNotScheduled, domain.CodeOf(err))

	rows := auditRows(t, db)
	require.Len(t, rows, 1)
	assert.Equal(t, domain.ResultFailed, rows[0].Result)
	assert.Equal(t, domain.CodeNotScheduled, rows[0].Summary)
	assert.Equal(t, "Ann", rows[0].SubjectLabel)
}

func TestRejectedOfferChangeKeepsSubjectLabel(t *testing.T) {
	p, db, _ := newTestPipeline(t)
	c := seedCandidate(t, db, "Bea", domain.PoolPassed, func(c *domain.Candidate) {
		c.OfferStatus = domain.OfferPendingHire
	})

	_, err := p.ChangeOfferStatus(context.Background(), testActor, c.ID, domain.OfferRejected)
	require.Error(t, err)
	assert.Equal(t, domain.CodeOfferNotIssued, domain.CodeOf(err))

	rows := auditRows(t, db)
	require.Len(t, rows, 1)
	assert.Equal(t, domain.ResultFailed, rows[0].Result)
	assert.Equal(t, "Bea", rows[0].SubjectLabel)
	assert.Equal(t, strconv.FormatUint(uint64(c.ID), 10), rows[0].SubjectID)
}

func TestMissingCandidateIsNotFound(t *testing.T) {
	p, db, _ := newTestPipeline(t)

	_, err := p.Cancel(context.Background(), testActor, 42)
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindNotFound))
	assert.Empty(t, auditRows(t, db))
}

func TestRecordResultStoresRoundSnapshot(t *testing.T) {
	p, db, _ := newTestPipeline(t)
	c := seedCandidate(t, db, "Ann", domain.PoolInterview, nil)
	ctx := context.Background()

	_, err := p.Schedule(ctx, testActor, c.ID, ScheduleInput{
		ScheduleRequest: domain.ScheduleRequest{At: futureSlot(), Interviewers: []string{"Bob", "Eve"}},
	})
	require.NoError(t, err)

	got, err := p.RecordResult(ctx, testActor, c.ID, ResultInput{
		Result: domain.ResultNextRound,
		Scores: []domain.InterviewerScore{{Interviewer: "Bob", Score: 80}, {Interviewer: "Eve", Score: 70}},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, got.Status)

	_, err = p.Schedule(ctx, testActor, c.ID, ScheduleInput{
		ScheduleRequest: domain.ScheduleRequest{At: futureSlot().Add(24 * time.Hour)},
	})
	require.NoError(t, err)

	full, err := p.GetCandidate(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, full.Round)
	require.Len(t, full.Rounds, 1)
	assert.Equal(t, 1, full.Rounds[0].RoundNo)
	assert.Equal(t, domain.ResultNextRound, full.Rounds[0].Result)
	assert.Len(t, full.Rounds[0].Scores, 2)
	require.NotNil(t, full.Applicant)
	assert.Equal(t, "Ann", full.Applicant.Name)
}

func TestChangeOfferStatusGuards(t *testing.T) {
	p, db, _ := newTestPipeline(t)
	ctx := context.Background()
	pending := seedCandidate(t, db, "Ann", domain.PoolPassed, func(c *domain.Candidate) {
		c.OfferStatus = domain.OfferPendingHire
	})
	issued := seedCandidate(t, db, "Ben", domain.PoolPassed, func(c *domain.Candidate) {
		c.OfferStatus = domain.OfferIssued
	})

	_, err := p.ChangeOfferStatus(ctx, testActor, pending.ID, domain.OfferRejected)
	assert.Equal(t, domain.CodeOfferNotIssued, domain.CodeOf(err))

	got, err := p.ChangeOfferStatus(ctx, testActor, issued.ID, domain.OfferRejected)
	require.NoError(t, err)
	assert.Equal(t, domain.OfferRejected, got.OfferStatus)

	_, err = p.ChangeOfferStatus(ctx, testActor, issued.ID, domain.OfferOnboardedHire)
	assert.True(t, domain.IsKind(err, domain.KindValidation))

	rows := auditRows(t, db)
	require.Len(t, rows, 2)
	assert.Equal(t, domain.ResultFailed, rows[0].Result)
	assert.Equal(t, domain.ResultSuccess, rows[1].Result)
	assert.Equal(t, domain.ModulePassed, rows[1].Module)
}

func TestListCandidatesFiltersByPool(t *testing.T) {
	p, db, _ := newTestPipeline(t)
	seedCandidate(t, db, "Ann", domain.PoolInterview, nil)
	seedCandidate(t, db, "Ben", domain.PoolInterview, nil)
	seedCandidate(t, db, "Cid", domain.PoolTalent, nil)

	page, err := p.ListCandidates(context.Background(), CandidateQuery{Pool: domain.PoolInterview, PageSize: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 2, page.Count)
	require.Len(t, page.Results, 1)
	require.NotNil(t, page.Results[0].Applicant)

	_, err = p.ListCandidates(context.Background(), CandidateQuery{Pool: "archive"})
	assert.True(t, domain.IsKind(err, domain.KindValidation))
}
