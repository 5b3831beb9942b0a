package service

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"recruit-pipeline/domain"
	"recruit-pipeline/infrastructure"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// One connection keeps every goroutine on the same in-memory database.
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, infrastructure.Migrate(db))
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestAudit(db *gorm.DB) *AuditLog {
	return NewAuditLog(db, testLogger(), 30, 5*time.Second)
}

var testActor = Actor{Operator: "alice", RequestID: "req-1"}

func seedJob(t *testing.T, db *gorm.DB, active bool) domain.Job {
	t.Helper()
	region := domain.Region{Name: "Head Office"}
	require.NoError(t, db.Create(&region).Error)
	job := domain.Job{RegionID: region.ID, Title: "Backend Engineer", Active: true}
	require.NoError(t, db.Create(&job).Error)
	if !active {
		require.NoError(t, db.Model(&job).Update("active", false).Error)
		job.Active = false
	}
	return job
}

func seedApplicant(t *testing.T, db *gorm.DB, name string, lifecycle domain.Lifecycle) domain.Applicant {
	t.Helper()
	a := domain.Applicant{RegionID: 1, JobID: 1, Name: name, Phone: "13800000000", Lifecycle: lifecycle}
	require.NoError(t, db.Create(&a).Error)
	return a
}

// seedCandidate stores a committed applicant with a candidate in pool, letting
// mutate adjust the candidate before it is written.
func seedCandidate(t *testing.T, db *gorm.DB, name string, pool domain.Pool, mutate func(c *domain.Candidate)) domain.Candidate {
	t.Helper()
	a := seedApplicant(t, db, name, domain.LifecycleCommitted)
	c := domain.NewCandidate(a.ID, pool)
	if mutate != nil {
		mutate(c)
	}
	require.NoError(t, db.Create(c).Error)
	return *c
}

func loadCandidate(t *testing.T, db *gorm.DB, id uint) domain.Candidate {
	t.Helper()
	var c domain.Candidate
	require.NoError(t, db.First(&c, id).Error)
	return c
}

func auditRows(t *testing.T, db *gorm.DB) []domain.OperationLog {
	t.Helper()
	var rows []domain.OperationLog
	require.NoError(t, db.Order("id ASC").Find(&rows).Error)
	return rows
}

type fakeDispatcher struct {
	mu   sync.Mutex
	jobs []domain.NotificationJob
	err  error
}

func (d *fakeDispatcher) Dispatch(_ context.Context, job domain.NotificationJob) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.jobs = append(d.jobs, job)
	return nil
}

func (d *fakeDispatcher) sent() []domain.NotificationJob {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]domain.NotificationJob(nil), d.jobs...)
}

type fakeBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
	failPut bool
	// failAfter lets that many puts succeed before failPut applies.
	failAfter int
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{objects: map[string][]byte{}}
}

func (b *fakeBlobs) Put(_ context.Context, key string, data []byte, _ string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failPut {
		if b.failAfter == 0 {
			return errors.New("bucket unavailable")
		}
		b.failAfter--
	}
	b.objects[key] = data
	return nil
}

func (b *fakeBlobs) Get(_ context.Context, key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return data, nil
}

func (b *fakeBlobs) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
	b.deleted = append(b.deleted, key)
	return nil
}

func (b *fakeBlobs) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.objects)
}

type fakeExtractor struct{ text string }

func (e fakeExtractor) Extract(_ []byte, _, _ string) (string, error) {
	return e.text, nil
}

type fakeSMS struct {
	mu      sync.Mutex
	sent    []domain.SMSMessage
	receipt domain.SMSReceipt
	err     error
}

func (s *fakeSMS) Send(_ context.Context, msg domain.SMSMessage) (domain.SMSReceipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return s.receipt, s.err
}
