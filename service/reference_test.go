package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recruit-pipeline/domain"
	"recruit-pipeline/infrastructure"
)

func TestJobsAreServedFromCacheUntilInvalidated(t *testing.T) {
	db := newTestDB(t)
	job := seedJob(t, db, true)
	ref := NewReference(db, infrastructure.NewMemoryCache(), time.Minute, newTestAudit(db), testLogger(), 0)
	ctx := context.Background()

	jobs, err := ref.Jobs(ctx, job.RegionID, true)
	require.NoError(t, err)
	require.Len(t, jobs, 1)

	// Written behind the cache's back: still hidden.
	require.NoError(t, db.Create(&domain.Job{RegionID: job.RegionID, Title: "QA", Active: true}).Error)
	jobs, err = ref.Jobs(ctx, job.RegionID, true)
	require.NoError(t, err)
	assert.Len(t, jobs, 1)

	created, err := ref.CreateJob(ctx, testActor, JobInput{RegionID: job.RegionID, Title: " Designer "})
	require.NoError(t, err)
	assert.Equal(t, "Designer", created.Title)

	jobs, err = ref.Jobs(ctx, job.RegionID, true)
	require.NoError(t, err)
	assert.Len(t, jobs, 3)

	_, err = ref.SetJobActive(ctx, testActor, created.ID, false)
	require.NoError(t, err)
	jobs, err = ref.Jobs(ctx, job.RegionID, true)
	require.NoError(t, err)
	assert.Len(t, jobs, 2)

	rows := auditRows(t, db)
	require.Len(t, rows, 2)
	assert.Equal(t, domain.ModuleReference, rows[0].Module)
}

func TestReferenceWithoutCache(t *testing.T) {
	db := newTestDB(t)
	seedJob(t, db, true)
	ref := NewReference(db, nil, 0, newTestAudit(db), testLogger(), 0)

	regions, err := ref.Regions(context.Background())
	require.NoError(t, err)
	require.Len(t, regions, 1)
	assert.Equal(t, "Head Office", regions[0].Name)

	_, err = ref.CreateJob(context.Background(), testActor, JobInput{RegionID: 99, Title: "QA"})
	assert.True(t, domain.IsKind(err, domain.KindValidation))

	_, err = ref.SetJobActive(context.Background(), testActor, 99, true)
	assert.True(t, domain.IsKind(err, domain.KindNotFound))
}
