package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"recruit-pipeline/domain"
)

const (
	DefaultArchiveBeforeDays = 180
	DefaultArchiveBatchSize  = 1000
	minArchiveBatchSize      = 100
)

type ArchiveOptions struct {
	BeforeDays int
	BatchSize  int
	DryRun     bool
	// Progress, when set, is called after every committed batch.
	Progress func(archived, eligible int64)
}

type ArchiveResult struct {
	Cutoff   time.Time
	Eligible int64
	Archived int64
}

// Archive moves operation logs older than BeforeDays into the archive table,
// oldest first. Each batch is copied and deleted in one transaction, so a
// failure leaves earlier batches moved and the rest untouched.
func (a *AuditLog) Archive(ctx context.Context, opts ArchiveOptions) (*ArchiveResult, error) {
	days := max(opts.BeforeDays, 1)
	batch := max(opts.BatchSize, minArchiveBatchSize)
	res := &ArchiveResult{Cutoff: a.now().UTC().AddDate(0, 0, -days)}

	countCtx, cancel := context.WithTimeout(ctx, a.storeTimeout)
	err := a.db.WithContext(countCtx).Model(&domain.OperationLog{}).
		Where("created_at < ?", res.Cutoff).Count(&res.Eligible).Error
	cancel()
	if err != nil {
		return nil, storeError(err)
	}

	log := a.log.WithFields(logrus.Fields{"cutoff": res.Cutoff, "eligible": res.Eligible})
	if res.Eligible == 0 || opts.DryRun {
		log.WithField("dry_run", opts.DryRun).Info("operation log archive scan finished")
		return res, nil
	}

	var lastID uint
	for {
		n, next, err := a.archiveBatch(ctx, res.Cutoff, lastID, batch)
		if err != nil {
			log.WithError(err).WithField("archived", res.Archived).Error("operation log archive stopped")
			return res, storeError(err)
		}
		if next == 0 {
			break
		}
		res.Archived += n
		lastID = next
		if opts.Progress != nil {
			opts.Progress(res.Archived, res.Eligible)
		}
	}
	log.WithField("archived", res.Archived).Info("operation logs archived")
	return res, nil
}

// archiveBatch returns the rows deleted and the last id seen, zero when no
// eligible rows remain.
func (a *AuditLog) archiveBatch(ctx context.Context, cutoff time.Time, afterID uint, size int) (int64, uint, error) {
	ctx, cancel := context.WithTimeout(ctx, a.storeTimeout)
	defer cancel()

	var moved int64
	var lastID uint
	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []domain.OperationLog
		if err := tx.Where("created_at < ? AND id > ?", cutoff, afterID).
			Order("id ASC").Limit(size).Find(&rows).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}

		at := a.now().UTC()
		ids := make([]uint, len(rows))
		archived := make([]domain.OperationLogArchive, len(rows))
		for i, r := range rows {
			ids[i] = r.ID
			archived[i] = domain.ArchiveOf(r, at)
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "source_log_id"}},
			DoNothing: true,
		}).Create(&archived).Error; err != nil {
			return err
		}
		del := tx.Where("id IN ?", ids).Delete(&domain.OperationLog{})
		if del.Error != nil {
			return del.Error
		}
		moved = del.RowsAffected
		lastID = ids[len(ids)-1]
		return nil
	})
	return moved, lastID, err
}
