package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"recruit-pipeline/domain"
	"recruit-pipeline/pagination"
)

// AuditEntry describes one transition to record.
type AuditEntry struct {
	Module       string
	Action       string
	Result       string
	SubjectType  string
	SubjectID    string
	SubjectLabel string
	Summary      string
	Details      map[string]any
}

// AuditLog writes and lists operation log rows. Writes never fail the caller.
type AuditLog struct {
	db           *gorm.DB
	log          logrus.FieldLogger
	defaultDays  int
	storeTimeout time.Duration
	now          func() time.Time
}

func NewAuditLog(db *gorm.DB, log logrus.FieldLogger, defaultDays int, storeTimeout time.Duration) *AuditLog {
	return &AuditLog{db: db, log: log, defaultDays: defaultDays, storeTimeout: storeTimeout, now: time.Now}
}

// Record makes exactly one write attempt. A failure is logged and swallowed.
func (a *AuditLog) Record(ctx context.Context, actor Actor, e AuditEntry) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.storeTimeout)
	defer cancel()

	if e.Result == "" {
		e.Result = domain.ResultSuccess
	}
	row := domain.OperationLog{
		Module:       e.Module,
		Action:       e.Action,
		Result:       e.Result,
		Operator:     actor.Operator,
		SubjectType:  e.SubjectType,
		SubjectID:    e.SubjectID,
		SubjectLabel: e.SubjectLabel,
		Summary:      e.Summary,
		Details:      e.Details,
		RequestID:    actor.RequestID,
		CreatedAt:    a.now().UTC(),
	}
	if err := a.db.WithContext(ctx).Create(&row).Error; err != nil {
		a.log.WithError(err).WithFields(logrus.Fields{
			"module": e.Module,
			"action": e.Action,
			"result": e.Result,
		}).Warn("failed to write operation log")
	}
}

type AuditQuery struct {
	Module   string
	Action   string
	Result   string
	Operator string
	DateFrom *time.Time
	// DateTo is inclusive: the whole day is listed.
	DateTo   *time.Time
	Cursor   string
	PageSize int
}

type AuditPage struct {
	Results  []domain.OperationLog `json:"results"`
	Next     string                `json:"next"`
	Previous string                `json:"previous"`
}

type auditCursor struct {
	Position uint `json:"p"`
	Reverse  bool `json:"r,omitempty"`
}

func encodeCursor(c auditCursor) string {
	raw, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(raw)
}

func decodeCursor(s string) (auditCursor, error) {
	var c auditCursor
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err == nil {
		err = json.Unmarshal(raw, &c)
	}
	if err != nil || c.Position == 0 {
		return c, &domain.Error{Kind: domain.KindValidation, Code: domain.CodeInvalidCursor, Message: "invalid cursor",
			Fields: map[string]string{"cursor": "invalid"}}
	}
	return c, nil
}

// List returns one newest-first page using keyset pagination on id.
func (a *AuditLog) List(ctx context.Context, q AuditQuery) (*AuditPage, error) {
	size := q.PageSize
	if size <= 0 {
		size = pagination.DefaultPageSize
	}
	if size > pagination.MaxPageSize {
		size = pagination.MaxPageSize
	}

	var cur auditCursor
	if q.Cursor != "" {
		var err error
		if cur, err = decodeCursor(q.Cursor); err != nil {
			return nil, err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, a.storeTimeout)
	defer cancel()

	tx := a.db.WithContext(ctx).Model(&domain.OperationLog{})
	if q.Module != "" {
		tx = tx.Where("module = ?", q.Module)
	}
	if q.Action != "" {
		tx = tx.Where("action = ?", q.Action)
	}
	if q.Result != "" {
		tx = tx.Where("result = ?", q.Result)
	}
	if q.Operator != "" {
		tx = tx.Where("operator LIKE ?", "%"+q.Operator+"%")
	}
	switch {
	case q.DateFrom != nil || q.DateTo != nil:
		if q.DateFrom != nil {
			tx = tx.Where("created_at >= ?", q.DateFrom.UTC())
		}
		if q.DateTo != nil {
			tx = tx.Where("created_at < ?", q.DateTo.UTC().AddDate(0, 0, 1))
		}
	case a.defaultDays > 0:
		tx = tx.Where("created_at >= ?", a.now().UTC().AddDate(0, 0, -a.defaultDays))
	}

	if cur.Position != 0 {
		if cur.Reverse {
			tx = tx.Where("id > ?", cur.Position).Order("id ASC")
		} else {
			tx = tx.Where("id < ?", cur.Position).Order("id DESC")
		}
	} else {
		tx = tx.Order("id DESC")
	}

	var rows []domain.OperationLog
	if err := tx.Limit(size + 1).Find(&rows).Error; err != nil {
		return nil, storeError(err)
	}

	if rows == nil {
		rows = []domain.OperationLog{}
	}
	more := len(rows) > size
	if more {
		rows = rows[:size]
	}
	page := &AuditPage{Results: rows}
	if cur.Reverse {
		for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
			rows[i], rows[j] = rows[j], rows[i]
		}
		if len(rows) > 0 {
			page.Next = encodeCursor(auditCursor{Position: rows[len(rows)-1].ID})
			if more {
				page.Previous = encodeCursor(auditCursor{Position: rows[0].ID, Reverse: true})
			}
		}
		return page, nil
	}

	if len(rows) > 0 {
		if more {
			page.Next = encodeCursor(auditCursor{Position: rows[len(rows)-1].ID})
		}
		if cur.Position != 0 {
			page.Previous = encodeCursor(auditCursor{Position: rows[0].ID, Reverse: true})
		}
	}
	return page, nil
}
