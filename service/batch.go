package service

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"recruit-pipeline/domain"
)

type TransferResult struct {
	Moved    int `json:"moved"`
	Existing int `json:"existing"`
	Blocked  int `json:"blocked"`
	Total    int `json:"total"`
}

type OfferBatchResult struct {
	Confirmed        int `json:"confirmed"`
	AlreadyConfirmed int `json:"already_confirmed"`
	Skipped          int `json:"skipped"`
	Total            int `json:"total"`
}

type RemoveResult struct {
	Removed int `json:"removed"`
	Skipped int `json:"skipped"`
	Total   int `json:"total"`
}

// itemResult is what one batch item reports after its transaction finished.
type itemResult struct {
	outcome string
	audit   *AuditEntry
}

func (p *Pipeline) normalizeIDs(ids []uint) ([]uint, error) {
	seen := make(map[uint]bool, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	if len(out) == 0 {
		return nil, domain.NewValidationError("no ids given", map[string]string{"ids": "at least one id is required"})
	}
	if len(out) > p.cfg.BatchLimit {
		return nil, domain.NewValidationError("too many ids", map[string]string{
			"ids": fmt.Sprintf("at most %d ids per batch", p.cfg.BatchLimit),
		})
	}
	return out, nil
}

// runBatch processes every id in its own transaction with bounded parallelism.
// Item errors never abort the batch; they are counted under failOutcome.
// Counts are taken after each item committed.
func (p *Pipeline) runBatch(ctx context.Context, actor Actor, action string, ids []uint, failOutcome string,
	item func(ctx context.Context, id uint) (itemResult, error)) (map[string]int, error) {
	ids, err := p.normalizeIDs(ids)
	if err != nil {
		return nil, err
	}

	var (
		mu     sync.Mutex
		counts = map[string]int{}
	)
	var g errgroup.Group
	g.SetLimit(p.cfg.BatchWorkers)
	for _, id := range ids {
		g.Go(func() error {
			res, err := p.runItem(ctx, id, item)
			if err != nil {
				p.log.WithError(err).WithFields(logrus.Fields{"action": action, "id": id}).Warn("batch item failed")
				res = itemResult{outcome: failOutcome}
			}
			if res.audit != nil {
				p.audit.Record(ctx, actor, *res.audit)
			}
			mu.Lock()
			counts[res.outcome]++
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	counts["total"] = len(ids)
	return counts, nil
}

func (p *Pipeline) runItem(ctx context.Context, id uint, item func(ctx context.Context, id uint) (itemResult, error)) (itemResult, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.StoreTimeout)
	defer cancel()
	return item(ctx, id)
}

func (p *Pipeline) recordBatch(ctx context.Context, actor Actor, module, action string, counts map[string]int) {
	details := make(map[string]any, len(counts))
	for k, v := range counts {
		details[k] = v
	}
	p.audit.Record(ctx, actor, AuditEntry{
		Module:      module,
		Action:      action,
		SubjectType: domain.SubjectBatch,
		Summary:     fmt.Sprintf("%s on %d items", action, counts["total"]),
		Details:     details,
	})
}

func transferResult(counts map[string]int) *TransferResult {
	return &TransferResult{
		Moved:    counts[domain.TransferMoved.String()],
		Existing: counts[domain.TransferExisting.String()],
		Blocked:  counts[domain.TransferBlocked.String()],
		Total:    counts["total"],
	}
}

func candidateAudit(module, action string, c *domain.Candidate, details map[string]any) *AuditEntry {
	return &AuditEntry{
		Module:       module,
		Action:       action,
		SubjectType:  domain.SubjectCandidate,
		SubjectID:    strconv.FormatUint(uint64(c.ID), 10),
		SubjectLabel: candidateLabel(c),
		Summary:      fmt.Sprintf("%s %s", action, candidateLabel(c)),
		Details:      details,
	}
}

// transferApplicant moves one committed applicant into a pool, creating the
// candidate row on first entry.
func (p *Pipeline) transferApplicant(ctx context.Context, applicantID uint, pool domain.Pool, module, action string) (itemResult, error) {
	var res itemResult
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var applicant domain.Applicant
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&applicant, applicantID).Error
		if isNotFound(err) {
			res.outcome = domain.TransferBlocked.String()
			return nil
		}
		if err != nil {
			return err
		}
		if applicant.Lifecycle != domain.LifecycleCommitted {
			res.outcome = domain.TransferBlocked.String()
			return nil
		}

		var c domain.Candidate
		err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("applicant_id = ?", applicantID).First(&c).Error
		var outcome domain.TransferOutcome
		switch {
		case isNotFound(err):
			c = *domain.NewCandidate(applicantID, pool)
			if err := tx.Omit(clause.Associations).Create(&c).Error; err != nil {
				return err
			}
			outcome = domain.TransferMoved
		case err != nil:
			return err
		default:
			from := c.Pool
			if pool == domain.PoolInterview {
				outcome = c.EnterInterview()
			} else {
				outcome = c.Bench()
			}
			if outcome == domain.TransferMoved {
				if err := tx.Omit(clause.Associations).Save(&c).Error; err != nil {
					return err
				}
				res.audit = candidateAudit(module, action, withApplicant(&c, &applicant), map[string]any{"from": from, "to": pool})
			}
		}
		if res.audit == nil && outcome == domain.TransferMoved {
			res.audit = candidateAudit(module, action, withApplicant(&c, &applicant), map[string]any{"to": pool, "created": true})
		}
		res.outcome = outcome.String()
		return nil
	})
	return res, err
}

func withApplicant(c *domain.Candidate, a *domain.Applicant) *domain.Candidate {
	c.Applicant = a
	return c
}

// AddApplicantsToInterview promotes committed applicants into the interview pool.
func (p *Pipeline) AddApplicantsToInterview(ctx context.Context, actor Actor, applicantIDs []uint) (*TransferResult, error) {
	const action = "applicants_to_interview"
	counts, err := p.runBatch(ctx, actor, action, applicantIDs, domain.TransferBlocked.String(),
		func(ctx context.Context, id uint) (itemResult, error) {
			return p.transferApplicant(ctx, id, domain.PoolInterview, domain.ModuleInterview, action)
		})
	if err != nil {
		return nil, err
	}
	p.recordBatch(ctx, actor, domain.ModuleInterview, action, counts)
	return transferResult(counts), nil
}

// AddApplicantsToTalent benches committed applicants. Candidates with a live
// passed outcome are blocked.
func (p *Pipeline) AddApplicantsToTalent(ctx context.Context, actor Actor, applicantIDs []uint) (*TransferResult, error) {
	const action = "applicants_to_talent"
	counts, err := p.runBatch(ctx, actor, action, applicantIDs, domain.TransferBlocked.String(),
		func(ctx context.Context, id uint) (itemResult, error) {
			return p.transferApplicant(ctx, id, domain.PoolTalent, domain.ModuleTalent, action)
		})
	if err != nil {
		return nil, err
	}
	p.recordBatch(ctx, actor, domain.ModuleTalent, action, counts)
	return transferResult(counts), nil
}

// candidateItem locks one candidate, lets step decide, and saves when step changed it.
func (p *Pipeline) candidateItem(ctx context.Context, id uint, missing string,
	step func(c *domain.Candidate) (string, *AuditEntry)) (itemResult, error) {
	var res itemResult
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c domain.Candidate
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Preload("Applicant").First(&c, id).Error
		if isNotFound(err) {
			res.outcome = missing
			return nil
		}
		if err != nil {
			return err
		}
		outcome, entry := step(&c)
		if entry != nil {
			if err := tx.Omit(clause.Associations).Save(&c).Error; err != nil {
				return err
			}
		}
		res = itemResult{outcome: outcome, audit: entry}
		return nil
	})
	return res, err
}

// MoveTalentToInterview brings benched candidates back into the interview pool.
func (p *Pipeline) MoveTalentToInterview(ctx context.Context, actor Actor, candidateIDs []uint) (*TransferResult, error) {
	const action = "talent_to_interview"
	blocked := domain.TransferBlocked.String()
	counts, err := p.runBatch(ctx, actor, action, candidateIDs, blocked,
		func(ctx context.Context, id uint) (itemResult, error) {
			return p.candidateItem(ctx, id, blocked, func(c *domain.Candidate) (string, *AuditEntry) {
				outcome := c.EnterInterview()
				if outcome != domain.TransferMoved {
					return outcome.String(), nil
				}
				return outcome.String(), candidateAudit(domain.ModuleTalent, action, c, map[string]any{"round": c.Round})
			})
		})
	if err != nil {
		return nil, err
	}
	p.recordBatch(ctx, actor, domain.ModuleTalent, action, counts)
	return transferResult(counts), nil
}

// Promote applies the human-confirmed move of completed candidates into the
// passed pool (pass) or the talent pool (reject).
func (p *Pipeline) Promote(ctx context.Context, actor Actor, candidateIDs []uint) (*TransferResult, error) {
	const action = "promote"
	blocked := domain.TransferBlocked.String()
	counts, err := p.runBatch(ctx, actor, action, candidateIDs, blocked,
		func(ctx context.Context, id uint) (itemResult, error) {
			return p.candidateItem(ctx, id, blocked, func(c *domain.Candidate) (string, *AuditEntry) {
				outcome := c.Promote()
				if outcome != domain.TransferMoved {
					return outcome.String(), nil
				}
				return outcome.String(), candidateAudit(domain.ModuleInterview, action, c,
					map[string]any{"to": c.Pool, "result": c.Result, "round": c.Round})
			})
		})
	if err != nil {
		return nil, err
	}
	p.recordBatch(ctx, actor, domain.ModuleInterview, action, counts)
	return transferResult(counts), nil
}

// RemoveFromInterview deletes interview-pool candidates and their round records.
// Audit rows are kept. Candidates in other pools are skipped.
func (p *Pipeline) RemoveFromInterview(ctx context.Context, actor Actor, candidateIDs []uint) (*RemoveResult, error) {
	const action = "remove_from_interview"
	counts, err := p.runBatch(ctx, actor, action, candidateIDs, "skipped",
		func(ctx context.Context, id uint) (itemResult, error) {
			var res itemResult
			err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
				var c domain.Candidate
				err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Preload("Applicant").First(&c, id).Error
				if isNotFound(err) {
					res.outcome = "skipped"
					return nil
				}
				if err != nil {
					return err
				}
				if c.Pool != domain.PoolInterview {
					res.outcome = "skipped"
					return nil
				}
				if err := tx.Where("candidate_id = ?", c.ID).Delete(&domain.RoundRecord{}).Error; err != nil {
					return err
				}
				if err := tx.Delete(&domain.Candidate{}, c.ID).Error; err != nil {
					return err
				}
				res = itemResult{outcome: "removed", audit: candidateAudit(domain.ModuleInterview, action, &c,
					map[string]any{"round": c.Round, "status": c.Status, "result": c.Result})}
				return nil
			})
			return res, err
		})
	if err != nil {
		return nil, err
	}
	p.recordBatch(ctx, actor, domain.ModuleInterview, action, counts)
	return &RemoveResult{Removed: counts["removed"], Skipped: counts["skipped"], Total: counts["total"]}, nil
}

func (p *Pipeline) advanceOffers(ctx context.Context, actor Actor, step domain.OfferStep, candidateIDs []uint) (*OfferBatchResult, error) {
	now := p.now()
	counts, err := p.runBatch(ctx, actor, step.Action, candidateIDs, "skipped",
		func(ctx context.Context, id uint) (itemResult, error) {
			return p.candidateItem(ctx, id, "skipped", func(c *domain.Candidate) (string, *AuditEntry) {
				switch c.AdvanceOffer(step, now) {
				case domain.OfferApplied:
					return "confirmed", candidateAudit(domain.ModulePassed, step.Action, c,
						map[string]any{"from": step.From, "to": step.To})
				case domain.OfferAlready:
					return "already_confirmed", nil
				}
				return "skipped", nil
			})
		})
	if err != nil {
		return nil, err
	}
	p.recordBatch(ctx, actor, domain.ModulePassed, step.Action, counts)
	return &OfferBatchResult{
		Confirmed:        counts["confirmed"],
		AlreadyConfirmed: counts["already_confirmed"],
		Skipped:          counts["skipped"],
		Total:            counts["total"],
	}, nil
}

// IssueOffer moves pending_hire candidates to offer_issued.
func (p *Pipeline) IssueOffer(ctx context.Context, actor Actor, candidateIDs []uint) (*OfferBatchResult, error) {
	return p.advanceOffers(ctx, actor, domain.StepIssueOffer, candidateIDs)
}

// ConfirmOnboard moves offer_issued candidates to pending_onboard.
func (p *Pipeline) ConfirmOnboard(ctx context.Context, actor Actor, candidateIDs []uint) (*OfferBatchResult, error) {
	return p.advanceOffers(ctx, actor, domain.StepConfirmOnboard, candidateIDs)
}

// CompleteOnboard marks pending_onboard candidates as onboarded hires.
func (p *Pipeline) CompleteOnboard(ctx context.Context, actor Actor, candidateIDs []uint) (*OfferBatchResult, error) {
	return p.advanceOffers(ctx, actor, domain.StepCompleteOnboard, candidateIDs)
}
