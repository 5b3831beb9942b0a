package client

import (
	"context"
	"sync"

	"recruit-pipeline/domain"
	"recruit-pipeline/refresh"
)

// Console is the operator's session: it runs mutations against the API and
// reloads whichever cached views they affect.
type Console struct {
	client      *Client
	coordinator *refresh.Coordinator
	logs        *AuditLogBrowser
	pageSize    int

	mu    sync.RWMutex
	views map[refresh.View]any
}

func NewConsole(c *Client, pageSize int) *Console {
	con := &Console{
		client:      c,
		coordinator: refresh.NewCoordinator(nil),
		logs:        NewAuditLogBrowser(c, pageSize),
		pageSize:    pageSize,
		views:       make(map[refresh.View]any),
	}
	con.coordinator.Register(refresh.ViewApplications, func(ctx context.Context) error {
		page, err := c.ListApplicants(ctx, domain.LifecycleCommitted, 1, con.pageSize)
		if err != nil {
			return err
		}
		con.store(refresh.ViewApplications, page)
		return nil
	})
	for view, pool := range map[refresh.View]domain.Pool{
		refresh.ViewInterview: domain.PoolInterview,
		refresh.ViewPassed:    domain.PoolPassed,
		refresh.ViewTalent:    domain.PoolTalent,
	} {
		con.coordinator.Register(view, func(ctx context.Context) error {
			page, err := c.ListCandidates(ctx, pool, 1, con.pageSize)
			if err != nil {
				return err
			}
			con.store(view, page)
			return nil
		})
	}
	con.coordinator.Register(refresh.ViewOperationLogs, func(ctx context.Context) error {
		page, err := con.logs.Page(ctx, 1)
		if err != nil {
			return err
		}
		con.store(refresh.ViewOperationLogs, page)
		return nil
	})
	return con
}

func (c *Console) store(v refresh.View, data any) {
	c.mu.Lock()
	c.views[v] = data
	c.mu.Unlock()
}

// View returns the last loaded contents of v, or nil.
func (c *Console) View(v refresh.View) any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.views[v]
}

func (c *Console) Coordinator() *refresh.Coordinator { return c.coordinator }

func (c *Console) Logs() *AuditLogBrowser { return c.logs }

// Open loads a view and marks it as one the operator is looking at.
func (c *Console) Open(ctx context.Context, v refresh.View) error {
	return c.coordinator.Open(ctx, v)
}

// Outcome pairs a mutation's refresh plan with any refresh failure. A refresh
// failure never hides a successful mutation.
type Outcome struct {
	Plan       refresh.Plan
	RefreshErr error
}

func (c *Console) after(ctx context.Context, m refresh.Mutation) Outcome {
	plan, err := c.coordinator.AfterMutation(ctx, m)
	return Outcome{Plan: plan, RefreshErr: err}
}

func (c *Console) AddApplicantsToInterview(ctx context.Context, ids []uint) (*TransferResult, Outcome, error) {
	res, err := c.client.AddApplicantsToInterview(ctx, ids)
	if err != nil {
		return nil, Outcome{}, err
	}
	return res, c.after(ctx, refresh.Mutation{Kind: refresh.MutationApplicantsToInterview}), nil
}

func (c *Console) AddApplicantsToTalent(ctx context.Context, ids []uint) (*TransferResult, Outcome, error) {
	res, err := c.client.AddApplicantsToTalent(ctx, ids)
	if err != nil {
		return nil, Outcome{}, err
	}
	return res, c.after(ctx, refresh.Mutation{Kind: refresh.MutationApplicantsToTalent}), nil
}

func (c *Console) MoveTalentToInterview(ctx context.Context, ids []uint) (*TransferResult, Outcome, error) {
	res, err := c.client.MoveTalentToInterview(ctx, ids)
	if err != nil {
		return nil, Outcome{}, err
	}
	return res, c.after(ctx, refresh.Mutation{Kind: refresh.MutationTalentToInterview}), nil
}

func (c *Console) Promote(ctx context.Context, ids []uint) (*TransferResult, Outcome, error) {
	res, err := c.client.Promote(ctx, ids)
	if err != nil {
		return nil, Outcome{}, err
	}
	return res, c.after(ctx, refresh.Mutation{Kind: refresh.MutationPromote}), nil
}

func (c *Console) RemoveFromInterview(ctx context.Context, ids []uint) (*RemoveResult, Outcome, error) {
	res, err := c.client.RemoveFromInterview(ctx, ids)
	if err != nil {
		return nil, Outcome{}, err
	}
	return res, c.after(ctx, refresh.Mutation{Kind: refresh.MutationRemoveFromInterview}), nil
}

func (c *Console) candidateMutation(ctx context.Context, m refresh.Mutation, run func() (*domain.Candidate, error)) (*domain.Candidate, Outcome, error) {
	cand, err := run()
	if err != nil {
		return nil, Outcome{}, err
	}
	return cand, c.after(ctx, m), nil
}

func (c *Console) Schedule(ctx context.Context, id uint, req ScheduleRequest) (*domain.Candidate, Outcome, error) {
	return c.candidateMutation(ctx, refresh.Mutation{Kind: refresh.MutationSchedule}, func() (*domain.Candidate, error) {
		return c.client.Schedule(ctx, id, req)
	})
}

func (c *Console) CancelSchedule(ctx context.Context, id uint) (*domain.Candidate, Outcome, error) {
	return c.candidateMutation(ctx, refresh.Mutation{Kind: refresh.MutationCancel}, func() (*domain.Candidate, error) {
		return c.client.CancelSchedule(ctx, id)
	})
}

func (c *Console) ResendNotification(ctx context.Context, id uint) (*domain.Candidate, Outcome, error) {
	return c.candidateMutation(ctx, refresh.Mutation{Kind: refresh.MutationResendNotification}, func() (*domain.Candidate, error) {
		return c.client.ResendNotification(ctx, id)
	})
}

// RecordResult reloads by outcome: a pass always reloads the passed pool and
// a reject always reloads talent and navigates there.
func (c *Console) RecordResult(ctx context.Context, id uint, req ResultRequest) (*domain.Candidate, Outcome, error) {
	m := refresh.Mutation{Kind: refresh.MutationRecordResult, Result: req.Result}
	return c.candidateMutation(ctx, m, func() (*domain.Candidate, error) {
		return c.client.RecordResult(ctx, id, req)
	})
}

func (c *Console) ChangeOfferStatus(ctx context.Context, id uint, status domain.OfferStatus) (*domain.Candidate, Outcome, error) {
	return c.candidateMutation(ctx, refresh.Mutation{Kind: refresh.MutationOffer}, func() (*domain.Candidate, error) {
		return c.client.ChangeOfferStatus(ctx, id, status)
	})
}

func (c *Console) offerBatch(ctx context.Context, run func(context.Context, []uint) (*OfferBatchResult, error), ids []uint) (*OfferBatchResult, Outcome, error) {
	res, err := run(ctx, ids)
	if err != nil {
		return nil, Outcome{}, err
	}
	return res, c.after(ctx, refresh.Mutation{Kind: refresh.MutationOffer}), nil
}

func (c *Console) IssueOffer(ctx context.Context, ids []uint) (*OfferBatchResult, Outcome, error) {
	return c.offerBatch(ctx, c.client.IssueOffer, ids)
}

func (c *Console) ConfirmOnboard(ctx context.Context, ids []uint) (*OfferBatchResult, Outcome, error) {
	return c.offerBatch(ctx, c.client.ConfirmOnboard, ids)
}

func (c *Console) CompleteOnboard(ctx context.Context, ids []uint) (*OfferBatchResult, Outcome, error) {
	return c.offerBatch(ctx, c.client.CompleteOnboard, ids)
}
