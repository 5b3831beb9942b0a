// Package refresh decides which pool views to reload after a console mutation.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"recruit-pipeline/domain"
)

type View string

const (
	ViewApplications  View = "applications"
	ViewInterview     View = "interview"
	ViewPassed        View = "passed"
	ViewTalent        View = "talent"
	ViewOperationLogs View = "operation_logs"
)

// order is the fixed sequence loaders run in.
var order = []View{ViewApplications, ViewInterview, ViewPassed, ViewTalent, ViewOperationLogs}

// InterestSet records which views the operator has opened in this session.
type InterestSet struct {
	mu     sync.RWMutex
	loaded map[View]bool
}

func NewInterestSet() *InterestSet {
	return &InterestSet{loaded: make(map[View]bool)}
}

func (s *InterestSet) MarkLoaded(v View) {
	s.mu.Lock()
	s.loaded[v] = true
	s.mu.Unlock()
}

func (s *InterestSet) IsLoaded(v View) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded[v]
}

func (s *InterestSet) Forget(v View) {
	s.mu.Lock()
	delete(s.loaded, v)
	s.mu.Unlock()
}

type MutationKind string

const (
	MutationApplicantsToInterview MutationKind = "applicants_to_interview"
	MutationApplicantsToTalent    MutationKind = "applicants_to_talent"
	MutationTalentToInterview     MutationKind = "talent_to_interview"
	MutationSchedule              MutationKind = "schedule"
	MutationCancel                MutationKind = "cancel"
	MutationResendNotification    MutationKind = "resend_notification"
	MutationRecordResult          MutationKind = "record_result"
	MutationPromote               MutationKind = "promote"
	MutationRemoveFromInterview   MutationKind = "remove_from_interview"
	MutationOffer                 MutationKind = "offer"
)

type Mutation struct {
	Kind MutationKind
	// Result is set for MutationRecordResult.
	Result domain.InterviewResult
}

type dependency struct {
	targets    []View
	dependents []View
}

var dependencies = map[MutationKind]dependency{
	MutationApplicantsToInterview: {targets: []View{ViewInterview}, dependents: []View{ViewApplications, ViewTalent}},
	MutationApplicantsToTalent:    {targets: []View{ViewTalent}, dependents: []View{ViewApplications, ViewInterview, ViewPassed}},
	MutationTalentToInterview:     {targets: []View{ViewInterview}, dependents: []View{ViewTalent}},
	MutationSchedule:              {targets: []View{ViewInterview}},
	MutationCancel:                {targets: []View{ViewInterview}},
	MutationResendNotification:    {targets: []View{ViewInterview}},
	MutationRecordResult:          {targets: []View{ViewInterview}, dependents: []View{ViewPassed, ViewTalent}},
	MutationPromote:               {targets: []View{ViewInterview}, dependents: []View{ViewPassed, ViewTalent}},
	MutationRemoveFromInterview:   {targets: []View{ViewInterview}},
	MutationOffer:                 {targets: []View{ViewPassed}},
}

// Plan lists the views to reload after a mutation, in loader order.
type Plan struct {
	Views []View
	// Force marks views reloaded because of the outcome, regardless of interest.
	Force map[View]bool
	// Navigate is the view the console should switch to, if any.
	Navigate View
}

func (p Plan) Includes(v View) bool {
	for _, pv := range p.Views {
		if pv == v {
			return true
		}
	}
	return false
}

type Loader func(ctx context.Context) error

type Coordinator struct {
	interest *InterestSet

	mu      sync.Mutex
	loaders map[View]Loader
}

func NewCoordinator(interest *InterestSet) *Coordinator {
	if interest == nil {
		interest = NewInterestSet()
	}
	return &Coordinator{interest: interest, loaders: make(map[View]Loader)}
}

func (c *Coordinator) Interest() *InterestSet { return c.interest }

func (c *Coordinator) Register(v View, load Loader) {
	c.mu.Lock()
	c.loaders[v] = load
	c.mu.Unlock()
}

// Plan is pure: it only reads the interest set.
func (c *Coordinator) Plan(m Mutation) Plan {
	dep := dependencies[m.Kind]
	plan := Plan{Force: map[View]bool{}}

	if m.Kind == MutationRecordResult {
		switch m.Result {
		case domain.ResultPass:
			plan.Force[ViewPassed] = true
		case domain.ResultReject:
			plan.Force[ViewTalent] = true
			plan.Navigate = ViewTalent
		}
	}

	want := map[View]bool{}
	for _, v := range dep.targets {
		want[v] = true
	}
	for _, v := range dep.dependents {
		if plan.Force[v] || c.interest.IsLoaded(v) {
			want[v] = true
		}
	}
	// every mutation writes an audit row
	if c.interest.IsLoaded(ViewOperationLogs) {
		want[ViewOperationLogs] = true
	}

	for _, v := range order {
		if want[v] {
			plan.Views = append(plan.Views, v)
		}
	}
	return plan
}

// Open loads a view on the operator's request and records the interest.
func (c *Coordinator) Open(ctx context.Context, v View) error {
	return c.run(ctx, v)
}

// Apply runs the plan's loaders in order. A failing loader does not stop the others.
func (c *Coordinator) Apply(ctx context.Context, p Plan) error {
	var errs []error
	for _, v := range p.Views {
		if err := c.run(ctx, v); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// AfterMutation plans and applies the refresh for m.
func (c *Coordinator) AfterMutation(ctx context.Context, m Mutation) (Plan, error) {
	p := c.Plan(m)
	return p, c.Apply(ctx, p)
}

func (c *Coordinator) run(ctx context.Context, v View) error {
	c.mu.Lock()
	load, ok := c.loaders[v]
	c.mu.Unlock()
	if !ok {
		return nil
	}
	if err := load(ctx); err != nil {
		return fmt.Errorf("refresh %s: %w", v, err)
	}
	c.interest.MarkLoaded(v)
	return nil
}
