package domain

import "time"

type OfferStatus string

const (
	OfferPendingHire    OfferStatus = "pending_hire"
	OfferIssued         OfferStatus = "offer_issued"
	OfferPendingOnboard OfferStatus = "pending_onboard"
	OfferOnboardedHire  OfferStatus = "onboarded_hire"
	OfferRejected       OfferStatus = "offer_rejected"
)

func (s OfferStatus) Valid() bool {
	switch s {
	case OfferPendingHire, OfferIssued, OfferPendingOnboard, OfferOnboardedHire, OfferRejected:
		return true
	}
	return false
}

// OfferOutcome is how a single item of a batch offer step was counted.
type OfferOutcome int

const (
	OfferApplied OfferOutcome = iota
	OfferAlready
	OfferSkipped
)

// OfferStep is one batch transition of the offer pipeline.
type OfferStep struct {
	Action string
	From   OfferStatus
	To     OfferStatus
}

var (
	StepIssueOffer      = OfferStep{Action: "issue_offer", From: OfferPendingHire, To: OfferIssued}
	StepConfirmOnboard  = OfferStep{Action: "confirm_onboard", From: OfferIssued, To: OfferPendingOnboard}
	StepCompleteOnboard = OfferStep{Action: "complete_onboard", From: OfferPendingOnboard, To: OfferOnboardedHire}
)

// AdvanceOffer applies step when the candidate sits exactly in step.From.
// Candidates already in step.To are left unchanged.
func (c *Candidate) AdvanceOffer(step OfferStep, now time.Time) OfferOutcome {
	if c.Pool != PoolPassed {
		return OfferSkipped
	}
	switch c.OfferStatus {
	case step.To:
		return OfferAlready
	case step.From:
		c.OfferStatus = step.To
		if step.To == OfferOnboardedHire {
			c.HiredAt = &now
		}
		return OfferApplied
	}
	return OfferSkipped
}

// ChangeOfferStatus is the manual correction path between issued, pending onboard
// and rejected. onboarded_hire is terminal.
func (c *Candidate) ChangeOfferStatus(target OfferStatus) error {
	if c.Pool != PoolPassed {
		return NewConflictError(CodeNotInPassedPool, "candidate is not in the passed pool")
	}
	if target != OfferRejected && target != OfferPendingOnboard {
		return NewValidationError("invalid offer status", map[string]string{
			"status": "must be one of offer_rejected, pending_onboard",
		})
	}
	switch c.OfferStatus {
	case OfferPendingHire, "":
		return NewConflictError(CodeOfferNotIssued, "offer has not been issued")
	case OfferOnboardedHire:
		return NewConflictError(CodeOfferStatusLocked, "onboarded hire is final")
	case target:
		return NewConflictError(CodeOfferStatusUnchanged, "offer status is already "+string(target))
	}
	c.OfferStatus = target
	c.HiredAt = nil
	return nil
}
