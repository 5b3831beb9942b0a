package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"recruit-pipeline/domain"
)

// ErrRolledBack means the submission failed and its draft was discarded; the
// applicant can simply submit again.
var ErrRolledBack = errors.New("application was not submitted and has been rolled back")

// OrphanDraftError means the submission failed and the draft could not be
// discarded. An operator has to clean it up.
type OrphanDraftError struct {
	ApplicantID uint
	Cause       error
	DiscardErr  error
}

func (e *OrphanDraftError) Error() string {
	return fmt.Sprintf("application %d was not submitted and could not be rolled back: %v", e.ApplicantID, e.Cause)
}

func (e *OrphanDraftError) Unwrap() error { return e.Cause }

// ErrOrphanDraft matches any *OrphanDraftError with errors.Is.
var ErrOrphanDraft = errors.New("orphan draft application")

func (e *OrphanDraftError) Is(target error) bool { return target == ErrOrphanDraft }

// RolledBackError wraps the failure that triggered a successful rollback.
type RolledBackError struct {
	Cause error
}

func (e *RolledBackError) Error() string { return ErrRolledBack.Error() + ": " + e.Cause.Error() }

func (e *RolledBackError) Unwrap() []error { return []error{ErrRolledBack, e.Cause} }

// ErrSubmissionUnconfirmed matches an *UnconfirmedSubmissionError.
var ErrSubmissionUnconfirmed = errors.New("application submission could not be confirmed")

// UnconfirmedSubmissionError means finalize failed on the client side but the
// follow-up discard was refused because the draft is no longer open. The
// server most likely committed the application; it must not be resubmitted
// blindly.
type UnconfirmedSubmissionError struct {
	ApplicantID uint
	Cause       error
}

func (e *UnconfirmedSubmissionError) Error() string {
	return fmt.Sprintf("application %d may already be submitted: %v", e.ApplicantID, e.Cause)
}

func (e *UnconfirmedSubmissionError) Unwrap() error { return e.Cause }

func (e *UnconfirmedSubmissionError) Is(target error) bool { return target == ErrSubmissionUnconfirmed }

type IntakeSubmitter struct {
	client         *Client
	concurrency    int
	requestTimeout time.Duration
}

func NewIntakeSubmitter(c *Client, concurrency int, requestTimeout time.Duration) *IntakeSubmitter {
	if concurrency < 1 {
		concurrency = 2
	}
	if requestTimeout <= 0 {
		requestTimeout = 30 * time.Second
	}
	return &IntakeSubmitter{client: c, concurrency: concurrency, requestTimeout: requestTimeout}
}

// Submission is one application: the form plus its files per category.
type Submission struct {
	Form  any
	Files map[domain.AttachmentCategory][]File
}

// Submit runs the two-phase intake. A failed phase one returns the server's
// *APIError untouched. Any later failure triggers exactly one discard and the
// result is a *RolledBackError, an *OrphanDraftError or, when finalize may have
// landed, an *UnconfirmedSubmissionError.
func (s *IntakeSubmitter) Submit(ctx context.Context, sub Submission) (*DraftReceipt, error) {
	var receipt *DraftReceipt
	err := s.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		receipt, err = s.client.CreateApplication(ctx, sub.Form)
		return err
	})
	if err != nil {
		return nil, err
	}

	if err := s.uploadAll(ctx, receipt, sub.Files); err != nil {
		return nil, s.rollback(ctx, receipt, err, false)
	}
	err = s.withTimeout(ctx, func(ctx context.Context) error {
		return s.client.FinalizeApplication(ctx, receipt.ApplicantID, receipt.AttachmentToken)
	})
	if err != nil {
		return nil, s.rollback(ctx, receipt, err, true)
	}
	return receipt, nil
}

// uploadAll stops launching uploads after the first failure. Finished uploads
// are not undone one by one; the discard removes them all.
func (s *IntakeSubmitter) uploadAll(ctx context.Context, receipt *DraftReceipt, files map[domain.AttachmentCategory][]File) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, category := range uploadOrder(files) {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			return s.withTimeout(gctx, func(ctx context.Context) error {
				if err := s.client.UploadAttachments(ctx, receipt.ApplicantID, receipt.AttachmentToken, category, files[category]); err != nil {
					return fmt.Errorf("upload %s: %w", category, err)
				}
				return nil
			})
		})
	}
	return g.Wait()
}

func uploadOrder(files map[domain.AttachmentCategory][]File) []domain.AttachmentCategory {
	order := append(append([]domain.AttachmentCategory{}, domain.RequiredCategories...), domain.CategoryOther)
	out := make([]domain.AttachmentCategory, 0, len(order))
	for _, c := range order {
		if len(files[c]) > 0 {
			out = append(out, c)
		}
	}
	return out
}

// rollback discards the draft once, under its own timeout so a cancelled
// submission can still clean up. After a finalize attempt a TOKEN_INVALID
// answer means the draft was already committed, not orphaned.
func (s *IntakeSubmitter) rollback(ctx context.Context, receipt *DraftReceipt, cause error, finalizing bool) error {
	err := s.withTimeout(context.WithoutCancel(ctx), func(ctx context.Context) error {
		return s.client.DiscardApplication(ctx, receipt.ApplicantID, receipt.AttachmentToken)
	})
	var apiErr *APIError
	if finalizing && errors.As(err, &apiErr) && apiErr.Code == domain.CodeTokenInvalid {
		return &UnconfirmedSubmissionError{ApplicantID: receipt.ApplicantID, Cause: cause}
	}
	if err != nil {
		return &OrphanDraftError{ApplicantID: receipt.ApplicantID, Cause: cause, DiscardErr: err}
	}
	return &RolledBackError{Cause: cause}
}

func (s *IntakeSubmitter) withTimeout(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.requestTimeout)
	defer cancel()
	return fn(ctx)
}
