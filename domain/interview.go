package domain

import (
	"fmt"
	"strings"
	"time"
)

type ScheduleRequest struct {
	At           time.Time
	Interviewers []string
	Location     string
	Note         string
	// Round overrides the suggested round when non-zero.
	Round int
}

// FlowClosed reports whether the interview flow reached a terminal result.
func (c *Candidate) FlowClosed() bool {
	return c.Status == StatusCompleted && (c.Result == ResultPass || c.Result == ResultReject)
}

// SuggestRound returns the round the next schedule should use: one past the
// current round when it ended in next_round, never beyond maxRound.
func (c *Candidate) SuggestRound(maxRound int) int {
	round := c.currentRound()
	if c.Status == StatusCompleted && c.Result == ResultNextRound && round < maxRound {
		round++
	}
	return round
}

// Schedule books or reschedules an interview. Rounds advance here, not when
// the result is recorded.
func (c *Candidate) Schedule(req ScheduleRequest, now time.Time, maxRound int) error {
	if c.Pool != PoolInterview {
		return NewConflictError(CodeNotInInterviewPool, "candidate is not in the interview pool")
	}
	if c.FlowClosed() {
		return NewConflictError(CodeFlowClosed, "interview flow already closed")
	}

	fields := map[string]string{}
	if req.At.IsZero() {
		fields["interview_at"] = "required"
	} else if !req.At.After(now) {
		fields["interview_at"] = "must be in the future"
	}
	names, msg := normalizeNames(req.Interviewers)
	if msg != "" {
		fields["interviewers"] = msg
	}
	round := c.SuggestRound(maxRound)
	if req.Round != 0 {
		if req.Round < c.currentRound() || req.Round > maxRound {
			fields["round"] = fmt.Sprintf("must be between %d and %d", c.currentRound(), maxRound)
		} else {
			round = req.Round
		}
	}
	if len(fields) > 0 {
		return NewValidationError("invalid interview schedule", fields)
	}

	if c.Status == StatusCompleted {
		c.Result = ResultPending
		c.Scores = nil
		c.ResultNote = ""
		c.ResultAt = nil
	}
	at := req.At.UTC()
	c.Round = round
	c.InterviewAt = &at
	c.Interviewers = names
	c.Location = strings.TrimSpace(req.Location)
	c.ScheduleNote = strings.TrimSpace(req.Note)
	c.Status = StatusScheduled
	return nil
}

// Cancel drops the current schedule. Round and pool are untouched.
func (c *Candidate) Cancel() error {
	if c.Pool != PoolInterview {
		return NewConflictError(CodeNotInInterviewPool, "candidate is not in the interview pool")
	}
	if c.Status != StatusScheduled {
		return NewConflictError(CodeNotScheduled, "no interview is scheduled")
	}
	c.clearSchedule()
	c.Status = StatusPending
	c.Notification.Reset()
	return nil
}

// RecordResult closes the scheduled round and returns the round snapshot to persist.
// Nothing is mutated when validation fails.
func (c *Candidate) RecordResult(result InterviewResult, scores []InterviewerScore, note string, now time.Time, maxRound int) (*RoundRecord, error) {
	if c.Pool != PoolInterview {
		return nil, NewConflictError(CodeNotInInterviewPool, "candidate is not in the interview pool")
	}
	if c.Status != StatusScheduled {
		return nil, NewConflictError(CodeNotScheduledForResult, "schedule an interview before recording its result")
	}

	fields := map[string]string{}
	switch result {
	case ResultNextRound, ResultPass, ResultReject:
	default:
		fields["result"] = "must be one of next_round, pass, reject"
	}
	cleaned, msg := validateScores(scores)
	if msg != "" {
		fields["interviewer_scores"] = msg
	}
	if len(fields) > 0 {
		return nil, NewValidationError("invalid interview result", fields)
	}
	if result == ResultNextRound && c.currentRound() >= maxRound {
		return nil, NewConflictError(CodeRoundLimitReached, fmt.Sprintf("round %d is the last round", maxRound))
	}

	note = strings.TrimSpace(note)
	record := &RoundRecord{
		CandidateID:  c.ID,
		RoundNo:      c.currentRound(),
		InterviewAt:  c.InterviewAt,
		Interviewers: c.Interviewers,
		Scores:       cleaned,
		Result:       result,
		ResultNote:   note,
		RecordedAt:   now,
	}

	c.Round = c.currentRound()
	c.Result = result
	c.Scores = cleaned
	c.ResultNote = note
	c.ResultAt = &now
	c.Status = StatusCompleted
	c.clearSchedule()
	return record, nil
}

// ResendNotification re-arms delivery for the current schedule without touching it.
func (c *Candidate) ResendNotification(now time.Time) error {
	if c.Pool != PoolInterview {
		return NewConflictError(CodeNotInInterviewPool, "candidate is not in the interview pool")
	}
	if c.Status != StatusScheduled {
		return NewConflictError(CodeNotScheduled, "no interview is scheduled")
	}
	c.Notification.MarkSending(now, true)
	return nil
}

func normalizeNames(raw []string) ([]string, string) {
	seen := make(map[string]bool, len(raw))
	names := make([]string, 0, len(raw))
	for _, n := range raw {
		name := strings.TrimSpace(n)
		if name == "" {
			return nil, "interviewer names must not be blank"
		}
		key := strings.ToLower(name)
		if seen[key] {
			return nil, fmt.Sprintf("duplicate interviewer %q", name)
		}
		seen[key] = true
		names = append(names, name)
	}
	return names, ""
}

func validateScores(scores []InterviewerScore) ([]InterviewerScore, string) {
	if len(scores) == 0 {
		return nil, "at least one interviewer score is required"
	}
	names := make([]string, len(scores))
	for i, s := range scores {
		names[i] = s.Interviewer
	}
	cleanNames, msg := normalizeNames(names)
	if msg != "" {
		return nil, msg
	}
	out := make([]InterviewerScore, len(scores))
	for i, s := range scores {
		if s.Score < 0 || s.Score > 100 {
			return nil, fmt.Sprintf("score for %q must be between 0 and 100", cleanNames[i])
		}
		out[i] = InterviewerScore{Interviewer: cleanNames[i], Score: s.Score}
	}
	return out, ""
}
