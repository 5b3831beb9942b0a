// Package client talks to the recruitment pipeline HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"recruit-pipeline/domain"
)

// APIError is a non-2xx answer carrying the server's error envelope.
type APIError struct {
	Status  int               `json:"-"`
	Code    string            `json:"error_code"`
	Message string            `json:"error"`
	Details map[string]string `json:"details"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Localized())
}

var messages = map[string]string{
	domain.CodeValidation:            "Please check the highlighted fields.",
	domain.CodeNotInInterviewPool:    "The candidate is no longer in the interview pool.",
	domain.CodeNotInPassedPool:       "The candidate is no longer in the passed pool.",
	domain.CodeFlowClosed:            "This interview flow is already closed.",
	domain.CodeNotScheduled:          "No interview is scheduled for this candidate.",
	domain.CodeNotScheduledForResult: "Schedule the interview before recording its result.",
	domain.CodeRoundLimitReached:     "The last interview round has been reached.",
	domain.CodeOfferNotIssued:        "The offer has not been issued yet.",
	domain.CodeOfferStatusLocked:     "Onboarded hires can no longer be changed.",
	domain.CodeOfferStatusUnchanged:  "The offer already has this status.",
	domain.CodeAttachmentsIncomplete: "Some required attachments are missing.",
	domain.CodeTokenMissing:          "The upload session is missing, please submit again.",
	domain.CodeTokenInvalid:          "The upload session is no longer valid, please submit again.",
	domain.CodeTokenExpired:          "The upload session expired, please submit again.",
	domain.CodeBlobStoreUnavailable:  "File storage is unavailable, please try again later.",
	domain.CodeStorageUnavailable:    "The service is temporarily unavailable.",
	domain.CodeRateLimited:           "Too many submissions, please wait a minute.",
}

// Localized returns the operator-facing text for the error code, falling back
// to the server's own message.
func (e *APIError) Localized() string {
	if msg, ok := messages[e.Code]; ok {
		return msg
	}
	return e.Message
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

type Option func(*Client)

func WithOperatorToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{baseURL: strings.TrimRight(baseURL, "/"), http: &http.Client{Timeout: time.Minute}}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type request struct {
	method  string
	path    string
	query   url.Values
	body    io.Reader
	ctype   string
	headers map[string]string
}

func jsonRequest(method, path string, payload any) (request, error) {
	r := request{method: method, path: path}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return r, err
		}
		r.body = bytes.NewReader(raw)
		r.ctype = "application/json"
	}
	return r, nil
}

func (c *Client) do(ctx context.Context, r request, out any) error {
	u := c.baseURL + r.path
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, r.method, u, r.body)
	if err != nil {
		return err
	}
	if r.ctype != "" {
		req.Header.Set("Content-Type", r.ctype)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		if json.Unmarshal(raw, apiErr) != nil || apiErr.Code == "" {
			apiErr.Code = "HTTP_" + strconv.Itoa(resp.StatusCode)
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", r.method, r.path, err)
	}
	return nil
}

func (c *Client) call(ctx context.Context, method, path string, payload, out any) error {
	r, err := jsonRequest(method, path, payload)
	if err != nil {
		return err
	}
	return c.do(ctx, r, out)
}

// Applicant intake.

type DraftReceipt struct {
	ApplicantID     uint      `json:"applicantId"`
	AttachmentToken string    `json:"attachmentToken"`
	ExpiresAt       time.Time `json:"expiresAt"`
}

type File struct {
	Name string
	Data []byte
}

func (c *Client) CreateApplication(ctx context.Context, form any) (*DraftReceipt, error) {
	var out DraftReceipt
	if err := c.call(ctx, http.MethodPost, "/api/applications", form, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UploadAttachments(ctx context.Context, id uint, token string, category domain.AttachmentCategory, files []File) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("category", string(category)); err != nil {
		return err
	}
	for _, f := range files {
		fw, err := mw.CreateFormFile("file", f.Name)
		if err != nil {
			return err
		}
		if _, err := fw.Write(f.Data); err != nil {
			return err
		}
	}
	if err := mw.Close(); err != nil {
		return err
	}
	return c.do(ctx, request{
		method:  http.MethodPost,
		path:    fmt.Sprintf("/api/applications/%d/attachments", id),
		body:    &buf,
		ctype:   mw.FormDataContentType(),
		headers: map[string]string{"X-Application-Token": token},
	}, nil)
}

func (c *Client) tokenCall(ctx context.Context, path, token string, out any) error {
	return c.do(ctx, request{
		method:  http.MethodPost,
		path:    path,
		headers: map[string]string{"X-Application-Token": token},
	}, out)
}

func (c *Client) FinalizeApplication(ctx context.Context, id uint, token string) error {
	return c.tokenCall(ctx, fmt.Sprintf("/api/applications/%d/finalize", id), token, nil)
}

func (c *Client) DiscardApplication(ctx context.Context, id uint, token string) error {
	return c.tokenCall(ctx, fmt.Sprintf("/api/applications/%d/discard", id), token, nil)
}

// Operator endpoints.

type CandidatePage struct {
	Results []domain.Candidate `json:"results"`
	Count   int64              `json:"count"`
}

type ApplicantPage struct {
	Results []domain.Applicant `json:"results"`
	Count   int64              `json:"count"`
}

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

type LogPage struct {
	Results  []domain.OperationLog `json:"results"`
	Next     string                `json:"next"`
	Previous string                `json:"previous"`
}

type LogFilters struct {
	Module   string
	Action   string
	Result   string
	Operator string
	DateFrom string
	DateTo   string
}

func (f LogFilters) values() url.Values {
	v := url.Values{}
	set := func(k, val string) {
		if val != "" {
			v.Set(k, val)
		}
	}
	set("module", f.Module)
	set("action", f.Action)
	set("result", f.Result)
	set("operator", f.Operator)
	set("date_from", f.DateFrom)
	set("date_to", f.DateTo)
	return v
}

func (c *Client) ListApplicants(ctx context.Context, lifecycle domain.Lifecycle, page, pageSize int) (*ApplicantPage, error) {
	q := url.Values{"page": {strconv.Itoa(page)}, "page_size": {strconv.Itoa(pageSize)}}
	if lifecycle != "" {
		q.Set("lifecycle", string(lifecycle))
	}
	var out ApplicantPage
	if err := c.do(ctx, request{method: http.MethodGet, path: "/admin/applicants", query: q}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListCandidates(ctx context.Context, pool domain.Pool, page, pageSize int) (*CandidatePage, error) {
	q := url.Values{"pool": {string(pool)}, "page": {strconv.Itoa(page)}, "page_size": {strconv.Itoa(pageSize)}}
	var out CandidatePage
	if err := c.do(ctx, request{method: http.MethodGet, path: "/admin/candidates", query: q}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type candidateEnvelope struct {
	Message   string            `json:"message"`
	Candidate *domain.Candidate `json:"candidate"`
}

func (c *Client) candidateCall(ctx context.Context, id uint, action string, payload any) (*domain.Candidate, error) {
	var out candidateEnvelope
	if err := c.call(ctx, http.MethodPost, fmt.Sprintf("/admin/candidates/%d/%s", id, action), payload, &out); err != nil {
		return nil, err
	}
	return out.Candidate, nil
}

type ScheduleRequest struct {
	At           time.Time `json:"at"`
	Interviewers []string  `json:"interviewers,omitempty"`
	Location     string    `json:"location,omitempty"`
	Note         string    `json:"note,omitempty"`
	Round        int       `json:"round,omitempty"`
	Notify       *bool     `json:"notify,omitempty"`
}

func (c *Client) Schedule(ctx context.Context, id uint, req ScheduleRequest) (*domain.Candidate, error) {
	return c.candidateCall(ctx, id, "schedule", req)
}

func (c *Client) CancelSchedule(ctx context.Context, id uint) (*domain.Candidate, error) {
	return c.candidateCall(ctx, id, "cancel", nil)
}

type ResultRequest struct {
	Result domain.InterviewResult    `json:"result"`
	Scores []domain.InterviewerScore `json:"interviewer_scores"`
	Note   string                    `json:"note,omitempty"`
}

func (c *Client) RecordResult(ctx context.Context, id uint, req ResultRequest) (*domain.Candidate, error) {
	return c.candidateCall(ctx, id, "result", req)
}

func (c *Client) ResendNotification(ctx context.Context, id uint) (*domain.Candidate, error) {
	return c.candidateCall(ctx, id, "resend-notification", nil)
}

func (c *Client) ChangeOfferStatus(ctx context.Context, id uint, status domain.OfferStatus) (*domain.Candidate, error) {
	return c.candidateCall(ctx, id, "offer-status", map[string]any{"status": status})
}

func (c *Client) transfer(ctx context.Context, path string, ids []uint) (*TransferResult, error) {
	var out TransferResult
	if err := c.call(ctx, http.MethodPost, path, map[string]any{"ids": ids}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AddApplicantsToInterview(ctx context.Context, ids []uint) (*TransferResult, error) {
	return c.transfer(ctx, "/admin/pools/interview/from-applicants", ids)
}

func (c *Client) AddApplicantsToTalent(ctx context.Context, ids []uint) (*TransferResult, error) {
	return c.transfer(ctx, "/admin/pools/talent/from-applicants", ids)
}

func (c *Client) MoveTalentToInterview(ctx context.Context, ids []uint) (*TransferResult, error) {
	return c.transfer(ctx, "/admin/pools/interview/from-talent", ids)
}

func (c *Client) Promote(ctx context.Context, ids []uint) (*TransferResult, error) {
	return c.transfer(ctx, "/admin/pools/promote", ids)
}

func (c *Client) RemoveFromInterview(ctx context.Context, ids []uint) (*RemoveResult, error) {
	var out RemoveResult
	if err := c.call(ctx, http.MethodPost, "/admin/pools/interview/remove", map[string]any{"ids": ids}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) offers(ctx context.Context, step string, ids []uint) (*OfferBatchResult, error) {
	var out OfferBatchResult
	if err := c.call(ctx, http.MethodPost, "/admin/offers/"+step, map[string]any{"ids": ids}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) IssueOffer(ctx context.Context, ids []uint) (*OfferBatchResult, error) {
	return c.offers(ctx, "issue", ids)
}

func (c *Client) ConfirmOnboard(ctx context.Context, ids []uint) (*OfferBatchResult, error) {
	return c.offers(ctx, "confirm-onboard", ids)
}

func (c *Client) CompleteOnboard(ctx context.Context, ids []uint) (*OfferBatchResult, error) {
	return c.offers(ctx, "complete-onboard", ids)
}

func (c *Client) ListOperationLogs(ctx context.Context, filters LogFilters, cursor string, pageSize int) (*LogPage, error) {
	q := filters.values()
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	if pageSize > 0 {
		q.Set("page_size", strconv.Itoa(pageSize))
	}
	var out LogPage
	if err := c.do(ctx, request{method: http.MethodGet, path: "/admin/operation-logs", query: q}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
