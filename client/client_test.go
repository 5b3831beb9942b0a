package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recruit-pipeline/domain"
	"recruit-pipeline/pagination"
	"recruit-pipeline/refresh"
)

// fakeAPI is a scripted server that counts hits per route pattern.
type fakeAPI struct {
	mu   sync.Mutex
	hits map[string]int
	mux  *http.ServeMux
}

func newFakeAPI(t *testing.T) (*fakeAPI, *Client) {
	t.Helper()
	f := &fakeAPI{hits: map[string]int{}, mux: http.NewServeMux()}
	srv := httptest.NewServer(f.mux)
	t.Cleanup(srv.Close)
	return f, New(srv.URL, WithOperatorToken("secret"))
}

func (f *fakeAPI) handle(pattern string, fn http.HandlerFunc) {
	f.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.hits[pattern]++
		f.mu.Unlock()
		fn(w, r)
	})
}

func (f *fakeAPI) count(pattern string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[pattern]
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func envelope(code, msg string) map[string]any {
	return map[string]any{"error_code": code, "error": msg}
}

func TestAPIErrorIsLocalized(t *testing.T) {
	f, c := newFakeAPI(t)
	f.handle("POST /admin/candidates/{id}/cancel", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusConflict, envelope(domain.CodeNotScheduled, "interview is not scheduled"))
	})

	_, err := c.CancelSchedule(context.Background(), 3)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.Equal(t, domain.CodeNotScheduled, apiErr.Code)
	assert.Equal(t, "No interview is scheduled for this candidate.", apiErr.Localized())
}

func TestAPIErrorFallsBackToServerMessage(t *testing.T) {
	f, c := newFakeAPI(t)
	f.handle("POST /admin/candidates/{id}/cancel", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, envelope(domain.CodeCandidateNotFound, "candidate not found"))
	})
	f.handle("POST /admin/candidates/{id}/schedule", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	})

	_, err := c.CancelSchedule(context.Background(), 3)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "candidate not found", apiErr.Localized())

	_, err = c.Schedule(context.Background(), 3, ScheduleRequest{At: time.Now().Add(time.Hour)})
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "HTTP_502", apiErr.Code)
	assert.Equal(t, "bad gateway", apiErr.Message)
}

func intakeRoutes(f *fakeAPI, failCategory domain.AttachmentCategory, discardStatus int) {
	f.handle("POST /api/applications", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, map[string]any{"applicantId": 41, "attachmentToken": "tok"})
	})
	f.handle("POST /api/applications/{id}/attachments", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Application-Token") != "tok" {
			writeJSON(w, http.StatusUnauthorized, envelope(domain.CodeTokenMissing, "missing"))
			return
		}
		if domain.AttachmentCategory(r.FormValue("category")) == failCategory {
			writeJSON(w, http.StatusBadGateway, envelope(domain.CodeBlobStoreUnavailable, "store down"))
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"message": "uploaded"})
	})
	f.handle("POST /api/applications/{id}/finalize", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"message": "submitted"})
	})
	f.handle("POST /api/applications/{id}/discard", func(w http.ResponseWriter, r *http.Request) {
		if discardStatus != http.StatusOK {
			writeJSON(w, discardStatus, envelope(domain.CodeStorageUnavailable, "db down"))
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"message": "discarded"})
	})
}

func fullSubmission() Submission {
	files := map[domain.AttachmentCategory][]File{}
	for _, c := range domain.RequiredCategories {
		files[c] = []File{{Name: string(c) + ".txt", Data: []byte(c)}}
	}
	return Submission{Form: map[string]any{"name": "Ann Lee"}, Files: files}
}

func TestSubmitSucceeds(t *testing.T) {
	f, c := newFakeAPI(t)
	intakeRoutes(f, "", http.StatusOK)

	receipt, err := NewIntakeSubmitter(c, 0, time.Second).Submit(context.Background(), fullSubmission())
	require.NoError(t, err)
	assert.Equal(t, uint(41), receipt.ApplicantID)
	assert.Equal(t, 4, f.count("POST /api/applications/{id}/attachments"))
	assert.Equal(t, 1, f.count("POST /api/applications/{id}/finalize"))
	assert.Zero(t, f.count("POST /api/applications/{id}/discard"))
}

func TestSubmitCreateFailureHasNothingToRollBack(t *testing.T) {
	f, c := newFakeAPI(t)
	f.handle("POST /api/applications", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error_code": domain.CodeValidation, "error": "invalid", "details": map[string]string{"phone": "required"},
		})
	})
	f.handle("POST /api/applications/{id}/discard", func(w http.ResponseWriter, r *http.Request) {})

	_, err := NewIntakeSubmitter(c, 2, time.Second).Submit(context.Background(), fullSubmission())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "required", apiErr.Details["phone"])
	assert.NotErrorIs(t, err, ErrRolledBack)
	assert.NotErrorIs(t, err, ErrOrphanDraft)
	assert.Zero(t, f.count("POST /api/applications/{id}/discard"))
}

func TestSubmitUploadFailureRollsBackOnce(t *testing.T) {
	f, c := newFakeAPI(t)
	intakeRoutes(f, domain.CategoryIDBack, http.StatusOK)

	_, err := NewIntakeSubmitter(c, 2, time.Second).Submit(context.Background(), fullSubmission())
	require.ErrorIs(t, err, ErrRolledBack)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, domain.CodeBlobStoreUnavailable, apiErr.Code)
	assert.Equal(t, 1, f.count("POST /api/applications/{id}/discard"))
	assert.Zero(t, f.count("POST /api/applications/{id}/finalize"))
}

func TestSubmitReportsOrphanWhenDiscardFails(t *testing.T) {
	f, c := newFakeAPI(t)
	intakeRoutes(f, domain.CategoryResume, http.StatusServiceUnavailable)

	_, err := NewIntakeSubmitter(c, 2, time.Second).Submit(context.Background(), fullSubmission())
	require.ErrorIs(t, err, ErrOrphanDraft)
	assert.NotErrorIs(t, err, ErrRolledBack)
	var orphan *OrphanDraftError
	require.ErrorAs(t, err, &orphan)
	assert.Equal(t, uint(41), orphan.ApplicantID)
	assert.Equal(t, 1, f.count("POST /api/applications/{id}/discard"))
}

func TestSubmitCommittedDraftIsNotReportedAsOrphan(t *testing.T) {
	f, c := newFakeAPI(t)
	f.handle("POST /api/applications", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, map[string]any{"applicantId": 41, "attachmentToken": "tok"})
	})
	f.handle("POST /api/applications/{id}/attachments", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"message": "uploaded"})
	})
	// the draft was committed but the answer never made it back
	f.handle("POST /api/applications/{id}/finalize", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream timed out", http.StatusGatewayTimeout)
	})
	f.handle("POST /api/applications/{id}/discard", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, envelope(domain.CodeTokenInvalid, "attachment token is invalid"))
	})

	_, err := NewIntakeSubmitter(c, 2, time.Second).Submit(context.Background(), fullSubmission())
	require.ErrorIs(t, err, ErrSubmissionUnconfirmed)
	assert.NotErrorIs(t, err, ErrOrphanDraft)
	assert.NotErrorIs(t, err, ErrRolledBack)
	var unconfirmed *UnconfirmedSubmissionError
	require.ErrorAs(t, err, &unconfirmed)
	assert.Equal(t, uint(41), unconfirmed.ApplicantID)
	assert.Equal(t, 1, f.count("POST /api/applications/{id}/discard"))
}

// logRoutes serves three pages of one row each: "" -> c2 -> c3.
func logRoutes(f *fakeAPI) {
	f.handle("GET /admin/operation-logs", func(w http.ResponseWriter, r *http.Request) {
		pages := map[string]LogPage{
			"":   {Results: []domain.OperationLog{{Action: "p1"}}, Next: "c2"},
			"c2": {Results: []domain.OperationLog{{Action: "p2"}}, Next: "c3", Previous: "c1"},
			"c3": {Results: []domain.OperationLog{{Action: "p3"}}, Previous: "c2"},
		}
		page, ok := pages[r.URL.Query().Get("cursor")]
		if !ok {
			writeJSON(w, http.StatusBadRequest, envelope(domain.CodeValidation, "bad cursor"))
			return
		}
		writeJSON(w, http.StatusOK, page)
	})
}

func TestBrowserRejectsUnknownPage(t *testing.T) {
	f, c := newFakeAPI(t)
	logRoutes(f)
	b := NewAuditLogBrowser(c, 10)

	_, err := b.Page(context.Background(), 3)
	assert.ErrorIs(t, err, pagination.ErrPageUnknown)
	assert.Zero(t, f.count("GET /admin/operation-logs"))

	page, err := b.Page(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "p1", page.Results[0].Action)
	assert.Equal(t, []int{1, 2}, b.KnownPages())
}

func TestBrowserSeeksForward(t *testing.T) {
	f, c := newFakeAPI(t)
	logRoutes(f)
	b := NewAuditLogBrowser(c, 10)

	page, err := b.SeekPage(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, "p3", page.Results[0].Action)
	assert.Equal(t, []int{1, 2, 3}, b.KnownPages())

	_, err = b.SeekPage(context.Background(), 5)
	assert.ErrorIs(t, err, pagination.ErrPageUnknown)
}

func TestBrowserFiltersResetIndex(t *testing.T) {
	f, c := newFakeAPI(t)
	logRoutes(f)
	b := NewAuditLogBrowser(c, 10)

	_, err := b.SeekPage(context.Background(), 3)
	require.NoError(t, err)
	b.SetFilters(LogFilters{Module: "interview"})
	assert.Equal(t, []int{1}, b.KnownPages())
}

func TestConsoleRejectNavigatesToTalent(t *testing.T) {
	f, c := newFakeAPI(t)
	f.handle("GET /admin/candidates", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, CandidatePage{
			Results: []domain.Candidate{{Pool: domain.Pool(r.URL.Query().Get("pool"))}},
			Count:   1,
		})
	})
	f.handle("POST /admin/candidates/{id}/result", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"message": "ok", "candidate": domain.Candidate{Pool: domain.PoolTalent}})
	})

	con := NewConsole(c, 20)
	cand, out, err := con.RecordResult(context.Background(), 9, ResultRequest{Result: domain.ResultReject})
	require.NoError(t, err)
	require.NoError(t, out.RefreshErr)
	assert.Equal(t, domain.PoolTalent, cand.Pool)
	assert.Equal(t, []refresh.View{refresh.ViewInterview, refresh.ViewTalent}, out.Plan.Views)
	assert.Equal(t, refresh.ViewTalent, out.Plan.Navigate)
	assert.Equal(t, 2, f.count("GET /admin/candidates"))

	talent, ok := con.View(refresh.ViewTalent).(*CandidatePage)
	require.True(t, ok)
	assert.Equal(t, domain.PoolTalent, talent.Results[0].Pool)
	assert.True(t, con.Coordinator().Interest().IsLoaded(refresh.ViewTalent))
}

func TestConsoleMutationErrorSkipsRefresh(t *testing.T) {
	f, c := newFakeAPI(t)
	f.handle("GET /admin/candidates", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, CandidatePage{})
	})
	f.handle("POST /admin/offers/issue", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, envelope(domain.CodeValidation, "ids required"))
	})

	con := NewConsole(c, 20)
	_, _, err := con.IssueOffer(context.Background(), nil)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Zero(t, f.count("GET /admin/candidates"))
}

func TestConsoleRefreshFailureKeepsMutationResult(t *testing.T) {
	f, c := newFakeAPI(t)
	f.handle("GET /admin/candidates", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusServiceUnavailable, envelope(domain.CodeStorageUnavailable, "down"))
	})
	f.handle("POST /admin/offers/issue", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, OfferBatchResult{Confirmed: 1, Total: 1})
	})

	con := NewConsole(c, 20)
	res, out, err := con.IssueOffer(context.Background(), []uint{1})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Confirmed)
	assert.Equal(t, []refresh.View{refresh.ViewPassed}, out.Plan.Views)
	var apiErr *APIError
	require.True(t, errors.As(out.RefreshErr, &apiErr))
	assert.Equal(t, domain.CodeStorageUnavailable, apiErr.Code)
}
