package interfaces

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"recruit-pipeline/domain"
	"recruit-pipeline/service"
)

func (h *HTTPHandler) ListCandidates(c *gin.Context) {
	page, err := h.Pipeline.ListCandidates(c.Request.Context(), service.CandidateQuery{
		Pool:        domain.Pool(c.Query("pool")),
		Status:      domain.InterviewStatus(c.Query("status")),
		OfferStatus: domain.OfferStatus(c.Query("offer_status")),
		Page:        queryInt(c, "page"),
		PageSize:    queryInt(c, "page_size"),
	})
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *HTTPHandler) GetCandidate(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	cand, err := h.Pipeline.GetCandidate(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"candidate": cand, "max_round": h.Pipeline.MaxRound()})
}

type scheduleRequest struct {
	At           time.Time `json:"at"`
	Interviewers []string  `json:"interviewers" binding:"max=10"`
	Location     string    `json:"location" binding:"max=255"`
	Note         string    `json:"note" binding:"max=2000"`
	Round        int       `json:"round" binding:"min=0"`
	// Notify defaults to true when omitted.
	Notify *bool `json:"notify"`
}

func (h *HTTPHandler) Schedule(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req scheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.Log, bindError(err))
		return
	}
	notify := req.Notify == nil || *req.Notify
	cand, err := h.Pipeline.Schedule(c.Request.Context(), actorOf(c), id, service.ScheduleInput{
		ScheduleRequest: domain.ScheduleRequest{
			At:           req.At,
			Interviewers: req.Interviewers,
			Location:     req.Location,
			Note:         req.Note,
			Round:        req.Round,
		},
		Notify: notify,
	})
	h.candidateResponse(c, cand, err, "interview scheduled")
}

func (h *HTTPHandler) CancelSchedule(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	cand, err := h.Pipeline.Cancel(c.Request.Context(), actorOf(c), id)
	h.candidateResponse(c, cand, err, "interview cancelled")
}

type resultRequest struct {
	Result domain.InterviewResult    `json:"result" binding:"required"`
	Scores []domain.InterviewerScore `json:"interviewer_scores"`
	Note   string                    `json:"note" binding:"max=2000"`
}

func (h *HTTPHandler) RecordResult(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req resultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.Log, bindError(err))
		return
	}
	cand, err := h.Pipeline.RecordResult(c.Request.Context(), actorOf(c), id, service.ResultInput{
		Result: req.Result,
		Scores: req.Scores,
		Note:   req.Note,
	})
	h.candidateResponse(c, cand, err, "interview result recorded")
}

func (h *HTTPHandler) ResendNotification(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	cand, err := h.Pipeline.ResendNotification(c.Request.Context(), actorOf(c), id)
	h.candidateResponse(c, cand, err, "notification queued")
}

type offerStatusRequest struct {
	Status domain.OfferStatus `json:"status" binding:"required"`
}

func (h *HTTPHandler) ChangeOfferStatus(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req offerStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.Log, bindError(err))
		return
	}
	cand, err := h.Pipeline.ChangeOfferStatus(c.Request.Context(), actorOf(c), id, req.Status)
	h.candidateResponse(c, cand, err, "offer status updated")
}

func (h *HTTPHandler) candidateResponse(c *gin.Context, cand *domain.Candidate, err error, message string) {
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": message, "candidate": cand})
}

type idsRequest struct {
	IDs []uint `json:"ids"`
}

func (h *HTTPHandler) bindIDs(c *gin.Context) ([]uint, bool) {
	var req idsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.Log, bindError(err))
		return nil, false
	}
	return req.IDs, true
}

func (h *HTTPHandler) batchTransfer(run func(context.Context, service.Actor, []uint) (*service.TransferResult, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		ids, ok := h.bindIDs(c)
		if !ok {
			return
		}
		res, err := run(c.Request.Context(), actorOf(c), ids)
		if err != nil {
			respondError(c, h.Log, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

func (h *HTTPHandler) batchOffer(run func(context.Context, service.Actor, []uint) (*service.OfferBatchResult, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		ids, ok := h.bindIDs(c)
		if !ok {
			return
		}
		res, err := run(c.Request.Context(), actorOf(c), ids)
		if err != nil {
			respondError(c, h.Log, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

func (h *HTTPHandler) RemoveFromInterview(c *gin.Context) {
	ids, ok := h.bindIDs(c)
	if !ok {
		return
	}
	res, err := h.Pipeline.RemoveFromInterview(c.Request.Context(), actorOf(c), ids)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
