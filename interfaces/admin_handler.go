package interfaces

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"recruit-pipeline/domain"
	"recruit-pipeline/service"
)

const dateLayout = "2006-01-02"

func parseDay(c *gin.Context, name string, fields map[string]string) *time.Time {
	raw := c.Query(name)
	if raw == "" {
		return nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		fields[name] = "must be a date (YYYY-MM-DD)"
		return nil
	}
	return &t
}

func (h *HTTPHandler) ListOperationLogs(c *gin.Context) {
	fields := map[string]string{}
	q := service.AuditQuery{
		Module:   c.Query("module"),
		Action:   c.Query("action"),
		Result:   c.Query("result"),
		Operator: c.Query("operator"),
		DateFrom: parseDay(c, "date_from", fields),
		DateTo:   parseDay(c, "date_to", fields),
		Cursor:   c.Query("cursor"),
		PageSize: queryInt(c, "page_size"),
	}
	if q.DateFrom != nil && q.DateTo != nil && q.DateTo.Before(*q.DateFrom) {
		fields["date_to"] = "must not be before date_from"
	}
	if len(fields) > 0 {
		respondError(c, h.Log, domain.NewValidationError("invalid filters", fields))
		return
	}
	page, err := h.Audit.List(c.Request.Context(), q)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *HTTPHandler) ListRegions(c *gin.Context) {
	regions, err := h.Reference.Regions(c.Request.Context())
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": regions})
}

// ListJobs serves open jobs, optionally of one region.
func (h *HTTPHandler) ListJobs(c *gin.Context) {
	var regionID uint64
	if raw := c.Query("region_id"); raw != "" {
		var err error
		if regionID, err = strconv.ParseUint(raw, 10, 64); err != nil {
			respondError(c, h.Log, domain.NewValidationError("invalid filters", map[string]string{"region_id": "invalid"}))
			return
		}
	}
	jobs, err := h.Reference.Jobs(c.Request.Context(), uint(regionID), true)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": jobs})
}

func (h *HTTPHandler) CreateJob(c *gin.Context) {
	var in service.JobInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondError(c, h.Log, bindError(err))
		return
	}
	job, err := h.Reference.CreateJob(c.Request.Context(), actorOf(c), in)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusCreated, job)
}

type jobActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

func (h *HTTPHandler) SetJobActive(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req jobActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.Log, bindError(err))
		return
	}
	job, err := h.Reference.SetJobActive(c.Request.Context(), actorOf(c), id, *req.Active)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, job)
}
