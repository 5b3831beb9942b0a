package interfaces

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"recruit-pipeline/domain"
	"recruit-pipeline/service"
)

type HTTPHandler struct {
	Intake    *service.Intake
	Pipeline  *service.Pipeline
	Audit     *service.AuditLog
	Reference *service.Reference
	Log       logrus.FieldLogger

	// MaxUploadBytes caps one multipart request body.
	MaxUploadBytes int64
}

type RouterOptions struct {
	OperatorTokens   map[string]string
	Limiter          RateLimiter
	IntakeRatePerMin int
}

func NewHTTPHandler(router *gin.Engine, h *HTTPHandler, opts RouterOptions) {
	useJSONFieldNames()
	if h.MaxUploadBytes <= 0 {
		h.MaxUploadBytes = 50 << 20
	}

	router.Use(RequestID(), AccessLog(h.Log), gin.Recovery())
	router.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	api := router.Group("/api")
	api.GET("/regions", h.ListRegions)
	api.GET("/jobs", h.ListJobs)
	apps := api.Group("/applications")
	apps.POST("", RateLimit(opts.Limiter, "intake", opts.IntakeRatePerMin, time.Minute), h.CreateApplication)
	apps.POST("/:id/attachments", h.UploadAttachments)
	apps.POST("/:id/discard", h.DiscardApplication)
	apps.POST("/:id/finalize", h.FinalizeApplication)

	admin := router.Group("/admin", OperatorAuth(opts.OperatorTokens))
	admin.GET("/applicants", h.ListApplicants)
	admin.GET("/applicants/:id", h.GetApplicant)
	admin.GET("/applicants/:id/attachments/:attachmentId", h.DownloadAttachment)

	admin.GET("/candidates", h.ListCandidates)
	admin.GET("/candidates/:id", h.GetCandidate)
	admin.POST("/candidates/:id/schedule", h.Schedule)
	admin.POST("/candidates/:id/cancel", h.CancelSchedule)
	admin.POST("/candidates/:id/result", h.RecordResult)
	admin.POST("/candidates/:id/resend-notification", h.ResendNotification)
	admin.POST("/candidates/:id/offer-status", h.ChangeOfferStatus)

	admin.POST("/pools/interview/from-applicants", h.batchTransfer(h.Pipeline.AddApplicantsToInterview))
	admin.POST("/pools/talent/from-applicants", h.batchTransfer(h.Pipeline.AddApplicantsToTalent))
	admin.POST("/pools/interview/from-talent", h.batchTransfer(h.Pipeline.MoveTalentToInterview))
	admin.POST("/pools/promote", h.batchTransfer(h.Pipeline.Promote))
	admin.POST("/pools/interview/remove", h.RemoveFromInterview)

	admin.POST("/offers/issue", h.batchOffer(h.Pipeline.IssueOffer))
	admin.POST("/offers/confirm-onboard", h.batchOffer(h.Pipeline.ConfirmOnboard))
	admin.POST("/offers/complete-onboard", h.batchOffer(h.Pipeline.CompleteOnboard))

	admin.GET("/operation-logs", h.ListOperationLogs)
	admin.POST("/jobs", h.CreateJob)
	admin.POST("/jobs/:id/active", h.SetJobActive)
}

func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(strings.TrimSpace(c.Param(name)), 10, 64)
	if err != nil || id == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorBody{Code: domain.CodeValidation, Message: "invalid id", Details: map[string]string{name: "invalid"}})
		return 0, false
	}
	return uint(id), true
}

func queryInt(c *gin.Context, name string) int {
	n, _ := strconv.Atoi(c.Query(name))
	return n
}
