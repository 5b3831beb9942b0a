package interfaces

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"recruit-pipeline/domain"
	"recruit-pipeline/service"
)

// CreateApplication is phase one: the form without files.
func (h *HTTPHandler) CreateApplication(c *gin.Context) {
	var in service.ApplicantInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondError(c, h.Log, bindError(err))
		return
	}
	receipt, err := h.Intake.CreateDraft(c.Request.Context(), in)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusCreated, receipt)
}

// UploadAttachments accepts multipart `category` plus one or more `file` parts.
func (h *HTTPHandler) UploadAttachments(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	token := c.GetHeader(headerToken)
	if token == "" {
		respondError(c, h.Log, domain.NewTokenError(domain.CodeTokenMissing, "attachment token is required"))
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadBytes+(1<<20))
	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(c, h.Log, domain.NewValidationError("upload too large", map[string]string{
				"file": fmt.Sprintf("request exceeds %d bytes", h.MaxUploadBytes),
			}))
			return
		}
		respondError(c, h.Log, domain.NewValidationError("invalid multipart body", map[string]string{"file": "required"}))
		return
	}

	category := domain.AttachmentCategory(firstValue(form.Value["category"]))
	files, err := readFiles(form.File["file"])
	if err != nil {
		respondError(c, h.Log, domain.NewValidationError("unreadable file", map[string]string{"file": err.Error()}))
		return
	}

	atts, err := h.Intake.UploadAttachments(c.Request.Context(), id, token, category, files)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "attachments uploaded", "attachments": atts})
}

func firstValue(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

func readFiles(headers []*multipart.FileHeader) ([]service.UploadFile, error) {
	files := make([]service.UploadFile, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, err
		}
		files = append(files, service.UploadFile{
			FileName:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		})
	}
	return files, nil
}

// DiscardApplication rolls back a draft created by CreateApplication.
func (h *HTTPHandler) DiscardApplication(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.Intake.Discard(c.Request.Context(), id, c.GetHeader(headerToken)); err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "application discarded"})
}

func (h *HTTPHandler) FinalizeApplication(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	a, err := h.Intake.Finalize(c.Request.Context(), id, c.GetHeader(headerToken))
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "application submitted", "applicant": a})
}

func (h *HTTPHandler) ListApplicants(c *gin.Context) {
	page, err := h.Intake.ListApplicants(c.Request.Context(), service.ApplicantQuery{
		Lifecycle: domain.Lifecycle(c.Query("lifecycle")),
		Page:      queryInt(c, "page"),
		PageSize:  queryInt(c, "page_size"),
	})
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *HTTPHandler) GetApplicant(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	a, err := h.Intake.GetApplicant(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *HTTPHandler) DownloadAttachment(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	attID, ok := paramID(c, "attachmentId")
	if !ok {
		return
	}
	att, data, err := h.Intake.OpenAttachment(c.Request.Context(), id, attID)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	contentType := att.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", att.FileName))
	c.Data(http.StatusOK, contentType, data)
}
