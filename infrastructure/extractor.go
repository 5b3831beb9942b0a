package infrastructure

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/sirupsen/logrus"
	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"
)

// maxResumeText bounds how much extracted text is kept on the applicant row.
const maxResumeText = 64 << 10

const (
	mimePDF  = "application/pdf"
	mimeDocx = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimeText = "text/plain"
)

// TextExtractor pulls plain text out of uploaded resumes.
type TextExtractor struct {
	log logrus.FieldLogger
}

func NewTextExtractor(log logrus.FieldLogger) *TextExtractor {
	return &TextExtractor{log: log}
}

// Extract picks a parser from the content type, falling back to the file extension.
func (e *TextExtractor) Extract(data []byte, filename, contentType string) (string, error) {
	kind := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		kind = mimePDF
	case ".docx":
		kind = mimeDocx
	case ".txt":
		kind = mimeText
	}

	var (
		text string
		err  error
	)
	switch kind {
	case mimeText:
		text = string(data)
	case mimePDF:
		text, err = e.extractPDF(data)
	case mimeDocx:
		text, err = extractDocx(data)
	default:
		return "", fmt.Errorf("unsupported file type: %s", contentType)
	}
	if err != nil {
		return "", err
	}
	return clampText(text, maxResumeText), nil
}

// clampText returns valid UTF-8 of at most max bytes, cut on a rune boundary.
func clampText(text string, max int) string {
	text = strings.TrimSpace(strings.ToValidUTF8(text, "\uFFFD"))
	if len(text) <= max {
		return text
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}

// extractPDF tries unipdf first and ledongthuc/pdf second.
func (e *TextExtractor) extractPDF(data []byte) (string, error) {
	text, err := extractPDFUnipdf(data)
	if err == nil && text != "" {
		return text, nil
	}
	e.log.WithError(err).Debug("unipdf extraction failed, trying fallback reader")

	text, fallbackErr := extractPDFPlain(data)
	if fallbackErr != nil {
		return "", fmt.Errorf("failed to extract pdf text: %w", fallbackErr)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("no text could be extracted from any page of the PDF")
	}
	return text, nil
}

func extractPDFUnipdf(data []byte) (string, error) {
	pdfReader, err := model.NewPdfReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to read PDF: %w", err)
	}

	numPages, err := pdfReader.GetNumPages()
	if err != nil {
		return "", fmt.Errorf("failed to get page count: %w", err)
	}
	if numPages == 0 {
		return "", fmt.Errorf("PDF has no pages")
	}

	var sb strings.Builder
	for i := 1; i <= numPages; i++ {
		page, err := pdfReader.GetPage(i)
		if err != nil {
			continue
		}
		ex, err := extractor.New(page)
		if err != nil {
			continue
		}
		pageText, err := ex.ExtractText()
		if err != nil || pageText == "" {
			continue
		}
		sb.WriteString(pageText)
		sb.WriteString("\n\n")
	}
	return sb.String(), nil
}

func extractPDFPlain(data []byte) (string, error) {
	r := bytes.NewReader(data)
	pdfReader, err := pdf.NewReader(r, int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to read pdf: %w", err)
	}
	var sb strings.Builder
	for i := 1; i <= pdfReader.NumPage(); i++ {
		page := pdfReader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, _ := page.GetPlainText(nil)
		sb.WriteString(text)
	}
	return sb.String(), nil
}

func extractDocx(data []byte) (string, error) {
	doc, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to parse docx: %w", err)
	}
	defer doc.Close()
	return doc.Editable().GetContent(), nil
}
