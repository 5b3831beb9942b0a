package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failure so the transport layer can map it to a status code.
type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindConflict   ErrorKind = "conflict"
	KindNotFound   ErrorKind = "not_found"
	KindUpstream   ErrorKind = "upstream"
	KindToken      ErrorKind = "token"
)

// Stable error codes surfaced to clients as error_code.
const (
	CodeValidation = "VALIDATION_ERROR"

	CodeNotInInterviewPool     = "CANDIDATE_NOT_IN_INTERVIEW_POOL"
	CodeNotInPassedPool        = "CANDIDATE_NOT_IN_PASSED_POOL"
	CodeFlowClosed             = "INTERVIEW_FLOW_CLOSED"
	CodeNotScheduled           = "INTERVIEW_NOT_SCHEDULED"
	CodeNotScheduledForResult  = "INTERVIEW_NOT_SCHEDULED_FOR_RESULT"
	CodeRoundLimitReached      = "INTERVIEW_ROUND_LIMIT_REACHED"
	CodeOfferNotIssued         = "OFFER_NOT_ISSUED"
	CodeOfferStatusLocked      = "OFFER_STATUS_LOCKED"
	CodeOfferStatusUnchanged   = "OFFER_STATUS_UNCHANGED"
	CodeApplicantNotDraft      = "APPLICANT_NOT_DRAFT"
	CodeAttachmentsIncomplete  = "ATTACHMENTS_INCOMPLETE"
	CodeApplicantNotFound      = "APPLICANT_NOT_FOUND"
	CodeCandidateNotFound      = "CANDIDATE_NOT_FOUND"
	CodeJobNotFound            = "JOB_NOT_FOUND"
	CodeTokenMissing           = "TOKEN_MISSING"
	CodeTokenInvalid           = "TOKEN_INVALID"
	CodeTokenExpired           = "TOKEN_EXPIRED"
	CodeStorageUnavailable     = "STORAGE_UNAVAILABLE"
	CodeBlobStoreUnavailable   = "BLOB_STORE_UNAVAILABLE"
	CodeNotificationFailed     = "NOTIFICATION_FAILED"
	CodeInvalidCursor          = "INVALID_CURSOR"
	CodeRateLimited            = "RATE_LIMITED"
)

// Error is the single error type returned by the pipeline and intake services.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
	Fields  map[string]string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func NewValidationError(message string, fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Code: CodeValidation, Message: message, Fields: fields}
}

func NewConflictError(code, message string) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: message}
}

func NewNotFoundError(code, message string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: message}
}

func NewUpstreamError(code, message string, err error) *Error {
	return &Error{Kind: KindUpstream, Code: code, Message: message, Err: err}
}

func NewTokenError(code, message string) *Error {
	return &Error{Kind: KindToken, Code: code, Message: message}
}

// KindOf returns the kind of the first *Error in err's chain, or "" when there is none.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

// CodeOf returns the stable code carried by err, or "" for foreign errors.
func CodeOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}
