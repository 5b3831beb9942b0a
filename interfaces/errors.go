package interfaces

import (
	"errors"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"recruit-pipeline/domain"
)

type errorBody struct {
	Code    string            `json:"error_code"`
	Message string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`
}

func statusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindToken:
		return http.StatusUnauthorized
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindConflict:
		return http.StatusConflict
	case domain.KindUpstream:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// respondError writes the error envelope. Unclassified errors are logged and
// reported without their text.
func respondError(c *gin.Context, log logrus.FieldLogger, err error) {
	var de *domain.Error
	if !errors.As(err, &de) {
		log.WithError(err).WithField("path", c.FullPath()).Error("unhandled error")
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody{Code: "INTERNAL_ERROR", Message: "internal server error"})
		return
	}
	if de.Kind == domain.KindUpstream {
		log.WithError(err).WithField("code", de.Code).Warn("upstream failure")
	}
	c.AbortWithStatusJSON(statusFor(de.Kind), errorBody{Code: de.Code, Message: de.Message, Details: de.Fields})
}

// bindError turns a gin binding failure into a field-keyed validation error.
func bindError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
		return domain.NewValidationError("invalid request", fields)
	}
	return domain.NewValidationError("invalid request body", map[string]string{"body": err.Error()})
}

var registerNames sync.Once

// useJSONFieldNames makes gin's validator report json names, so details keys
// match request fields.
func useJSONFieldNames() {
	registerNames.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
}
