package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"belgian-housing-api/middleware"
	"belgian-housing-api/models"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const (
	codeNotFound         = "not_found"
	codeInvalidQuery     = "invalid_query"
	codeInsufficientData = "insufficient_data"
	codeLoadError        = "load_error"
	codeBadRequest       = "bad_request"
	codeUnauthorized     = "unauthorized"
	codeUnavailable      = "unavailable"
	codeInternal         = "internal"
)

func respond(c *gin.Context, status int, body gin.H) {
	body["success"] = true
	c.JSON(status, body)
}

func fail(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "error": msg, "code": code})
}

// writeError maps the error taxonomy to a status code. Anything outside it is
// logged and answered with a generic 500.
func writeError(c *gin.Context, log *zap.Logger, err error) {
	var lerr *models.LoadError
	switch {
	case models.IsNotFound(err):
		fail(c, http.StatusNotFound, codeNotFound, err.Error())
	case models.IsInvalidQuery(err):
		fail(c, http.StatusBadRequest, codeInvalidQuery, err.Error())
	case models.IsInsufficientData(err):
		fail(c, http.StatusUnprocessableEntity, codeInsufficientData, err.Error())
	case errors.As(err, &lerr):
		body := gin.H{"success": false, "error": lerr.Error(), "code": codeLoadError, "source": lerr.Source}
		if lerr.Row > 0 {
			body["row"] = lerr.Row
		}
		if lerr.Column != "" {
			body["column"] = lerr.Column
		}
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, body)
	default:
		log.Error("request failed",
			zap.String("request_id", middleware.GetRequestID(c)),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, codeInternal, "internal server error")
	}
}

// bindError answers 400 for a request that failed gin binding.
func bindError(c *gin.Context, err error) {
	fail(c, http.StatusBadRequest, codeBadRequest, validationMessage(err))
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid request: " + err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "min":
			msgs = append(msgs, fmt.Sprintf("%s must be at least %s", field, fe.Param()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s", field, fe.Param()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", ")))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid (%s)", field, fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}
