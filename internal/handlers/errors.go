package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/justsurfingit/resume-builder/internal/services"
	"github.com/justsurfingit/resume-builder/pkg/resume"
	"go.uber.org/zap"
)

type apiError struct {
	err    error
	status int
	code   string
}

var apiErrors = []apiError{
	{services.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
	{services.ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
	{services.ErrResumeLocked, http.StatusForbidden, "RESUME_LOCKED"},
	{services.ErrSlugTaken, http.StatusConflict, "RESUME_SLUG_ALREADY_EXISTS"},
	{services.ErrNeedPassword, http.StatusUnauthorized, "NEED_PASSWORD"},
	{services.ErrInvalidPassword, http.StatusUnauthorized, "INVALID_PASSWORD"},
	{services.ErrInvalidCredentials, http.StatusUnauthorized, "INVALID_CREDENTIALS"},
	{services.ErrTwoFactorRequired, http.StatusUnauthorized, "TWO_FACTOR_REQUIRED"},
	{services.ErrInvalidCode, http.StatusBadRequest, "INVALID_CODE"},
	{services.ErrEmailTaken, http.StatusConflict, "EMAIL_ALREADY_EXISTS"},
	{services.ErrUsernameTaken, http.StatusConflict, "USERNAME_ALREADY_EXISTS"},
	{services.ErrInvalidFile, http.StatusBadRequest, "INVALID_FILE"},
	{services.ErrUnsupportedProvider, http.StatusBadRequest, "UNSUPPORTED_PROVIDER"},
	{services.ErrDisabled, http.StatusNotImplemented, "DISABLED"},
	{services.ErrInvalidInput, http.StatusBadRequest, "BAD_REQUEST"},
}

// respondError writes err as {"error", "code", "data"}. Unknown errors are
// logged and answered with a generic 500.
func respondError(c *gin.Context, log *zap.Logger, err error) {
	var verr *resume.ValidationError
	if errors.As(err, &verr) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error": verr.Error(),
			"code":  "INVALID_RESUME_DATA",
			"data":  gin.H{"problems": verr.Problems},
		})
		return
	}

	for _, e := range apiErrors {
		if !errors.Is(err, e.err) {
			continue
		}
		body := gin.H{"error": err.Error(), "code": e.code}
		var need *services.NeedPasswordError
		if errors.As(err, &need) {
			body["data"] = gin.H{"username": need.Username, "slug": need.Slug}
		}
		c.AbortWithStatusJSON(e.status, body)
		return
	}

	log.Error("request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
		"error": "Something went wrong",
		"code":  "INTERNAL_SERVER_ERROR",
	})
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
		"error": "Invalid JSON format: " + err.Error(),
		"code":  "BAD_REQUEST",
	})
}
