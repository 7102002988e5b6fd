package common

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Fail writes the error body shape used across the API.
func Fail(c *gin.Context, status int, detail string) {
	c.JSON(status, gin.H{"detail": detail})
}

// FailErr maps a service error to an HTTP status. Upstream details are
// replaced with a generic notice so provider internals never reach clients.
func FailErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrValidation):
		Fail(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrUnsupportedFormat):
		Fail(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		Fail(c, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrExpired):
		Fail(c, http.StatusGone, err.Error())
	case errors.Is(err, ErrUpstream):
		Fail(c, http.StatusBadGateway, "the assistant is temporarily unavailable, please try again")
	default:
		Fail(c, http.StatusInternalServerError, "internal error")
	}
}
