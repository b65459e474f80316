package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/andresuchdata/tutorstore/internal/gateway"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// writeError maps gateway errors onto HTTP statuses: validation 400,
// configuration 500 with a generic message, upstream 502 with the store's
// message.
func writeError(c *gin.Context, err error) {
	var upErr *gateway.UpstreamError
	switch {
	case errors.Is(err, gateway.ErrValidation):
		msg := strings.TrimPrefix(err.Error(), gateway.ErrValidation.Error()+": ")
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
	case errors.Is(err, gateway.ErrConfiguration):
		log.Error().Err(err).Str("path", c.FullPath()).Msg("object store not configured")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Storage service is not configured"})
	case errors.As(err, &upErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": upErr.Err.Error()})
	default:
		log.Error().Err(err).Str("path", c.FullPath()).Msg("unhandled error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

// keyParam returns the catch-all key parameter without its leading slash.
func keyParam(c *gin.Context) string {
	return strings.TrimPrefix(c.Param("key"), "/")
}
