package server

import (
	"encoding/hex"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/veilscan/fogstore/internal/logging"
)

// ParseIngressKeyMiddleware decodes the hex :ingresskey path parameter and
// stores the raw bytes in the Gin context.
func ParseIngressKeyMiddleware(c *gin.Context) {
	keyStr := c.Param("ingresskey")
	if keyStr == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ingress key is required"})
		c.Abort()
		return
	}

	key, err := hex.DecodeString(keyStr)
	if err != nil {
		logging.L.Err(err).Msg("could not parse ingress key")
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not parse ingress key"})
		c.Abort()
		return
	}

	c.Set("ingressKey", key)
	c.Next()
}

func ingressKeyFromContext(c *gin.Context) ([]byte, bool) {
	v, exists := c.Get("ingressKey")
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ingress key not found"})
		return nil, false
	}
	key, ok := v.([]byte)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "invalid ingress key type"})
		return nil, false
	}
	return key, true
}
