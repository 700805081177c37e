package middleware

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/tourcrow/payments-backend/internal/services"
	"github.com/tourcrow/payments-backend/internal/utils"
)

// RateLimit throttles requests per client IP
func RateLimit(limiter *services.RateLimitService, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := utils.GetRealIP(c)

		err := limiter.Allow(ip)
		if err == nil {
			c.Next()
			return
		}

		var rateLimitErr *services.RateLimitError
		if !errors.As(err, &rateLimitErr) {
			logger.WithError(err).Error("Rate limiter failed")
			c.Next()
			return
		}

		retryAfter := int(math.Ceil(rateLimitErr.RetryAfter.Seconds()))
		if retryAfter < 1 {
			retryAfter = 1
		}

		logger.WithFields(logrus.Fields{
			"ip":          ip,
			"path":        c.Request.URL.Path,
			"retry_after": retryAfter,
		}).Warn("Rate limit exceeded")

		c.Header("Retry-After", strconv.Itoa(retryAfter))
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":       rateLimitErr.Message,
			"retry_after": retryAfter,
		})
		c.Abort()
	}
}
