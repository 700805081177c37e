package utils

import (
	"net"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/tourcrow/payments-backend/internal/models"
)

// RequestIDKey is the gin context key holding the request id
const RequestIDKey = "request_id"

// GetRealIP extracts the client IP address from the request.
//
// Priority order:
//  1. X-Real-IP header when it holds a public address
//  2. first public address in X-Forwarded-For
//  3. gin's ClientIP()
func GetRealIP(c *gin.Context) string {
	realIP := strings.TrimSpace(c.Request.Header.Get("X-Real-IP"))
	if ip := net.ParseIP(realIP); ip != nil && !isPrivateIP(ip) {
		return realIP
	}

	forwarded := c.Request.Header.Get("X-Forwarded-For")
	if forwarded != "" {
		var first string
		for _, part := range strings.Split(forwarded, ",") {
			candidate := strings.TrimSpace(part)
			ip := net.ParseIP(candidate)
			if ip == nil {
				continue
			}
			if first == "" {
				first = candidate
			}
			if !isPrivateIP(ip) && !ip.IsLoopback() {
				return candidate
			}
		}
		if first != "" {
			return first
		}
	}

	return c.ClientIP()
}

// GetUserAgent extracts the User-Agent header from the request
func GetUserAgent(c *gin.Context) string {
	ua := c.Request.UserAgent()
	if ua == "" {
		return "Unknown"
	}
	return ua
}

// GetRequestID returns the id set by the request id middleware
func GetRequestID(c *gin.Context) string {
	return c.GetString(RequestIDKey)
}

// RequestMeta collects the caller details recorded on payment audit entries
func RequestMeta(c *gin.Context) models.RequestMeta {
	userAgent := GetUserAgent(c)
	return models.RequestMeta{
		IPAddress:  GetRealIP(c),
		UserAgent:  userAgent,
		DeviceType: ParseUserAgent(userAgent).DeviceType,
		RequestID:  GetRequestID(c),
	}
}

// isPrivateIP checks if an IP is in a private range
func isPrivateIP(ip net.IP) bool {
	if ip == nil {
		return false
	}
	return ip.IsPrivate()
}
