package middleware

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// MultipartOverhead is the allowance on top of the maximum file size for
// multipart boundaries, part headers and the optional form fields.
const MultipartOverhead = 1 << 20

// SecurityConfig holds configuration for security middleware.
type SecurityConfig struct {
	AllowedOrigins []string
}

// DefaultSecurityConfig returns a SecurityConfig allowing any origin.
func DefaultSecurityConfig() SecurityConfig {
	return SecurityConfig{
		AllowedOrigins: []string{"*"},
	}
}

// NewCORS creates a CORS middleware with the given configuration.
func NewCORS(config SecurityConfig) echo.MiddlewareFunc {
	origins := config.AllowedOrigins
	if len(origins) == 0 {
		origins = DefaultSecurityConfig().AllowedOrigins
	}
	return middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: origins,
		AllowMethods: []string{
			http.MethodGet,
			http.MethodHead,
			http.MethodPost,
			http.MethodOptions,
		},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderXRequestID,
			"X-Requested-With",
		},
		ExposeHeaders: []string{
			echo.HeaderXRequestID,
			"X-Analysis-Id",
		},
	})
}

// NewBodyLimit rejects request bodies larger than maxFileSize plus
// MultipartOverhead with 413 before the handler reads them.
func NewBodyLimit(maxFileSize int64) echo.MiddlewareFunc {
	return middleware.BodyLimit(BodyLimitString(maxFileSize))
}

// BodyLimitString renders the body limit in the byte-size syntax echo parses.
func BodyLimitString(maxFileSize int64) string {
	return strconv.FormatInt(maxFileSize+MultipartOverhead, 10) + "B"
}
