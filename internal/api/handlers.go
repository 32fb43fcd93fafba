package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/rcanpahali/BirdNet/internal/logger"
	"github.com/rcanpahali/BirdNet/internal/upstream"
)

// Response details returned to clients.
const (
	infoMessage         = "BirdNet proxy API"
	detailNotFound      = "Not found"
	detailInternal      = "Internal server error"
	detailFileTooLarge  = "File too large"
	detailHealthFailed  = "Failed to reach BirdNET backend"
	detailAnalyzeFailed = "Analysis failed"
)

// ErrorResponse is the body of every error the proxy produces itself.
type ErrorResponse struct {
	Detail string `json:"detail"`
	Error  string `json:"error,omitempty"`
}

type infoResponse struct {
	Message  string `json:"message"`
	Upstream string `json:"upstream"`
}

// info handles GET /.
func (s *Server) info(c echo.Context) error {
	return c.JSON(http.StatusOK, infoResponse{
		Message:  infoMessage,
		Upstream: s.upstream.BaseURL(),
	})
}

// health relays the upstream health probe. The upstream body is returned
// unchanged on success; failures carry the upstream status (or 502) and the
// upstream error object or a {detail, error} fallback.
func (s *Server) health(c echo.Context) error {
	res, err := s.upstream.Health(c.Request().Context())
	if err != nil {
		return s.relayUpstreamError(c, err, detailHealthFailed)
	}
	return c.JSONBlob(http.StatusOK, res.Body)
}

// relayUpstreamError writes a failed upstream call back to the client.
func (s *Server) relayUpstreamError(c echo.Context, err error, detail string) error {
	var upErr *upstream.Error
	if errors.As(err, &upErr) {
		return c.JSONBlob(upErr.Status(), upErr.Payload(detail))
	}
	return c.JSONBlob(upstream.FallbackStatus, upstream.FallbackPayload(detail, err.Error()))
}

// handleError renders errors returned by handlers and middleware as
// {detail} JSON. Unmatched routes, including a known path with another
// method, answer 404.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	body := ErrorResponse{Detail: detailInternal}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		switch status {
		case http.StatusNotFound, http.StatusMethodNotAllowed:
			status = http.StatusNotFound
			body.Detail = detailNotFound
		case http.StatusRequestEntityTooLarge:
			body = fileTooLarge(s.config.MaxFileSize)
		default:
			body.Detail = fmt.Sprint(he.Message)
		}
	}

	if status >= http.StatusInternalServerError {
		s.log.WithContext(c.Request().Context()).Error("request failed",
			logger.String("method", c.Request().Method),
			logger.String("path", c.Request().URL.Path),
			logger.Int("status", status),
			logger.Error(err))
	}

	var writeErr error
	if c.Request().Method == http.MethodHead {
		writeErr = c.NoContent(status)
	} else {
		writeErr = c.JSON(status, body)
	}
	if writeErr != nil {
		s.log.Warn("failed to write error response", logger.Error(writeErr))
	}
}

func fileTooLarge(maxFileSize int64) ErrorResponse {
	return ErrorResponse{
		Detail: detailFileTooLarge,
		Error:  fmt.Sprintf("file exceeds maximum size of %d bytes", maxFileSize),
	}
}
