package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/rcanpahali/BirdNet/internal/datastore"
	"github.com/rcanpahali/BirdNet/internal/errors"
)

const (
	detailAnalysisNotFound = "Analysis not found"
	detailInvalidID        = "Invalid analysis id"
	detailInvalidLimit     = "Invalid limit"
)

// listAnalyses handles GET /analyses?limit=N, newest first.
func (s *Server) listAnalyses(c echo.Context) error {
	limit := datastore.DefaultListLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Detail: detailInvalidLimit})
		}
		limit = n
	}

	analyses, err := s.store.ListAnalyses(c.Request().Context(), limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, detailInternal).SetInternal(err)
	}
	return c.JSON(http.StatusOK, analyses)
}

// getAnalysis handles GET /analyses/:id.
func (s *Server) getAnalysis(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Detail: detailInvalidID})
	}

	analysis, err := s.store.GetAnalysis(c.Request().Context(), uint(id))
	if err != nil {
		if errors.Is(err, datastore.ErrAnalysisNotFound) {
			return c.JSON(http.StatusNotFound, ErrorResponse{Detail: detailAnalysisNotFound})
		}
		return echo.NewHTTPError(http.StatusInternalServerError, detailInternal).SetInternal(err)
	}
	return c.JSON(http.StatusOK, analysis)
}
