package api

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/rcanpahali/BirdNet/internal/datastore"
	"github.com/rcanpahali/BirdNet/internal/logger"
	"github.com/rcanpahali/BirdNet/internal/upstream"
)

const (
	// AnalysisIDHeader carries the stored analysis id on a successful ingest.
	AnalysisIDHeader = "X-Analysis-Id"

	detailNoFile = "No file uploaded"

	defaultMimeType = "application/octet-stream"

	// persistTimeout bounds the write after a successful forward. The write
	// does not follow the client's cancellation.
	persistTimeout = 30 * time.Second
)

// analyze handles POST /analyze: forward the uploaded file to the upstream
// engine, record the result, and relay the upstream body to the client.
func (s *Server) analyze(c echo.Context) error {
	ctx := c.Request().Context()
	log := s.log.WithContext(ctx)

	fh, err := c.FormFile(upstream.FileField)
	if err != nil {
		if errors.Is(err, echo.ErrStatusRequestEntityTooLarge) {
			return c.JSON(http.StatusRequestEntityTooLarge, fileTooLarge(s.config.MaxFileSize))
		}
		log.Debug("analyze request without file", logger.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{Detail: detailNoFile})
	}

	if fh.Size > s.config.MaxFileSize {
		log.Info("rejected oversized upload",
			logger.String("filename", fh.Filename),
			logger.Int64("size", fh.Size))
		return c.JSON(http.StatusRequestEntityTooLarge, fileTooLarge(s.config.MaxFileSize))
	}

	file, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, detailInternal).SetInternal(err)
	}
	defer func() { _ = file.Close() }()

	if s.metricsEnabled() {
		s.metrics.HTTP.RecordUploadSize(fh.Size)
	}

	mimeType := fh.Header.Get(echo.HeaderContentType)
	if mimeType == "" {
		mimeType = defaultMimeType
	}

	form := c.Request().MultipartForm
	params := upstream.Params{
		Lat:     formValue(form, "lat"),
		Lon:     formValue(form, "lon"),
		MinConf: formValue(form, "min_conf"),
	}

	forwardStart := time.Now()
	result, err := s.upstream.Analyze(ctx, upstream.Upload{
		Filename:    fh.Filename,
		ContentType: mimeType,
		Size:        fh.Size,
		Body:        file,
	}, params)
	if err != nil {
		log.Info("analysis forward failed",
			logger.String("filename", fh.Filename),
			logger.Int64("size", fh.Size),
			logger.Error(err))
		return s.relayUpstreamError(c, err, detailAnalyzeFailed)
	}

	input := datastore.AnalysisInput{
		Filename: fh.Filename,
		MimeType: mimeType,
		FileSize: fh.Size,
		Lat:      datastore.ParseOptionalFloat(params.Lat),
		Lon:      datastore.ParseOptionalFloat(params.Lon),
		MinConf:  datastore.ParseOptionalFloat(params.MinConf),
	}

	if id, ok := s.persist(ctx, input, result.Detections); ok {
		c.Response().Header().Set(AnalysisIDHeader, strconv.FormatUint(uint64(id), 10))
		log.Info("analysis recorded",
			logger.String("filename", fh.Filename),
			logger.Int64("size", fh.Size),
			logger.Int("detections", len(result.Detections)),
			logger.Float64("upstream_seconds", time.Since(forwardStart).Seconds()),
			logger.Uint64("analysis_id", uint64(id)))
	}

	return c.JSONBlob(http.StatusOK, result.Body)
}

// persist stores one forwarded analysis. A failure is logged and counted but
// never changes the response; the caller only loses the id header.
func (s *Server) persist(ctx context.Context, input datastore.AnalysisInput, detections []upstream.Detection) (uint, bool) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	id, err := s.store.RecordAnalysis(ctx, input, toStoredDetections(detections))
	if err != nil {
		s.log.WithContext(ctx).Error("failed to record analysis",
			logger.String("filename", input.Filename),
			logger.Int64("size", input.FileSize),
			logger.Int("detections", len(detections)),
			logger.Error(err))
		if s.metrics != nil {
			s.metrics.Datastore.RecordPersistFailure()
		}
		return 0, false
	}
	return id, true
}

func toStoredDetections(in []upstream.Detection) []datastore.Detection {
	out := make([]datastore.Detection, len(in))
	for i, d := range in {
		out[i] = datastore.Detection{
			CommonName:     d.CommonName,
			ScientificName: d.ScientificName,
			Confidence:     d.Confidence,
			StartTime:      d.StartTime,
			EndTime:        d.EndTime,
		}
	}
	return out
}

// formValue returns the first value of a multipart text field.
func formValue(form *multipart.Form, key string) string {
	if form == nil {
		return ""
	}
	if v := form.Value[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}
