package screeningService

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"mime/multipart"
	"os"
	"time"

	"eyescreen/internal/api/screening"
	"eyescreen/internal/entity"
	contextPkg "eyescreen/pkg/context"
	"eyescreen/pkg/metrics"
	"eyescreen/pkg/response"
	"eyescreen/pkg/tracking"
	"eyescreen/pkg/utils"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const uploadMessage = "Analysis completed"

type cachedReport struct {
	ReportID string           `json:"report_id"`
	Report   screening.Report `json:"report"`
}

func (s *screeningService) AnalyzeUpload(ctx context.Context, file *multipart.FileHeader, policy string) (*screening.UploadResponse, error) {
	requestID := contextPkg.GetRequestID(ctx)
	started := time.Now()

	if err := s.utils.ValidateVideoFile(file); err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Warn("Rejected video upload")
		return nil, mapFileError(err)
	}

	cfg, err := s.configFor(policy)
	if err != nil {
		return nil, err
	}
	if s.visionClient == nil {
		return nil, response.Wrap(screening.ErrVisionUnavailable, "no vision backend configured")
	}

	hash, err := s.utils.HashFile(file)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to hash upload")
		return nil, screening.ErrInternalServerError
	}
	cacheKey := cacheKey(hash, cfg)

	if cached, ok := s.lookupCache(ctx, cacheKey); ok {
		return &screening.UploadResponse{
			Success:               true,
			ReportID:              cached.ReportID,
			Filename:              file.Filename,
			SizeMB:                screening.Round(float64(file.Size)/1024/1024, 2),
			ProcessingTimeSeconds: screening.Round(time.Since(started).Seconds(), 2),
			Analysis:              cached.Report,
			Message:               uploadMessage,
			Deployment:            s.opts.Deployment,
			Algorithm:             cached.Report.Analysis.Algorithm,
			Cached:                true,
		}, nil
	}

	path, err := s.utils.SaveTempFile(file, s.opts.UploadDir)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to store upload")
		return nil, screening.ErrInternalServerError
	}
	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"path":       path,
				"error":      err.Error(),
			}).Warn("Failed to remove temp upload")
		}
	}()

	reportID, err := s.utils.NewULIDFromTimestamp(started)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to generate ULID")
		return nil, err
	}

	archiveURL := s.archive(ctx, path, reportID)
	committed := false
	defer func() {
		if !committed {
			s.discardArchive(requestID, archiveURL)
		}
	}()

	stream, err := s.visionClient.StreamVideo(ctx, path)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Vision backend rejected video")
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, response.Wrap(screening.ErrVisionUnavailable, "%v", err)
	}
	defer stream.Close()

	res, err := tracking.Run(ctx, cfg, stream.Meta(), stream, nil)
	if err != nil {
		return nil, s.mapRunError(ctx, err)
	}

	report := screening.NewReport(res, cfg)
	elapsed := time.Since(started)

	stored, err := s.saveReport(ctx, entity.ScreeningReport{
		ID:            reportID,
		Source:        entity.SourceUpload,
		Filename:      file.Filename,
		SizeBytes:     file.Size,
		ContentSHA256: hash,
		ArchiveURL:    archiveURL,
	}, res, report, elapsed)
	if err != nil {
		return nil, err
	}
	committed = true

	s.storeCache(ctx, cacheKey, cachedReport{ReportID: stored, Report: report})
	metrics.ObserveAnalysis(string(entity.SourceUpload), string(res.Risk.Level),
		res.FramesAnalyzed, res.Detections, res.FaceDetectionRate, elapsed.Seconds())

	s.log.WithFields(logrus.Fields{
		"request_id": requestID,
		"report_id":  stored,
		"filename":   file.Filename,
		"frames":     res.FramesRead,
		"detections": res.Detections,
		"risk_level": res.Risk.Level,
		"elapsed_ms": elapsed.Milliseconds(),
	}).Info("Video analysis completed")

	return &screening.UploadResponse{
		Success:               true,
		ReportID:              stored,
		Filename:              file.Filename,
		SizeMB:                screening.Round(float64(file.Size)/1024/1024, 2),
		ProcessingTimeSeconds: screening.Round(elapsed.Seconds(), 2),
		Analysis:              report,
		Message:               uploadMessage,
		Deployment:            s.opts.Deployment,
		Algorithm:             res.Algorithm,
	}, nil
}

func (s *screeningService) AnalyzeLandmarks(ctx context.Context, req screening.LandmarksRequest) (*screening.AnalysisResponse, error) {
	requestID := contextPkg.GetRequestID(ctx)
	started := time.Now()

	cfg, err := s.configFor(req.Policy)
	if err != nil {
		return nil, err
	}
	if req.FrameStride > 0 {
		cfg.FrameStride = req.FrameStride
	}

	res, err := tracking.Run(ctx, cfg, req.Meta(), tracking.NewSliceSource(req.ToFrames()), nil)
	if err != nil {
		return nil, s.mapRunError(ctx, err)
	}

	report := screening.NewReport(res, cfg)
	elapsed := time.Since(started)

	reportID, err := s.utils.NewULIDFromTimestamp(started)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to generate ULID")
		return nil, err
	}

	stored, err := s.saveReport(ctx, entity.ScreeningReport{
		ID:     reportID,
		Source: entity.SourceLandmarks,
	}, res, report, elapsed)
	if err != nil {
		return nil, err
	}

	metrics.ObserveAnalysis(string(entity.SourceLandmarks), string(res.Risk.Level),
		res.FramesAnalyzed, res.Detections, res.FaceDetectionRate, elapsed.Seconds())

	return &screening.AnalysisResponse{
		Success:               true,
		ReportID:              stored,
		ProcessingTimeSeconds: screening.Round(elapsed.Seconds(), 2),
		Analysis:              report,
		Algorithm:             res.Algorithm,
	}, nil
}

// configFor applies a request-level policy override on top of the profile.
func (s *screeningService) configFor(policy string) (tracking.Config, error) {
	cfg := s.opts.Tracking
	if policy == "" {
		return cfg, nil
	}

	cfg.Policy = tracking.WindowPolicy(policy)
	if err := cfg.Validate(); err != nil {
		return tracking.Config{}, response.Wrap(screening.ErrInvalidPolicy, "%v", err)
	}
	return cfg, nil
}

func (s *screeningService) mapRunError(ctx context.Context, err error) error {
	requestID := contextPkg.GetRequestID(ctx)

	switch {
	case errors.Is(err, tracking.ErrSourceClosed):
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
		}).Warn("Video produced no frames")
		return screening.ErrUnreadableVideo
	case errors.Is(err, tracking.ErrInvalidConfig):
		return response.Wrap(screening.ErrInvalidPolicy, "%v", err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	}

	s.log.WithFields(logrus.Fields{
		"request_id": requestID,
		"error":      err.Error(),
	}).Error("Frame source failed mid-stream")
	return response.Wrap(screening.ErrVisionUnavailable, "%v", err)
}

// saveReport persists the report and returns its id. Without a repository
// the report is not stored and the id is empty.
func (s *screeningService) saveReport(ctx context.Context, row entity.ScreeningReport, res tracking.Result, report screening.Report, elapsed time.Duration) (string, error) {
	if s.screenRepo == nil {
		return "", nil
	}
	requestID := contextPkg.GetRequestID(ctx)

	body, err := json.Marshal(report)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to encode report")
		return "", screening.ErrInternalServerError
	}

	row.RequestID = requestID
	row.Algorithm = res.Algorithm
	row.RiskLevel = string(res.Risk.Level)
	row.Detections = res.Detections
	row.FaceRate = screening.Round(res.FaceDetectionRate, 1)
	row.ProcessingMS = elapsed.Milliseconds()
	row.Result = string(body)
	row.CreatedAt = time.Now().UTC()

	repo, err := s.screenRepo.NewClient(true)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to create repository client")
		return "", screening.ErrInternalServerError
	}
	defer repo.Rollback()

	if err := repo.Reports.CreateReport(ctx, row); err != nil {
		return "", screening.ErrInternalServerError
	}

	if err := repo.Commit(); err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to commit transaction")
		return "", screening.ErrInternalServerError
	}

	return row.ID, nil
}

func (s *screeningService) archive(ctx context.Context, path, reportID string) string {
	if s.s3Client == nil || !s.opts.ArchiveEnabled {
		return ""
	}

	url, err := s.s3Client.ArchiveVideo(ctx, path, reportID)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": contextPkg.GetRequestID(ctx),
			"report_id":  reportID,
			"error":      err.Error(),
		}).Warn("Failed to archive upload, continuing without archive")
		return ""
	}
	return url
}

// discardArchive removes the archived copy of an upload whose analysis
// never produced a report.
func (s *screeningService) discardArchive(requestID, archiveURL string) {
	if archiveURL == "" {
		return
	}
	if err := s.s3Client.DeleteFile(archiveURL); err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id":  requestID,
			"archive_url": archiveURL,
			"error":       err.Error(),
		}).Warn("Failed to remove orphaned archive")
	}
}

func (s *screeningService) lookupCache(ctx context.Context, key string) (cachedReport, bool) {
	var cached cachedReport
	if s.redisClient == nil {
		return cached, false
	}

	data, ok, err := s.redisClient.GetReport(ctx, key)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": contextPkg.GetRequestID(ctx),
			"error":      err.Error(),
		}).Warn("Report cache lookup failed")
		return cached, false
	}
	if !ok {
		metrics.CacheMisses.Inc()
		return cached, false
	}

	if err := json.Unmarshal(data, &cached); err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": contextPkg.GetRequestID(ctx),
			"error":      err.Error(),
		}).Warn("Dropping undecodable cached report")
		_ = s.redisClient.DeleteReport(ctx, key)
		metrics.CacheMisses.Inc()
		return cached, false
	}

	metrics.CacheHits.Inc()
	return cached, true
}

func (s *screeningService) storeCache(ctx context.Context, key string, cached cachedReport) {
	if s.redisClient == nil {
		return
	}

	data, err := json.Marshal(cached)
	if err != nil {
		return
	}
	if err := s.redisClient.SetReport(ctx, key, data, s.opts.CacheTTL); err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": contextPkg.GetRequestID(ctx),
			"error":      err.Error(),
		}).Warn("Failed to cache report")
	}
}

// cacheKey binds a content hash to the analysis profile that produced the
// report, so a profile change never serves stale verdicts.
func cacheKey(contentHash string, cfg tracking.Config) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%+v", cfg)))
	return contentHash + ":" + hex.EncodeToString(sum[:4])
}

func mapFileError(err error) error {
	switch {
	case errors.Is(err, utils.ErrNoFile):
		return screening.ErrNoVideoFile
	case errors.Is(err, utils.ErrEmptyFilename):
		return screening.ErrNoFileSelected
	case errors.Is(err, utils.ErrFileTooLarge):
		return screening.ErrFileTooLarge
	case errors.Is(err, utils.ErrInvalidFileType):
		return screening.ErrInvalidFileType
	}
	return response.Wrap(screening.ErrInvalidFileType, "%v", err)
}
