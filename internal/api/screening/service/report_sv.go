package screeningService

import (
	"errors"

	"eyescreen/internal/api/screening"
	"eyescreen/internal/entity"
	contextPkg "eyescreen/pkg/context"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

const defaultPageSize = 20

func (s *screeningService) GetReport(ctx context.Context, id string) (*screening.ReportDetailResponse, error) {
	requestID := contextPkg.GetRequestID(ctx)

	if _, err := ulid.ParseStrict(id); err != nil {
		return nil, screening.ErrInvalidReportID
	}
	if s.screenRepo == nil {
		return nil, screening.ErrStorageDisabled
	}

	repo, err := s.screenRepo.NewClient(false)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to create repository client")
		return nil, err
	}

	row, err := repo.Reports.GetReportByID(ctx, id)
	if err != nil {
		if errors.Is(err, screening.ErrReportNotFound) {
			s.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"report_id":  id,
			}).Warn("Report not found")
			return nil, screening.ErrReportNotFound
		}
		return nil, err
	}

	var report screening.Report
	if err := json.UnmarshalFromString(row.Result, &report); err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"report_id":  id,
			"error":      err.Error(),
		}).Error("Stored report is not decodable")
		return nil, screening.ErrInternalServerError
	}

	archiveURL := row.ArchiveURL
	if archiveURL != "" && s.s3Client != nil {
		if signed, err := s.s3Client.PresignUrl(archiveURL); err == nil {
			archiveURL = signed
		} else {
			s.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"error":      err.Error(),
			}).Warn("Failed to presign archive url")
		}
	}

	return &screening.ReportDetailResponse{
		ReportSummary: makeSummary(row),
		ArchiveURL:    archiveURL,
		Analysis:      report,
	}, nil
}

func (s *screeningService) ListReports(ctx context.Context, query screening.ListReportsQuery) (*screening.ReportListResponse, error) {
	requestID := contextPkg.GetRequestID(ctx)

	if s.screenRepo == nil {
		return nil, screening.ErrStorageDisabled
	}
	if query.Limit <= 0 {
		query.Limit = defaultPageSize
	}
	if query.Offset < 0 {
		query.Offset = 0
	}

	repo, err := s.screenRepo.NewClient(false)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to create repository client")
		return nil, err
	}

	rows, total, err := repo.Reports.ListReports(ctx, query.Limit, query.Offset)
	if err != nil {
		return nil, err
	}

	summaries := make([]screening.ReportSummary, 0, len(rows))
	for _, row := range rows {
		summaries = append(summaries, makeSummary(row))
	}

	return &screening.ReportListResponse{
		Reports: summaries,
		Total:   total,
		Limit:   query.Limit,
		Offset:  query.Offset,
	}, nil
}

func makeSummary(row entity.ScreeningReport) screening.ReportSummary {
	return screening.ReportSummary{
		ID:                row.ID,
		Source:            string(row.Source),
		Filename:          row.Filename,
		RiskLevel:         row.RiskLevel,
		Detections:        row.Detections,
		FaceDetectionRate: row.FaceRate,
		Algorithm:         row.Algorithm,
		ProcessingMS:      row.ProcessingMS,
		CreatedAt:         row.CreatedAt,
	}
}
