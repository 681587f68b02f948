package screeningRepository

import (
	"database/sql"
	"errors"
	"time"

	"eyescreen/internal/api/screening"
	"eyescreen/internal/entity"
	contextPkg "eyescreen/pkg/context"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

type ReportDB struct {
	ID            sql.NullString  `db:"id"`
	RequestID     sql.NullString  `db:"request_id"`
	Source        sql.NullString  `db:"source"`
	Filename      sql.NullString  `db:"filename"`
	SizeBytes     sql.NullInt64   `db:"size_bytes"`
	ContentSHA256 sql.NullString  `db:"content_sha256"`
	ArchiveURL    sql.NullString  `db:"archive_url"`
	Algorithm     sql.NullString  `db:"algorithm"`
	RiskLevel     sql.NullString  `db:"risk_level"`
	Detections    sql.NullInt64   `db:"detections"`
	FaceRate      sql.NullFloat64 `db:"face_rate"`
	ProcessingMS  sql.NullInt64   `db:"processing_ms"`
	Result        sql.NullString  `db:"result"`
	CreatedAt     time.Time       `db:"created_at"`
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (r *reportsRepository) CreateReport(ctx context.Context, report entity.ScreeningReport) error {
	requestID := contextPkg.GetRequestID(ctx)
	argsKV := map[string]interface{}{
		"id":             report.ID,
		"request_id":     report.RequestID,
		"source":         string(report.Source),
		"filename":       nullString(report.Filename),
		"size_bytes":     report.SizeBytes,
		"content_sha256": nullString(report.ContentSHA256),
		"archive_url":    nullString(report.ArchiveURL),
		"algorithm":      report.Algorithm,
		"risk_level":     report.RiskLevel,
		"detections":     report.Detections,
		"face_rate":      report.FaceRate,
		"processing_ms":  report.ProcessingMS,
		"result":         report.Result,
		"created_at":     report.CreatedAt,
	}

	query, args, err := sqlx.Named(queryCreateReport, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to build SQL query for CreateReport")
		return err
	}
	query = r.q.Rebind(query)

	if _, err = r.q.ExecContext(ctx, query, args...); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Database error when creating screening report")
		return err
	}

	return nil
}

func (r *reportsRepository) GetReportByID(ctx context.Context, id string) (entity.ScreeningReport, error) {
	return r.getOne(ctx, "GetReportByID", queryGetReportByID, map[string]interface{}{"id": id})
}

func (r *reportsRepository) GetLatestByHash(ctx context.Context, hash string) (entity.ScreeningReport, error) {
	return r.getOne(ctx, "GetLatestByHash", queryGetLatestByHash, map[string]interface{}{"content_sha256": hash})
}

func (r *reportsRepository) getOne(ctx context.Context, op, q string, argsKV map[string]interface{}) (entity.ScreeningReport, error) {
	requestID := contextPkg.GetRequestID(ctx)
	var report ReportDB

	query, args, err := sqlx.Named(q, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error(op + " named query preparation err")
		return entity.ScreeningReport{}, err
	}

	query = r.q.Rebind(query)

	if err := r.q.QueryRowxContext(ctx, query, args...).StructScan(&report); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.log.WithFields(logrus.Fields{
				"request_id": requestID,
			}).Debug(op + " no rows found")
			return entity.ScreeningReport{}, screening.ErrReportNotFound
		}
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error(op + " execution err")
		return entity.ScreeningReport{}, err
	}

	return r.makeReport(report), nil
}

func (r *reportsRepository) ListReports(ctx context.Context, limit, offset int) ([]entity.ScreeningReport, int, error) {
	requestID := contextPkg.GetRequestID(ctx)
	var rows []ReportDB
	var total int

	if err := r.q.QueryRowxContext(ctx, r.q.Rebind(queryCountReports)).Scan(&total); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("CountReports execution err")
		return nil, 0, err
	}

	argsKV := map[string]interface{}{
		"limit":  limit,
		"offset": offset,
	}

	query, args, err := sqlx.Named(queryListReports, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("ListReports named query preparation err")
		return nil, 0, err
	}

	query = r.q.Rebind(query)

	if err := r.q.SelectContext(ctx, &rows, query, args...); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("ListReports execution err")
		return nil, 0, err
	}

	reports := make([]entity.ScreeningReport, 0, len(rows))
	for _, row := range rows {
		reports = append(reports, r.makeReport(row))
	}

	return reports, total, nil
}

func (r *reportsRepository) makeReport(row ReportDB) entity.ScreeningReport {
	return entity.ScreeningReport{
		ID:            row.ID.String,
		RequestID:     row.RequestID.String,
		Source:        entity.ScreeningSource(row.Source.String),
		Filename:      row.Filename.String,
		SizeBytes:     row.SizeBytes.Int64,
		ContentSHA256: row.ContentSHA256.String,
		ArchiveURL:    row.ArchiveURL.String,
		Algorithm:     row.Algorithm.String,
		RiskLevel:     row.RiskLevel.String,
		Detections:    int(row.Detections.Int64),
		FaceRate:      row.FaceRate.Float64,
		ProcessingMS:  row.ProcessingMS.Int64,
		Result:        row.Result.String,
		CreatedAt:     row.CreatedAt,
	}
}
