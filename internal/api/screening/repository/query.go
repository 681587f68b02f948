package screeningRepository

const (
	queryCreateReport = `
		INSERT INTO screening_reports (
			id,
			request_id,
			source,
			filename,
			size_bytes,
			content_sha256,
			archive_url,
			algorithm,
			risk_level,
			detections,
			face_rate,
			processing_ms,
			result,
			created_at
		) VALUES (
			:id,
			:request_id,
			:source,
			:filename,
			:size_bytes,
			:content_sha256,
			:archive_url,
			:algorithm,
			:risk_level,
			:detections,
			:face_rate,
			:processing_ms,
			:result,
			:created_at
		)
	`

	querySelectReport = `
		SELECT
			id,
			request_id,
			source,
			filename,
			size_bytes,
			content_sha256,
			archive_url,
			algorithm,
			risk_level,
			detections,
			face_rate,
			processing_ms,
			result,
			created_at
		FROM screening_reports
	`

	queryGetReportByID = querySelectReport + `
		WHERE id = :id
	`

	queryGetLatestByHash = querySelectReport + `
		WHERE content_sha256 = :content_sha256
		ORDER BY created_at DESC
		LIMIT 1
	`

	queryCountReports = `
		SELECT COUNT(*) FROM screening_reports
	`

	queryListReports = querySelectReport + `
		ORDER BY created_at DESC, id DESC
		LIMIT :limit OFFSET :offset
	`
)
