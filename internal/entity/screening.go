package entity

import "time"

type ScreeningSource string

const (
	SourceUpload    ScreeningSource = "upload"
	SourceLandmarks ScreeningSource = "landmarks"
	SourceLive      ScreeningSource = "live"
)

// ScreeningReport is one persisted lazy-eye analysis. Result holds the
// serialised report body returned to the client.
type ScreeningReport struct {
	ID            string          `db:"id"`
	RequestID     string          `db:"request_id"`
	Source        ScreeningSource `db:"source"`
	Filename      string          `db:"filename"`
	SizeBytes     int64           `db:"size_bytes"`
	ContentSHA256 string          `db:"content_sha256"`
	ArchiveURL    string          `db:"archive_url"`
	Algorithm     string          `db:"algorithm"`
	RiskLevel     string          `db:"risk_level"`
	Detections    int             `db:"detections"`
	FaceRate      float64         `db:"face_rate"`
	ProcessingMS  int64           `db:"processing_ms"`
	Result        string          `db:"result"`
	CreatedAt     time.Time       `db:"created_at"`
}
