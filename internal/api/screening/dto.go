package screening

import (
	"fmt"
	"math"
	"time"

	"eyescreen/pkg/tracking"
)

// Report is the analysis body shared by every lazy-eye entry point.
type Report struct {
	VideoInfo      VideoInfo               `json:"video_info"`
	Analysis       AnalysisSection         `json:"analysis"`
	RiskAssessment tracking.RiskAssessment `json:"risk_assessment"`
}

type VideoInfo struct {
	Duration        float64 `json:"duration"`
	FPS             float64 `json:"fps"`
	TotalFrames     int     `json:"total_frames"`
	Resolution      string  `json:"resolution"`
	BouncesAnalyzed int     `json:"bounces_analyzed"`
	FrameStride     int     `json:"frame_stride"`
}

type AnalysisSection struct {
	FramesAnalyzed    int             `json:"frames_analyzed"`
	FramesWithFace    int             `json:"frames_with_face"`
	FaceDetectionRate float64         `json:"face_detection_rate"`
	LazyEyeDetections int             `json:"lazy_eye_detections"`
	DetectionEvents   []DetectionItem `json:"detection_events"`
	Algorithm         string          `json:"algorithm"`
}

type DetectionItem struct {
	Timestamp         float64 `json:"timestamp"`
	LeftDisplacement  float64 `json:"left_displacement"`
	RightDisplacement float64 `json:"right_displacement"`
	Message           string  `json:"message"`
	WindowIndex       int     `json:"window_index"`
	BounceNumber      int     `json:"bounce_number,omitempty"`
}

func NewDetectionItem(e tracking.DetectionEvent, policy tracking.WindowPolicy) DetectionItem {
	item := DetectionItem{
		Timestamp:         Round(e.Timestamp, 1),
		LeftDisplacement:  Round(e.LeftDisplacement, 1),
		RightDisplacement: Round(e.RightDisplacement, 1),
		Message:           e.Message,
		WindowIndex:       e.WindowIndex,
	}
	if policy == tracking.PolicyBounce {
		item.BounceNumber = e.WindowIndex
		item.Message = fmt.Sprintf("Lazy eye detected at bounce #%d", e.WindowIndex)
	}
	return item
}

// NewReport shapes a tracking result for the wire. Floats are rounded to one
// decimal.
func NewReport(res tracking.Result, cfg tracking.Config) Report {
	events := make([]DetectionItem, 0, len(res.Events))
	for _, e := range res.Events {
		events = append(events, NewDetectionItem(e, cfg.Policy))
	}

	bounces := 0
	if cfg.Policy == tracking.PolicyBounce {
		bounces = res.Boundaries
	}

	return Report{
		VideoInfo: VideoInfo{
			Duration:        Round(res.Meta.Duration(), 1),
			FPS:             Round(res.Meta.FPS, 1),
			TotalFrames:     res.Meta.TotalFrames,
			Resolution:      fmt.Sprintf("%dx%d", res.Meta.Width, res.Meta.Height),
			BouncesAnalyzed: bounces,
			FrameStride:     cfg.FrameStride,
		},
		Analysis: AnalysisSection{
			FramesAnalyzed:    res.FramesAnalyzed,
			FramesWithFace:    res.FramesWithFace,
			FaceDetectionRate: Round(res.FaceDetectionRate, 1),
			LazyEyeDetections: res.Detections,
			DetectionEvents:   events,
			Algorithm:         res.Algorithm,
		},
		RiskAssessment: res.Risk,
	}
}

// Round rounds half away from zero to the given number of decimals.
func Round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}

type UploadResponse struct {
	Success               bool    `json:"success"`
	ReportID              string  `json:"report_id,omitempty"`
	Filename              string  `json:"filename"`
	SizeMB                float64 `json:"size_mb"`
	ProcessingTimeSeconds float64 `json:"processing_time_seconds"`
	Analysis              Report  `json:"analysis"`
	Message               string  `json:"message"`
	Deployment            string  `json:"deployment"`
	Algorithm             string  `json:"algorithm"`
	Cached                bool    `json:"cached"`
}

// UploadInput is what the handler hands the service after validation.
type UploadInput struct {
	Filename    string
	SizeBytes   int64
	ContentHash string
	LocalPath   string
	Policy      tracking.WindowPolicy
}

type LandmarkFrame struct {
	Index  int                 `json:"index" validate:"min=0"`
	Width  int                 `json:"width" validate:"omitempty,min=1"`
	Height int                 `json:"height" validate:"omitempty,min=1"`
	Face   *tracking.Landmarks `json:"face"`
}

type LandmarksRequest struct {
	FPS         float64         `json:"fps" validate:"omitempty,gt=0,lte=1000"`
	FrameCount  int             `json:"frame_count" validate:"omitempty,min=0"`
	Width       int             `json:"width" validate:"required,min=1"`
	Height      int             `json:"height" validate:"required,min=1"`
	Policy      string          `json:"policy" validate:"omitempty,oneof=bounce interval"`
	FrameStride int             `json:"frame_stride" validate:"omitempty,min=1,max=10"`
	Frames      []LandmarkFrame `json:"frames" validate:"required,min=1,dive"`
}

// ToFrames fills per-frame sizes from the request defaults.
func (r LandmarksRequest) ToFrames() []tracking.Frame {
	frames := make([]tracking.Frame, len(r.Frames))
	for i, f := range r.Frames {
		frames[i] = tracking.Frame{Index: f.Index, Width: f.Width, Height: f.Height, Face: f.Face}
		if frames[i].Width == 0 {
			frames[i].Width = r.Width
		}
		if frames[i].Height == 0 {
			frames[i].Height = r.Height
		}
	}
	return frames
}

func (r LandmarksRequest) Meta() tracking.VideoMeta {
	total := r.FrameCount
	if total <= 0 {
		total = len(r.Frames)
	}
	return tracking.VideoMeta{FPS: r.FPS, TotalFrames: total, Width: r.Width, Height: r.Height}
}

type AnalysisResponse struct {
	Success               bool    `json:"success"`
	ReportID              string  `json:"report_id,omitempty"`
	ProcessingTimeSeconds float64 `json:"processing_time_seconds"`
	Analysis              Report  `json:"analysis"`
	Algorithm             string  `json:"algorithm"`
}

type ListReportsQuery struct {
	Limit  int `query:"limit" validate:"omitempty,min=1,max=100"`
	Offset int `query:"offset" validate:"omitempty,min=0"`
}

type ReportSummary struct {
	ID                string    `json:"id"`
	Source            string    `json:"source"`
	Filename          string    `json:"filename,omitempty"`
	RiskLevel         string    `json:"risk_level"`
	Detections        int       `json:"lazy_eye_detections"`
	FaceDetectionRate float64   `json:"face_detection_rate"`
	Algorithm         string    `json:"algorithm"`
	ProcessingMS      int64     `json:"processing_ms"`
	CreatedAt         time.Time `json:"created_at"`
}

type ReportListResponse struct {
	Reports []ReportSummary `json:"reports"`
	Total   int             `json:"total"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
}

type ReportDetailResponse struct {
	ReportSummary
	ArchiveURL string `json:"archive_url,omitempty"`
	Analysis   Report `json:"analysis"`
}

// Live session wire messages.
const (
	StreamStart     = "start"
	StreamFrame     = "frame"
	StreamEnd       = "end"
	StreamDetection = "detection"
	StreamResult    = "result"
	StreamError     = "error"
)

type StreamInbound struct {
	Type   string              `json:"type"`
	FPS    float64             `json:"fps,omitempty"`
	Policy string              `json:"policy,omitempty"`
	Index  int                 `json:"index"`
	Width  int                 `json:"width"`
	Height int                 `json:"height"`
	Face   *tracking.Landmarks `json:"face,omitempty"`
}

type StreamOutbound struct {
	Type      string         `json:"type"`
	Detection *DetectionItem `json:"detection,omitempty"`
	ReportID  string         `json:"report_id,omitempty"`
	Analysis  *Report        `json:"analysis,omitempty"`
	Error     string         `json:"error,omitempty"`
}
