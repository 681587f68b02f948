package tracking

import "io"

// Point is a position in frame pixel space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Observation pairs both iris positions captured from one sampled frame.
type Observation struct {
	Left  Point `json:"left"`
	Right Point `json:"right"`
}

// Landmarks holds iris centres normalised to [0,1] as emitted by the
// landmark source.
type Landmarks struct {
	LeftIris  Point `json:"left_iris"`
	RightIris Point `json:"right_iris"`
}

// ToPixels scales normalised landmarks into an Observation for a frame of
// the given size.
func (l Landmarks) ToPixels(width, height int) Observation {
	w, h := float64(width), float64(height)
	return Observation{
		Left:  Point{X: l.LeftIris.X * w, Y: l.LeftIris.Y * h},
		Right: Point{X: l.RightIris.X * w, Y: l.RightIris.Y * h},
	}
}

// Frame is one decoded video frame as seen by the window controller. Face is
// nil when no face was found in the frame.
type Frame struct {
	Index  int        `json:"index"`
	Width  int        `json:"width"`
	Height int        `json:"height"`
	Face   *Landmarks `json:"face,omitempty"`
}

// DetectionEvent records a positive lazy-eye verdict at a window boundary.
type DetectionEvent struct {
	Timestamp         float64 `json:"timestamp"`
	LeftDisplacement  float64 `json:"left_displacement"`
	RightDisplacement float64 `json:"right_displacement"`
	Message           string  `json:"message"`
	WindowIndex       int     `json:"window_index"`
}

// VideoMeta describes the stream a session was fed from.
type VideoMeta struct {
	FPS         float64 `json:"fps"`
	TotalFrames int     `json:"total_frames"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
}

// Duration returns the nominal stream length in seconds.
func (m VideoMeta) Duration() float64 {
	if m.FPS <= 0 {
		return 0
	}
	return float64(m.TotalFrames) / m.FPS
}

// Result is the terminal aggregate of one analysis session.
type Result struct {
	Meta              VideoMeta        `json:"meta"`
	FramesRead        int              `json:"frames_read"`
	FramesAnalyzed    int              `json:"frames_analyzed"`
	FramesWithFace    int              `json:"frames_with_face"`
	FaceDetectionRate float64          `json:"face_detection_rate"`
	Boundaries        int              `json:"boundaries"`
	Detections        int              `json:"lazy_eye_detections"`
	Events            []DetectionEvent `json:"detection_events"`
	Algorithm         string           `json:"algorithm"`
	Risk              RiskAssessment   `json:"risk_assessment"`
}

// FrameSource yields frames in order. Next returns io.EOF once the stream is
// exhausted.
type FrameSource interface {
	Next() (Frame, error)
}

// SliceSource serves frames from memory.
type SliceSource struct {
	frames []Frame
	pos    int
}

func NewSliceSource(frames []Frame) *SliceSource {
	return &SliceSource{frames: frames}
}

func (s *SliceSource) Next() (Frame, error) {
	if s.pos >= len(s.frames) {
		return Frame{}, io.EOF
	}
	f := s.frames[s.pos]
	s.pos++
	return f, nil
}
