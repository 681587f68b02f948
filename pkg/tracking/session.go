package tracking

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// ErrSourceClosed is returned by Run when the frame source produced no frame
// at all.
var ErrSourceClosed = errors.New("frame source closed before first frame")

// Session runs the sampling window controller over one video. A Session is
// not safe for concurrent use; each analysis owns its own.
type Session struct {
	cfg     Config
	fps     float64
	buffer  *HistoryBuffer
	decider BoundaryDecider

	framesRead     int
	framesAnalyzed int
	framesWithFace int
	windows        int
	events         []DetectionEvent
}

// NewSession builds a session for a stream running at fps frames per second.
// A non-positive fps falls back to 30, as decoders commonly report 0 for
// live-recorded webm.
func NewSession(cfg Config, fps float64) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if fps <= 0 {
		fps = 30
	}

	return &Session{
		cfg:     cfg,
		fps:     fps,
		buffer:  NewHistoryBuffer(cfg.HistFrames),
		decider: NewBoundaryDecider(cfg),
	}, nil
}

// Process feeds one frame through the controller and returns the detection
// event produced at a window boundary, if any.
func (s *Session) Process(f Frame) *DetectionEvent {
	s.framesRead++
	if (s.framesRead-1)%s.cfg.FrameStride != 0 {
		return nil
	}
	s.framesAnalyzed++

	if f.Face != nil {
		s.framesWithFace++
		s.buffer.Push(f.Face.ToPixels(f.Width, f.Height))
	}

	boundary := s.decider.Advance(Tick{
		Sampled:      s.framesAnalyzed,
		FrameWidth:   f.Width,
		FaceDetected: f.Face != nil,
		BufferLen:    s.buffer.Len(),
	})
	if !boundary {
		return nil
	}

	s.windows++
	isLazy, left, right := Classify(s.buffer.Snapshot(), s.cfg.MovePxMin, s.cfg.RatioThresh)

	var event *DetectionEvent
	if isLazy {
		s.events = append(s.events, DetectionEvent{
			Timestamp:         float64(f.Index+1) / s.fps,
			LeftDisplacement:  left,
			RightDisplacement: right,
			Message:           fmt.Sprintf("Lazy eye detected at window #%d", s.windows),
			WindowIndex:       s.windows,
		})
		e := s.events[len(s.events)-1]
		event = &e
	}

	s.buffer.Clear()

	return event
}

// Buffered reports how many observations the open window holds.
func (s *Session) Buffered() int {
	return s.buffer.Len()
}

// Result finalises the session. Observations in the open window are
// discarded without classification.
func (s *Session) Result(meta VideoMeta) Result {
	if meta.FPS <= 0 {
		meta.FPS = s.fps
	}

	rate := 0.0
	if s.framesAnalyzed > 0 {
		rate = float64(s.framesWithFace) / float64(s.framesAnalyzed) * 100
	}

	events := make([]DetectionEvent, len(s.events))
	copy(events, s.events)

	return Result{
		Meta:              meta,
		FramesRead:        s.framesRead,
		FramesAnalyzed:    s.framesAnalyzed,
		FramesWithFace:    s.framesWithFace,
		FaceDetectionRate: rate,
		Boundaries:        s.decider.Boundaries(),
		Detections:        len(events),
		Events:            events,
		Algorithm:         s.decider.Algorithm(),
		Risk:              Assess(len(events), rate),
	}
}

// Run drains src through a new session. onEvent, when non-nil, is called for
// each detection as it happens.
func Run(ctx context.Context, cfg Config, meta VideoMeta, src FrameSource, onEvent func(DetectionEvent)) (Result, error) {
	session, err := NewSession(cfg, meta.FPS)
	if err != nil {
		return Result{}, err
	}

	for {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		frame, err := src.Next()
		if errors.Is(err, io.EOF) {
			if session.framesRead == 0 {
				return Result{}, ErrSourceClosed
			}
			break
		}
		if err != nil {
			return Result{}, fmt.Errorf("read frame %d: %w", session.framesRead, err)
		}

		if event := session.Process(frame); event != nil && onEvent != nil {
			onEvent(*event)
		}
	}

	if meta.TotalFrames <= 0 {
		meta.TotalFrames = session.framesRead
	}
	return session.Result(meta), nil
}
