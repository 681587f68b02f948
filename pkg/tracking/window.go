package tracking

import (
	"errors"
	"fmt"
)

// WindowPolicy selects how window boundaries are placed.
type WindowPolicy string

const (
	PolicyBounce   WindowPolicy = "bounce"
	PolicyInterval WindowPolicy = "interval"
)

const (
	DefaultIntervalFrames = 30
	DefaultStimulusSpeed  = 7
	DefaultStimulusWidth  = 100
)

var ErrInvalidConfig = errors.New("invalid tracking config")

// Config carries every tunable of one analysis session.
type Config struct {
	HistFrames     int
	MovePxMin      float64
	RatioThresh    float64
	Policy         WindowPolicy
	IntervalFrames int
	// FrameStride samples every n-th frame; 1 samples all of them.
	FrameStride   int
	StimulusSpeed int
	StimulusWidth int
}

func DefaultConfig() Config {
	return Config{
		HistFrames:     DefaultHistFrames,
		MovePxMin:      DefaultMovePxMin,
		RatioThresh:    DefaultRatioThresh,
		Policy:         PolicyBounce,
		IntervalFrames: DefaultIntervalFrames,
		FrameStride:    1,
		StimulusSpeed:  DefaultStimulusSpeed,
		StimulusWidth:  DefaultStimulusWidth,
	}
}

func (c Config) Validate() error {
	switch {
	case c.HistFrames < MinHistory:
		return fmt.Errorf("%w: hist frames %d below minimum %d", ErrInvalidConfig, c.HistFrames, MinHistory)
	case c.MovePxMin < 0:
		return fmt.Errorf("%w: negative move threshold", ErrInvalidConfig)
	case c.RatioThresh <= 0 || c.RatioThresh > 1:
		return fmt.Errorf("%w: ratio threshold %.2f outside (0,1]", ErrInvalidConfig, c.RatioThresh)
	case c.FrameStride < 1:
		return fmt.Errorf("%w: frame stride must be at least 1", ErrInvalidConfig)
	}

	switch c.Policy {
	case PolicyBounce:
		if c.StimulusSpeed <= 0 || c.StimulusWidth <= 0 {
			return fmt.Errorf("%w: stimulus speed and width must be positive", ErrInvalidConfig)
		}
	case PolicyInterval:
		if c.IntervalFrames <= 0 {
			return fmt.Errorf("%w: interval frames must be positive", ErrInvalidConfig)
		}
		if c.IntervalFrames > c.HistFrames {
			return fmt.Errorf("%w: interval %d exceeds history capacity %d", ErrInvalidConfig, c.IntervalFrames, c.HistFrames)
		}
	default:
		return fmt.Errorf("%w: unknown window policy %q", ErrInvalidConfig, c.Policy)
	}

	return nil
}

// Tick is what a BoundaryDecider sees for each sampled frame, after the
// frame's observation (if any) has been buffered.
type Tick struct {
	Sampled      int
	FrameWidth   int
	FaceDetected bool
	BufferLen    int
}

// BoundaryDecider places window boundaries. The session classifies and then
// clears the buffer whenever Advance reports true.
type BoundaryDecider interface {
	Advance(t Tick) bool
	Boundaries() int
	Algorithm() string
}

func NewBoundaryDecider(cfg Config) BoundaryDecider {
	if cfg.Policy == PolicyInterval {
		return &FixedInterval{every: cfg.IntervalFrames}
	}
	return &StimulusBounce{speed: cfg.StimulusSpeed, width: cfg.StimulusWidth}
}

// StimulusBounce simulates a target sweeping across the frame. Each time it
// reaches an edge the window closes.
type StimulusBounce struct {
	x       int
	speed   int
	width   int
	bounces int
}

func (b *StimulusBounce) Advance(t Tick) bool {
	b.x += b.speed
	if b.x+b.width <= t.FrameWidth && b.x >= 0 {
		return false
	}

	b.speed = -b.speed
	b.bounces++
	b.x = max(0, min(b.x, t.FrameWidth-b.width))
	return true
}

func (b *StimulusBounce) Boundaries() int {
	return b.bounces
}

func (b *StimulusBounce) Algorithm() string {
	return "mediapipe_with_bounce_detection"
}

// Position reports the stimulus' left edge.
func (b *StimulusBounce) Position() int {
	return b.x
}

// FixedInterval closes a window every n sampled frames, provided the frame
// had a face and at least n observations are buffered.
type FixedInterval struct {
	every      int
	boundaries int
}

func (f *FixedInterval) Advance(t Tick) bool {
	if !t.FaceDetected || t.BufferLen < f.every || t.Sampled%f.every != 0 {
		return false
	}
	f.boundaries++
	return true
}

func (f *FixedInterval) Boundaries() int {
	return f.boundaries
}

func (f *FixedInterval) Algorithm() string {
	return "mediapipe_fixed_interval"
}
