package tracking

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testWidth  = 300
	testHeight = 300
)

// lazyFrames produces n frames in which the left iris drifts right by 3px per
// frame while the right iris stays put.
func lazyFrames(n int) []Frame {
	frames := make([]Frame, n)
	for i := range frames {
		frames[i] = Frame{
			Index:  i,
			Width:  testWidth,
			Height: testHeight,
			Face: &Landmarks{
				LeftIris:  Point{X: 0.1 + 0.01*float64(i%29), Y: 0.5},
				RightIris: Point{X: 0.6, Y: 0.5},
			},
		}
	}
	return frames
}

func stillFrames(n int) []Frame {
	frames := make([]Frame, n)
	for i := range frames {
		frames[i] = Frame{
			Index:  i,
			Width:  testWidth,
			Height: testHeight,
			Face: &Landmarks{
				LeftIris:  Point{X: 0.4, Y: 0.5},
				RightIris: Point{X: 0.6, Y: 0.5},
			},
		}
	}
	return frames
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	require.NoError(t, DefaultConfig().Validate())

	cases := map[string]func(*Config){
		"short history":       func(c *Config) { c.HistFrames = 10 },
		"negative move":       func(c *Config) { c.MovePxMin = -1 },
		"zero ratio":          func(c *Config) { c.RatioThresh = 0 },
		"zero stride":         func(c *Config) { c.FrameStride = 0 },
		"unknown policy":      func(c *Config) { c.Policy = "sweep" },
		"no stimulus speed":   func(c *Config) { c.StimulusSpeed = 0 },
		"interval beyond cap": func(c *Config) { c.Policy = PolicyInterval; c.IntervalFrames = 90 },
		"zero interval":       func(c *Config) { c.Policy = PolicyInterval; c.IntervalFrames = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestStimulusBounce_Cadence(t *testing.T) {
	t.Parallel()

	b := &StimulusBounce{speed: 7, width: 100}
	var boundaries []int
	for i := 1; i <= 90; i++ {
		if b.Advance(Tick{Sampled: i, FrameWidth: testWidth}) {
			boundaries = append(boundaries, i)
		}
	}

	assert.Equal(t, []int{29, 58, 87}, boundaries)
	assert.Equal(t, 3, b.Boundaries())
	assert.GreaterOrEqual(t, b.Position(), 0)
	assert.LessOrEqual(t, b.Position(), testWidth-100)
}

func TestFixedInterval_RequiresFaceAndFullWindow(t *testing.T) {
	t.Parallel()

	f := &FixedInterval{every: 30}

	assert.False(t, f.Advance(Tick{Sampled: 30, FaceDetected: false, BufferLen: 30}))
	assert.False(t, f.Advance(Tick{Sampled: 30, FaceDetected: true, BufferLen: 29}))
	assert.False(t, f.Advance(Tick{Sampled: 31, FaceDetected: true, BufferLen: 31}))
	assert.True(t, f.Advance(Tick{Sampled: 60, FaceDetected: true, BufferLen: 45}))
	assert.Equal(t, 1, f.Boundaries())
}

func TestSession_BounceDetectsEachWindow(t *testing.T) {
	t.Parallel()

	s, err := NewSession(DefaultConfig(), 30)
	require.NoError(t, err)

	var events []DetectionEvent
	for _, f := range lazyFrames(100) {
		if e := s.Process(f); e != nil {
			events = append(events, *e)
		}
	}

	res := s.Result(VideoMeta{FPS: 30, TotalFrames: 100, Width: testWidth, Height: testHeight})

	want := []DetectionEvent{
		{Timestamp: 29.0 / 30, LeftDisplacement: 84, RightDisplacement: 0, Message: "Lazy eye detected at window #1", WindowIndex: 1},
		{Timestamp: 58.0 / 30, LeftDisplacement: 84, RightDisplacement: 0, Message: "Lazy eye detected at window #2", WindowIndex: 2},
		{Timestamp: 87.0 / 30, LeftDisplacement: 84, RightDisplacement: 0, Message: "Lazy eye detected at window #3", WindowIndex: 3},
	}
	if diff := cmp.Diff(want, res.Events, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Fatalf("events mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, res.Events, events)
	assert.Equal(t, 3, res.Boundaries)
	assert.Equal(t, 3, res.Detections)
	assert.Equal(t, RiskHigh, res.Risk.Level)
	assert.Equal(t, "mediapipe_with_bounce_detection", res.Algorithm)
	assert.Equal(t, 13, s.Buffered(), "trailing partial window stays unclassified")
}

func TestSession_IntervalPolicy(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Policy = PolicyInterval

	s, err := NewSession(cfg, 30)
	require.NoError(t, err)
	for _, f := range stillFrames(95) {
		assert.Nil(t, s.Process(f))
	}

	res := s.Result(VideoMeta{FPS: 30, TotalFrames: 95})
	assert.Equal(t, 3, res.Boundaries)
	assert.Equal(t, 0, res.Detections)
	assert.Equal(t, RiskLow, res.Risk.Level)
	assert.Equal(t, "High", res.Risk.Confidence)
	assert.Equal(t, "mediapipe_fixed_interval", res.Algorithm)
	assert.Equal(t, 5, s.Buffered())
}

func TestSession_MissingFaceKeepsWindowOpen(t *testing.T) {
	t.Parallel()

	frames := lazyFrames(29)
	for i := 3; i < 10; i++ {
		frames[i].Face = nil
	}

	s, err := NewSession(DefaultConfig(), 30)
	require.NoError(t, err)

	var last *DetectionEvent
	for _, f := range frames {
		last = s.Process(f)
	}

	require.NotNil(t, last, "boundary at frame 29 should classify the 22 buffered frames")
	assert.InDelta(t, 84.0, last.LeftDisplacement, 1e-9)

	res := s.Result(VideoMeta{FPS: 30})
	assert.Equal(t, 29, res.FramesAnalyzed)
	assert.Equal(t, 22, res.FramesWithFace)
	assert.InDelta(t, 22.0/29*100, res.FaceDetectionRate, 1e-9)
}

func TestSession_FrameStride(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.FrameStride = 2

	s, err := NewSession(cfg, 30)
	require.NoError(t, err)

	frames := stillFrames(10)
	frames[1].Face = nil
	for _, f := range frames {
		s.Process(f)
	}

	res := s.Result(VideoMeta{})
	assert.Equal(t, 10, res.FramesRead)
	assert.Equal(t, 5, res.FramesAnalyzed)
	assert.Equal(t, 5, res.FramesWithFace, "skipped frames do not count toward face rate")
	assert.Equal(t, 30.0, res.Meta.FPS)
}

func TestSession_StrideStretchesBounceWindow(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.FrameStride = 2

	s, err := NewSession(cfg, 30)
	require.NoError(t, err)

	first := -1
	for _, f := range lazyFrames(120) {
		before := s.decider.Boundaries()
		s.Process(f)
		if first < 0 && s.decider.Boundaries() > before {
			first = f.Index
		}
	}

	assert.Equal(t, 56, first, "29th sampled frame is frame index 56")
}

func TestSession_ShortWindowIsNotAnError(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.StimulusWidth = 290

	s, err := NewSession(cfg, 30)
	require.NoError(t, err)

	for _, f := range lazyFrames(40) {
		assert.Nil(t, s.Process(f))
	}
	res := s.Result(VideoMeta{})
	assert.Positive(t, res.Boundaries)
	assert.Zero(t, res.Detections)
}

type errSource struct{ served int }

func (e *errSource) Next() (Frame, error) {
	if e.served == 2 {
		return Frame{}, errors.New("codec failure")
	}
	e.served++
	return stillFrames(1)[0], nil
}

func TestRun(t *testing.T) {
	t.Parallel()

	t.Run("drains source", func(t *testing.T) {
		t.Parallel()
		var seen []DetectionEvent
		res, err := Run(context.Background(), DefaultConfig(), VideoMeta{FPS: 30},
			NewSliceSource(lazyFrames(60)), func(e DetectionEvent) { seen = append(seen, e) })

		require.NoError(t, err)
		assert.Equal(t, 60, res.Meta.TotalFrames)
		assert.Len(t, seen, 2)
		assert.Equal(t, RiskMedium, res.Risk.Level)
	})

	t.Run("empty source fails fast", func(t *testing.T) {
		t.Parallel()
		_, err := Run(context.Background(), DefaultConfig(), VideoMeta{}, NewSliceSource(nil), nil)
		assert.ErrorIs(t, err, ErrSourceClosed)
	})

	t.Run("source error aborts", func(t *testing.T) {
		t.Parallel()
		_, err := Run(context.Background(), DefaultConfig(), VideoMeta{}, &errSource{}, nil)
		require.Error(t, err)
		assert.NotErrorIs(t, err, io.EOF)
		assert.Contains(t, err.Error(), "codec failure")
	})

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := Run(ctx, DefaultConfig(), VideoMeta{}, NewSliceSource(lazyFrames(10)), nil)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("invalid config", func(t *testing.T) {
		t.Parallel()
		cfg := DefaultConfig()
		cfg.Policy = ""
		_, err := Run(context.Background(), cfg, VideoMeta{}, NewSliceSource(lazyFrames(10)), nil)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})
}
