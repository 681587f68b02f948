package screeningService

import (
	"sync"
	"time"

	"eyescreen/internal/api/screening"
	"eyescreen/internal/entity"
	contextPkg "eyescreen/pkg/context"
	"eyescreen/pkg/metrics"
	"eyescreen/pkg/tracking"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

// LiveSession is one open websocket analysis. It is owned by a single
// connection goroutine.
type LiveSession struct {
	session *tracking.Session
	cfg     tracking.Config
	meta    tracking.VideoMeta
	started time.Time
	frames  int

	closeOnce sync.Once
}

// Push feeds one streamed frame and returns the detection it produced, if any.
func (l *LiveSession) Push(msg screening.StreamInbound) *screening.DetectionItem {
	l.frames++
	if l.meta.Width == 0 && msg.Width > 0 {
		l.meta.Width, l.meta.Height = msg.Width, msg.Height
	}

	// frames may omit the size announced in start
	width, height := msg.Width, msg.Height
	if width == 0 {
		width = l.meta.Width
	}
	if height == 0 {
		height = l.meta.Height
	}

	event := l.session.Process(tracking.Frame{
		Index:  msg.Index,
		Width:  width,
		Height: height,
		Face:   msg.Face,
	})
	if event == nil {
		return nil
	}

	item := screening.NewDetectionItem(*event, l.cfg.Policy)
	return &item
}

func (l *LiveSession) Frames() int {
	return l.frames
}

// Close releases the session slot. It is safe to call more than once.
func (l *LiveSession) Close() {
	l.closeOnce.Do(metrics.LiveSessions.Dec)
}

func (s *screeningService) StartLive(ctx context.Context, start screening.StreamInbound) (*LiveSession, error) {
	cfg, err := s.configFor(start.Policy)
	if err != nil {
		return nil, err
	}

	session, err := tracking.NewSession(cfg, start.FPS)
	if err != nil {
		return nil, s.mapRunError(ctx, err)
	}

	metrics.LiveSessions.Inc()
	s.log.WithFields(logrus.Fields{
		"request_id": contextPkg.GetRequestID(ctx),
		"fps":        start.FPS,
		"policy":     cfg.Policy,
	}).Info("Live screening session started")

	return &LiveSession{
		session: session,
		cfg:     cfg,
		meta:    tracking.VideoMeta{FPS: start.FPS, Width: start.Width, Height: start.Height},
		started: time.Now(),
	}, nil
}

func (s *screeningService) FinishLive(ctx context.Context, live *LiveSession) (*screening.AnalysisResponse, error) {
	defer live.Close()
	requestID := contextPkg.GetRequestID(ctx)

	if live.frames == 0 {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
		}).Warn("Live session ended without frames")
		return nil, screening.ErrUnreadableVideo
	}

	meta := live.meta
	meta.TotalFrames = live.frames
	res := live.session.Result(meta)
	report := screening.NewReport(res, live.cfg)
	elapsed := time.Since(live.started)

	reportID, err := s.utils.NewULIDFromTimestamp(live.started)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to generate ULID")
		return nil, err
	}

	stored, err := s.saveReport(ctx, entity.ScreeningReport{
		ID:     reportID,
		Source: entity.SourceLive,
	}, res, report, elapsed)
	if err != nil {
		return nil, err
	}

	metrics.ObserveAnalysis(string(entity.SourceLive), string(res.Risk.Level),
		res.FramesAnalyzed, res.Detections, res.FaceDetectionRate, 0)

	s.log.WithFields(logrus.Fields{
		"request_id": requestID,
		"report_id":  stored,
		"frames":     res.FramesRead,
		"detections": res.Detections,
	}).Info("Live screening session finished")

	return &screening.AnalysisResponse{
		Success:               true,
		ReportID:              stored,
		ProcessingTimeSeconds: screening.Round(elapsed.Seconds(), 2),
		Analysis:              report,
		Algorithm:             res.Algorithm,
	}, nil
}
