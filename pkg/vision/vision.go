package vision

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"eyescreen/pkg/reflex"
	"eyescreen/pkg/tracking"
	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

const (
	DefaultVideoURL = "ws://localhost:8765/ws/video"
	DefaultPhotoURL = "ws://localhost:8765/ws/photo"
)

var (
	ErrNotConfigured = errors.New("vision backend url not configured")
	ErrProtocol      = errors.New("unexpected message from vision backend")
	// ErrImageRejected means the sidecar answered but could not use the image.
	ErrImageRejected = errors.New("vision backend rejected image")
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// IVision talks to the landmark/cascade sidecar that owns video decoding and
// the face models.
type IVision interface {
	StreamVideo(ctx context.Context, path string) (FrameStream, error)
	AnalyzePhoto(ctx context.Context, image []byte) (*PhotoAnalysis, error)
	Ping(ctx context.Context) error
	IsConnected() bool
	CloseConnections()
}

// FrameStream is a tracking.FrameSource that knows the stream meta and holds
// a backend connection until closed.
type FrameStream interface {
	tracking.FrameSource
	Meta() tracking.VideoMeta
	Close() error
}

// PhotoAnalysis is the sidecar's cascade output for one photo.
type PhotoAnalysis struct {
	Faces int          `json:"faces"`
	Eyes  []reflex.Eye `json:"eyes"`
	Error string       `json:"error,omitempty"`
}

type message struct {
	Type       string              `json:"type"`
	FPS        float64             `json:"fps,omitempty"`
	FrameCount int                 `json:"frame_count,omitempty"`
	Index      int                 `json:"index,omitempty"`
	Width      int                 `json:"width,omitempty"`
	Height     int                 `json:"height,omitempty"`
	Face       *tracking.Landmarks `json:"face,omitempty"`
	Error      string              `json:"error,omitempty"`
}

type Config struct {
	VideoURL     string
	PhotoURL     string
	PingInterval time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

func ConfigFromEnv() Config {
	cfg := Config{
		VideoURL: os.Getenv("VISION_VIDEO_URL"),
		PhotoURL: os.Getenv("VISION_PHOTO_URL"),
	}
	if cfg.VideoURL == "" {
		cfg.VideoURL = DefaultVideoURL
	}
	if cfg.PhotoURL == "" {
		cfg.PhotoURL = DefaultPhotoURL
	}
	return cfg
}

type client struct {
	cfg       Config
	log       *logrus.Logger
	dialer    *websocket.Dialer
	photoConn *websocket.Conn
	mu        sync.Mutex
}

func New(cfg Config, logger *logrus.Logger) IVision {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 30 * time.Second
	}

	return &client{
		cfg: cfg,
		log: logger,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
			ReadBufferSize:   64 * 1024,
			WriteBufferSize:  64 * 1024,
		},
	}
}

// NewAIWebSocketClient builds a client from the environment and connects the
// photo channel in the background.
func NewAIWebSocketClient(logger *logrus.Logger) IVision {
	c := New(ConfigFromEnv(), logger).(*client)
	go c.connectInBackground()
	return c
}

func (c *client) connectInBackground() {
	if err := c.reconnectPhoto(context.Background()); err != nil {
		c.log.Warnf("Initial connection to vision photo service failed: %v. Will retry on demand.", err)
		return
	}
	c.log.Info("Successfully connected to vision photo service")
}

func (c *client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.photoConn != nil
}

func (c *client) CloseConnections() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.photoConn != nil {
		c.photoConn.Close()
		c.photoConn = nil
	}
}

// Ping dials the video endpoint and closes the connection again.
func (c *client) Ping(ctx context.Context) error {
	if c.cfg.VideoURL == "" {
		return ErrNotConfigured
	}

	conn, _, err := c.dialer.DialContext(ctx, c.cfg.VideoURL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", c.cfg.VideoURL, err)
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(c.cfg.WriteTimeout))
	return conn.Close()
}

func (c *client) reconnectPhoto(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.photoConn != nil {
		c.photoConn.Close()
		c.photoConn = nil
	}

	if c.cfg.PhotoURL == "" {
		return ErrNotConfigured
	}

	conn, _, err := c.dialer.DialContext(ctx, c.cfg.PhotoURL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", c.cfg.PhotoURL, err)
	}

	conn.SetPingHandler(func(appData string) error {
		if err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(c.cfg.WriteTimeout)); err != nil {
			c.log.Debugf("Error sending pong: %v", err)
		}
		return nil
	})

	c.photoConn = conn
	go c.keepAlive(conn)

	return nil
}

func (c *client) keepAlive(conn *websocket.Conn) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for range ticker.C {
		c.mu.Lock()
		if c.photoConn != conn {
			c.mu.Unlock()
			return
		}

		err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(c.cfg.WriteTimeout))
		if err != nil {
			c.log.Warnf("Ping failed for vision photo service, marking connection as dead: %v", err)
			c.photoConn = nil
			conn.Close()
			c.mu.Unlock()
			return
		}

		c.mu.Unlock()
	}
}

// AnalyzePhoto sends an encoded image over the shared photo connection and
// waits for the cascade result. Requests are serialised on the connection.
func (c *client) AnalyzePhoto(ctx context.Context, image []byte) (*PhotoAnalysis, error) {
	c.mu.Lock()
	conn := c.photoConn
	c.mu.Unlock()

	if conn == nil {
		if err := c.reconnectPhoto(ctx); err != nil {
			return nil, fmt.Errorf("cannot connect to vision photo service: %w", err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	conn = c.photoConn
	if conn == nil {
		return nil, fmt.Errorf("not connected to vision photo service")
	}

	deadline := time.Now().Add(c.cfg.ReadTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	if err := conn.WriteMessage(websocket.BinaryMessage, image); err != nil {
		c.photoConn = nil
		conn.Close()
		return nil, fmt.Errorf("error sending photo: %w", err)
	}

	conn.SetReadDeadline(deadline)
	_, raw, err := conn.ReadMessage()
	if err != nil {
		c.photoConn = nil
		conn.Close()
		return nil, fmt.Errorf("error reading photo result: %w", err)
	}
	conn.SetReadDeadline(time.Time{})
	conn.SetWriteDeadline(time.Time{})

	var result PhotoAnalysis
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("error unmarshaling photo result: %w", err)
	}
	if result.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrImageRejected, result.Error)
	}

	c.log.WithFields(logrus.Fields{
		"faces": result.Faces,
		"eyes":  len(result.Eyes),
	}).Debug("Received photo result from vision service")

	return &result, nil
}

// StreamVideo uploads the file at path on a dedicated connection and returns
// a stream of decoded frames once the backend has reported the video meta.
func (c *client) StreamVideo(ctx context.Context, path string) (FrameStream, error) {
	if c.cfg.VideoURL == "" {
		return nil, ErrNotConfigured
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read video: %w", err)
	}

	conn, _, err := c.dialer.DialContext(ctx, c.cfg.VideoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", c.cfg.VideoURL, err)
	}

	s := &VideoStream{
		conn:        conn,
		readTimeout: c.cfg.ReadTimeout,
		done:        make(chan struct{}),
	}
	go s.closeOnCancel(ctx)

	conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		s.Close()
		return nil, fmt.Errorf("error sending video: %w", err)
	}
	conn.SetWriteDeadline(time.Time{})

	msg, err := s.read()
	if err != nil {
		s.Close()
		return nil, err
	}
	switch msg.Type {
	case "meta":
		s.meta = tracking.VideoMeta{
			FPS:         msg.FPS,
			TotalFrames: msg.FrameCount,
			Width:       msg.Width,
			Height:      msg.Height,
		}
	case "error":
		s.Close()
		return nil, fmt.Errorf("vision video service: %s", msg.Error)
	default:
		s.Close()
		return nil, fmt.Errorf("%w: %q before meta", ErrProtocol, msg.Type)
	}

	c.log.WithFields(logrus.Fields{
		"fps":          s.meta.FPS,
		"total_frames": s.meta.TotalFrames,
		"width":        s.meta.Width,
		"height":       s.meta.Height,
	}).Debug("Vision service accepted video")

	return s, nil
}

// VideoStream is a tracking.FrameSource backed by one sidecar connection.
type VideoStream struct {
	conn        *websocket.Conn
	meta        tracking.VideoMeta
	readTimeout time.Duration
	done        chan struct{}
	closeOnce   sync.Once
	ended       bool
}

func (s *VideoStream) Meta() tracking.VideoMeta {
	return s.meta
}

func (s *VideoStream) Next() (tracking.Frame, error) {
	if s.ended {
		return tracking.Frame{}, io.EOF
	}

	msg, err := s.read()
	if err != nil {
		return tracking.Frame{}, err
	}

	switch msg.Type {
	case "frame":
		f := tracking.Frame{
			Index:  msg.Index,
			Width:  msg.Width,
			Height: msg.Height,
			Face:   msg.Face,
		}
		if f.Width == 0 {
			f.Width = s.meta.Width
		}
		if f.Height == 0 {
			f.Height = s.meta.Height
		}
		return f, nil
	case "end":
		s.ended = true
		return tracking.Frame{}, io.EOF
	case "error":
		return tracking.Frame{}, fmt.Errorf("vision video service: %s", msg.Error)
	default:
		return tracking.Frame{}, fmt.Errorf("%w: %q", ErrProtocol, msg.Type)
	}
}

func (s *VideoStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		err = s.conn.Close()
	})
	return err
}

func (s *VideoStream) read() (message, error) {
	s.conn.SetReadDeadline(time.Now().Add(s.readTimeout))

	var msg message
	_, raw, err := s.conn.ReadMessage()
	if err != nil {
		return msg, fmt.Errorf("error reading vision message: %w", err)
	}
	if err := json.Unmarshal(raw, &msg); err != nil {
		return msg, fmt.Errorf("error unmarshaling vision message: %w", err)
	}
	return msg, nil
}

func (s *VideoStream) closeOnCancel(ctx context.Context) {
	select {
	case <-ctx.Done():
		s.Close()
	case <-s.done:
	}
}
