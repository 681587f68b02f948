package screeningHandler

import (
	"errors"
	"time"

	"eyescreen/internal/api/screening"
	screeningService "eyescreen/internal/api/screening/service"
	"eyescreen/internal/middleware"
	contextPkg "eyescreen/pkg/context"

	"github.com/gofiber/websocket/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

const (
	liveReadTimeout  = 60 * time.Second
	liveWriteTimeout = 10 * time.Second
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// handleLiveSession runs one live screening over a websocket. The client
// opens with an optional start message, streams frame messages and finishes
// with end; detections are pushed back as they happen.
func (h *ScreeningHandler) handleLiveSession(c *websocket.Conn) {
	requestID, _ := c.Locals(middleware.RequestIDKey).(string)
	ctx := contextPkg.WithRequestID(context.Background(), requestID)
	logger := h.log.WithField("request_id", requestID)

	logger.Info("Live screening client connected")
	defer logger.Info("Live screening client disconnected")

	c.SetPingHandler(func(data string) error {
		if err := c.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(5*time.Second)); err != nil {
			logger.Errorf("Error sending pong: %v", err)
		}
		return nil
	})

	var live *screeningService.LiveSession
	defer func() {
		if live != nil {
			live.Close()
		}
	}()

	for {
		if err := c.SetReadDeadline(time.Now().Add(liveReadTimeout)); err != nil {
			logger.Errorf("Error setting read deadline: %v", err)
			return
		}

		messageType, raw, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Errorf("Live screening websocket error: %v", err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			logger.Warnf("Received unexpected message type: %d", messageType)
			continue
		}

		var msg screening.StreamInbound
		if err := json.Unmarshal(raw, &msg); err != nil {
			if !h.send(c, logger, screening.StreamOutbound{Type: screening.StreamError, Error: "malformed message"}) {
				return
			}
			continue
		}

		switch msg.Type {
		case screening.StreamStart:
			if live != nil {
				h.send(c, logger, screening.StreamOutbound{Type: screening.StreamError, Error: "session already started"})
				continue
			}
			live, err = h.screeningService.StartLive(ctx, msg)
			if err != nil {
				h.send(c, logger, screening.StreamOutbound{Type: screening.StreamError, Error: err.Error()})
				return
			}

		case screening.StreamFrame:
			if live == nil {
				live, err = h.screeningService.StartLive(ctx, screening.StreamInbound{Type: screening.StreamStart})
				if err != nil {
					h.send(c, logger, screening.StreamOutbound{Type: screening.StreamError, Error: err.Error()})
					return
				}
			}
			if item := live.Push(msg); item != nil {
				if !h.send(c, logger, screening.StreamOutbound{Type: screening.StreamDetection, Detection: item}) {
					return
				}
			}

		case screening.StreamEnd:
			if live == nil {
				h.send(c, logger, screening.StreamOutbound{Type: screening.StreamError, Error: screening.ErrSessionNotStarted.Error()})
				return
			}
			resp, err := h.screeningService.FinishLive(ctx, live)
			live = nil
			if err != nil {
				if !errors.Is(err, screening.ErrUnreadableVideo) {
					logger.WithError(err).Error("Failed to finish live session")
				}
				h.send(c, logger, screening.StreamOutbound{Type: screening.StreamError, Error: err.Error()})
				return
			}
			h.send(c, logger, screening.StreamOutbound{
				Type:     screening.StreamResult,
				ReportID: resp.ReportID,
				Analysis: &resp.Analysis,
			})
			return

		default:
			if !h.send(c, logger, screening.StreamOutbound{Type: screening.StreamError, Error: "unknown message type " + msg.Type}) {
				return
			}
		}
	}
}

func (h *ScreeningHandler) send(c *websocket.Conn, logger *logrus.Entry, out screening.StreamOutbound) bool {
	if err := c.SetWriteDeadline(time.Now().Add(liveWriteTimeout)); err != nil {
		logger.Errorf("Error setting write deadline: %v", err)
		return false
	}
	if err := c.WriteJSON(out); err != nil {
		logger.Errorf("Error writing JSON response: %v", err)
		return false
	}
	return true
}
