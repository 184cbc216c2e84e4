package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/msusndrotcunit-boop/MSU-SND-RGMS-sub000/internal/broadcast"
	"github.com/msusndrotcunit-boop/MSU-SND-RGMS-sub000/internal/domain"
	"github.com/msusndrotcunit-boop/MSU-SND-RGMS-sub000/internal/metrics"
	"github.com/msusndrotcunit-boop/MSU-SND-RGMS-sub000/internal/platform/correlation"
)

// closeCodeAuthFailure distinguishes an auth rejection from ordinary closes
// so clients do not retry with the same token.
const closeCodeAuthFailure = 4401

// replaySendTimeout bounds how long one replay frame may wait for space in
// the client's send buffer. A replay page is larger than the buffer, so
// emission paces itself to the socket; only a client that stops reading
// entirely hits this.
const replaySendTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // token auth, no cookie to protect
	},
}

func (s *Server) handleWebSocket(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade WebSocket: %w", err)
	}

	// The token rides the query string; headers are not available to
	// browser WebSocket clients. Auth failures close the raw socket with
	// the distinguishing code, before the connection joins anything.
	identity, err := s.tokens.Verify(c.QueryParam("token"))
	if err != nil {
		metrics.WebSocketAuthFailuresTotal.Inc()
		msg := websocket.FormatCloseMessage(closeCodeAuthFailure, "authentication failed")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		_ = conn.Close()
		return nil
	}

	client, err := s.registry.Join(identity, conn)
	if err != nil {
		slog.Error("Failed to join registry", "user_id", identity.UserID, "error", err)
		_ = conn.Close()
		return nil
	}
	defer s.registry.Leave(client)

	if !sendFrame(client, domain.NewConnectionEstablished(identity)) {
		return nil
	}

	ctx := correlation.NewContext(c.Request().Context(), correlation.New())
	slog.InfoContext(ctx, "WebSocket connected", "user_id", identity.UserID, "role", identity.Role)

	// Read loop. A malformed frame is answered in-band; only transport
	// errors end the connection.
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.DebugContext(ctx, "WebSocket closed unexpectedly", "user_id", identity.UserID, "error", err)
			}
			return nil
		}

		var frame domain.InboundFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			metrics.WebSocketProtocolErrorsTotal.Inc()
			sendFrame(client, domain.ErrorFrame{Type: domain.FrameError, Message: "malformed frame"})
			continue
		}

		switch frame.Type {
		case domain.FramePing:
			sendFrame(client, domain.PongFrame{Type: domain.FramePong, Timestamp: frame.Timestamp})

		case domain.FrameReplayRequest:
			s.handleReplayRequest(c, client, frame.LastEventID)

		default:
			metrics.WebSocketProtocolErrorsTotal.Inc()
			sendFrame(client, domain.ErrorFrame{Type: domain.FrameError, Message: fmt.Sprintf("unknown frame type %q", frame.Type)})
		}
	}
}

func (s *Server) handleReplayRequest(c echo.Context, client *broadcast.Client, lastEventID int64) {
	result, err := s.replay.Replay(c.Request().Context(), client.Identity(), lastEventID, func(frame domain.EventFrame) error {
		if !sendFrameWait(client, frame) {
			return fmt.Errorf("client stopped draining replay frames")
		}
		return nil
	})
	if err != nil {
		slog.Error("Replay failed",
			"user_id", client.Identity().UserID,
			"last_event_id", lastEventID,
			"error", err,
		)
		sendFrameWait(client, domain.ErrorFrame{Type: domain.FrameError, Message: "replay failed"})
		return
	}

	sendFrameWait(client, domain.ReplayCompleteFrame{
		Type:        domain.FrameReplayComplete,
		Count:       result.Count,
		LastEventID: result.LastEventID,
	})
}

// sendFrame marshals and enqueues one frame. Reports false when the client
// cannot take more; the caller's teardown path handles cleanup.
func sendFrame(client *broadcast.Client, v any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("Failed to marshal frame", "error", err)
		return true
	}
	return client.Send(data)
}

// sendFrameWait is sendFrame with backpressure: it waits for buffer room so
// a replay page larger than the send buffer arrives whole.
func sendFrameWait(client *broadcast.Client, v any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("Failed to marshal frame", "error", err)
		return true
	}
	return client.SendWait(data, replaySendTimeout)
}
