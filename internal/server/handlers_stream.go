package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/msusndrotcunit-boop/MSU-SND-RGMS-sub000/internal/domain"
	"github.com/msusndrotcunit-boop/MSU-SND-RGMS-sub000/internal/metrics"
	"github.com/msusndrotcunit-boop/MSU-SND-RGMS-sub000/internal/platform/correlation"
)

const (
	streamPollInterval = 2 * time.Second
	streamErrorBackoff = 5 * time.Second
	streamPollLimit    = 100
)

// handleStream serves the polling event-stream transport. The stream does
// not register with the fan-out registry; it tails the log directly, which
// makes resumption free: the client replays by sending Last-Event-ID.
func (s *Server) handleStream(c echo.Context) error {
	identity, err := s.tokens.Verify(bearerToken(c))
	if err != nil {
		return err
	}

	cursor := int64(0)
	if header := c.Request().Header.Get("Last-Event-ID"); header != "" {
		if parsed, err := strconv.ParseInt(header, 10, 64); err == nil && parsed > 0 {
			cursor = parsed
		}
	}

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set("Cache-Control", "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)

	metrics.SSEStreamsActive.Inc()
	defer metrics.SSEStreamsActive.Dec()

	ctx := correlation.NewContext(c.Request().Context(), correlation.New())
	slog.InfoContext(ctx, "Stream connected", "user_id", identity.UserID, "role", identity.Role, "cursor", cursor)

	if err := writeStreamFrame(resp, 0, domain.NewConnectionEstablished(identity)); err != nil {
		return nil
	}

	for {
		events, err := s.store.ListSince(ctx, cursor, streamPollLimit)
		if err != nil {
			slog.ErrorContext(ctx, "Stream poll failed", "user_id", identity.UserID, "error", err)
			if !s.streamSleep(ctx, streamErrorBackoff) {
				return nil
			}
			continue
		}

		sent := 0
		for _, e := range events {
			// The cursor advances past invisible events too, so the next
			// poll never rescans them.
			cursor = e.ID
			if !identity.CanSee(e) {
				continue
			}
			if err := writeStreamFrame(resp, e.ID, domain.NewEventFrame(e, false)); err != nil {
				return nil
			}
			metrics.SSEEventsSentTotal.Inc()
			sent++
		}

		if sent == 0 {
			if _, err := fmt.Fprint(resp, ": heartbeat\n\n"); err != nil {
				return nil
			}
			resp.Flush()
		}

		if !s.streamSleep(ctx, streamPollInterval) {
			slog.InfoContext(ctx, "Stream disconnected", "user_id", identity.UserID, "cursor", cursor)
			return nil
		}
	}
}

// streamSleep suspends between polls; reports false once the request is gone.
func (s *Server) streamSleep(ctx context.Context, d time.Duration) bool {
	timer := s.clock.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}

// writeStreamFrame emits one id/data pair. id 0 means no id line (used for
// the connected frame, which must not move the client's resume cursor).
func writeStreamFrame(resp *echo.Response, id int64, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal stream frame: %w", err)
	}
	if id > 0 {
		if _, err := fmt.Fprintf(resp, "id: %d\n", id); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(resp, "data: %s\n\n", data); err != nil {
		return err
	}
	resp.Flush()
	return nil
}
