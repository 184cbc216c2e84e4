package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msusndrotcunit-boop/MSU-SND-RGMS-sub000/internal/domain"
)

type streamConn struct {
	lines chan string
}

func openStream(t *testing.T, ts *testServer, token, lastEventID string) *streamConn {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.http.URL+"/stream/events", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	if lastEventID != "" {
		req.Header.Set("Last-Event-ID", lastEventID)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := make(chan string, 64)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	t.Cleanup(func() {
		cancel()
		resp.Body.Close()
	})
	return &streamConn{lines: lines}
}

// nextLine returns the next non-blank line, or false if none arrives in time.
func (sc *streamConn) nextLine(timeout time.Duration) (string, bool) {
	deadline := time.After(timeout)
	for {
		select {
		case line, ok := <-sc.lines:
			if !ok {
				return "", false
			}
			if line == "" {
				continue
			}
			return line, true
		case <-deadline:
			return "", false
		}
	}
}

// nextFrame reads one id/data pair. id is 0 when the frame carried no id line.
func (sc *streamConn) nextFrame(t *testing.T) (int64, string) {
	t.Helper()
	line, ok := sc.nextLine(2 * time.Second)
	require.True(t, ok, "expected a stream frame")

	var id int64
	if rest, found := strings.CutPrefix(line, "id: "); found {
		parsed, err := strconv.ParseInt(rest, 10, 64)
		require.NoError(t, err)
		id = parsed
		line, ok = sc.nextLine(2 * time.Second)
		require.True(t, ok, "expected a data line after the id line")
	}
	data, found := strings.CutPrefix(line, "data: ")
	require.True(t, found, "unexpected stream line %q", line)
	return id, data
}

func TestStream_ConnectedThenInitialBurst(t *testing.T) {
	ts := newTestServer(t)
	ts.seed(t, domain.EventNotification, nil, `{"text":"hello"}`)
	ts.seed(t, domain.EventGradeUpdate, cadetID(42), `{"grade":95}`)

	sc := openStream(t, ts, ts.mint(t, adminIdentity(1)), "")

	id, data := sc.nextFrame(t)
	assert.Zero(t, id, "the connected frame must not move the resume cursor")
	var connected domain.ConnectionEstablishedFrame
	require.NoError(t, json.Unmarshal([]byte(data), &connected))
	assert.Equal(t, domain.FrameConnectionEstablished, connected.Type)
	assert.Equal(t, int64(1), connected.UserID)

	id, data = sc.nextFrame(t)
	assert.Equal(t, int64(1), id)
	var frame domain.EventFrame
	require.NoError(t, json.Unmarshal([]byte(data), &frame))
	assert.Equal(t, domain.EventNotification, frame.Type)
	assert.False(t, frame.Replayed)

	id, data = sc.nextFrame(t)
	assert.Equal(t, int64(2), id)
	require.NoError(t, json.Unmarshal([]byte(data), &frame))
	assert.Equal(t, domain.EventGradeUpdate, frame.Type)
	assert.JSONEq(t, `{"grade":95}`, string(frame.Payload))
}

func TestStream_LastEventIDResumption(t *testing.T) {
	ts := newTestServer(t)
	ts.seed(t, domain.EventNotification, nil, `{}`)
	ts.seed(t, domain.EventNotification, nil, `{}`)
	ts.seed(t, domain.EventNotification, nil, `{"n":3}`)

	sc := openStream(t, ts, ts.mint(t, adminIdentity(1)), "2")

	id, _ := sc.nextFrame(t)
	assert.Zero(t, id)

	id, data := sc.nextFrame(t)
	assert.Equal(t, int64(3), id)
	var frame domain.EventFrame
	require.NoError(t, json.Unmarshal([]byte(data), &frame))
	assert.Equal(t, int64(3), frame.ID)

	_, ok := sc.nextLine(300 * time.Millisecond)
	assert.False(t, ok, "events 1 and 2 must not be resent")
}

func TestStream_CadetVisibility(t *testing.T) {
	ts := newTestServer(t)
	ts.seed(t, domain.EventNotification, nil, `{}`)
	ts.seed(t, domain.EventAttendanceUpdate, cadetID(42), `{}`)
	ts.seed(t, domain.EventGradeUpdate, cadetID(7), `{}`)

	sc := openStream(t, ts, ts.mint(t, cadetIdentity(1, 42)), "")

	id, _ := sc.nextFrame(t)
	assert.Zero(t, id)

	id, _ = sc.nextFrame(t)
	assert.Equal(t, int64(1), id)
	id, _ = sc.nextFrame(t)
	assert.Equal(t, int64(2), id)

	_, ok := sc.nextLine(300 * time.Millisecond)
	assert.False(t, ok, "cadet 42 must not receive cadet 7's event")
}

func TestStream_HeartbeatWhenIdle(t *testing.T) {
	ts := newTestServer(t)

	sc := openStream(t, ts, ts.mint(t, adminIdentity(1)), "")

	id, _ := sc.nextFrame(t)
	assert.Zero(t, id)

	line, ok := sc.nextLine(2 * time.Second)
	require.True(t, ok)
	assert.Equal(t, ": heartbeat", line)
}

func TestStream_RejectsBadToken(t *testing.T) {
	ts := newTestServer(t)

	req, err := http.NewRequest(http.MethodGet, ts.http.URL+"/stream/events", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer garbage")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
