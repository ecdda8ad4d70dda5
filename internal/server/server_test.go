package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"codeberg.org/mutker/devdash/internal/dashboard"
	"codeberg.org/mutker/devdash/internal/errors"
	"codeberg.org/mutker/devdash/internal/goal"
	"codeberg.org/mutker/devdash/internal/source"
	"codeberg.org/mutker/devdash/internal/telemetry"
	"codeberg.org/mutker/devdash/internal/ws"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	srv   *httptest.Server
	dash  *dashboard.Dashboard
	goals *goal.MemoryStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	goals := &goal.MemoryStore{}
	steps := source.NewStepLog()
	dash := dashboard.New(context.Background(), dashboard.Options{
		Telemetry: []source.Adapter{
			source.NewPedometer(steps),
			source.Func{Src: telemetry.SourceMemory, Fn: func(context.Context) (telemetry.Snapshot, error) {
				return telemetry.Snapshot{
					MemoryTotalBytes: telemetry.Present[uint64](8 << 30),
					MemoryUsedBytes:  telemetry.Present[uint64](2 << 30),
				}, nil
			}},
		},
		Interval:    time.Hour,
		DefaultGoal: 6000,
		Goals:       goals,
		Steps:       steps,
	})

	hub := ws.NewHub(nil)
	hub.Greeting = func() ws.Message {
		return ws.Message{Type: ws.TypeState, At: time.Now(), Data: dash.State()}
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = hub.Run(ctx) }()

	srv := httptest.NewServer(New(dash, hub.Handler(), nil).Handler())
	t.Cleanup(srv.Close)

	return &fixture{srv: srv, dash: dash, goals: goals}
}

func (f *fixture) do(t *testing.T, method, path string, body any) (int, Response) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, f.srv.URL+path, &buf)
	require.NoError(t, err)

	resp, err := f.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	return resp.StatusCode, out
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	status, resp := f.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, resp.Success)
}

func TestStateProjection(t *testing.T) {
	f := newFixture(t)

	_, resp := f.do(t, http.MethodGet, "/api/state", nil)
	state := resp.Data.(map[string]any)
	assert.Equal(t, telemetry.StatusLoading, state["memory"].(map[string]any)["status"])

	f.dash.TelemetryPass(context.Background())

	_, resp = f.do(t, http.MethodGet, "/api/state", nil)
	memory := resp.Data.(map[string]any)["memory"].(map[string]any)
	assert.Equal(t, telemetry.StatusOK, memory["status"])
	assert.Equal(t, "25% of 8.00 GB", memory["label"])
}

func TestGoalEndpoints(t *testing.T) {
	f := newFixture(t)

	status, resp := f.do(t, http.MethodGet, "/api/goal", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(6000), resp.Data.(map[string]any)["goal"])

	status, resp = f.do(t, http.MethodPut, "/api/goal", GoalRequest{Goal: 8000})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(8000), resp.Data.(map[string]any)["goal"])

	stored, ok, err := f.goals.Get(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 8000, stored)

	status, resp = f.do(t, http.MethodPut, "/api/goal", GoalRequest{Goal: -5})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, errors.ErrInvalidGoal, resp.Code)

	status, _ = f.do(t, http.MethodPut, "/api/goal", map[string]string{"goal": "many"})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestStepsAndRefresh(t *testing.T) {
	f := newFixture(t)

	status, _ := f.do(t, http.MethodPost, "/api/steps", StepsRequest{Steps: 1500})
	assert.Equal(t, http.StatusAccepted, status)

	status, _ = f.do(t, http.MethodPost, "/api/steps", StepsRequest{Steps: -1})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = f.do(t, http.MethodPost, "/api/refresh", nil)
	assert.Equal(t, http.StatusAccepted, status)

	f.dash.TelemetryPass(context.Background())
	assert.Equal(t, telemetry.Present(1500), f.dash.Snapshot().StepCount)
}

func TestHistoryEndpoint(t *testing.T) {
	f := newFixture(t)

	status, resp := f.do(t, http.MethodGet, "/api/history?limit=5", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Empty(t, resp.Data)

	status, resp = f.do(t, http.MethodGet, "/api/history?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, errors.ErrInvalidArgument, resp.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	f := newFixture(t)

	resp, err := f.srv.Client().Post(f.srv.URL+"/api/state", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestWebSocketGreeting(t *testing.T) {
	f := newFixture(t)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(f.srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg ws.Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, ws.TypeState, msg.Type)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusConflict, statusFor(source.ErrUnavailable))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.ErrPersistGoal))
	assert.Equal(t, http.StatusInternalServerError, statusFor(""))
}
