package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/buildmaster/internal/api/mocks"
	"github.com/mattjoyce/buildmaster/internal/events"
	"github.com/mattjoyce/buildmaster/internal/scripts"
	"github.com/mattjoyce/buildmaster/internal/storage"
	"github.com/mattjoyce/buildmaster/internal/supervisor"
)

func newTestServer(t *testing.T, withHistory bool) (*Server, *mocks.MockBuilderRegistry, *mocks.MockHistoryReader, *events.Hub) {
	t.Helper()
	ctrl := gomock.NewController(t)
	reg := mocks.NewMockBuilderRegistry(ctrl)
	hub := events.NewHub(16)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var hist *mocks.MockHistoryReader
	var reader HistoryReader
	if withHistory {
		hist = mocks.NewMockHistoryReader(ctrl)
		reader = hist
	}
	return New(Config{Listen: "127.0.0.1:0"}, reg, reader, hub, logger), reg, hist, hub
}

func serve(s *Server, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	rr := httptest.NewRecorder()
	s.setupRoutes().ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func runningView(name string) supervisor.View {
	return supervisor.View{
		Snapshot: supervisor.Snapshot{
			Name:         name,
			GenerationID: "gen-" + name,
			PID:          4242,
			StartedAt:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
			Running:      true,
			Stdout:       "a\n",
			Stderr:       "",
		},
		Description: scripts.Description{Summary: "Builds the site.", HTML: "<p>Builds the site.</p>\n"},
	}
}

func runningStatus(name string) supervisor.Status {
	v := runningView(name)
	return supervisor.Status{
		GenerationInfo: supervisor.GenerationInfo{
			Builder:   name,
			ID:        v.GenerationID,
			PID:       v.PID,
			StartedAt: v.StartedAt,
		},
		Running: true,
	}
}

func TestHandleHealthz(t *testing.T) {
	s, reg, _, _ := newTestServer(t, false)
	reg.EXPECT().KnownNames().Return([]string{"a.sh", "b.sh"}, nil)
	reg.EXPECT().Running().Return([]string{"a.sh"})

	rr := serve(s, http.MethodGet, "/healthz")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	resp := decode[HealthzResponse](t, rr)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.BuildersRunning)
	assert.Equal(t, 2, resp.ScriptsKnown)
}

func TestHandleHealthz_ListError(t *testing.T) {
	s, reg, _, _ := newTestServer(t, false)
	reg.EXPECT().KnownNames().Return(nil, errors.New("permission denied"))

	rr := serve(s, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestHandleListBuilders(t *testing.T) {
	s, reg, _, _ := newTestServer(t, false)
	reg.EXPECT().KnownNames().Return([]string{"b.sh", "a.sh"}, nil)
	// gone.sh is still running although its script was removed.
	reg.EXPECT().Running().Return([]string{"a.sh", "gone.sh"})
	// Listing must not drain every builder's output.
	reg.EXPECT().Snapshot(gomock.Any()).Times(0)
	reg.EXPECT().Status("a.sh").Return(runningStatus("a.sh"), true)
	reg.EXPECT().Status("b.sh").Return(supervisor.Status{}, false)
	reg.EXPECT().Status("gone.sh").Return(runningStatus("gone.sh"), true)

	rr := serve(s, http.MethodGet, "/builders")
	require.Equal(t, http.StatusOK, rr.Code)

	resp := decode[BuilderListResponse](t, rr)
	assert.Equal(t, []BuilderSummary{
		{Name: "a.sh", Running: true, GenerationID: "gen-a.sh", PID: 4242},
		{Name: "b.sh"},
		{Name: "gone.sh", Running: true, GenerationID: "gen-gone.sh", PID: 4242},
	}, resp.Builders)
}

func TestHandleGetBuilder_CreatesOnDemand(t *testing.T) {
	s, reg, _, _ := newTestServer(t, false)
	reg.EXPECT().GetOrCreate("site.sh").Return(runningView("site.sh"), nil)

	rr := serve(s, http.MethodGet, "/builders/site.sh")
	require.Equal(t, http.StatusOK, rr.Code)

	resp := decode[BuilderResponse](t, rr)
	assert.Equal(t, "site.sh", resp.Name)
	assert.Equal(t, "a\n", resp.Stdout)
	assert.Equal(t, "", resp.Stderr)
	assert.True(t, resp.Running)
	assert.Nil(t, resp.ExitCode)
	assert.Equal(t, "Builds the site.", resp.Summary)
	assert.Contains(t, resp.DescriptionHTML, "<p>")
}

func TestHandleGetBuilder_Exited(t *testing.T) {
	s, reg, _, _ := newTestServer(t, false)
	v := runningView("site.sh")
	v.Running = false
	v.Exit = &supervisor.Exit{Code: 2, Status: "exit status 2", At: v.StartedAt.Add(time.Second)}
	reg.EXPECT().GetOrCreate("site.sh").Return(v, nil)

	resp := decode[BuilderResponse](t, serve(s, http.MethodGet, "/builders/site.sh"))
	require.NotNil(t, resp.ExitCode)
	assert.Equal(t, 2, *resp.ExitCode)
	assert.Equal(t, "exit status 2", resp.ExitStatus)
	assert.False(t, resp.Running)
}

func TestHandleGetBuilder_Errors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"missing script", &supervisor.SpawnError{Name: "x", Op: "resolve", Err: fmt.Errorf("stat: %w", fs.ErrNotExist)}, http.StatusNotFound},
		{"plain not found", fmt.Errorf("x: %w", supervisor.ErrNotFound), http.StatusNotFound},
		{"invalid name", &supervisor.SpawnError{Name: "x", Op: "resolve", Err: scripts.ErrInvalidName}, http.StatusBadRequest},
		{"shutting down", supervisor.ErrClosed, http.StatusServiceUnavailable},
		{"not executable", &supervisor.SpawnError{Name: "x", Op: "resolve", Err: scripts.ErrNotExecutable}, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, reg, _, _ := newTestServer(t, false)
			reg.EXPECT().GetOrCreate("x").Return(supervisor.View{}, tt.err)

			rr := serve(s, http.MethodGet, "/builders/x")
			assert.Equal(t, tt.code, rr.Code)
			assert.NotEmpty(t, decode[ErrorResponse](t, rr).Error)
		})
	}
}

func TestHandleGetBuilder_NoCreate(t *testing.T) {
	s, reg, _, _ := newTestServer(t, false)
	reg.EXPECT().Snapshot("site.sh").Return(supervisor.View{}, false)

	rr := serve(s, http.MethodGet, "/builders/site.sh?create=false")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	reg.EXPECT().Snapshot("site.sh").Return(runningView("site.sh"), true)
	rr = serve(s, http.MethodGet, "/builders/site.sh?create=false")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "gen-site.sh", decode[BuilderResponse](t, rr).GenerationID)
}

func TestHandleGetBuilder_ActionRedeploy(t *testing.T) {
	s, reg, _, _ := newTestServer(t, false)
	gomock.InOrder(
		reg.EXPECT().Redeploy("site.sh").Return(nil),
		reg.EXPECT().Snapshot("site.sh").Return(runningView("site.sh"), true),
	)

	rr := serve(s, http.MethodGet, "/builders/site.sh?action=redeploy")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, RedeployResponse{Name: "site.sh", Status: "redeployed", GenerationID: "gen-site.sh"}, decode[RedeployResponse](t, rr))
}

func TestHandleRedeploy(t *testing.T) {
	s, reg, _, _ := newTestServer(t, false)
	reg.EXPECT().Redeploy("site.sh").Return(nil)
	reg.EXPECT().Snapshot("site.sh").Return(runningView("site.sh"), true)

	rr := serve(s, http.MethodPost, "/builders/site.sh/redeploy")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "redeployed", decode[RedeployResponse](t, rr).Status)

	reg.EXPECT().Redeploy("nope.sh").Return(fmt.Errorf("redeploy: %w", supervisor.ErrNotFound))
	rr = serve(s, http.MethodPost, "/builders/nope.sh/redeploy")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandleRedeploy_MethodNotAllowed(t *testing.T) {
	s, _, _, _ := newTestServer(t, false)
	rr := serve(s, http.MethodGet, "/builders/site.sh/redeploy")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestHandleTerminate(t *testing.T) {
	s, reg, _, _ := newTestServer(t, false)
	reg.EXPECT().Terminate("site.sh").Return(nil)
	rr := serve(s, http.MethodPost, "/builders/site.sh/terminate")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Empty(t, rr.Body.String())

	reg.EXPECT().Terminate("site.sh").Return(fmt.Errorf("terminate site.sh: %w", supervisor.ErrNotFound))
	rr = serve(s, http.MethodPost, "/builders/site.sh/terminate")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandleHistory_Disabled(t *testing.T) {
	s, _, _, _ := newTestServer(t, false)
	rr := serve(s, http.MethodGet, "/builders/site.sh/history")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "history disabled", decode[ErrorResponse](t, rr).Error)
}

func TestHandleHistory(t *testing.T) {
	s, _, hist, _ := newTestServer(t, true)
	code := 0
	rows := []storage.Deployment{
		{ID: 2, Builder: "site.sh", GenerationID: "g2", PID: 11, Reason: "redeploy"},
		{ID: 1, Builder: "site.sh", GenerationID: "g1", PID: 10, Reason: "exited", ExitCode: &code},
	}
	hist.EXPECT().List(gomock.Any(), "site.sh", 5).Return(rows, nil)

	rr := serve(s, http.MethodGet, "/builders/site.sh/history?limit=5")
	require.Equal(t, http.StatusOK, rr.Code)
	resp := decode[HistoryResponse](t, rr)
	assert.Equal(t, "site.sh", resp.Name)
	require.Len(t, resp.Deployments, 2)
	assert.Equal(t, "g2", resp.Deployments[0].GenerationID)

	hist.EXPECT().List(gomock.Any(), "empty.sh", 50).Return(nil, nil)
	rr = serve(s, http.MethodGet, "/builders/empty.sh/history")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"deployments":[]`)

	rr = serve(s, http.MethodGet, "/builders/site.sh/history?limit=zero")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	hist.EXPECT().List(gomock.Any(), "site.sh", 50).Return(nil, errors.New("disk I/O error"))
	rr = serve(s, http.MethodGet, "/builders/site.sh/history")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestHandleEvents_ReplaysAndStreams(t *testing.T) {
	s, _, _, hub := newTestServer(t, false)
	hub.Publish(events.BuilderSpawned, "site.sh", events.GenerationPayload{GenerationID: "g1", PID: 1})
	hub.Publish(events.BuilderExited, "site.sh", events.ExitPayload{GenerationID: "g1", ExitCode: 0})

	ts := httptest.NewServer(s.setupRoutes())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/events", nil)
	require.NoError(t, err)
	req.Header.Set("Last-Event-ID", "1")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	r := bufio.NewReader(resp.Body)
	readEvent := func() (string, events.Event) { return readSSE(t, r) }

	typ, ev := readEvent()
	assert.Equal(t, events.BuilderExited, typ)
	assert.Equal(t, int64(2), ev.ID)
	assert.Equal(t, "site.sh", ev.Builder)

	hub.Publish(events.BuilderTerminated, "site.sh", nil)
	typ, ev = readEvent()
	assert.Equal(t, events.BuilderTerminated, typ)
	assert.Equal(t, int64(3), ev.ID)
}

func openEventStream(t *testing.T, url string) (*bufio.Reader, func()) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return bufio.NewReader(resp.Body), func() {
		_ = resp.Body.Close()
		cancel()
	}
}

// readSSE reads one frame, skipping keep-alive comments.
func readSSE(t *testing.T, r *bufio.Reader) (string, events.Event) {
	t.Helper()
	var typ string
	var ev events.Event
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "":
			if typ != "" {
				return typ, ev
			}
		case strings.HasPrefix(line, "event: "):
			typ = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
		}
	}
}

func TestHandleEvents_FiltersByBuilder(t *testing.T) {
	s, _, _, hub := newTestServer(t, false)
	hub.Publish(events.BuilderSpawned, "api.sh", events.GenerationPayload{GenerationID: "a1"})
	hub.Publish(events.BuilderSpawned, "site.sh", events.GenerationPayload{GenerationID: "s1"})

	ts := httptest.NewServer(s.setupRoutes())
	defer ts.Close()

	r, closeStream := openEventStream(t, ts.URL+"/events?builder=site.sh")
	defer closeStream()

	_, ev := readSSE(t, r)
	assert.Equal(t, "site.sh", ev.Builder)
	assert.Equal(t, int64(2), ev.ID)

	hub.Publish(events.BuilderExited, "api.sh", events.ExitPayload{GenerationID: "a1"})
	hub.Publish(events.BuilderExited, "site.sh", events.ExitPayload{GenerationID: "s1", ExitCode: 4})
	typ, ev := readSSE(t, r)
	assert.Equal(t, events.BuilderExited, typ)
	assert.Equal(t, "site.sh", ev.Builder)
	assert.Equal(t, int64(4), ev.ID)
}

func TestParseLastEventID(t *testing.T) {
	assert.Equal(t, int64(0), parseLastEventID(""))
	assert.Equal(t, int64(0), parseLastEventID("abc"))
	assert.Equal(t, int64(0), parseLastEventID("-4"))
	assert.Equal(t, int64(42), parseLastEventID("42"))
}

func TestServeShutsDownOnCancel(t *testing.T) {
	s, _, _, _ := newTestServer(t, false)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
