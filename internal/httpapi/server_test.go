package httpapi

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MimeLyc/yt-summary/internal/orchestrator"
	"github.com/MimeLyc/yt-summary/internal/presenter"
	"github.com/MimeLyc/yt-summary/internal/probe"
	"github.com/MimeLyc/yt-summary/internal/progress"
	"github.com/MimeLyc/yt-summary/internal/transport"
)

// newBackend serves /summarize, blocking each call until release is closed.
func newBackend(t *testing.T, release <-chan struct{}) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/summarize", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"summary":"영상 요약입니다.","method":"youtube_transcript_api","language":"ko"}`))
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"commit":"abc1234","branch":"main","youtube_transcript_api":"1.0.3","openai":true}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestServer(t *testing.T, release <-chan struct{}) (*Server, *orchestrator.Orchestrator) {
	t.Helper()
	backend := newBackend(t, release)

	cfg := progress.DefaultConfig()
	cfg.TickInterval = time.Hour
	client := transport.NewClient(5 * time.Second)
	orch := orchestrator.New(
		transport.NewSelector(transport.SelectorConfig{DefaultURL: backend.URL, Mode: transport.ModeBlocking}),
		client,
		transport.NewStreamDialer(time.Second, 0),
		orchestrator.WithProgressConfig(cfg),
	)
	t.Cleanup(func() { _ = orch.Close() })

	srv := NewServer(orch,
		WithHealthSource(probe.New(client, backend.URL)),
		WithHeartbeat(50*time.Millisecond),
	)
	return srv, orch
}

func doJSON(t *testing.T, srv *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader([]byte(body)))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeView(t *testing.T, rec *httptest.ResponseRecorder) presenter.View {
	t.Helper()
	var view presenter.View
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	return view
}

func TestServer_SubmitAndComplete(t *testing.T) {
	release := make(chan struct{})
	srv, orch := newTestServer(t, release)

	rec := doJSON(t, srv, http.MethodPost, "/api/submissions", `{"url":"https://youtu.be/abc123?t=5"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	view := decodeView(t, rec)
	assert.True(t, view.Busy)
	assert.Equal(t, "abc123", view.JobID)
	assert.Equal(t, 10, view.Percent)

	rec = doJSON(t, srv, http.MethodPost, "/api/reset", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	close(release)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_, err := orch.Wait(ctx, progress.Epoch(view.Epoch))
	require.NoError(t, err)

	rec = doJSON(t, srv, http.MethodGet, "/api/state", "")
	require.Equal(t, http.StatusOK, rec.Code)
	view = decodeView(t, rec)
	assert.Equal(t, orchestrator.StateCompleted, view.State)
	assert.Equal(t, 100, view.Percent)
	assert.Equal(t, "영상 요약입니다.", view.Summary)
	assert.Equal(t, "ko", view.Language)
	assert.Equal(t, "Captions", view.MethodLabel)

	rec = doJSON(t, srv, http.MethodPost, "/api/reset", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, orchestrator.StateIdle, decodeView(t, rec).State)
}

func TestServer_SubmitInvalidLink(t *testing.T) {
	srv, _ := newTestServer(t, make(chan struct{}))

	rec := doJSON(t, srv, http.MethodPost, "/api/submissions", `{"url":"not a link"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	view := decodeView(t, rec)
	assert.Equal(t, orchestrator.StateFailed, view.State)
	assert.Equal(t, "INVALID_INPUT", view.ErrorCode)
	assert.Equal(t, presenter.MessageError, view.MessageKind)
	assert.NotEmpty(t, view.Message)
}

func TestServer_RejectsBadRequests(t *testing.T) {
	srv, _ := newTestServer(t, make(chan struct{}))

	assert.Equal(t, http.StatusBadRequest, doJSON(t, srv, http.MethodPost, "/api/submissions", `{`).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, doJSON(t, srv, http.MethodGet, "/api/submissions", "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, doJSON(t, srv, http.MethodPost, "/api/state", "").Code)
	assert.Equal(t, http.StatusNotFound, doJSON(t, srv, http.MethodGet, "/", "").Code)
}

func TestServer_BackendHealth(t *testing.T) {
	srv, _ := newTestServer(t, make(chan struct{}))

	rec := doJSON(t, srv, http.MethodGet, "/api/backend/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var status probe.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.True(t, status.Healthy)
	require.NotNil(t, status.Version)
	require.NotNil(t, status.Version.Commit)
	assert.Equal(t, "abc1234", *status.Version.Commit)
	assert.True(t, status.Version.OpenAIConfigured)
}

func TestServer_BackendHealthNotConfigured(t *testing.T) {
	srv := NewServer(orchestrator.New(nil, nil, nil))
	rec := doJSON(t, srv, http.MethodGet, "/api/backend/health", "")
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestServer_StateStream(t *testing.T) {
	release := make(chan struct{})
	srv, _ := newTestServer(t, release)
	httpSrv := httptest.NewServer(srv.Handler())
	defer httpSrv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, httpSrv.URL+"/api/state/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	views := make(chan presenter.View, 32)
	go func() {
		defer close(views)
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			var v presenter.View
			if json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &v) == nil {
				views <- v
			}
		}
	}()

	first := <-views
	assert.Equal(t, orchestrator.StateIdle, first.State)

	rec := doJSON(t, srv, http.MethodPost, "/api/submissions", `{"url":"https://youtube.com/watch?v=abc123"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	close(release)

	for v := range views {
		if v.State == orchestrator.StateCompleted {
			assert.Equal(t, 100, v.Percent)
			assert.Equal(t, "영상 요약입니다.", v.Summary)
			return
		}
	}
	t.Fatal("stream ended before completion")
}

// streamViews opens the state stream and decodes each data line.
func streamViews(t *testing.T, ctx context.Context, url, lastEventID string) <-chan presenter.View {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	require.NoError(t, err)
	if lastEventID != "" {
		req.Header.Set("Last-Event-ID", lastEventID)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	views := make(chan presenter.View, 32)
	go func() {
		defer close(views)
		defer resp.Body.Close()
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			var v presenter.View
			if json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &v) == nil {
				views <- v
			}
		}
	}()
	return views
}

func TestServer_StateStreamResumesAfterLastEventID(t *testing.T) {
	release := make(chan struct{})
	close(release)
	srv, orch := newTestServer(t, release)
	httpSrv := httptest.NewServer(srv.Handler())
	defer httpSrv.Close()

	snap, err := orch.Submit("https://youtu.be/abc123")
	require.NoError(t, err)
	waitCtx, waitCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer waitCancel()
	final, err := orch.Wait(waitCtx, snap.Epoch)
	require.NoError(t, err)
	require.Equal(t, orchestrator.StateCompleted, final.State)

	history := orch.Events().Since(0)
	require.GreaterOrEqual(t, len(history), 3)
	resumeFrom := history[0].Seq

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	views := streamViews(t, ctx, httpSrv.URL+"/api/state/stream", strconv.FormatInt(resumeFrom, 10))

	var seqs []int64
	for v := range views {
		seqs = append(seqs, v.Seq)
		if v.State == orchestrator.StateCompleted {
			break
		}
	}
	cancel()

	require.Len(t, seqs, len(history)-1)
	for i, seq := range seqs {
		assert.Equal(t, history[i+1].Seq, seq)
	}
}

func TestServer_StateStreamUnknownEventIDSendsCurrent(t *testing.T) {
	srv, orch := newTestServer(t, make(chan struct{}))
	httpSrv := httptest.NewServer(srv.Handler())
	defer httpSrv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	views := streamViews(t, ctx, httpSrv.URL+"/api/state/stream", "9999")

	first := <-views
	assert.Equal(t, orch.Snapshot().Seq, first.Seq)
	assert.Equal(t, orchestrator.StateIdle, first.State)
}
