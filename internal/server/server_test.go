package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/restnotify/restnotify/internal/notify"
)

type recordingService struct {
	name string
	err  error

	mu   sync.Mutex
	msgs []notify.Message
}

func (r *recordingService) Send(_ context.Context, msg notify.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return r.err
}

func (r *recordingService) Name() string { return r.name }

func newTestServer(metrics bool, services ...notify.Service) http.Handler {
	m := notify.NewMultiNotifier()
	m.Replace(services)
	return New(Config{Metrics: metrics}, m, zerolog.Nop()).Handler()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestNotifyNamedService(t *testing.T) {
	svc := &recordingService{name: "ops"}
	h := newTestServer(false, svc)

	rec := do(t, h, http.MethodPost, "/notify/ops", `{"message":"disk full","title":"alert","target":"oncall","data":{"host":"db1"}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, svc.msgs, 1)
	assert.Equal(t, notify.Message{
		Text:   "disk full",
		Title:  "alert",
		Target: []string{"oncall"},
		Data:   map[string]any{"host": "db1"},
	}, svc.msgs[0])
}

func TestNotifyTargetList(t *testing.T) {
	svc := &recordingService{name: "ops"}
	h := newTestServer(false, svc)
	rec := do(t, h, http.MethodPost, "/notify/ops", `{"message":"m","target":["a","b"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"a", "b"}, svc.msgs[0].Target)
}

func TestNotifyErrors(t *testing.T) {
	h := newTestServer(false,
		&recordingService{name: "ok"},
		&recordingService{name: "down", err: errors.New("connection refused")},
	)
	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{"unknown service", "/notify/nope", `{"message":"m"}`, http.StatusNotFound},
		{"transport failure", "/notify/down", `{"message":"m"}`, http.StatusBadGateway},
		{"missing message", "/notify/ok", `{"title":"t"}`, http.StatusBadRequest},
		{"bad json", "/notify/ok", `{`, http.StatusBadRequest},
		{"bad target", "/notify/ok", `{"message":"m","target":3}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.want, rec.Code)
			var resp response
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, "error", resp.Status)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestBroadcast(t *testing.T) {
	a := &recordingService{name: "a"}
	b := &recordingService{name: "b"}
	rec := do(t, newTestServer(false, a, b), http.MethodPost, "/notify", `{"message":"m"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, a.msgs, 1)
	assert.Len(t, b.msgs, 1)

	var resp response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"a", "b"}, resp.Services)

	rec = do(t, newTestServer(false), http.MethodPost, "/notify", `{"message":"m"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = do(t, newTestServer(false, a, &recordingService{name: "x", err: errors.New("boom")}), http.MethodPost, "/notify", `{"message":"m"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestServices(t *testing.T) {
	h := newTestServer(false, &recordingService{name: "z"}, &recordingService{name: "a"})
	rec := do(t, h, http.MethodGet, "/services", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"services":["a","z"]}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/notify", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestMetricsEndpoints(t *testing.T) {
	rec := do(t, newTestServer(false), http.MethodGet, "/status", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	h := newTestServer(true)
	rec = do(t, h, http.MethodGet, "/status", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"sent"`)

	rec = do(t, h, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "restnotify_config_reloads_total")
}

func TestStartShutsDownOnCancel(t *testing.T) {
	s := New(Config{Addr: "127.0.0.1:0"}, notify.NewMultiNotifier(), zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()
	cancel()
	assert.NoError(t, <-done)
}

// gatedService holds each send until release is closed and records whether
// the send context was still live by then.
type gatedService struct {
	release chan struct{}
	ctxErr  chan error
}

func (g gatedService) Send(ctx context.Context, _ notify.Message) error {
	<-g.release
	g.ctxErr <- ctx.Err()
	return nil
}

func (gatedService) Name() string { return "gated" }

func TestBroadcastAsync(t *testing.T) {
	svc := gatedService{release: make(chan struct{}), ctxErr: make(chan error, 1)}
	mn := notify.NewMultiNotifier()
	mn.Replace([]notify.Service{svc})
	h := New(Config{}, mn, zerolog.Nop()).Handler()

	reqCtx, reqCancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodPost, "/notify?async=1", strings.NewReader(`{"message":"m"}`)).WithContext(reqCtx)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	reqCancel()
	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "queued", resp.Status)
	assert.Equal(t, []string{"gated"}, resp.Services)

	// the handler has returned; the send is still pending
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, mn.Wait(ctx), context.DeadlineExceeded)

	close(svc.release)
	require.NoError(t, mn.Wait(context.Background()))
	assert.NoError(t, <-svc.ctxErr)

	rec = do(t, newTestServer(false), http.MethodPost, "/notify?async=true", `{"message":"m"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
