package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/restnotify/restnotify/internal/config"
	"github.com/restnotify/restnotify/internal/metrics"
	"github.com/restnotify/restnotify/internal/notify"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "restnotify.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestParseTargets(t *testing.T) {
	assert.Nil(t, parseTargets(""))
	assert.Equal(t, []string{"a", "b"}, parseTargets(" a, ,b "))
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	path := writeConfig(t, "listen: \":9000\"\nlog_level: debug\n")
	t.Setenv("RESTNOTIFY_LISTEN", ":9100")

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":9100", cfg.Listen)
	assert.Equal(t, "debug", cfg.LogLevel)

	t.Setenv("RESTNOTIFY_METRICS_ENABLED", "maybe")
	_, err = loadConfig(path)
	require.Error(t, err)
}

func TestLoadConfigWithoutFile(t *testing.T) {
	cfg, err := loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig().Listen, cfg.Listen)
	assert.Empty(t, cfg.Notifiers)
}

func TestSendOnce(t *testing.T) {
	var bodies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		bodies = append(bodies, r.URL.Path+" "+string(b))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg, err := config.Load([]byte(`
notifiers:
  - name: one
    resource: ` + srv.URL + `/one
    method: POST_JSON
  - name: two
    resource: ` + srv.URL + `/two
    method: POST_JSON
`))
	require.NoError(t, err)
	services, err := notify.FromConfig(cfg, notify.WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	mn := notify.NewMultiNotifier()
	mn.Replace(services)

	require.NoError(t, sendOnce(context.Background(), mn, "two", notify.Message{Text: "hi"}))
	assert.Equal(t, []string{`/two {"message":"hi"}`}, bodies)

	require.ErrorIs(t, sendOnce(context.Background(), mn, "three", notify.Message{Text: "hi"}), notify.ErrUnknownService)
	require.ErrorIs(t, sendOnce(context.Background(), notify.NewMultiNotifier(), "", notify.Message{Text: "hi"}), notify.ErrNoServices)
}

func TestApplyReload(t *testing.T) {
	mn := notify.NewMultiNotifier()
	before := metrics.GetSnapshot().Reloads

	cfg, err := config.Load([]byte("notifiers:\n  - name: a\n    resource: https://a.test\n"))
	require.NoError(t, err)
	assert.True(t, applyReload(mn, cfg, zerolog.Nop()))
	assert.Equal(t, []string{"a"}, mn.Names())
	assert.Equal(t, before+1, metrics.GetSnapshot().Reloads)

	broken := &config.Config{Notifiers: []config.NotifierConfig{{Name: "b", Resource: "not a url"}}}
	assert.False(t, applyReload(mn, broken, zerolog.Nop()))
	assert.Equal(t, []string{"a"}, mn.Names())
}
