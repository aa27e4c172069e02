package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/restnotify/restnotify/internal/config"
	"github.com/restnotify/restnotify/internal/payload"
)

func TestDefaultConfig(t *testing.T) {
	c := config.DefaultConfig()
	if c.Listen == "" {
		t.Fatal("expected a default listen address")
	}
	if c.InfluxInterval < time.Second {
		t.Fatalf("unrealistic influx interval: %v", c.InfluxInterval)
	}
	if c.MetricsEnabled {
		t.Fatal("metrics should be opt-in")
	}
}

func TestLoadAppliesNotifierDefaults(t *testing.T) {
	cfg, err := config.Load([]byte(`
notifiers:
  - resource: http://127.0.0.1/notify
`))
	require.NoError(t, err)
	require.Len(t, cfg.Notifiers, 1)

	n := cfg.Notifiers[0]
	assert.Equal(t, "rest", n.Name)
	assert.Equal(t, config.MethodGet, n.Method)
	assert.Equal(t, "message", n.MessageParamName)
	assert.Empty(t, n.TitleParamName)
	assert.Empty(t, n.TargetParamName)
	assert.Nil(t, n.VerifySSL)
	assert.True(t, n.TLSVerify())
	assert.Nil(t, n.Data)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadFullNotifier(t *testing.T) {
	cfg, err := config.Load([]byte(`
log_level: debug
notifiers:
  - name: alerts
    resource: https://example.com/hook?fixed=1
    method: post_json
    message_param_name: msg
    title_param_name: subject
    target_param_name: to
    headers:
      X-Api-Key: secret
    params:
      source: restnotify
    data:
      priority: 5
      tags: ["a", "{{ title }}"]
    data_template:
      int1: "{{ 40 + 2 }}"
    data_types:
      int1: int
    authentication: Digest
    username: user
    password: pass
    verify_ssl: false
`))
	require.NoError(t, err)
	n := cfg.Notifiers[0]
	assert.Equal(t, "alerts", n.Name)
	assert.Equal(t, config.MethodPostJSON, n.Method)
	assert.Equal(t, config.AuthDigest, n.Authentication)
	assert.False(t, n.TLSVerify())
	assert.Equal(t, map[string]string{"X-Api-Key": "secret"}, n.Headers)
	assert.Equal(t, map[string]string{"int1": "int"}, n.DataTypes)
	assert.Equal(t, []string{"priority", "tags"}, n.Data.Keys())

	tpl, ok := n.DataTemplate.Get("int1")
	require.True(t, ok)
	assert.Equal(t, payload.Template{Source: "{{ 40 + 2 }}"}, tpl)
}

func TestLoadRejectsInvalidNotifiers(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"missing resource", "notifiers:\n  - method: GET\n", "resource URL is required"},
		{"bad scheme", "notifiers:\n  - resource: ftp://host/x\n", "http or https"},
		{"no host", "notifiers:\n  - resource: http:///path\n", "must include a host"},
		{"bad method", "notifiers:\n  - resource: http://h\n    method: PUT\n", "method must be one of"},
		{"bad auth", "notifiers:\n  - resource: http://h\n    authentication: ntlm\n", "authentication must be"},
		{"bad template", "notifiers:\n  - resource: http://h\n    data:\n      x: \"{{ broken \"\n", "data: x"},
		{"unknown preset", "notifiers:\n  - preset: carrier-pigeon\n", "unknown preset"},
		{"duplicate names", "notifiers:\n  - resource: http://a\n  - resource: http://b\n", "duplicate name"},
		{"data not a mapping", "notifiers:\n  - resource: http://h\n    data: [1, 2]\n", "expected a mapping"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateWarnings(t *testing.T) {
	cfg, err := config.Load([]byte(`
notifiers:
  - name: w
    resource: http://h
    username: only-user
    authentication: basic
    verify_ssl: false
    data_template:
      flag: "{{ 1 }}"
    data_types:
      flag: boolean
      ghost: int
`))
	require.NoError(t, err)
	warnings := strings.Join(cfg.Validate(), "\n")
	assert.Contains(t, warnings, `w: data_types[flag]: unsupported data type "boolean"`)
	assert.Contains(t, warnings, "w: data_types[ghost]: key is not present")
	assert.Contains(t, warnings, "username and password must both be set")
	assert.Contains(t, warnings, `authentication "basic" configured without credentials`)
	assert.Contains(t, warnings, "TLS certificate verification is disabled")

	empty := config.DefaultConfig()
	assert.Equal(t, []string{"no notifiers configured"}, empty.Validate())
}

func TestTLSVerifyDefaultsOn(t *testing.T) {
	var n config.NotifierConfig
	assert.True(t, n.TLSVerify())
	assert.NotContains(t, n.Validate(), "TLS certificate verification is disabled")

	on, off := true, false
	n.VerifySSL = &on
	assert.True(t, n.TLSVerify())
	n.VerifySSL = &off
	assert.False(t, n.TLSVerify())
	assert.Contains(t, n.Validate(), "TLS certificate verification is disabled")
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "restnotify.yaml")
	require.NoError(t, os.WriteFile(path, []byte("notifiers:\n  - resource: http://localhost\n"), 0o600))

	cfg, err := config.LoadConfigFromFile(path)
	require.NoError(t, err)
	assert.Len(t, cfg.Notifiers, 1)

	_, err = config.LoadConfigFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("RESTNOTIFY_LOG_LEVEL", "debug")
	t.Setenv("RESTNOTIFY_LOG_FORMAT", "console")
	t.Setenv("RESTNOTIFY_LISTEN", ":9999")
	t.Setenv("RESTNOTIFY_METRICS_ENABLED", "true")
	t.Setenv("RESTNOTIFY_INFLUX_URL", "http://influx:8086")
	t.Setenv("RESTNOTIFY_INFLUX_BUCKET", "b")
	t.Setenv("RESTNOTIFY_INFLUX_ORG", "o")
	t.Setenv("RESTNOTIFY_INFLUX_TOKEN", "t")
	t.Setenv("RESTNOTIFY_INFLUX_INTERVAL", "30s")
	t.Setenv("RESTNOTIFY_RELOAD_DEBOUNCE", "1s")

	cfg := config.DefaultConfig()
	if err := config.ApplyEnvOverrides(cfg); err != nil {
		t.Fatalf("ApplyEnvOverrides failed: %v", err)
	}
	if cfg.LogLevel != "debug" || cfg.LogFormat != "console" {
		t.Fatalf("unexpected logging config: %q %q", cfg.LogLevel, cfg.LogFormat)
	}
	if cfg.Listen != ":9999" {
		t.Fatalf("unexpected listen address: %s", cfg.Listen)
	}
	if !cfg.MetricsEnabled {
		t.Fatalf("expected metrics enabled")
	}
	if cfg.InfluxURL != "http://influx:8086" || cfg.InfluxBucket != "b" || cfg.InfluxOrg != "o" || cfg.InfluxToken != "t" {
		t.Fatalf("unexpected influx config: %+v", cfg)
	}
	if cfg.InfluxInterval != 30*time.Second {
		t.Fatalf("unexpected influx interval: %v", cfg.InfluxInterval)
	}
	if cfg.ReloadDebounce != time.Second {
		t.Fatalf("unexpected reload debounce: %v", cfg.ReloadDebounce)
	}
}

func TestApplyEnvOverridesInvalid(t *testing.T) {
	t.Setenv("RESTNOTIFY_METRICS_ENABLED", "maybe")
	if err := config.ApplyEnvOverrides(config.DefaultConfig()); err == nil {
		t.Fatal("expected error for invalid bool")
	}
	t.Setenv("RESTNOTIFY_METRICS_ENABLED", "")
	t.Setenv("RESTNOTIFY_INFLUX_INTERVAL", "soon")
	if err := config.ApplyEnvOverrides(config.DefaultConfig()); err == nil {
		t.Fatal("expected error for invalid duration")
	}
}
