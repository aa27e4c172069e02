package metrics

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// InfluxConfig describes an InfluxDB v2 write endpoint.
type InfluxConfig struct {
	URL      string
	Token    string
	Org      string
	Bucket   string
	Interval time.Duration
}

// StartInfluxPusher pushes a snapshot to InfluxDB every cfg.Interval until
// ctx is cancelled. It returns immediately when URL or bucket is empty.
func StartInfluxPusher(ctx context.Context, cfg InfluxConfig, log zerolog.Logger) {
	if cfg.URL == "" || cfg.Bucket == "" {
		return
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	log.Info().Str("url", cfg.URL).Dur("interval", cfg.Interval).Msg("starting influxdb pusher")

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	client := &http.Client{Timeout: 5 * time.Second}
	writeURL := influxWriteURL(cfg)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := pushToInflux(ctx, client, writeURL, cfg.Token, time.Now()); err != nil {
				log.Warn().Err(err).Msg("influxdb push failed")
			}
		}
	}
}

func influxWriteURL(cfg InfluxConfig) string {
	q := url.Values{}
	q.Set("org", cfg.Org)
	q.Set("bucket", cfg.Bucket)
	q.Set("precision", "s")
	return strings.TrimRight(cfg.URL, "/") + "/api/v2/write?" + q.Encode()
}

// lineProtocol renders s as a single InfluxDB line protocol record.
func lineProtocol(s StatsSnapshot, now time.Time) string {
	return fmt.Sprintf(
		"restnotify sent=%di,client_errors=%di,server_errors=%di,other_responses=%di,transport_errors=%di,coercion_failures=%di,last_send=%di %d",
		s.Sent, s.ClientErrors, s.ServerErrors, s.OtherResponses, s.TransportErrors, s.CoercionFailures, s.LastSend, now.Unix(),
	)
}

func pushToInflux(ctx context.Context, client *http.Client, writeURL, token string, now time.Time) error {
	body := lineProtocol(GetSnapshot(), now)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, writeURL, bytes.NewReader([]byte(body)))
	if err != nil {
		return fmt.Errorf("create influx request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+token)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("influxdb rejected metrics: status %d", resp.StatusCode)
	}
	return nil
}
