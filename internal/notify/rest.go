package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/restnotify/restnotify/internal/config"
	"github.com/restnotify/restnotify/internal/logging"
	"github.com/restnotify/restnotify/internal/metrics"
	"github.com/restnotify/restnotify/internal/payload"
)

// RequestTimeout bounds every notification request.
const RequestTimeout = 10 * time.Second

// maxLoggedBody caps how much of a response body is read for debug logging.
const maxLoggedBody = 64 << 10

// Rest sends notifications to a configured HTTP endpoint. It is immutable
// after NewRest and safe for concurrent use; every send builds its own
// context and fields.
type Rest struct {
	name         string
	resource     string
	method       string
	messageParam string
	titleParam   string
	targetParam  string
	headers      map[string]string
	params       map[string]string
	data         *payload.Mapping
	dataTemplate *payload.Mapping
	resolver     *payload.Resolver
	auth         Auth
	client       *http.Client
	log          zerolog.Logger
}

type restOptions struct {
	client   *http.Client
	renderer payload.Renderer
	log      *zerolog.Logger
}

// Option customises NewRest.
type Option func(*restOptions)

// WithHTTPClient sends through c instead of a client built from the
// notifier's TLS settings. Digest auth still wraps c's transport.
func WithHTTPClient(c *http.Client) Option {
	return func(o *restOptions) { o.client = c }
}

// WithRenderer renders templates with r instead of a new PongoRenderer.
func WithRenderer(r payload.Renderer) Option {
	return func(o *restOptions) { o.renderer = r }
}

// WithLogger sends diagnostics to l instead of the process logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *restOptions) { o.log = &l }
}

// NewRest builds a REST notifier from cfg. Presets and defaults are applied
// and the configuration is checked; credentials and the HTTP client are set
// up once here.
func NewRest(cfg config.NotifierConfig, opts ...Option) (*Rest, error) {
	cfg, err := cfg.WithDefaults()
	if err != nil {
		return nil, err
	}
	if err := cfg.Check(); err != nil {
		return nil, fmt.Errorf("notifier %q: %w", cfg.Name, err)
	}

	var o restOptions
	for _, opt := range opts {
		opt(&o)
	}
	log := logging.For("notify")
	if o.log != nil {
		log = *o.log
	}
	log = log.With().Str("service", cfg.Name).Logger()
	if o.renderer == nil {
		o.renderer = payload.NewPongoRenderer()
	}

	auth := NewAuth(cfg.Username, cfg.Password, cfg.Authentication)
	client := o.client
	if client == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		if !cfg.TLSVerify() {
			transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // user-configured
			log.Warn().Str("resource", RedactURL(cfg.Resource)).Msg("TLS certificate verification is disabled")
		}
		client = &http.Client{Timeout: RequestTimeout, Transport: transport}
	} else {
		c := *client
		client = &c
		if client.Timeout == 0 {
			client.Timeout = RequestTimeout
		}
	}
	client.Transport = auth.transport(client.Transport)

	return &Rest{
		name:         cfg.Name,
		resource:     cfg.Resource,
		method:       cfg.Method,
		messageParam: cfg.MessageParamName,
		titleParam:   cfg.TitleParamName,
		targetParam:  cfg.TargetParamName,
		headers:      copyStrings(cfg.Headers),
		params:       copyStrings(cfg.Params),
		data:         cfg.Data,
		dataTemplate: cfg.DataTemplate,
		resolver:     payload.NewResolver(o.renderer, cfg.DataTypes, log),
		auth:         auth,
		client:       client,
		log:          log,
	}, nil
}

// Name returns the notifier's service name.
func (r *Rest) Name() string { return r.name }

// Send implements Service.
func (r *Rest) Send(ctx context.Context, msg Message) error {
	return r.SendMessage(ctx, msg)
}

// SendMessage sends msg and fails only when the request could not be built
// or no response was received. Error statuses are logged, not returned.
func (r *Rest) SendMessage(ctx context.Context, msg Message) error {
	_, err := r.Dispatch(ctx, msg)
	return err
}

// Dispatch resolves the payload for msg, issues exactly one request and
// classifies the response.
func (r *Rest) Dispatch(ctx context.Context, msg Message) (Outcome, error) {
	fields, err := r.Fields(msg)
	if err != nil {
		return Outcome{}, fmt.Errorf("%s: %w", r.name, err)
	}
	req, err := r.newRequest(ctx, fields)
	if err != nil {
		return Outcome{}, fmt.Errorf("%s: %w", r.name, err)
	}
	if r.method == config.MethodPostJSON {
		r.log.Debug().Interface("data", fields).Msg("POSTing JSON data")
	}

	start := time.Now()
	metrics.SetLastSend(start)
	resp, err := r.client.Do(req)
	metrics.ObserveSendDuration(r.name, time.Since(start))
	if err != nil {
		metrics.IncTransportError(r.name)
		// *url.Error repeats the raw resource, query secrets included.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return Outcome{}, fmt.Errorf("%s: send to %s: %w", r.name, RedactURL(r.resource), err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxLoggedBody))
	out := newOutcome(resp)
	out.log(r.log, body)
	metrics.IncResponse(r.name, string(out.Disposition))
	return out, nil
}

// Fields builds the payload for msg: the message field, the title field
// (defaulting to DefaultTitle), the first target, then data and
// data_template in that order.
func (r *Rest) Fields(msg Message) (payload.Fields, error) {
	fields := payload.Fields{r.messageParam: msg.Text}
	if r.titleParam != "" {
		title := msg.Title
		if title == "" {
			title = DefaultTitle
		}
		fields[r.titleParam] = title
	}
	if r.targetParam != "" && len(msg.Target) > 0 {
		fields[r.targetParam] = msg.Target[0]
	}
	if r.data.Len() == 0 && r.dataTemplate.Len() == 0 {
		return fields, nil
	}

	ctx := renderContext(msg)
	for _, tree := range []*payload.Mapping{r.data, r.dataTemplate} {
		if tree.Len() == 0 {
			continue
		}
		resolved, err := r.resolver.ResolveFields(tree, ctx)
		if err != nil {
			return nil, err
		}
		for k, v := range resolved {
			fields[k] = v
		}
	}
	return fields, nil
}

// renderContext exposes the call arguments to templates. Title, target and
// data are only present when the caller supplied them.
func renderContext(msg Message) payload.Context {
	ctx := payload.Context{"message": msg.Text}
	if msg.Title != "" {
		ctx["title"] = msg.Title
	}
	if msg.Target != nil {
		ctx["target"] = msg.Target
	}
	if msg.Data != nil {
		ctx["data"] = msg.Data
	}
	return ctx
}

func copyStrings(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// FromConfig builds a REST notifier for every configured notifier, sharing
// one template renderer between them.
func FromConfig(cfg *config.Config, opts ...Option) ([]Service, error) {
	opts = append([]Option{WithRenderer(payload.NewPongoRenderer())}, opts...)
	services := make([]Service, 0, len(cfg.Notifiers))
	for _, nc := range cfg.Notifiers {
		r, err := NewRest(nc, opts...)
		if err != nil {
			return nil, err
		}
		services = append(services, r)
	}
	return services, nil
}
