package config

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/restnotify/restnotify/internal/payload"
)

// Dispatch methods.
const (
	MethodGet      = "GET"
	MethodPost     = "POST"
	MethodPostJSON = "POST_JSON"
)

// Authentication kinds.
const (
	AuthBasic  = "basic"
	AuthDigest = "digest"
)

const (
	DefaultMessageParamName = "message"
	DefaultMethod           = MethodGet
	DefaultVerifySSL        = true
)

// NotifierConfig describes one REST notification service.
type NotifierConfig struct {
	Name string `json:"name" yaml:"name"`
	// Preset fills unset fields with the request shape of a known provider.
	Preset string `json:"preset" yaml:"preset"`

	Resource         string            `json:"resource" yaml:"resource"`
	Method           string            `json:"method" yaml:"method"`
	MessageParamName string            `json:"message_param_name" yaml:"message_param_name"`
	TitleParamName   string            `json:"title_param_name" yaml:"title_param_name"`
	TargetParamName  string            `json:"target_param_name" yaml:"target_param_name"`
	Headers          map[string]string `json:"headers" yaml:"headers"`
	Params           map[string]string `json:"params" yaml:"params"`

	// Data and DataTemplate are merged in that order into every payload.
	// Every string in them is a template.
	Data         *payload.Mapping  `json:"-" yaml:"data"`
	DataTemplate *payload.Mapping  `json:"-" yaml:"data_template"`
	DataTypes    map[string]string `json:"data_types" yaml:"data_types"`

	Authentication string `json:"authentication" yaml:"authentication"`
	Username       string `json:"username" yaml:"username"`
	Password       string `json:"-" yaml:"password"`
	VerifySSL      *bool  `json:"verify_ssl,omitempty" yaml:"verify_ssl"`

	// Preset inputs
	Server  string `json:"server" yaml:"server"`
	Token   string `json:"-" yaml:"token"`
	ChatID  string `json:"chat_id" yaml:"chat_id"`
	UserKey string `json:"-" yaml:"user_key"`
}

// TLSVerify reports whether server certificates are verified. It is true
// unless verify_ssl was explicitly set to false.
func (n NotifierConfig) TLSVerify() bool {
	if n.VerifySSL == nil {
		return DefaultVerifySSL
	}
	return *n.VerifySSL
}

// WithDefaults returns a copy with the preset expanded and defaults filled:
// method GET (upper-cased), message parameter "message", and a name.
func (n NotifierConfig) WithDefaults() (NotifierConfig, error) {
	if n.Preset != "" {
		if err := n.applyPreset(); err != nil {
			return n, err
		}
	}
	n.Method = strings.ToUpper(strings.TrimSpace(n.Method))
	if n.Method == "" {
		n.Method = DefaultMethod
	}
	if n.MessageParamName == "" {
		n.MessageParamName = DefaultMessageParamName
	}
	n.Authentication = strings.ToLower(strings.TrimSpace(n.Authentication))
	if n.Name == "" {
		n.Name = n.Preset
	}
	if n.Name == "" {
		n.Name = "rest"
	}
	return n, nil
}

// Check reports configuration errors for a notifier that already went
// through WithDefaults.
func (n NotifierConfig) Check() error {
	var errs []error
	if err := checkResource(n.Resource); err != nil {
		errs = append(errs, err)
	}
	switch n.Method {
	case MethodGet, MethodPost, MethodPostJSON:
	default:
		errs = append(errs, fmt.Errorf("method must be one of GET, POST, POST_JSON, got %q", n.Method))
	}
	switch n.Authentication {
	case "", AuthBasic, AuthDigest:
	default:
		errs = append(errs, fmt.Errorf("authentication must be %q or %q, got %q", AuthBasic, AuthDigest, n.Authentication))
	}
	checker := payload.NewPongoRenderer()
	for _, tree := range []struct {
		name string
		m    *payload.Mapping
	}{{"data", n.Data}, {"data_template", n.DataTemplate}} {
		if err := compileTemplates(checker, tree.m); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", tree.name, err))
		}
	}
	return errors.Join(errs...)
}

// Validate returns non-fatal warnings for a notifier.
func (n NotifierConfig) Validate() []string {
	var warnings []string
	keys := make([]string, 0, len(n.DataTypes))
	for k := range n.DataTypes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		tag := n.DataTypes[k]
		if tag != "" && !payload.SupportedType(tag) {
			warnings = append(warnings, fmt.Sprintf("data_types[%s]: unsupported data type %q will be ignored (use int, float, bool or str)", k, tag))
		}
		if _, inData := n.Data.Get(k); !inData {
			if _, inTpl := n.DataTemplate.Get(k); !inTpl {
				warnings = append(warnings, fmt.Sprintf("data_types[%s]: key is not present in data or data_template", k))
			}
		}
	}
	if (n.Username == "") != (n.Password == "") {
		warnings = append(warnings, "username and password must both be set for authentication to be used")
	}
	if n.Authentication != "" && (n.Username == "" || n.Password == "") {
		warnings = append(warnings, fmt.Sprintf("authentication %q configured without credentials", n.Authentication))
	}
	if !n.TLSVerify() {
		warnings = append(warnings, "TLS certificate verification is disabled")
	}
	return warnings
}

func checkResource(raw string) error {
	if raw == "" {
		return errors.New("resource URL is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid resource URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("resource URL must use http or https scheme, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("resource URL must include a host")
	}
	return nil
}

func compileTemplates(checker *payload.PongoRenderer, n payload.Node) error {
	switch x := n.(type) {
	case payload.Template:
		return checker.Compile(x.Source)
	case payload.Sequence:
		for i, item := range x {
			if err := compileTemplates(checker, item); err != nil {
				return fmt.Errorf("[%d]: %w", i, err)
			}
		}
	case *payload.Mapping:
		if x == nil {
			return nil
		}
		for _, k := range x.Keys() {
			child, _ := x.Get(k)
			if err := compileTemplates(checker, child); err != nil {
				return fmt.Errorf("%s: %w", k, err)
			}
		}
	}
	return nil
}
