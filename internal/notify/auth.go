package notify

import (
	"net/http"

	"github.com/icholy/digest"

	"github.com/restnotify/restnotify/internal/config"
)

// AuthKind selects how credentials are attached to requests.
type AuthKind int

const (
	AuthNone AuthKind = iota
	AuthBasic
	AuthDigest
)

func (k AuthKind) String() string {
	switch k {
	case AuthBasic:
		return "basic"
	case AuthDigest:
		return "digest"
	default:
		return "none"
	}
}

// Auth is the credential descriptor of a notifier, built once at setup.
type Auth struct {
	Kind     AuthKind
	Username string
	password string
}

// NewAuth returns Basic or Digest credentials when both username and
// password are set, and no auth otherwise. kind "digest" selects Digest;
// every other value selects Basic.
func NewAuth(username, password, kind string) Auth {
	if username == "" || password == "" {
		return Auth{}
	}
	if kind == config.AuthDigest {
		return Auth{Kind: AuthDigest, Username: username, password: password}
	}
	return Auth{Kind: AuthBasic, Username: username, password: password}
}

// transport wraps base so that digest challenges are answered. Basic and
// no-auth descriptors return base unchanged.
func (a Auth) transport(base http.RoundTripper) http.RoundTripper {
	if a.Kind != AuthDigest {
		return base
	}
	if base == nil {
		base = http.DefaultTransport
	}
	return &digest.Transport{
		Username:  a.Username,
		Password:  a.password,
		Transport: base,
	}
}

// apply sets per-request credentials; only Basic needs a header up front.
func (a Auth) apply(req *http.Request) {
	if a.Kind == AuthBasic {
		req.SetBasicAuth(a.Username, a.password)
	}
}
