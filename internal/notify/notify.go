// Package notify delivers notifications to REST endpoints and keeps the
// set of configured notification services.
package notify

import (
	"context"
	"errors"
)

// DefaultTitle is sent in the title field when a title parameter is
// configured and the caller did not supply a title.
var DefaultTitle = "restnotify"

var (
	// ErrUnknownService is returned when a named service is not registered.
	ErrUnknownService = errors.New("unknown notification service")
	// ErrNoServices is returned when a broadcast finds nothing to send to.
	ErrNoServices = errors.New("no notification services configured")
)

// Message is one notification request.
type Message struct {
	Text  string `json:"message"`
	Title string `json:"title,omitempty"`
	// Target lists recipients; REST notifiers only use the first one.
	Target []string `json:"target,omitempty"`
	// Data is exposed to templates as "data".
	Data map[string]any `json:"data,omitempty"`
}

// Service is the interface all notifiers must implement
type Service interface {
	Send(ctx context.Context, msg Message) error
	Name() string
}
