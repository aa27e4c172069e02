package notify

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/restnotify/restnotify/internal/logging"
)

// MultiNotifier bundles all active services, addressable by name.
type MultiNotifier struct {
	mu       sync.RWMutex
	services []Service
	byName   map[string]Service
	wg       sync.WaitGroup
	log      zerolog.Logger
}

func NewMultiNotifier() *MultiNotifier {
	return &MultiNotifier{byName: make(map[string]Service), log: logging.For("notify")}
}

// Replace swaps the whole service set, as a configuration reload does.
// Sends already in flight finish on the services they started with.
func (m *MultiNotifier) Replace(services []Service) {
	byName := make(map[string]Service, len(services))
	index := make(map[string]int, len(services))
	list := make([]Service, 0, len(services))
	for _, s := range services {
		if s == nil {
			continue
		}
		// a later service replaces an earlier one with the same name
		if i, dup := index[s.Name()]; dup {
			list[i] = s
		} else {
			index[s.Name()] = len(list)
			list = append(list, s)
		}
		byName[s.Name()] = s
	}
	m.mu.Lock()
	m.services = list
	m.byName = byName
	m.mu.Unlock()
}

func (m *MultiNotifier) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.services)
}

// Names returns the registered service names, sorted.
func (m *MultiNotifier) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.byName))
	for name := range m.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns the service registered under name.
func (m *MultiNotifier) Get(name string) (Service, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.byName[name]
	return s, ok
}

func (m *MultiNotifier) snapshot() []Service {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Service, len(m.services))
	copy(out, m.services)
	return out
}

// Notify sends msg to the named service and returns its error.
func (m *MultiNotifier) Notify(ctx context.Context, name string, msg Message) error {
	s, ok := m.Get(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownService, name)
	}
	return s.Send(ctx, msg)
}

// Send sends msg to every service in the background. Failures are logged;
// use Wait to block until the sends finish.
func (m *MultiNotifier) Send(ctx context.Context, msg Message) {
	for _, s := range m.snapshot() {
		m.wg.Add(1)
		go func(svc Service) {
			defer m.wg.Done()
			if err := svc.Send(ctx, msg); err != nil {
				m.log.Error().Err(err).Str("service", svc.Name()).Msg("notification failed")
				return
			}
			m.log.Debug().Str("service", svc.Name()).Msg("notification sent")
		}(s)
	}
}

// SendAll sends msg to every service concurrently and waits for all of
// them, returning the joined errors.
func (m *MultiNotifier) SendAll(ctx context.Context, msg Message) error {
	services := m.snapshot()
	if len(services) == 0 {
		return ErrNoServices
	}
	errs := make([]error, len(services))
	var wg sync.WaitGroup
	for i, s := range services {
		wg.Add(1)
		go func(i int, svc Service) {
			defer wg.Done()
			errs[i] = svc.Send(ctx, msg)
		}(i, s)
	}
	wg.Wait()
	return errors.Join(errs...)
}

// Wait waits for pending notification sends to complete or until the provided
// context is cancelled.
func (m *MultiNotifier) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
