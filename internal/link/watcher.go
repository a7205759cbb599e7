// Package link reports network link transitions to the connectivity manager.
//
// InterfaceWatcher polls a network interface for a usable address and
// calls OnChange on every up/down transition. StaticLink is for hosts where
// the operating system owns the link and it can be assumed up.
// CommandRejoiner runs a host command such as `wpa_cli reconnect` when the
// connectivity manager asks for a rejoin.
package link

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

const defaultPollInterval = time.Second

var (
	// ErrInterfaceNotFound is returned by the probe when the named
	// interface does not exist.
	ErrInterfaceNotFound = errors.New("link: interface not found")

	// ErrStopped is returned by Rejoin after the watcher has stopped.
	ErrStopped = errors.New("link: watcher stopped")
)

// ProbeFunc reports whether the link is usable.
type ProbeFunc func(ctx context.Context) (bool, error)

// Config configures an InterfaceWatcher.
type Config struct {
	// Interface is the interface name. Empty accepts any non-loopback
	// interface.
	Interface string

	// PollInterval is how often the interface is sampled (default: 1s).
	PollInterval time.Duration

	// OnChange is called with the first probe result and on every
	// transition after that. It is called from the watcher goroutine.
	OnChange func(up bool)

	// Probe overrides the interface check. Used in tests.
	Probe ProbeFunc

	// Logger for structured logging. Uses slog.Default() if nil.
	Logger *slog.Logger
}

// Status is the watcher state, suitable for health endpoints.
type Status struct {
	Interface string    `json:"interface"`
	Up        bool      `json:"up"`
	LastCheck time.Time `json:"last_check"`
	LastError string    `json:"last_error,omitempty"`
}

// InterfaceWatcher samples one interface and reports transitions.
type InterfaceWatcher struct {
	cfg    Config
	up     atomic.Bool
	rejoin chan struct{}
	done   chan struct{}

	mu        sync.Mutex
	lastErr   error
	lastCheck time.Time
}

// NewInterfaceWatcher creates a watcher. Call Run to start sampling.
func NewInterfaceWatcher(cfg Config) *InterfaceWatcher {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Probe == nil {
		name := cfg.Interface
		cfg.Probe = func(context.Context) (bool, error) { return interfaceUp(name) }
	}

	return &InterfaceWatcher{
		cfg:    cfg,
		rejoin: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Run samples the interface until ctx is cancelled.
func (w *InterfaceWatcher) Run(ctx context.Context) error {
	defer close(w.done)

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	w.check(ctx, true)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.check(ctx, false)
		case <-w.rejoin:
			w.cfg.Logger.Debug("link re-probe requested", "interface", w.cfg.Interface)
			w.check(ctx, false)
		}
	}
}

// Rejoin asks for an immediate re-probe. It never blocks.
func (w *InterfaceWatcher) Rejoin(context.Context) error {
	select {
	case <-w.done:
		return ErrStopped
	default:
	}

	select {
	case w.rejoin <- struct{}{}:
	default:
		// A re-probe is already pending.
	}
	return nil
}

// Status returns the current watcher state.
func (w *InterfaceWatcher) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()

	s := Status{
		Interface: w.cfg.Interface,
		Up:        w.up.Load(),
		LastCheck: w.lastCheck,
	}
	if w.lastErr != nil {
		s.LastError = w.lastErr.Error()
	}
	return s
}

// check probes once and reports a transition, or the first result when
// initial is set.
func (w *InterfaceWatcher) check(ctx context.Context, initial bool) {
	up, err := w.cfg.Probe(ctx)

	w.mu.Lock()
	w.lastErr = err
	w.lastCheck = time.Now()
	w.mu.Unlock()

	if err != nil {
		up = false
	}

	was := w.up.Swap(up)
	if !initial && was == up {
		return
	}

	if up {
		w.cfg.Logger.Info("link up", "interface", w.cfg.Interface)
	} else {
		w.cfg.Logger.Warn("link down", "interface", w.cfg.Interface, "error", err)
	}

	if w.cfg.OnChange != nil {
		w.cfg.OnChange(up)
	}
}

// interfaceUp reports whether name (or any non-loopback interface when name
// is empty) is up with a global unicast address.
func interfaceUp(name string) (bool, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return false, fmt.Errorf("link: list interfaces: %w", err)
	}

	found := false
	for _, ifc := range ifaces {
		if name != "" && ifc.Name != name {
			continue
		}
		found = true
		if ifc.Flags&net.FlagLoopback != 0 || ifc.Flags&net.FlagUp == 0 {
			continue
		}

		addrs, err := ifc.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			if ipnet, ok := a.(*net.IPNet); ok && ipnet.IP.IsGlobalUnicast() {
				return true, nil
			}
		}
	}

	if name != "" && !found {
		return false, fmt.Errorf("%w: %s", ErrInterfaceNotFound, name)
	}
	return false, nil
}

// StaticLink reports the link up once and never changes.
type StaticLink struct {
	OnChange func(up bool)
}

// Run reports the link up and waits for ctx.
func (s StaticLink) Run(ctx context.Context) error {
	if s.OnChange != nil {
		s.OnChange(true)
	}
	<-ctx.Done()
	return nil
}

// Rejoin is a no-op.
func (StaticLink) Rejoin(context.Context) error { return nil }
