package ident

import (
	"context"
	"log/slog"
	"sync"
)

// Resolver supplies platform-tied identifiers. Resolution may complete after
// Start returns; callers poll Done.
type Resolver interface {
	// Start begins resolution. It must not block.
	Start(ctx context.Context)
	// Done reports whether resolution has finished, successfully or not.
	Done() bool
	Platform() Platform
	DeviceID() string
	AdvertisingID() string
	// AdTrackingEnabled is false when the user opted out of ad tracking.
	AdTrackingEnabled() bool
}

// DeviceInfo is the result of a device identity resolution.
type DeviceInfo struct {
	Platform          Platform
	DeviceID          string
	AdvertisingID     string
	AdTrackingEnabled bool
}

// Simulated resolves immediately on Start to a fixed DeviceInfo.
type Simulated struct {
	info DeviceInfo
	done bool
}

// NewSimulated returns a resolver that reports info as soon as it is started.
func NewSimulated(info DeviceInfo) *Simulated {
	if info.Platform == "" {
		info.Platform = PlatformGeneric
	}
	return &Simulated{info: info}
}

func (s *Simulated) Start(context.Context)   { s.done = true }
func (s *Simulated) Done() bool              { return s.done }
func (s *Simulated) Platform() Platform      { return s.info.Platform }
func (s *Simulated) DeviceID() string        { return s.info.DeviceID }
func (s *Simulated) AdvertisingID() string   { return s.info.AdvertisingID }
func (s *Simulated) AdTrackingEnabled() bool { return s.info.AdTrackingEnabled }

// ResolveFunc looks up device identity. It runs on its own goroutine.
type ResolveFunc func(ctx context.Context) (DeviceInfo, error)

// Async runs a ResolveFunc in the background and publishes its result once.
// If the lookup fails the resolver still completes, keeping the fallback
// values it was created with.
type Async struct {
	platform Platform
	resolve  ResolveFunc
	logger   *slog.Logger

	mu      sync.RWMutex
	info    DeviceInfo
	done    bool
	started bool
}

// NewAsync returns a resolver that calls resolve when started. fallback is
// reported until resolve returns, and kept if it fails.
func NewAsync(fallback DeviceInfo, resolve ResolveFunc, logger *slog.Logger) *Async {
	if fallback.Platform == "" {
		fallback.Platform = PlatformGeneric
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Async{
		platform: fallback.Platform,
		resolve:  resolve,
		logger:   logger,
		info:     fallback,
	}
}

func (a *Async) Start(ctx context.Context) {
	a.mu.Lock()
	if a.started {
		a.mu.Unlock()
		return
	}
	a.started = true
	a.mu.Unlock()

	go func() {
		info, err := a.resolve(ctx)
		a.mu.Lock()
		defer a.mu.Unlock()
		if err != nil {
			a.logger.Warn("device identity resolution failed", "error", err)
		} else {
			if info.Platform == "" {
				info.Platform = a.platform
			}
			a.info = info
		}
		a.done = true
	}()
}

func (a *Async) Done() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.done
}

func (a *Async) Platform() Platform {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.info.Platform
}

func (a *Async) DeviceID() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.info.DeviceID
}

func (a *Async) AdvertisingID() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.info.AdvertisingID
}

func (a *Async) AdTrackingEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.info.AdTrackingEnabled
}
