package engine

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"time"

	"github.com/roach88/beacon/internal/event"
	"github.com/roach88/beacon/internal/ident"
	"github.com/roach88/beacon/internal/metrics"
	"github.com/roach88/beacon/internal/queue"
	"github.com/roach88/beacon/internal/transport"
)

// SDKIDKey is the settings key holding the installation identifier.
const SDKIDKey = "beacon_sdk_id"

const (
	DefaultCheckServerInterval = 2 * time.Second
	DefaultHeartbeatInterval   = 60 * time.Second

	// MinCheckServerInterval is the smallest accepted check interval.
	MinCheckServerInterval = 100 * time.Millisecond
)

// State is the phase of the delivery state machine.
type State int

const (
	StateIdle State = iota
	StateResolvingDevice
	StateProcessingPending
	StateAwaitingSend
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateResolvingDevice:
		return "resolving_device"
	case StateProcessingPending:
		return "processing_pending"
	case StateAwaitingSend:
		return "awaiting_send"
	}
	return "unknown"
}

// Sender delivers batches. *transport.Transport implements it.
type Sender interface {
	Send(ctx context.Context, batch transport.Renderer) <-chan transport.Outcome
	CheckAvailability(ctx context.Context) <-chan transport.Outcome
}

// Settings is the durable key/value store for engine settings.
// *store.Store implements it.
type Settings interface {
	GetString(ctx context.Context, key string) (string, error)
	SetString(ctx context.Context, key, value string) error
	Flush(ctx context.Context) error
}

// phase tells what the outstanding outcome belongs to.
type phase int

const (
	phaseNone phase = iota
	phaseProbe
	phaseSend
)

// Engine is the delivery state machine.
//
// All methods must be called from one goroutine. Loop provides that
// goroutine for hosts without their own update loop.
type Engine struct {
	sender   Sender
	settings Settings
	backing  queue.Backing
	resolver ident.Resolver
	clock    Clock
	idGen    IDGenerator
	logger   *slog.Logger
	metrics  *metrics.Metrics
	queueKey string

	identities *ident.Set
	pending    *queue.Queue
	inFlight   *queue.Queue

	state            State
	initialized      bool
	closed           bool
	paused           bool
	analyticsEnabled bool
	serverAvailable  bool
	payable          bool
	platformInfo     event.PlatformInfo
	customID         string

	checkInterval     time.Duration
	heartbeatInterval time.Duration
	nextCheck         time.Time
	lastHeartbeat     time.Time

	outcome <-chan transport.Outcome
	phase   phase
	sentAt  time.Time
}

// Option configures an Engine.
type Option func(*Engine)

func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMetrics records delivery statistics into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithCheckServerInterval sets the cool-down between availability probes
// after a failure. Values below MinCheckServerInterval are raised to it.
func WithCheckServerInterval(d time.Duration) Option {
	return func(e *Engine) { e.checkInterval = max(d, MinCheckServerInterval) }
}

func WithHeartbeatInterval(d time.Duration) Option {
	return func(e *Engine) { e.heartbeatInterval = d }
}

// WithPayable sets the initial is_payable flag of heartbeats.
func WithPayable(payable bool) Option {
	return func(e *Engine) { e.payable = payable }
}

// WithPlatformInfo describes the host in the platform event.
func WithPlatformInfo(info event.PlatformInfo) Option {
	return func(e *Engine) { e.platformInfo = info }
}

// WithQueueKey overrides queue.DefaultKey.
func WithQueueKey(key string) Option {
	return func(e *Engine) { e.queueKey = key }
}

func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) { e.idGen = g }
}

// WithCustomID sets the custom user id right after Start.
func WithCustomID(id string) Option {
	return func(e *Engine) { e.customID = id }
}

// New creates an idle engine. backing holds the persisted pending queue and
// settings holds the installation id.
func New(sender Sender, settings Settings, backing queue.Backing, resolver ident.Resolver, opts ...Option) *Engine {
	e := &Engine{
		sender:            sender,
		settings:          settings,
		backing:           backing,
		resolver:          resolver,
		clock:             SystemClock,
		idGen:             UUIDGenerator{},
		logger:            slog.Default(),
		queueKey:          queue.DefaultKey,
		state:             StateIdle,
		analyticsEnabled:  true,
		serverAvailable:   true,
		payable:           true,
		checkInterval:     DefaultCheckServerInterval,
		heartbeatInterval: DefaultHeartbeatInterval,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.identities = ident.NewSet(resolver)
	e.pending = e.newQueue()
	e.inFlight = e.newQueue()
	return e
}

func (e *Engine) newQueue() *queue.Queue {
	return queue.New(
		queue.WithStorage(e.backing, e.queueKey),
		queue.WithResolver(e.resolver),
		queue.WithLogger(e.logger),
	)
}

// Start assigns the installation id and begins device resolution. A second
// call logs a warning and returns ErrAlreadyStarted.
func (e *Engine) Start(ctx context.Context) error {
	if e.closed {
		return ErrClosed
	}
	if e.initialized {
		e.logger.Warn("engine already started")
		return ErrAlreadyStarted
	}

	e.SetID(ident.SDK, e.obtainSDKID(ctx))
	e.state = StateResolvingDevice
	e.resolver.Start(ctx)
	e.initialized = true

	e.logger.Info("engine started", "sdk_id", e.identities.Get(ident.SDK))

	if e.customID != "" {
		e.SetCustomID(e.customID)
	}
	return nil
}

// obtainSDKID returns the stored installation id, creating and storing one
// on first use. Settings failures are logged; a fresh id is still returned.
func (e *Engine) obtainSDKID(ctx context.Context) string {
	id, err := e.settings.GetString(ctx, SDKIDKey)
	if err == nil && id != "" {
		return id
	}
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		e.logger.Warn("failed to read installation id", "error", err)
	}

	id = e.idGen.Generate()
	if err := e.settings.SetString(ctx, SDKIDKey, id); err != nil {
		e.logger.Warn("failed to store installation id", "error", err)
	}
	return id
}

// Tick advances the state machine by one step. It never blocks.
func (e *Engine) Tick(ctx context.Context) {
	if e.paused || e.closed {
		return
	}
	switch e.state {
	case StateResolvingDevice:
		if e.resolver.Done() {
			e.processDevice(ctx)
		}
	case StateProcessingPending:
		e.processPending(ctx)
	case StateAwaitingSend:
		e.pollOutcome(ctx)
	}
}

// processDevice copies the resolved platform identities. Only real mobile
// platforms report an ad-tracking choice; elsewhere analytics stay enabled.
func (e *Engine) processDevice(ctx context.Context) {
	if e.resolver.Platform() != ident.PlatformGeneric {
		if id := e.resolver.AdvertisingID(); id != "" {
			e.SetID(ident.Advertising, id)
		}
		tracking := e.resolver.AdTrackingEnabled()
		e.SetID(ident.AdTracking, flag(tracking))
		e.analyticsEnabled = tracking
	}
	e.initializeAfterDevice(ctx)
}

func (e *Engine) initializeAfterDevice(ctx context.Context) {
	if !e.analyticsEnabled {
		e.logger.Info("analytics disabled by ad tracking choice")
		e.pending.Clear(ctx, false, false)
	}

	stored := e.newQueue()
	if err := stored.Load(ctx); err != nil {
		e.logger.Warn("failed to load persisted queue", "error", err)
	}
	if n := stored.Len(); n > 0 {
		e.logger.Info("restored persisted records", "count", n)
	}
	e.pending.PrependQueue(stored, true)

	if e.analyticsEnabled && !e.pending.HasEventType(event.TypePlatform) {
		e.track(event.Platform(e.platformInfo))
	}

	e.metrics.Pending(e.pending.Len())
	e.state = StateProcessingPending
}

// processPending moves every pending record into the batch and sends it.
// Records stay owned by pending, so identity back-fill no longer reaches
// them once they are in flight.
func (e *Engine) processPending(ctx context.Context) {
	if e.pending.Empty() {
		return
	}
	e.inFlight.PrependQueue(e.pending, false)

	now := e.clock.Now()
	if e.heartbeatDue(now) {
		e.lastHeartbeat = now
		r, err := queue.NewRecord(e.identities, event.Heartbeat(now, e.payable))
		if err != nil {
			e.logger.Error("failed to build heartbeat", "error", err)
		} else {
			e.inFlight.Append(r)
		}
	}
	e.metrics.Pending(0)

	e.state = StateAwaitingSend
	e.checkServer(ctx, now)
}

func (e *Engine) heartbeatDue(now time.Time) bool {
	return e.lastHeartbeat.IsZero() || now.After(e.lastHeartbeat.Add(e.heartbeatInterval))
}

// checkServer gates the send. A server known to be available is sent to
// directly. Otherwise the batch fails without a network call until the
// cool-down has passed, and after it a probe must succeed first.
func (e *Engine) checkServer(ctx context.Context, now time.Time) {
	if e.serverAvailable {
		e.send(ctx, now)
		return
	}
	if now.Before(e.nextCheck) {
		e.metrics.Skipped()
		e.handleFailure(ctx, true)
		return
	}
	e.nextCheck = now.Add(e.checkInterval)
	e.phase = phaseProbe
	e.outcome = e.sender.CheckAvailability(ctx)
}

func (e *Engine) send(ctx context.Context, now time.Time) {
	e.logger.Debug("sending batch", "records", e.inFlight.Len())
	e.phase = phaseSend
	e.sentAt = now
	e.outcome = e.sender.Send(ctx, e.inFlight)
}

func (e *Engine) pollOutcome(ctx context.Context) {
	if e.outcome == nil {
		e.state = StateProcessingPending
		return
	}
	select {
	case out := <-e.outcome:
		e.outcome = nil
		e.resolve(ctx, out)
	default:
	}
}

func (e *Engine) resolve(ctx context.Context, out transport.Outcome) {
	p := e.phase
	e.phase = phaseNone

	if !out.OK() {
		e.logger.Info("delivery failed",
			"stage", stageName(p),
			"records", e.inFlight.Len(),
			"offline", transport.IsOffline(out.Err),
			"error", out.Err,
		)
		e.handleFailure(ctx, false)
		return
	}
	if p == phaseProbe {
		e.send(ctx, e.clock.Now())
		return
	}
	e.handleSuccess(ctx)
}

// handleFailure returns the batch to the front of pending and persists it.
// skipped is set when no network call was made, in which case the cool-down
// is left as it is.
func (e *Engine) handleFailure(ctx context.Context, skipped bool) {
	e.setAvailable(false)
	e.pending.PrependQueue(e.inFlight, false)
	if err := e.pending.Save(ctx); err != nil {
		e.logger.Warn("failed to persist pending records", "error", err)
	}
	if !skipped {
		e.nextCheck = e.clock.Now().Add(e.checkInterval)
		e.metrics.Failed()
	}
	e.metrics.Pending(e.pending.Len())
	e.state = StateProcessingPending
}

func (e *Engine) handleSuccess(ctx context.Context) {
	n := e.inFlight.Len()
	e.metrics.Delivered(n, e.clock.Now().Sub(e.sentAt))
	e.logger.Debug("batch delivered", "records", n)

	e.setAvailable(true)
	e.inFlight.Clear(ctx, true, true)
	e.state = StateProcessingPending
}

func (e *Engine) setAvailable(ok bool) {
	if e.serverAvailable != ok {
		e.logger.Info("server availability changed", "available", ok)
	}
	e.serverAvailable = ok
	e.metrics.Available(ok)
}

// SetPaused suspends tick processing. Entering the paused state flushes
// settings and persists pending records.
func (e *Engine) SetPaused(ctx context.Context, paused bool) {
	if paused && !e.paused && e.initialized {
		e.flush(ctx)
	}
	e.paused = paused
}

// Suspend prepares the engine for process exit. An outstanding batch is
// abandoned and its records return to the front of pending, which is then
// persisted. The engine stays paused afterwards. A batch the collector
// accepted just before is sent again by the next run.
func (e *Engine) Suspend(ctx context.Context) {
	if e.initialized && !e.closed {
		if e.state == StateAwaitingSend {
			e.logger.Info("abandoning outstanding batch", "records", e.inFlight.Len())
			e.outcome = nil
			e.phase = phaseNone
			e.pending.PrependQueue(e.inFlight, false)
			e.metrics.Pending(e.pending.Len())
			e.state = StateProcessingPending
		}
		e.flush(ctx)
	}
	e.paused = true
}

func (e *Engine) flush(ctx context.Context) {
	if err := e.settings.Flush(ctx); err != nil {
		e.logger.Warn("failed to flush settings", "error", err)
	}
	// The stored queue is not restored until the device is resolved; saving
	// pending before that would overwrite it.
	if e.state == StateResolvingDevice {
		return
	}
	if err := e.pending.Save(ctx); err != nil {
		e.logger.Warn("failed to persist pending records", "error", err)
	}
}

// Close flushes settings and stops the engine. An outstanding send is
// abandoned; its records remain in whatever was last persisted.
func (e *Engine) Close(ctx context.Context) {
	if e.closed {
		return
	}
	e.closed = true
	if err := e.settings.Flush(ctx); err != nil {
		e.logger.Warn("failed to flush settings", "error", err)
	}
	e.outcome = nil
	e.phase = phaseNone
	e.state = StateIdle
	e.logger.Info("engine closed", "pending", e.pending.Len())
}

// SetID stores value for t and, once started, back-fills it into pending
// records.
func (e *Engine) SetID(t ident.Type, value string) {
	e.identities.Set(t, value)
	if e.initialized {
		e.pending.UpdateID(t, e.identities.Get(t))
	}
}

// ClearID removes the value for t, bypassing stickiness.
func (e *Engine) ClearID(t ident.Type) {
	e.identities.Clear(t)
	if e.initialized {
		e.pending.UpdateID(t, "")
	}
}

// GetID returns the live value for t.
func (e *Engine) GetID(t ident.Type) string { return e.identities.Get(t) }

func (e *Engine) SetFacebookID(id string)   { e.SetID(ident.Facebook, id) }
func (e *Engine) SetGooglePlusID(id string) { e.SetID(ident.GooglePlus, id) }
func (e *Engine) SetTwitterID(id string)    { e.SetID(ident.Twitter, id) }
func (e *Engine) SetCustomID(id string)     { e.SetID(ident.Custom, id) }
func (e *Engine) ClearFacebookID()          { e.ClearID(ident.Facebook) }
func (e *Engine) ClearGooglePlusID()        { e.ClearID(ident.GooglePlus) }
func (e *Engine) ClearTwitterID()           { e.ClearID(ident.Twitter) }
func (e *Engine) ClearCustomID()            { e.ClearID(ident.Custom) }

func (e *Engine) Initialized() bool      { return e.initialized }
func (e *Engine) ServerAvailable() bool  { return e.serverAvailable }
func (e *Engine) AnalyticsEnabled() bool { return e.analyticsEnabled }
func (e *Engine) State() State           { return e.state }
func (e *Engine) Paused() bool           { return e.paused }
func (e *Engine) Payable() bool          { return e.payable }

// SetPayable changes is_payable for subsequent heartbeats.
func (e *Engine) SetPayable(payable bool) { e.payable = payable }

// PendingLen is the number of records waiting for the next batch.
func (e *Engine) PendingLen() int { return e.pending.Len() }

// InFlightLen is the size of the batch being sent.
func (e *Engine) InFlightLen() int { return e.inFlight.Len() }

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func stageName(p phase) string {
	if p == phaseProbe {
		return "probe"
	}
	return "send"
}
