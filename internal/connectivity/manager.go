package connectivity

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/weatherstation/internal/infrastructure/config"
	"github.com/nerrad567/weatherstation/internal/infrastructure/mqtt"
)

// Defaults applied by New to zero-valued Options.
const (
	defaultBrokerRetryDelay  = 2 * time.Second
	defaultNetworkRetryDelay = 5 * time.Second
	defaultPollThreshold     = 5 * time.Second
	defaultPollTick          = time.Second
	defaultResolveTimeout    = 5 * time.Second
	eventBufferSize          = 64
)

// Broker is the session transport. *mqtt.Client satisfies it.
type Broker interface {
	// Open starts a non-blocking attempt and returns its session id.
	Open(address string) uint64

	// Close abandons the current attempt or session without notification.
	Close()

	// Publish queues a message on the current session.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// Subscribe requests a subscription on the current session.
	Subscribe(topic string, qos byte) error
}

// Rejoiner asks the platform to rejoin the network. It must not block.
type Rejoiner interface {
	Rejoin(ctx context.Context) error
}

// RejoinerFunc adapts a function to Rejoiner.
type RejoinerFunc func(ctx context.Context) error

// Rejoin calls f.
func (f RejoinerFunc) Rejoin(ctx context.Context) error { return f(ctx) }

// CommandHandler receives messages on the command topic. It runs on the
// dispatch goroutine and must not block.
type CommandHandler interface {
	HandleCommand(topic string, payload []byte)
}

// CommandHandlerFunc adapts a function to CommandHandler.
type CommandHandlerFunc func(topic string, payload []byte)

// HandleCommand calls f.
func (f CommandHandlerFunc) HandleCommand(topic string, payload []byte) { f(topic, payload) }

// Observer is notified of state changes, typically to update metrics.
// Calls are made from the dispatch goroutine, except PublishResult.
type Observer interface {
	LinkChanged(up bool)
	BrokerChanged(connected bool)
	AttemptStarted()
	AttemptFailed(reason string)
	PublishResult(ok bool)
}

// Logger defines the logging interface for the manager.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

type noopObserver struct{}

func (noopObserver) LinkChanged(bool)     {}
func (noopObserver) BrokerChanged(bool)   {}
func (noopObserver) AttemptStarted()      {}
func (noopObserver) AttemptFailed(string) {}
func (noopObserver) PublishResult(bool)   {}

// Options configures a Manager.
type Options struct {
	// Broker is required.
	Broker Broker

	// Topics holds the command, data and status topics. Command and Data
	// are required.
	Topics mqtt.Topics

	// Host and Port locate the broker. Host may be an IP literal or a name.
	Host string
	Port int

	// QoS is used for the command subscription and all publishes.
	QoS byte

	// Retain is the retain flag for data publishes.
	Retain bool

	// RetryMode is config.RetryModeTimer (default) or config.RetryModePoll.
	RetryMode string

	// BrokerRetryDelay is the timer-mode delay after a failure (default 2s).
	BrokerRetryDelay time.Duration

	// PollThreshold is the poll-mode minimum time between attempts (default 5s).
	PollThreshold time.Duration

	// PollTick is how often poll mode checks for a due retry (default 1s).
	PollTick time.Duration

	// NetworkRetryDelay is the delay before asking for a rejoin (default 5s).
	NetworkRetryDelay time.Duration

	// ResolveTimeout bounds broker name resolution (default 5s).
	ResolveTimeout time.Duration

	// Resolver defaults to net.DefaultResolver.
	Resolver Resolver

	// Rejoiner is optional. Without it the network retry only logs.
	Rejoiner Rejoiner

	// Observer is optional.
	Observer Observer

	// Now defaults to time.Now.
	Now func() time.Time
}

// OptionsFromConfig fills the timing, topic and broker fields of Options
// from cfg. Broker, Rejoiner and Observer are left for the caller.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Topics:            mqtt.NewTopics(cfg.MQTT),
		Host:              cfg.MQTT.Broker.Host,
		Port:              cfg.MQTT.Broker.Port,
		QoS:               byte(cfg.MQTT.QoS),
		Retain:            cfg.MQTT.Retain,
		RetryMode:         cfg.MQTT.Retry.Mode,
		BrokerRetryDelay:  cfg.BrokerRetryDelay(),
		PollThreshold:     cfg.PollThreshold(),
		PollTick:          cfg.PollTick(),
		NetworkRetryDelay: cfg.NetworkRetryDelay(),
	}
}

// Status is a point-in-time view of the manager.
type Status struct {
	Link              State     `json:"link"`
	Broker            State     `json:"broker"`
	Attempts          uint64    `json:"attempts"`
	LastAttempt       time.Time `json:"last_attempt"`
	BrokerRetryArmed  bool      `json:"broker_retry_armed"`
	NetworkRetryArmed bool      `json:"network_retry_armed"`
}

// Manager owns the link and broker session state of one station.
//
// Link notifications, broker callbacks, retry timers and inbound messages
// are all posted as Events to one channel and handled in order by Run.
// Publish may be called from any goroutine.
type Manager struct {
	opts   Options
	events chan Event
	done   chan struct{}

	running atomic.Bool

	// mu guards session and brokerSession. Both are written only by the
	// dispatch goroutine.
	mu            sync.RWMutex
	session       Session
	brokerSession uint64

	connected atomic.Bool

	brokerRetry  scheduler
	poll         *pollScheduler
	networkRetry *timerScheduler

	handlerMu sync.RWMutex
	commands  CommandHandler
	liveness  func() []byte

	logger   Logger
	loggerMu sync.RWMutex
}

// New creates a Manager. Call Run to start dispatching.
func New(opts Options) (*Manager, error) {
	if opts.Broker == nil {
		return nil, ErrNoBroker
	}
	if opts.Topics.Command == "" {
		return nil, ErrNoCommandTopic
	}
	if opts.Topics.Data == "" {
		return nil, ErrNoDataTopic
	}

	if opts.RetryMode == "" {
		opts.RetryMode = config.RetryModeTimer
	}
	if opts.BrokerRetryDelay <= 0 {
		opts.BrokerRetryDelay = defaultBrokerRetryDelay
	}
	if opts.PollThreshold <= 0 {
		opts.PollThreshold = defaultPollThreshold
	}
	if opts.PollTick <= 0 {
		opts.PollTick = defaultPollTick
	}
	if opts.NetworkRetryDelay <= 0 {
		opts.NetworkRetryDelay = defaultNetworkRetryDelay
	}
	if opts.ResolveTimeout <= 0 {
		opts.ResolveTimeout = defaultResolveTimeout
	}
	if opts.Resolver == nil {
		opts.Resolver = net.DefaultResolver
	}
	if opts.Observer == nil {
		opts.Observer = noopObserver{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	m := &Manager{
		opts:   opts,
		events: make(chan Event, eventBufferSize),
		done:   make(chan struct{}),
		logger: noopLogger{},
	}

	switch opts.RetryMode {
	case config.RetryModeTimer:
		m.brokerRetry = newTimerScheduler(opts.BrokerRetryDelay, func() {
			m.post(Event{Kind: EventBrokerRetryDue})
		})
	case config.RetryModePoll:
		m.poll = newPollScheduler(opts.PollThreshold, opts.Now)
		m.brokerRetry = m.poll
	default:
		return nil, ErrInvalidRetryMode
	}

	m.networkRetry = newTimerScheduler(opts.NetworkRetryDelay, func() {
		m.post(Event{Kind: EventNetworkRetryDue})
	})

	return m, nil
}

// SetLogger sets the logger for the manager.
func (m *Manager) SetLogger(logger Logger) {
	m.loggerMu.Lock()
	m.logger = logger
	m.loggerMu.Unlock()
}

func (m *Manager) getLogger() Logger {
	m.loggerMu.RLock()
	defer m.loggerMu.RUnlock()
	return m.logger
}

// SetCommandHandler sets the receiver for command topic messages.
func (m *Manager) SetCommandHandler(h CommandHandler) {
	m.handlerMu.Lock()
	m.commands = h
	m.handlerMu.Unlock()
}

// SetLiveness sets the payload published to the status topic (or the data
// topic when no status topic is configured) on every new session.
// A nil function or nil payload disables it.
func (m *Manager) SetLiveness(payload func() []byte) {
	m.handlerMu.Lock()
	m.liveness = payload
	m.handlerMu.Unlock()
}

// BrokerHandlers returns mqtt handlers that post into this manager.
func (m *Manager) BrokerHandlers() mqtt.Handlers {
	return mqtt.Handlers{
		OnConnect: func(session uint64, _ bool) {
			m.post(Event{Kind: EventBrokerConnected, BrokerSession: session})
		},
		OnConnectFailed: func(session uint64, err error) {
			m.post(Event{Kind: EventBrokerConnectFailed, BrokerSession: session, Err: err})
		},
		OnConnectionLost: func(session uint64, err error) {
			m.post(Event{Kind: EventBrokerLost, BrokerSession: session, Err: err})
		},
		OnMessage: func(topic string, payload []byte) {
			m.post(Event{Kind: EventMessage, Topic: topic, Payload: payload})
		},
	}
}

// LinkUp reports that the network link came up.
func (m *Manager) LinkUp() { m.post(Event{Kind: EventLinkUp}) }

// LinkDown reports that the network link went down.
func (m *Manager) LinkDown() { m.post(Event{Kind: EventLinkDown}) }

// NotifyLink reports a link transition.
func (m *Manager) NotifyLink(up bool) {
	if up {
		m.LinkUp()
		return
	}
	m.LinkDown()
}

// post hands ev to the dispatch goroutine. After Run has returned, events
// are dropped.
func (m *Manager) post(ev Event) {
	select {
	case m.events <- ev:
	case <-m.done:
	}
}

// Run dispatches events until ctx is cancelled. Pending retries are
// cancelled on return; the broker session is left to the caller to shut
// down.
func (m *Manager) Run(ctx context.Context) error {
	if !m.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(m.done)

	var pollC <-chan time.Time
	if m.poll != nil {
		ticker := time.NewTicker(m.opts.PollTick)
		defer ticker.Stop()
		pollC = ticker.C
	}

	m.getLogger().Info("connectivity manager started",
		"broker", m.opts.Host,
		"port", m.opts.Port,
		"retry_mode", m.opts.RetryMode,
		"command_topic", m.opts.Topics.Command,
	)

	for {
		select {
		case <-ctx.Done():
			m.brokerRetry.Cancel()
			m.networkRetry.Cancel()
			m.getLogger().Info("connectivity manager stopped")
			return nil
		case ev := <-m.events:
			m.handle(ctx, ev)
		case <-pollC:
			m.handle(ctx, Event{Kind: EventPoll})
		}
	}
}

// handle applies one event. Only the dispatch goroutine calls it.
func (m *Manager) handle(ctx context.Context, ev Event) {
	switch ev.Kind {
	case EventLinkUp:
		m.onLinkUp(ctx)
	case EventLinkDown:
		m.onLinkDown()
	case EventNetworkRetryDue:
		m.onNetworkRetryDue(ctx)
	case EventBrokerRetryDue:
		m.attemptConnect(ctx)
	case EventPoll:
		m.onPoll(ctx)
	case EventBrokerResolved:
		m.onResolved(ev)
	case EventBrokerConnected:
		m.onConnected(ev)
	case EventBrokerConnectFailed:
		m.onConnectFailed(ev)
	case EventBrokerLost:
		m.onLost(ev)
	case EventMessage:
		m.onMessage(ev)
	default:
		m.getLogger().Warn("unknown connectivity event", "kind", int(ev.Kind))
	}
}

func (m *Manager) onLinkUp(ctx context.Context) {
	m.networkRetry.Cancel()

	m.mu.Lock()
	wasUp := m.session.LinkIsUp()
	m.session.LinkUp()
	m.mu.Unlock()

	if !wasUp {
		m.getLogger().Info("network link up")
		m.opts.Observer.LinkChanged(true)
	}

	m.attemptConnect(ctx)
}

func (m *Manager) onLinkDown() {
	m.mu.Lock()
	wasUp := m.session.LinkIsUp()
	wasConnected := m.session.BrokerIsConnected()
	m.session.LinkDown()
	m.brokerSession = 0
	m.mu.Unlock()

	m.brokerRetry.Cancel()
	m.connected.Store(false)
	m.opts.Broker.Close()
	m.networkRetry.Arm()

	if wasUp {
		m.getLogger().Warn("network link down", "retry_in", m.opts.NetworkRetryDelay)
		m.opts.Observer.LinkChanged(false)
	}
	if wasConnected {
		m.opts.Observer.BrokerChanged(false)
	}
}

func (m *Manager) onNetworkRetryDue(ctx context.Context) {
	m.mu.Lock()
	if m.session.LinkIsUp() {
		m.mu.Unlock()
		return
	}
	m.session.LinkRejoining()
	m.mu.Unlock()

	if m.opts.Rejoiner != nil {
		if err := m.opts.Rejoiner.Rejoin(ctx); err != nil {
			m.getLogger().Warn("network rejoin request failed", "error", err)
		} else {
			m.getLogger().Info("network rejoin requested")
		}
	}

	// Keep asking until the link reports up, which cancels this.
	m.networkRetry.Arm()
}

func (m *Manager) onPoll(ctx context.Context) {
	if m.poll == nil {
		return
	}

	m.mu.RLock()
	eligible := m.session.LinkIsUp() && m.session.Broker() == Disconnected
	m.mu.RUnlock()

	if !eligible || !m.poll.Due(m.opts.Now()) {
		return
	}

	m.poll.Cancel()
	m.attemptConnect(ctx)
}

// attemptConnect begins a broker attempt unless the link is down, one is
// in flight, or the session is established.
func (m *Manager) attemptConnect(ctx context.Context) {
	m.mu.Lock()
	if !m.session.BeginAttempt(m.opts.Now()) {
		m.mu.Unlock()
		return
	}
	attempt := m.session.Attempts()
	m.mu.Unlock()

	m.opts.Observer.AttemptStarted()

	if addr, ok := literalAddress(m.opts.Host, m.opts.Port); ok {
		m.openBroker(attempt, addr)
		return
	}

	m.getLogger().Debug("resolving broker", "host", m.opts.Host, "attempt", attempt)
	go func() {
		addr, err := resolveBroker(ctx, m.opts.Resolver, m.opts.Host, m.opts.Port, m.opts.ResolveTimeout)
		m.post(Event{Kind: EventBrokerResolved, Attempt: attempt, Address: addr, Err: err})
	}()
}

func (m *Manager) onResolved(ev Event) {
	m.mu.RLock()
	current := m.session.InFlight() && m.session.Attempts() == ev.Attempt
	m.mu.RUnlock()

	if !current {
		return
	}
	if ev.Err != nil {
		m.failAttempt(&mqtt.ConnectError{Reason: mqtt.ReasonDNSFailed, Err: ev.Err})
		return
	}
	m.openBroker(ev.Attempt, ev.Address)
}

func (m *Manager) openBroker(attempt uint64, addr string) {
	m.getLogger().Info("connecting to broker", "address", addr, "attempt", attempt)
	session := m.opts.Broker.Open(addr)

	m.mu.Lock()
	m.brokerSession = session
	m.mu.Unlock()
}

// isCurrent reports whether ev belongs to the latest broker session.
func (m *Manager) isCurrent(ev Event) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return ev.BrokerSession != 0 && ev.BrokerSession == m.brokerSession
}

func (m *Manager) onConnected(ev Event) {
	if !m.isCurrent(ev) {
		return
	}

	m.mu.Lock()
	ok := m.session.AttemptSucceeded()
	m.mu.Unlock()
	if !ok {
		return
	}

	m.brokerRetry.Cancel()
	m.connected.Store(true)
	m.opts.Observer.BrokerChanged(true)
	m.getLogger().Info("broker session established", "command_topic", m.opts.Topics.Command)

	if err := m.opts.Broker.Subscribe(m.opts.Topics.Command, m.opts.QoS); err != nil {
		m.getLogger().Error("command subscription failed", "topic", m.opts.Topics.Command, "error", err)
	}

	m.publishLiveness()
}

func (m *Manager) publishLiveness() {
	m.handlerMu.RLock()
	liveness := m.liveness
	m.handlerMu.RUnlock()
	if liveness == nil {
		return
	}

	payload := liveness()
	if payload == nil {
		return
	}

	if m.opts.Topics.Status != "" {
		m.publish(m.opts.Topics.Status, payload, true)
		return
	}
	m.publish(m.opts.Topics.Data, payload, false)
}

func (m *Manager) onConnectFailed(ev Event) {
	if !m.isCurrent(ev) {
		return
	}
	m.failAttempt(ev.Err)
}

// failAttempt clears the in-flight attempt and arms the retry while the
// link is up.
func (m *Manager) failAttempt(err error) {
	m.mu.Lock()
	ok := m.session.AttemptFailed()
	linkUp := m.session.LinkIsUp()
	m.mu.Unlock()
	if !ok {
		return
	}

	reason := string(mqtt.ReasonOf(err))
	m.opts.Observer.AttemptFailed(reason)
	m.getLogger().Warn("broker connection failed",
		"reason", reason,
		"error", err,
		"retry_mode", m.opts.RetryMode,
	)

	if linkUp {
		m.brokerRetry.Arm()
	}
}

func (m *Manager) onLost(ev Event) {
	if !m.isCurrent(ev) {
		return
	}

	m.mu.Lock()
	ok := m.session.SessionLost()
	linkUp := m.session.LinkIsUp()
	m.mu.Unlock()
	if !ok {
		return
	}

	m.connected.Store(false)
	m.opts.Observer.BrokerChanged(false)
	m.getLogger().Warn("broker session lost", "reason", string(mqtt.ReasonOf(ev.Err)), "error", ev.Err)

	if linkUp {
		m.brokerRetry.Arm()
	}
}

func (m *Manager) onMessage(ev Event) {
	if ev.Topic != m.opts.Topics.Command {
		m.getLogger().Debug("ignoring message on unexpected topic", "topic", ev.Topic)
		return
	}

	m.handlerMu.RLock()
	h := m.commands
	m.handlerMu.RUnlock()

	if h == nil {
		m.getLogger().Debug("command received without handler", "bytes", len(ev.Payload))
		return
	}
	h.HandleCommand(ev.Topic, ev.Payload)
}

// Publish sends payload to the data topic. It returns false when no session
// is established or the broker rejects the message. Delivery is not
// confirmed.
func (m *Manager) Publish(payload []byte) bool {
	return m.publish(m.opts.Topics.Data, payload, m.opts.Retain)
}

// PublishStatus sends a retained payload to the status topic. It returns
// false when no status topic is configured or no session is established.
func (m *Manager) PublishStatus(payload []byte) bool {
	if m.opts.Topics.Status == "" {
		return false
	}
	return m.publish(m.opts.Topics.Status, payload, true)
}

func (m *Manager) publish(topic string, payload []byte, retained bool) bool {
	if !m.connected.Load() {
		m.opts.Observer.PublishResult(false)
		return false
	}

	if err := m.opts.Broker.Publish(topic, payload, m.opts.QoS, retained); err != nil {
		m.getLogger().Warn("publish failed", "topic", topic, "error", err)
		m.opts.Observer.PublishResult(false)
		return false
	}

	m.opts.Observer.PublishResult(true)
	return true
}

// IsConnected reports whether the broker session is established.
func (m *Manager) IsConnected() bool {
	return m.connected.Load()
}

// Topics returns the configured topics.
func (m *Manager) Topics() mqtt.Topics {
	return m.opts.Topics
}

// Status returns a snapshot of the session and retry state.
func (m *Manager) Status() Status {
	m.mu.RLock()
	s := m.session
	m.mu.RUnlock()

	return Status{
		Link:              s.Link(),
		Broker:            s.Broker(),
		Attempts:          s.Attempts(),
		LastAttempt:       s.LastAttempt(),
		BrokerRetryArmed:  m.brokerRetry.Armed(),
		NetworkRetryArmed: m.networkRetry.Armed(),
	}
}
