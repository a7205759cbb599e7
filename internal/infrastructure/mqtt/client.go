package mqtt

import (
	"context"
	"fmt"
	"sync"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/weatherstation/internal/infrastructure/config"
)

// Client wraps paho.mqtt.golang for a station that manages its own session
// recovery.
//
// Unlike a long-lived paho client with auto-reconnect, every call to Open
// builds a fresh paho client for one connection attempt and reports the
// outcome through Handlers. Retrying is the caller's job.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - Handlers are invoked from paho goroutines and must not block.
type Client struct {
	cfg      config.MQTTConfig
	handlers Handlers
	will     *Will

	// newClient builds the underlying paho client. Replaced in tests.
	newClient func(*pahomqtt.ClientOptions) pahomqtt.Client

	// generation is bumped on every Open and Close so callbacks from an
	// abandoned attempt are dropped.
	mu         sync.RWMutex
	client     pahomqtt.Client
	generation uint64
	connected  bool

	logger   Logger
	loggerMu sync.RWMutex
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Handlers receive session lifecycle notifications. Any may be nil.
//
// The session argument is the id returned by the Open call the notification
// belongs to.
type Handlers struct {
	// OnConnect is called when an Open attempt succeeds.
	OnConnect func(session uint64, sessionPresent bool)

	// OnConnectFailed is called when an Open attempt fails. The error is a
	// *ConnectError carrying a Reason.
	OnConnectFailed func(session uint64, err error)

	// OnConnectionLost is called when an established session drops.
	OnConnectionLost func(session uint64, err error)

	// OnMessage is called for every message on a subscribed topic.
	OnMessage func(topic string, payload []byte)
}

// Will is the Last Will and Testament registered with each session.
type Will struct {
	Topic    string
	Payload  []byte
	QoS      byte
	Retained bool
}

// New creates a disconnected client. Call Open to start a session.
func New(cfg config.MQTTConfig, handlers Handlers) *Client {
	return &Client{
		cfg:       cfg,
		handlers:  handlers,
		newClient: pahomqtt.NewClient,
	}
}

// SetHandlers replaces the lifecycle handlers. It affects sessions opened
// afterwards and notifications not yet delivered.
func (c *Client) SetHandlers(h Handlers) {
	c.mu.Lock()
	c.handlers = h
	c.mu.Unlock()
}

// SetWill registers a Last Will for subsequent Open calls.
func (c *Client) SetWill(w Will) {
	c.mu.Lock()
	c.will = &w
	c.mu.Unlock()
}

// Open starts a non-blocking connection attempt to address ("host:port",
// host already resolved). Any previous session is discarded first.
//
// The returned id identifies the attempt in Handlers. The outcome arrives
// through Handlers.OnConnect or Handlers.OnConnectFailed.
func (c *Client) Open(address string) uint64 {
	opts := buildClientOptions(c.cfg, address)

	c.mu.Lock()
	if c.will != nil {
		opts.SetBinaryWill(c.will.Topic, c.will.Payload, c.will.QoS, c.will.Retained)
	}
	if c.client != nil {
		c.client.Disconnect(0)
	}
	c.generation++
	gen := c.generation
	c.connected = false

	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.handleConnectionLost(gen, err)
	})

	client := c.newClient(opts)
	c.client = client
	c.mu.Unlock()

	token := client.Connect()
	go c.awaitConnect(gen, token)

	return gen
}

// awaitConnect waits for the CONNACK (paho applies the connect timeout) and
// reports the outcome if the attempt is still current.
func (c *Client) awaitConnect(gen uint64, token pahomqtt.Token) {
	token.Wait()

	var sessionPresent bool
	var returnCode byte
	if ct, ok := token.(*pahomqtt.ConnectToken); ok {
		sessionPresent = ct.SessionPresent()
		returnCode = ct.ReturnCode()
	}

	err := token.Error()

	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return
	}
	c.connected = err == nil
	handlers := c.handlers
	c.mu.Unlock()

	if err != nil {
		if cb := handlers.OnConnectFailed; cb != nil {
			cb(gen, &ConnectError{Reason: reasonFromReturnCode(returnCode), Err: err})
		}
		return
	}

	if cb := handlers.OnConnect; cb != nil {
		cb(gen, sessionPresent)
	}
}

// handleConnectionLost is called by paho when an established session drops.
func (c *Client) handleConnectionLost(gen uint64, err error) {
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return
	}
	c.connected = false
	handlers := c.handlers
	c.mu.Unlock()

	if cb := handlers.OnConnectionLost; cb != nil {
		cb(gen, &ConnectError{Reason: ReasonTCPDisconnected, Err: err})
	}
}

// Close abandons any in-flight attempt and disconnects the current session
// immediately. No handler is called for the abandoned session.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++
	c.connected = false
	if c.client != nil {
		c.client.Disconnect(0)
		c.client = nil
	}
}

// Shutdown publishes a final retained payload (typically a graceful offline
// status) when connected, then disconnects with a quiesce period.
func (c *Client) Shutdown(finalTopic string, finalPayload []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++
	if c.client == nil {
		c.connected = false
		return
	}

	if c.connected && finalTopic != "" {
		token := c.client.Publish(finalTopic, byte(c.cfg.QoS), true, finalPayload)
		token.WaitTimeout(defaultPublishTimeout)
	}

	c.client.Disconnect(defaultDisconnectQuiesce)
	c.client = nil
	c.connected = false
}

// HealthCheck reports whether a session is established.
func (c *Client) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("mqtt health check: %w", ctx.Err())
	default:
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	return nil
}

// IsConnected returns the current session state.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected && c.client != nil && c.client.IsConnected()
}

// SetLogger sets a logger for acknowledgements, handler errors and panics.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

// getLogger returns the current logger (may be nil).
func (c *Client) getLogger() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}

// current returns the live paho client, or nil when not connected.
func (c *Client) current() pahomqtt.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.connected {
		return nil
	}
	return c.client
}

// wrapHandler routes paho messages to Handlers.OnMessage with panic recovery.
func (c *Client) wrapHandler() pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				if logger := c.getLogger(); logger != nil {
					logger.Error("MQTT handler panic recovered",
						"topic", msg.Topic(),
						"panic", r,
					)
				}
			}
		}()

		c.mu.RLock()
		cb := c.handlers.OnMessage
		c.mu.RUnlock()
		if cb != nil {
			cb(msg.Topic(), msg.Payload())
		}
	}
}
