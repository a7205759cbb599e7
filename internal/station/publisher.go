package station

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/weatherstation/internal/infrastructure/mqtt"
	"github.com/nerrad567/weatherstation/internal/journal"
	"github.com/nerrad567/weatherstation/internal/reading"
	"github.com/nerrad567/weatherstation/internal/sensor"
)

const (
	defaultInterval = 60 * time.Second
	readTimeout     = 10 * time.Second
	journalTimeout  = 5 * time.Second
	requestBuffer   = 4
)

// Session is the topic session readings are published through.
// connectivity.Manager implements it.
type Session interface {
	Publish(payload []byte) bool
	PublishStatus(payload []byte) bool
	IsConnected() bool
	Topics() mqtt.Topics
}

// Historian stores readings as time series. influxdb.Client implements it.
type Historian interface {
	WriteReading(sensorID, streetID string, fields map[string]any, at time.Time)
}

// Recorder stores publish outcomes. journal.Journal implements it.
type Recorder interface {
	Record(ctx context.Context, e journal.Entry) (int64, error)
}

// FailureCounter counts sensor read failures. metrics.Registry implements it.
type FailureCounter interface {
	SensorReadFailed()
}

// Logger defines the logging interface for the publisher.
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

// Config holds the publisher's identity and collaborators.
type Config struct {
	Identity reading.Identity
	Location reading.Location
	Version  string

	// Interval between readings. Default: 60 seconds.
	Interval time.Duration

	// Source, Serializer and Session are required.
	Source     sensor.Source
	Serializer *reading.Serializer
	Session    Session

	// Timestamper stamps status messages. Optional.
	Timestamper *reading.Timestamper

	// Historian, Journal and Failures are optional.
	Historian Historian
	Journal   Recorder
	Failures  FailureCounter
}

// Publisher reads the sensors every interval and publishes the station
// document. It also serves the station's commands and status payloads.
type Publisher struct {
	cfg       Config
	startTime time.Time

	requests chan string
	running  atomic.Bool

	logger   Logger
	loggerMu sync.RWMutex
}

// New validates cfg and creates a Publisher.
func New(cfg Config) (*Publisher, error) {
	if cfg.Source == nil {
		return nil, ErrNoSource
	}
	if cfg.Serializer == nil {
		return nil, ErrNoSerializer
	}
	if cfg.Session == nil {
		return nil, ErrNoSession
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}

	return &Publisher{
		cfg:       cfg,
		startTime: time.Now(),
		requests:  make(chan string, requestBuffer),
		logger:    noopLogger{},
	}, nil
}

// SetLogger sets the logger for this publisher.
func (p *Publisher) SetLogger(logger Logger) {
	p.loggerMu.Lock()
	p.logger = logger
	p.loggerMu.Unlock()
}

func (p *Publisher) getLogger() Logger {
	p.loggerMu.RLock()
	defer p.loggerMu.RUnlock()
	return p.logger
}

// Run publishes a reading every interval and serves queued commands until
// ctx is cancelled.
func (p *Publisher) Run(ctx context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer p.running.Store(false)

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	p.getLogger().Info("publisher started",
		"interval", p.cfg.Interval,
		"data_topic", p.cfg.Session.Topics().Data,
	)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.publishCycle(ctx)
		case cmd := <-p.requests:
			p.execute(ctx, cmd)
		}
	}
}

// publishCycle runs one cycle and logs the outcome. Failures are not
// retried; the next tick tries again.
func (p *Publisher) publishCycle(ctx context.Context) {
	if err := p.PublishOnce(ctx); err != nil {
		p.getLogger().Warn("reading not published", "error", err)
	}
}

// PublishOnce reads the sensors, publishes the document, writes it to the
// historian and records the outcome in the journal.
//
// It returns ErrNotPublished (wrapped) when no session accepted the
// document. Historian and journal failures are logged, not returned.
func (p *Publisher) PublishOnce(ctx context.Context) error {
	readCtx, cancel := context.WithTimeout(ctx, readTimeout)
	data, err := p.cfg.Source.Read(readCtx)
	cancel()
	if err != nil {
		if p.cfg.Failures != nil {
			p.cfg.Failures.SensorReadFailed()
		}
		return fmt.Errorf("reading sensors: %w", err)
	}

	payload, err := p.cfg.Serializer.BuildWeatherStationJSON(p.cfg.Identity, p.cfg.Location, data)
	if err != nil {
		return err
	}

	published := p.cfg.Session.Publish(payload)

	if p.cfg.Historian != nil {
		// The document carries the sentinel timestamp until the clock is
		// set; an unsynced point would land at a bogus time.
		if ts := p.cfg.Serializer.Timestamper(); ts.Synced() {
			p.cfg.Historian.WriteReading(p.cfg.Identity.SensorID, p.cfg.Identity.StreetID, data.Fields(), ts.Now())
		} else {
			p.getLogger().Debug("clock not synchronised, historian write skipped")
		}
	}

	p.record(ctx, journal.KindReading, p.cfg.Session.Topics().Data, payload, published)

	if !published {
		return fmt.Errorf("%w: no broker session", ErrNotPublished)
	}
	p.getLogger().Debug("reading published", "bytes", len(payload))
	return nil
}

func (p *Publisher) record(ctx context.Context, kind, topic string, payload []byte, published bool) {
	if p.cfg.Journal == nil {
		return
	}
	jctx, cancel := context.WithTimeout(ctx, journalTimeout)
	defer cancel()
	if _, err := p.cfg.Journal.Record(jctx, journal.Entry{
		Kind:      kind,
		Topic:     topic,
		Payload:   payload,
		Published: published,
	}); err != nil {
		p.getLogger().Warn("journal write failed", "kind", kind, "error", err)
	}
}

// HandleCommand parses a command message and queues it for Run. It never
// blocks: when the queue is full the command is dropped.
func (p *Publisher) HandleCommand(topic string, payload []byte) {
	var cmd CommandMessage
	if err := json.Unmarshal(payload, &cmd); err != nil {
		p.getLogger().Warn("failed to parse command", "topic", topic, "error", err)
		return
	}

	switch cmd.Command {
	case CommandPublishNow, CommandPing:
	default:
		p.getLogger().Warn("unknown command ignored", "command", cmd.Command)
		return
	}

	p.getLogger().Info("received command", "command", cmd.Command)

	select {
	case p.requests <- cmd.Command:
	default:
		p.getLogger().Warn("command queue full, dropping", "command", cmd.Command)
	}
}

func (p *Publisher) execute(ctx context.Context, cmd string) {
	switch cmd {
	case CommandPublishNow:
		p.publishCycle(ctx)
	case CommandPing:
		p.publishLiveness(ctx)
	}
}

// publishLiveness republishes the online status outside a new session.
func (p *Publisher) publishLiveness(ctx context.Context) {
	payload := p.LivenessPayload()
	topics := p.cfg.Session.Topics()

	var ok bool
	topic := topics.Status
	if topic != "" {
		ok = p.cfg.Session.PublishStatus(payload)
	} else {
		topic = topics.Data
		ok = p.cfg.Session.Publish(payload)
	}
	p.record(ctx, journal.KindStatus, topic, payload, ok)
}

// LivenessPayload returns the online status document. It is passed to
// connectivity.Manager.SetLiveness so every new session announces itself.
func (p *Publisher) LivenessPayload() []byte {
	return mustMarshal(StatusMessage{
		Status:        StatusOnline,
		SensorID:      p.cfg.Identity.SensorID,
		Timestamp:     p.timestamp(),
		Version:       p.cfg.Version,
		UptimeSeconds: int64(time.Since(p.startTime).Seconds()),
	})
}

// WillPayload returns the last-will document.
func (p *Publisher) WillPayload() []byte {
	return mustMarshal(WillMessage(p.cfg.Identity.SensorID))
}

// OfflinePayload returns the graceful shutdown document.
func (p *Publisher) OfflinePayload() []byte {
	return mustMarshal(StatusMessage{
		Status:    StatusOffline,
		Reason:    ReasonShutdown,
		SensorID:  p.cfg.Identity.SensorID,
		Timestamp: p.timestamp(),
		Version:   p.cfg.Version,
	})
}

func (p *Publisher) timestamp() string {
	if p.cfg.Timestamper == nil {
		return ""
	}
	return p.cfg.Timestamper.Timestamp()
}
