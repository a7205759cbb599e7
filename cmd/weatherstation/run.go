package main

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/weatherstation/internal/connectivity"
	"github.com/nerrad567/weatherstation/internal/infrastructure/config"
	"github.com/nerrad567/weatherstation/internal/infrastructure/database"
	"github.com/nerrad567/weatherstation/internal/infrastructure/influxdb"
	"github.com/nerrad567/weatherstation/internal/infrastructure/logging"
	"github.com/nerrad567/weatherstation/internal/infrastructure/mqtt"
	"github.com/nerrad567/weatherstation/internal/journal"
	"github.com/nerrad567/weatherstation/internal/link"
	"github.com/nerrad567/weatherstation/internal/metrics"
	"github.com/nerrad567/weatherstation/internal/reading"
	"github.com/nerrad567/weatherstation/internal/sensor"
	"github.com/nerrad567/weatherstation/internal/station"
)

const (
	retentionInterval = 24 * time.Hour
	hoursPerDay       = 24
)

// linkRunner is the platform side of the network link.
type linkRunner interface {
	Run(ctx context.Context) error
	Rejoin(ctx context.Context) error
}

// run is the daemon, separated from main for testability. Only startup
// failures (configuration, journal) are returned; broker and network
// trouble is retried until ctx is cancelled.
func run(ctx context.Context, configPath string) error {
	log := logging.Default()
	log.Info("starting weatherstation",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"path", configPath,
		"sensor_id", cfg.Station.SensorID,
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	ts, err := reading.NewTimestamper(cfg.Clock, reading.SystemClock{})
	if err != nil {
		return fmt.Errorf("configuring clock: %w", err)
	}
	serializer := reading.NewSerializer(ts, cfg.Publish.Pretty)

	registry := metrics.NewRegistry()

	// Journal (optional)
	var (
		jrnl *journal.Journal
		db   *database.DB
	)
	if cfg.Database.Enabled {
		jrnl, db, err = journal.Open(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("opening journal: %w", err)
		}
		defer func() {
			log.Info("closing journal")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing journal", "error", closeErr)
			}
		}()
		log.Info("journal ready", "path", db.Path())
	}

	// Historian (optional). An unreachable server is not fatal.
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			log.Warn("influxdb unavailable, continuing without historian", "error", err)
			influxClient = nil
		} else {
			defer func() {
				log.Info("closing InfluxDB connection")
				if closeErr := influxClient.Close(); closeErr != nil {
					log.Error("error closing InfluxDB", "error", closeErr)
				}
			}()
			influxClient.SetOnError(func(err error) {
				registry.HistorianWriteFailed()
				log.Error("InfluxDB write error", "error", err)
			})
			log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
		}
	}

	// Broker transport and session manager
	mqttClient := mqtt.New(cfg.MQTT, mqtt.Handlers{})
	mqttClient.SetLogger(log.Component("mqtt"))

	var mgr *connectivity.Manager
	netLink := newLink(cfg, log, func(up bool) { mgr.NotifyLink(up) })
	rejoiner, err := newRejoiner(cfg, log, netLink)
	if err != nil {
		return fmt.Errorf("configuring rejoin command: %w", err)
	}

	opts := connectivity.OptionsFromConfig(cfg)
	opts.Broker = mqttClient
	opts.Rejoiner = rejoiner
	opts.Observer = registry
	mgr, err = connectivity.New(opts)
	if err != nil {
		return fmt.Errorf("creating connectivity manager: %w", err)
	}
	mgr.SetLogger(log.Component("connectivity"))
	mqttClient.SetHandlers(mgr.BrokerHandlers())

	// Publisher
	stationCfg := station.Config{
		Identity: reading.Identity{
			SensorID: cfg.Station.SensorID,
			StreetID: cfg.Station.StreetID,
		},
		Location: reading.Location{
			Latitude:       cfg.Station.Location.Latitude,
			Longitude:      cfg.Station.Location.Longitude,
			AltitudeMeters: cfg.Station.Location.AltitudeMeters,
			District:       cfg.Station.Location.District,
			Neighborhood:   cfg.Station.Location.Neighborhood,
		},
		Version:     version,
		Interval:    cfg.PublishInterval(),
		Source:      sensor.FromConfig(cfg.Sensors),
		Serializer:  serializer,
		Session:     mgr,
		Timestamper: ts,
		Failures:    registry,
	}
	if influxClient != nil {
		stationCfg.Historian = influxClient
	}
	if jrnl != nil {
		stationCfg.Journal = jrnl
	}
	pub, err := station.New(stationCfg)
	if err != nil {
		return fmt.Errorf("creating publisher: %w", err)
	}
	pub.SetLogger(log.Component("station"))

	topics := mgr.Topics()
	if topics.Status != "" {
		mqttClient.SetWill(mqtt.Will{
			Topic:    topics.Status,
			Payload:  pub.WillPayload(),
			QoS:      byte(cfg.MQTT.QoS),
			Retained: true,
		})
	}
	if cfg.Publish.Liveness {
		mgr.SetLiveness(pub.LivenessPayload)
	}
	mgr.SetCommandHandler(pub)

	// Metrics endpoint (optional)
	if cfg.Metrics.Enabled {
		deps := metrics.Deps{
			Config:       cfg.Metrics,
			Registry:     registry,
			Logger:       log.Component("metrics"),
			Version:      version,
			Connectivity: mgr,
			Health:       healthChecks(db, mqttClient, influxClient),
		}
		if jrnl != nil {
			deps.Journal = jrnl
			deps.Database = db
		}
		if ls, ok := netLink.(metrics.LinkStatus); ok {
			deps.Link = ls
		}
		if rc, ok := rejoiner.(metrics.RejoinCounter); ok {
			deps.Rejoins = rc
		}
		srv, srvErr := metrics.NewServer(deps)
		if srvErr != nil {
			return fmt.Errorf("creating metrics server: %w", srvErr)
		}
		if startErr := srv.Start(); startErr != nil {
			return fmt.Errorf("starting metrics server: %w", startErr)
		}
		defer func() {
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error closing metrics server", "error", closeErr)
			}
		}()
	}

	log.Info("initialisation complete",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"data_topic", topics.Data,
		"command_topic", topics.Command,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return mgr.Run(gctx) })
	g.Go(func() error { return netLink.Run(gctx) })
	g.Go(func() error { return pub.Run(gctx) })
	if jrnl != nil && cfg.Database.Retention > 0 {
		keep := time.Duration(cfg.Database.Retention) * hoursPerDay * time.Hour
		g.Go(func() error {
			jrnl.Retain(gctx, keep, retentionInterval, func(err error) {
				log.Warn("journal prune failed", "error", err)
			})
			return nil
		})
	}

	runErr := g.Wait()

	log.Info("shutting down, publishing offline status")
	mqttClient.Shutdown(topics.Status, pub.OfflinePayload())

	if runErr != nil {
		return fmt.Errorf("station stopped: %w", runErr)
	}
	log.Info("weatherstation stopped")
	return nil
}

// healthChecks lists the components /health probes, in the order the
// station depends on them. Disabled components are left out.
func healthChecks(db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) []metrics.Check {
	var checks []metrics.Check
	if db != nil {
		checks = append(checks, metrics.Check{Name: "database", Checker: db})
	}
	checks = append(checks, metrics.Check{Name: "mqtt", Checker: mqttClient})
	if influxClient != nil {
		checks = append(checks, metrics.Check{Name: "influxdb", Checker: influxClient})
	}
	return checks
}

// newLink returns the interface watcher, or a static link when the OS
// manages the network.
func newLink(cfg *config.Config, log *logging.Logger, onChange func(up bool)) linkRunner {
	if cfg.Network.Static {
		return link.StaticLink{OnChange: onChange}
	}
	return link.NewInterfaceWatcher(link.Config{
		Interface:    cfg.Network.Interface,
		PollInterval: cfg.NetworkPollInterval(),
		OnChange:     onChange,
		Logger:       log.Component("link").Logger,
	})
}

// newRejoiner returns the configured rejoin command, which re-probes the
// link when it finishes, or the link itself when no command is set.
func newRejoiner(cfg *config.Config, log *logging.Logger, netLink linkRunner) (connectivity.Rejoiner, error) {
	if cfg.Network.Static || len(cfg.Network.RejoinCommand) == 0 {
		return netLink, nil
	}
	r, err := link.NewCommandRejoiner(link.CommandConfig{
		Command: cfg.Network.RejoinCommand,
		Timeout: time.Duration(cfg.Network.RejoinTimeout) * time.Second,
		After: func() {
			_ = netLink.Rejoin(context.Background())
		},
		Logger: log.Component("link").Logger,
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}
