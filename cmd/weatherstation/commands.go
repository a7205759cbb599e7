package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/weatherstation/internal/infrastructure/config"
	"github.com/nerrad567/weatherstation/internal/journal"
	"github.com/nerrad567/weatherstation/internal/reading"
	"github.com/nerrad567/weatherstation/internal/sensor"
)

// newPayloadCmd prints the document the station would publish now, using
// the configured identity and sensor values.
func newPayloadCmd(configPath *string) *cobra.Command {
	var pretty bool

	cmd := &cobra.Command{
		Use:   "payload",
		Short: "Print a sample reading document",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadOrDefault(*configPath)
			if err != nil {
				return err
			}

			ts, err := reading.NewTimestamper(cfg.Clock, reading.SystemClock{})
			if err != nil {
				return fmt.Errorf("configuring clock: %w", err)
			}

			data, err := sensor.FromConfig(cfg.Sensors).Read(cmd.Context())
			if err != nil {
				return fmt.Errorf("reading sensors: %w", err)
			}

			doc, err := reading.NewSerializer(ts, pretty || cfg.Publish.Pretty).BuildWeatherStationJSON(
				reading.Identity{SensorID: cfg.Station.SensorID, StreetID: cfg.Station.StreetID},
				reading.Location{
					Latitude:       cfg.Station.Location.Latitude,
					Longitude:      cfg.Station.Location.Longitude,
					AltitudeMeters: cfg.Station.Location.AltitudeMeters,
					District:       cfg.Station.Location.District,
					Neighborhood:   cfg.Station.Location.Neighborhood,
				},
				data,
			)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(doc))
			return err
		},
	}
	cmd.Flags().BoolVar(&pretty, "pretty", false, "indent the document")
	return cmd
}

// newJournalCmd inspects and prunes the publication journal.
func newJournalCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect the publication journal",
	}

	var limit int
	recent := &cobra.Command{
		Use:   "recent",
		Short: "Print the most recent publish attempts as JSON lines",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			jrnl, db, err := journal.Open(cmd.Context(), cfg.Database)
			if err != nil {
				return fmt.Errorf("opening journal: %w", err)
			}
			defer db.Close() //nolint:errcheck // read-only command

			entries, err := jrnl.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			counts, err := jrnl.Count(cmd.Context())
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, e := range entries {
				payload := json.RawMessage(e.Payload)
				if len(payload) > 0 && !json.Valid(payload) {
					quoted, _ := json.Marshal(string(e.Payload)) //nolint:errcheck // strings always marshal
					payload = quoted
				}
				if err := enc.Encode(journalLine{
					ID:         e.ID,
					Kind:       e.Kind,
					Topic:      e.Topic,
					Published:  e.Published,
					RecordedAt: e.RecordedAt,
					Payload:    payload,
				}); err != nil {
					return err
				}
			}
			return enc.Encode(counts)
		},
	}
	recent.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries")

	var days int
	prune := &cobra.Command{
		Use:   "prune",
		Short: "Delete entries older than the given number of days",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if days <= 0 {
				return fmt.Errorf("--days must be positive")
			}
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			jrnl, db, err := journal.Open(cmd.Context(), cfg.Database)
			if err != nil {
				return fmt.Errorf("opening journal: %w", err)
			}
			defer db.Close() //nolint:errcheck // Best effort cleanup on exit

			cutoff := time.Now().Add(-time.Duration(days) * hoursPerDay * time.Hour)
			removed, err := jrnl.Prune(cmd.Context(), cutoff)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "pruned %d entries\n", removed)
			return err
		},
	}
	prune.Flags().IntVar(&days, "days", 30, "keep entries newer than this many days")

	cmd.AddCommand(recent, prune)
	return cmd
}

// journalLine is one entry of `journal recent`. Payloads are embedded as
// JSON when valid and as a string otherwise.
type journalLine struct {
	ID         int64           `json:"id"`
	Kind       string          `json:"kind"`
	Topic      string          `json:"topic"`
	Published  bool            `json:"published"`
	RecordedAt time.Time       `json:"recorded_at"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// loadOrDefault loads the config file, falling back to the stock settings
// when it does not exist.
func loadOrDefault(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return config.Default(), nil
	}
	return nil, fmt.Errorf("loading config: %w", err)
}
