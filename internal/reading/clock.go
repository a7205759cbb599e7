package reading

import (
	"fmt"
	"time"

	"github.com/nerrad567/weatherstation/internal/infrastructure/config"
)

// Layouts and sentinels for the two timestamp styles.
const (
	localLayout = "2006-01-02T15:04:05-07:00"

	// utcLayout keeps whole seconds with a literal ".000" fraction.
	utcLayout = "2006-01-02T15:04:05.000Z"

	// SentinelLocal is emitted by the local style before the clock is synced.
	SentinelLocal = "1970-01-01T00:00:00Z"

	// SentinelUTC is emitted by the utc style before the clock is synced.
	SentinelUTC = "1970-01-01T00:00:00.000Z"
)

// syncedAfter is the earliest wall time considered synchronised.
var syncedAfter = time.Date(2016, time.January, 1, 0, 0, 0, 0, time.UTC)

// Clock supplies wall time and whether it can be trusted.
type Clock interface {
	Now() time.Time
	Synced() bool
}

// SystemClock reads the host clock. It is considered synchronised once the
// wall time is past 2016-01-01; a board that booted without NTP or an RTC
// reports 1970.
type SystemClock struct{}

// Now returns time.Now.
func (SystemClock) Now() time.Time { return time.Now() }

// Synced reports whether the host clock has been set.
func (SystemClock) Synced() bool { return !time.Now().Before(syncedAfter) }

// FixedClock always returns T. A zero T is never synced.
type FixedClock struct {
	T time.Time
}

// Now returns T.
func (c FixedClock) Now() time.Time { return c.T }

// Synced applies the same rule as SystemClock to T.
func (c FixedClock) Synced() bool { return !c.T.Before(syncedAfter) }

// Timestamper renders ISO-8601 timestamps in one of the configured styles.
type Timestamper struct {
	clock Clock
	loc   *time.Location
	style string
}

// NewTimestamper builds a Timestamper from clock configuration.
// An empty timezone means UTC for the local style.
func NewTimestamper(cfg config.ClockConfig, clock Clock) (*Timestamper, error) {
	style := cfg.Style
	if style == "" {
		style = config.TimestampLocal
	}
	if style != config.TimestampLocal && style != config.TimestampUTC {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStyle, style)
	}

	loc := time.UTC
	if cfg.Timezone != "" {
		l, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %w", ErrInvalidTimezone, cfg.Timezone, err)
		}
		loc = l
	}

	if clock == nil {
		clock = SystemClock{}
	}

	return &Timestamper{clock: clock, loc: loc, style: style}, nil
}

// Now returns the clock's current time.
func (t *Timestamper) Now() time.Time { return t.clock.Now() }

// Synced reports whether the clock has been synchronised.
func (t *Timestamper) Synced() bool { return t.clock.Synced() }

// Timestamp formats the current time, or the style's sentinel when the
// clock has not been synchronised.
func (t *Timestamper) Timestamp() string {
	if !t.clock.Synced() {
		return t.Sentinel()
	}
	return t.Format(t.clock.Now())
}

// Format renders ts in the configured style.
func (t *Timestamper) Format(ts time.Time) string {
	if t.style == config.TimestampUTC {
		return ts.UTC().Truncate(time.Second).Format(utcLayout)
	}
	return ts.In(t.loc).Format(localLayout)
}

// Sentinel returns the unsynchronised placeholder for the configured style.
func (t *Timestamper) Sentinel() string {
	if t.style == config.TimestampUTC {
		return SentinelUTC
	}
	return SentinelLocal
}
