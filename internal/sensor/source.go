// Package sensor supplies weather samples to the publisher.
//
// Hardware drivers implement Source. StaticSource serves configured values
// for bench setups and gateways that receive readings elsewhere.
package sensor

import (
	"context"
	"errors"
	"sync"

	"github.com/nerrad567/weatherstation/internal/infrastructure/config"
	"github.com/nerrad567/weatherstation/internal/reading"
)

// ErrUnavailable is returned when a source cannot produce a sample.
var ErrUnavailable = errors.New("sensor: reading unavailable")

// Source produces one weather sample per call.
type Source interface {
	Read(ctx context.Context) (reading.WeatherData, error)
}

// FuncSource adapts a function to Source.
type FuncSource func(ctx context.Context) (reading.WeatherData, error)

// Read calls f.
func (f FuncSource) Read(ctx context.Context) (reading.WeatherData, error) { return f(ctx) }

// StaticSource returns the same sample until Set replaces it.
type StaticSource struct {
	mu   sync.RWMutex
	data reading.WeatherData
}

// NewStaticSource creates a source serving data.
func NewStaticSource(data reading.WeatherData) *StaticSource {
	return &StaticSource{data: data}
}

// FromConfig creates a StaticSource from the sensors section.
func FromConfig(cfg config.SensorsConfig) *StaticSource {
	return NewStaticSource(reading.WeatherData{
		TemperatureCelsius:     cfg.TemperatureCelsius,
		HumidityPercentage:     cfg.HumidityPercentage,
		WindSpeed:              cfg.WindSpeed,
		LightLux:               cfg.LightLux,
		AtmosphericPressureHPa: cfg.AtmosphericPressureHPa,
		AirQualityIndex:        cfg.AirQualityIndex,
	})
}

// Read returns the current sample.
func (s *StaticSource) Read(ctx context.Context) (reading.WeatherData, error) {
	if err := ctx.Err(); err != nil {
		return reading.WeatherData{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data, nil
}

// Set replaces the sample.
func (s *StaticSource) Set(data reading.WeatherData) {
	s.mu.Lock()
	s.data = data
	s.mu.Unlock()
}
