package sensor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/weatherstation/internal/infrastructure/config"
	"github.com/nerrad567/weatherstation/internal/reading"
)

func TestStaticSource(t *testing.T) {
	src := FromConfig(config.SensorsConfig{
		TemperatureCelsius: 21.5,
		HumidityPercentage: 48,
		LightLux:           800,
	})

	got, err := src.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 21.5, got.TemperatureCelsius)
	assert.Equal(t, 800.0, got.LightLux)

	src.Set(reading.WeatherData{TemperatureCelsius: 18})
	got, err = src.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 18.0, got.TemperatureCelsius)
}

func TestStaticSource_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewStaticSource(reading.WeatherData{}).Read(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFuncSource(t *testing.T) {
	var src Source = FuncSource(func(context.Context) (reading.WeatherData, error) {
		return reading.WeatherData{}, ErrUnavailable
	})

	_, err := src.Read(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}
