package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// MeasurementWeather is the measurement readings are written to.
const MeasurementWeather = "weather"

// WriteReading writes one station sample. Tags are the sensor and street
// ids; fields are keyed by wire name (see reading.WeatherData.Fields).
//
// The write is non-blocking and silently dropped while disconnected.
func (c *Client) WriteReading(sensorID, streetID string, fields map[string]any, at time.Time) {
	if len(fields) == 0 {
		return
	}
	tags := map[string]string{"sensor_id": sensorID}
	if streetID != "" {
		tags["street_id"] = streetID
	}
	c.WritePoint(MeasurementWeather, tags, fields, at)
}

// WritePoint writes a custom point. A zero timestamp means now.
//
// Example:
//
//	client.WritePoint("link",
//	    map[string]string{"sensor_id": "ws-01"},
//	    map[string]any{"up": true}, time.Time{})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any, at time.Time) {
	if !c.IsConnected() {
		return
	}
	if at.IsZero() {
		at = time.Now()
	}

	point := write.NewPoint(measurement, tags, fields, at)
	c.writeAPI.WritePoint(point)
}
