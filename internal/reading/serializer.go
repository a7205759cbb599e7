package reading

import (
	"encoding/json"
	"fmt"
)

// Serializer builds reading documents stamped by a Timestamper.
type Serializer struct {
	ts     *Timestamper
	pretty bool
}

// NewSerializer creates a Serializer. Pretty output is indented by two
// spaces.
func NewSerializer(ts *Timestamper, pretty bool) *Serializer {
	return &Serializer{ts: ts, pretty: pretty}
}

// Timestamper returns the Timestamper stamping documents.
func (s *Serializer) Timestamper() *Timestamper { return s.ts }

// SensorOption adjusts a single-value document.
type SensorOption func(*Location)

// WithDistrict overrides the default district.
func WithDistrict(district string) SensorOption {
	return func(l *Location) { l.District = district }
}

// WithNeighborhood overrides the default neighbourhood.
func WithNeighborhood(neighborhood string) SensorOption {
	return func(l *Location) { l.Neighborhood = neighborhood }
}

// SensorFor builds a single-value Reading.
func (s *Serializer) SensorFor(sensorID, sensorType, streetID string,
	latitude, longitude, altitude float64,
	dataKey string, dataValue float64, opts ...SensorOption,
) Reading {
	loc := Location{
		Latitude:       latitude,
		Longitude:      longitude,
		AltitudeMeters: altitude,
		District:       DefaultDistrict,
		Neighborhood:   DefaultNeighborhood,
	}
	for _, opt := range opts {
		opt(&loc)
	}

	return Reading{
		SensorID:   sensorID,
		SensorType: sensorType,
		StreetID:   streetID,
		Timestamp:  s.ts.Timestamp(),
		Location:   loc,
		Data:       map[string]float64{dataKey: dataValue},
	}
}

// BuildSensorJSONFor serialises a single-value document, for example one
// temperature probe:
//
//	s.BuildSensorJSONFor("S1", "temperature", "ST1", 40.0, -3.0, 650.0, "temperature_celsius", 21.5)
func (s *Serializer) BuildSensorJSONFor(sensorID, sensorType, streetID string,
	latitude, longitude, altitude float64,
	dataKey string, dataValue float64, opts ...SensorOption,
) ([]byte, error) {
	return s.Marshal(s.SensorFor(sensorID, sensorType, streetID, latitude, longitude, altitude, dataKey, dataValue, opts...))
}

// WeatherStation builds the combined station Reading.
func (s *Serializer) WeatherStation(id Identity, loc Location, data WeatherData) Reading {
	return Reading{
		SensorID:   id.SensorID,
		SensorType: SensorTypeWeather,
		StreetID:   id.StreetID,
		Timestamp:  s.ts.Timestamp(),
		Location:   loc,
		Data:       data,
	}
}

// BuildWeatherStationJSON serialises the combined station document.
func (s *Serializer) BuildWeatherStationJSON(id Identity, loc Location, data WeatherData) ([]byte, error) {
	return s.Marshal(s.WeatherStation(id, loc, data))
}

// Marshal encodes r. It fails only for values JSON cannot represent, such
// as NaN or infinite readings.
func (s *Serializer) Marshal(r Reading) ([]byte, error) {
	var (
		b   []byte
		err error
	)
	if s.pretty {
		b, err = json.MarshalIndent(r, "", "  ")
	} else {
		b, err = json.Marshal(r)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncode, err)
	}
	return b, nil
}
