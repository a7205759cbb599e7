package reading

// SensorTypeWeather is the sensor_type of the combined station document.
const SensorTypeWeather = "weather"

// Default district and neighbourhood for single-value documents.
const (
	DefaultDistrict     = "Centro"
	DefaultNeighborhood = "Universidad"
)

// Reading is the fixed-schema document published for every cycle.
// Field order follows the wire format.
type Reading struct {
	SensorID   string   `json:"sensor_id"`
	SensorType string   `json:"sensor_type"`
	StreetID   string   `json:"street_id"`
	Timestamp  string   `json:"timestamp"`
	Location   Location `json:"location"`

	// Data is WeatherData for station documents or a map with a single key
	// for single-value documents.
	Data any `json:"data"`
}

// Location is the nested location object.
type Location struct {
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	AltitudeMeters float64 `json:"altitude_meters"`
	District       string  `json:"district"`
	Neighborhood   string  `json:"neighborhood"`
}

// Identity names the station and its street.
type Identity struct {
	SensorID string
	StreetID string
}

// WeatherData holds one sample of every station sensor.
type WeatherData struct {
	TemperatureCelsius     float64 `json:"temperature_celsius"`
	HumidityPercentage     float64 `json:"humidity_percentage"`
	WindSpeed              float64 `json:"wind_speed"`
	LightLux               float64 `json:"luz"`
	AtmosphericPressureHPa float64 `json:"atmospheric_pressure_hpa"`
	AirQualityIndex        float64 `json:"air_quality_index"`
}

// Fields returns the sample keyed by wire name, for time-series writers.
func (d WeatherData) Fields() map[string]any {
	return map[string]any{
		"temperature_celsius":      d.TemperatureCelsius,
		"humidity_percentage":      d.HumidityPercentage,
		"wind_speed":               d.WindSpeed,
		"luz":                      d.LightLux,
		"atmospheric_pressure_hpa": d.AtmosphericPressureHPa,
		"air_quality_index":        d.AirQualityIndex,
	}
}
