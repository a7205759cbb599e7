// Package reading builds the JSON documents a station publishes.
//
// A document has top-level identity fields, a nested location object, a
// nested data object and an ISO-8601 timestamp:
//
//	{"sensor_id":"WT_001","sensor_type":"weather","street_id":"street_1253",
//	 "timestamp":"2025-01-01T00:00:00+01:00",
//	 "location":{"latitude":40.4168,"longitude":-3.7038,"altitude_meters":650,
//	             "district":"Centro","neighborhood":"Universidad"},
//	 "data":{"temperature_celsius":21.5,...}}
//
// Until the clock is synchronised the timestamp is a fixed 1970 sentinel
// rather than an error.
package reading
