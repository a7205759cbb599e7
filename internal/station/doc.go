// Package station is the weather station's application layer.
//
// A Publisher reads the sensor source on a fixed interval, serialises the
// combined weather document and hands it to the topic session. Every
// attempt is written to the historian and recorded in the journal whether
// or not a broker session was up; readings taken while disconnected are
// not queued.
//
// Commands arrive as JSON on the command topic:
//
//	{"command": "publish_now"}   publish a reading immediately
//	{"command": "ping"}          republish the online status
//
// Status documents go to the status topic, retained:
//
//	{"status":"online","sensor_id":"ws-01","timestamp":"...","version":"...","uptime_seconds":42}
//	{"status":"offline","reason":"unexpected_disconnect","sensor_id":"ws-01"}   (last will)
//	{"status":"offline","reason":"shutdown","sensor_id":"ws-01",...}            (graceful)
package station
