// Package influxdb writes station readings to InfluxDB v2.
//
// It wraps the official influxdb-client-go v2 library. Points are batched
// by the non-blocking write API according to batch_size and flush_interval;
// write failures arrive asynchronously through SetOnError. Connection and
// health check errors are returned directly.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteReading("ws-01", "street-7", data.Fields(), time.Now())
//
// The historian is optional: a reading that cannot be written is still
// published over MQTT.
package influxdb
