// Package mqtt provides the MQTT 3.1.1 transport for the weather station.
//
// This package manages:
//   - One connection attempt per Open, reported through Handlers
//   - Fire-and-forget publishing with acknowledgement logging
//   - Subscriptions routed to a single message handler
//   - Last Will and Testament for offline detection
//   - Classification of failed sessions into Reasons
//
// # Architecture
//
// paho's own auto-reconnect is switched off. The connectivity package owns
// the session state and decides when to call Open again; this package only
// turns paho callbacks into plain function calls.
//
//	connectivity ──Open/Close/Publish──► mqtt.Client ──► paho ──► broker
//	connectivity ◄──────Handlers─────── mqtt.Client ◄── paho
//
// # Usage
//
//	client := mqtt.New(cfg.MQTT, mqtt.Handlers{
//	    OnConnect:        func(session uint64, sessionPresent bool) { ... },
//	    OnConnectFailed:  func(session uint64, err error) { ... },
//	    OnConnectionLost: func(session uint64, err error) { ... },
//	    OnMessage:        func(topic string, payload []byte) { ... },
//	})
//	session := client.Open("192.168.1.131:1883")
package mqtt
