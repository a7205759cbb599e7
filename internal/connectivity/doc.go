// Package connectivity keeps a station's broker session alive across network
// and broker outages.
//
// A Manager combines four roles:
//   - Network monitor: link up/down notifications, network rejoin retry
//   - Session manager: one broker attempt at a time, host resolution
//   - Retry scheduler: fixed delay single-shot timer, or polled threshold
//   - Topic session: command subscription and best-effort publishing
//
// # Event flow
//
// Everything that changes state arrives as an Event on one channel and is
// handled by the goroutine running Manager.Run, so the Session value needs
// no coordination beyond a snapshot lock for readers.
//
//	link watcher ──LinkUp/LinkDown──┐
//	mqtt handlers ─BrokerHandlers───┼──► events ──► Run ──► Broker.Open/Close/Subscribe
//	retry timers ──retry due────────┘
//
// # Retry policy
//
// Failures are never fatal and there is no attempt limit. The broker retry is
// armed only after a failed or lost session while the link is up, and it is
// cancelled on success and on link down. There is no backoff or jitter.
package connectivity
