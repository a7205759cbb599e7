package connectivity

// EventKind identifies what happened.
type EventKind int

// Event kinds. Platform and library callbacks are translated into these and
// handled one at a time by the dispatch goroutine.
const (
	EventLinkUp EventKind = iota + 1
	EventLinkDown
	EventNetworkRetryDue
	EventBrokerRetryDue
	EventPoll
	EventBrokerResolved
	EventBrokerConnected
	EventBrokerConnectFailed
	EventBrokerLost
	EventMessage
)

var eventNames = map[EventKind]string{
	EventLinkUp:              "link_up",
	EventLinkDown:            "link_down",
	EventNetworkRetryDue:     "network_retry_due",
	EventBrokerRetryDue:      "broker_retry_due",
	EventPoll:                "poll",
	EventBrokerResolved:      "broker_resolved",
	EventBrokerConnected:     "broker_connected",
	EventBrokerConnectFailed: "broker_connect_failed",
	EventBrokerLost:          "broker_lost",
	EventMessage:             "message",
}

func (k EventKind) String() string {
	if name, ok := eventNames[k]; ok {
		return name
	}
	return "unknown"
}

// Event is one notification for the dispatch goroutine. Only the fields
// relevant to Kind are set.
type Event struct {
	Kind EventKind

	// Attempt is the Session attempt id (EventBrokerResolved).
	Attempt uint64

	// Address is the resolved "host:port" (EventBrokerResolved).
	Address string

	// BrokerSession is the id returned by Broker.Open
	// (EventBrokerConnected, EventBrokerConnectFailed, EventBrokerLost).
	BrokerSession uint64

	// Err carries the failure for failed or lost sessions and resolution.
	Err error

	// Topic and Payload carry an inbound message (EventMessage).
	Topic   string
	Payload []byte
}
