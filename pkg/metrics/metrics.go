// Package metrics defines the observability surface for the RSM server and
// CCU client cores. Implementations are optional: every component accepts a
// nil Metrics and treats it as zero-overhead disabled observability.
package metrics

import "time"

// RSMMetrics instruments one RSM server process (all configured instances).
type RSMMetrics interface {
	// SetInstanceState records the current per-instance state as a label,
	// e.g. "NotInitialized", "Initialized", "SelfTest".
	SetInstanceState(instanceID int, state string)

	// SetInstanceActive records whether an instance currently has an
	// accepted CCU connection.
	SetInstanceActive(instanceID int, active bool)

	// SetBCB records the current BCB counter value for an instance.
	SetBCB(instanceID int, bcb uint32)

	// RecordMessageReceived records one message dispatched to a handler.
	RecordMessageReceived(instanceID int, msgType uint8)

	// RecordMessageSent records one response placed on the outbound queue.
	RecordMessageSent(instanceID int, msgType uint8)

	// RecordMessageDropped records a response suppressed by fault injection
	// (simulate_response_timeout).
	RecordMessageDropped(instanceID int, msgType uint8)

	// RecordConnectionAccepted records one accepted CCU connection.
	RecordConnectionAccepted(instanceID int)

	// RecordConnectionClosed records one connection teardown, tagged with
	// the reason ("peer_close", "error", "disconnect_after_messages", "shutdown").
	RecordConnectionClosed(instanceID int, reason string)

	// RecordHandlerDuration records wall-clock time spent inside a handler.
	RecordHandlerDuration(instanceID int, msgType uint8, d time.Duration)
}

// CCUMetrics instruments one CCU client process (all configured targets).
type CCUMetrics interface {
	// SetLinkStatus records the current per-link status as a label.
	SetLinkStatus(linkID int, status string)

	// RecordMessageSent records one request frame written to the wire.
	RecordMessageSent(linkID int, msgType uint8)

	// RecordMessageReceived records one response or unsolicited message
	// read from the wire.
	RecordMessageReceived(linkID int, msgType uint8)

	// RecordWaitTimeout records one wait_for_specific_response timeout.
	RecordWaitTimeout(linkID int, expectedType uint8)

	// RecordWarning records one Warning frame received on a link.
	RecordWarning(linkID int, tks uint8)

	// RecordKeepAliveFailure records a keep-alive watchdog transition to Failed.
	RecordKeepAliveFailure(linkID int)

	// SetOutstandingSends records the current outstanding-sends counter.
	SetOutstandingSends(n int)
}
