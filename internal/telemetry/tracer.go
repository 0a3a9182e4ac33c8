package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys for RSM/CCU link spans.
const (
	AttrInstanceID  = "rsm.instance_id"
	AttrLinkID      = "ccu.link_id"
	AttrTarget      = "link.target" // host:port
	AttrMessageType = "wire.message_type"
	AttrMessageNum  = "wire.message_number"
	AttrLAK         = "rsm.lak"
	AttrState       = "rsm.state"
	AttrStatus      = "ccu.link_status"
	AttrMode        = "ccu.session_mode"
)

// Span names for the two cores.
const (
	// RSM per-connection handler spans
	SpanRSMHandle        = "rsm.handle"
	SpanRSMInitChannel   = "rsm.handle.InitChannel"
	SpanRSMSelfTest      = "rsm.handle.ProvestiControl"
	SpanRSMControlResult = "rsm.handle.VydatControlResults"
	SpanRSMLineState     = "rsm.handle.VydatLineState"

	// CCU sequencer phase spans, parented to one per-link root span
	SpanCCULink          = "ccu.link"
	SpanCCUInit          = "ccu.init"
	SpanCCUSelfTest      = "ccu.self_test"
	SpanCCULineState     = "ccu.line_state"
	SpanCCUSessionPrep   = "ccu.session_prep"
	SpanCCUSteadyState   = "ccu.steady_state"
	SpanCCUWaitResponse  = "ccu.wait_response"
)

// InstanceID returns an attribute for the RSM instance id.
func InstanceID(id int) attribute.KeyValue {
	return attribute.Int(AttrInstanceID, id)
}

// LinkID returns an attribute for the CCU link id.
func LinkID(id int) attribute.KeyValue {
	return attribute.Int(AttrLinkID, id)
}

// Target returns an attribute for a link's host:port.
func Target(addr string) attribute.KeyValue {
	return attribute.String(AttrTarget, addr)
}

// MessageType returns an attribute for a wire message type code.
func MessageType(t uint8) attribute.KeyValue {
	return attribute.Int(AttrMessageType, int(t))
}

// MessageNumber returns an attribute for the 11-bit message sequence number.
func MessageNumber(n uint16) attribute.KeyValue {
	return attribute.Int(AttrMessageNum, int(n))
}

// LAK returns an attribute for a logical address.
func LAK(lak uint8) attribute.KeyValue {
	return attribute.Int(AttrLAK, int(lak))
}

// State returns an attribute for the RSM instance state name.
func State(s string) attribute.KeyValue {
	return attribute.String(AttrState, s)
}

// Status returns an attribute for the CCU link status name.
func Status(s string) attribute.KeyValue {
	return attribute.String(AttrStatus, s)
}

// Mode returns an attribute for the CCU session-preparation mode.
func Mode(m string) attribute.KeyValue {
	return attribute.String(AttrMode, m)
}

// StartRSMSpan starts a span tagged with an RSM instance id. The RSM server
// starts one per accepted connection.
func StartRSMSpan(ctx context.Context, name string, instanceID int, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := append([]attribute.KeyValue{InstanceID(instanceID)}, attrs...)
	return StartSpan(ctx, name, trace.WithAttributes(allAttrs...))
}

// StartCCUSpan starts a span for one CCU sequencer phase.
func StartCCUSpan(ctx context.Context, name string, linkID int, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := append([]attribute.KeyValue{LinkID(linkID)}, attrs...)
	return StartSpan(ctx, name, trace.WithAttributes(allAttrs...))
}
