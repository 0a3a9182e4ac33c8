package logger

import (
	"log/slog"
)

// Standard field keys for structured logging across the RSM and CCU cores.
// Use these keys consistently across all log statements for log aggregation
// and querying.
const (
	// Distributed tracing
	KeyTraceID = "trace_id" // OpenTelemetry trace ID for request correlation
	KeySpanID  = "span_id"  // OpenTelemetry span ID for operation tracking

	// Link/instance identification
	KeyInstanceID = "instance_id" // RSM instance id (0..3)
	KeyLinkID     = "link_id"     // CCU link id (0..3), same numbering as instance id
	KeyConnID     = "conn_id"     // correlation id of one accepted TCP connection

	// Protocol fields
	KeyMessageType = "msg_type" // wire message type code
	KeyMessageNum  = "msg_num"  // 11-bit message sequence number
	KeyAddress     = "address"  // logical address byte
	KeyLAK         = "lak"      // logical address of an RSM
	KeyBodyLen     = "body_len" // body_length field

	// State machine
	KeyState    = "state"     // state name
	KeyOldState = "old_state" // state before a transition
	KeyNewState = "new_state" // state after a transition
	KeyStatus   = "status"    // CCU link status name

	// Misc
	KeyErr      = "error"
	KeyDuration = "duration_ms"
	KeyTarget   = "target"   // host:port of a CCU target / RSM listener
	KeyMode     = "mode"     // CCU session-prep mode (DR/OR/OR1/VR)
	KeyReason   = "reason"   // free-form reason string for a transition or drop
	KeyBCB      = "bcb"      // current BCB counter value
)

func TraceID(id string) slog.Attr   { return slog.String(KeyTraceID, id) }
func SpanID(id string) slog.Attr    { return slog.String(KeySpanID, id) }
func InstanceID(id int) slog.Attr   { return slog.Int(KeyInstanceID, id) }
func LinkID(id int) slog.Attr       { return slog.Int(KeyLinkID, id) }
func ConnID(id string) slog.Attr    { return slog.String(KeyConnID, id) }
func MessageType(t uint8) slog.Attr { return slog.Int(KeyMessageType, int(t)) }
func MessageNum(n uint16) slog.Attr { return slog.Int(KeyMessageNum, int(n)) }
func Address(a uint8) slog.Attr     { return slog.Int(KeyAddress, int(a)) }
func LAK(lak uint8) slog.Attr       { return slog.Int(KeyLAK, int(lak)) }
func BodyLen(n int) slog.Attr       { return slog.Int(KeyBodyLen, n) }
func State(s string) slog.Attr      { return slog.String(KeyState, s) }
func OldState(s string) slog.Attr   { return slog.String(KeyOldState, s) }
func NewState(s string) slog.Attr   { return slog.String(KeyNewState, s) }
func Status(s string) slog.Attr     { return slog.String(KeyStatus, s) }
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyErr, "")
	}
	return slog.String(KeyErr, err.Error())
}
func DurationMs(ms float64) slog.Attr { return slog.Float64(KeyDuration, ms) }
func Target(t string) slog.Attr       { return slog.String(KeyTarget, t) }
func Mode(m string) slog.Attr         { return slog.String(KeyMode, m) }
func Reason(r string) slog.Attr       { return slog.String(KeyReason, r) }
func BCB(v uint32) slog.Attr          { return slog.Uint64(KeyBCB, uint64(v)) }
