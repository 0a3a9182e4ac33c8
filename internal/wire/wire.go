// Package wire implements the CCU/RSM binary frame format: a fixed 6-byte
// header followed by a type-dependent body, with all multi-byte fields in
// big-endian order on the wire.
package wire

import "fmt"

// HeaderSize is the fixed size of a frame header in bytes.
const HeaderSize = 6

// MaxBodyLength is the largest body_length a frame may declare.
const MaxBodyLength = 65522

// Logical addresses.
const (
	AddressCCU = 0x01
)

// Message type codes (§6).
const (
	TypeInitChannel         = 128
	TypeConfirmInit          = 129
	TypeProvestiControl      = 130
	TypeControlConfirm       = 131
	TypeVydatControlResults  = 132
	TypeControlResults       = 133
	TypeVydatLineState       = 134
	TypeLineState            = 135
	// 137..144: parameter-accept messages, SO/TimeRef/Reper/SDR/3TSO/RefAz/TSD.
	TypeParamSO     = 137
	TypeParamTimeRef = 138
	TypeParamReper  = 139
	TypeParamSDR    = 140
	TypeParam3TSO   = 141
	TypeParamRefAz  = 142
	TypeParamTSD    = 143
	TypeParamExtra  = 144
	TypeNavigationData = 145
	TypeWarning        = 146
)

// Direction bits carried in flags bit 0.
const (
	DirectionCCUToRSM = 0
	DirectionRSMToCCU = 1
)

// MessageNumberModulus is the wrap point of the 11-bit sequence number.
const MessageNumberModulus = 2048

// Header is the fixed 6-byte frame prefix.
type Header struct {
	Address      uint8
	Direction    uint8 // 0 or 1, flags bit 0
	MessageNum   uint16 // full 11-bit reconstructed number
	BodyLength   uint16
	Type         uint8
}

// FullMessageNumber reconstructs the 11-bit sequence number from the flags
// byte's high bits and the low byte, per §4.1:
// (flag_bit_3 << 10) | (flag_bit_2 << 9) | (flag_bit_1 << 8) | low_byte.
func FullMessageNumber(flags byte, low byte) uint16 {
	high := uint16(flags>>1) & 0x07
	return (high << 8) | uint16(low)
}

// PackMessageNumber splits a full 11-bit number into the flags high bits
// (1..3) and the low byte, preserving the direction bit and clearing the
// reserved bits (4..7).
func PackMessageNumber(n uint16, direction uint8) (flags byte, low byte) {
	n &= MessageNumberModulus - 1
	high := byte(n>>8) & 0x07
	flags = (direction & 0x01) | (high << 1)
	low = byte(n & 0xFF)
	return flags, low
}

// ReservedFlagBits masks the bits that must be zero in a valid header.
const ReservedFlagBits = 0xF0

// ValidateHeader checks the invariants every decoded header must satisfy:
// body_length within range and reserved flag bits clear. The direction
// check against the transport role is the caller's responsibility, since
// it depends on whether the caller is an RSM or a CCU.
func ValidateHeader(bodyLength uint16, rawFlags byte) error {
	if bodyLength > MaxBodyLength {
		return &ProtocolError{Reason: fmt.Sprintf("body_length %d exceeds maximum %d", bodyLength, MaxBodyLength)}
	}
	if rawFlags&ReservedFlagBits != 0 {
		return &ProtocolError{Reason: fmt.Sprintf("reserved flag bits set: 0x%02x", rawFlags)}
	}
	return nil
}

// TypeName returns a human-readable name for a message type code, for logging.
func TypeName(t uint8) string {
	switch t {
	case TypeInitChannel:
		return "InitChannel"
	case TypeConfirmInit:
		return "ConfirmInit"
	case TypeProvestiControl:
		return "ProvestiControl"
	case TypeControlConfirm:
		return "ControlConfirm"
	case TypeVydatControlResults:
		return "VydatControlResults"
	case TypeControlResults:
		return "ControlResults"
	case TypeVydatLineState:
		return "VydatLineState"
	case TypeLineState:
		return "LineState"
	case TypeNavigationData:
		return "NavigationData"
	case TypeWarning:
		return "Warning"
	default:
		if t >= TypeParamSO && t <= TypeParamExtra {
			return "ParameterAccept"
		}
		return fmt.Sprintf("Unknown(%d)", t)
	}
}
