package wire

import (
	"encoding/binary"
	"fmt"
)

// Body is implemented by every typed message body. Encode never mutates the
// receiver; Decode* functions always allocate a fresh value, so a decoded
// message never aliases the buffer it was read from.
type Body interface {
	Type() uint8
	Encode() []byte
}

// Frame is one fully-decoded protocol message: header fields plus a typed
// body. Frame values are immutable after construction/decoding; encoding a
// Frame serializes into a fresh scratch buffer.
type Frame struct {
	Address    uint8
	Direction  uint8
	MessageNum uint16
	Body       Body
}

// Encode serializes a Frame to wire bytes: 6-byte header followed by the
// type-dependent body, all multi-byte fields big-endian.
func Encode(f *Frame) []byte {
	body := f.Body.Encode()
	if len(body) > MaxBodyLength {
		panic(fmt.Sprintf("wire: body for type %d exceeds max length: %d", f.Body.Type(), len(body)))
	}

	flags, low := PackMessageNumber(f.MessageNum, f.Direction)

	out := make([]byte, HeaderSize+len(body))
	out[0] = f.Address
	out[1] = flags
	binary.BigEndian.PutUint16(out[2:4], uint16(len(body)))
	out[4] = low
	out[5] = f.Body.Type()
	copy(out[HeaderSize:], body)
	return out
}

// DecodeHeader parses the fixed 6-byte header and validates body_length and
// the reserved flag bits. expectDirection is the direction bit the caller
// (RSM or CCU) expects to receive; a mismatch is a ProtocolError.
func DecodeHeader(raw []byte, expectDirection uint8) (Header, error) {
	if len(raw) != HeaderSize {
		return Header{}, &ProtocolError{Reason: fmt.Sprintf("header must be %d bytes, got %d", HeaderSize, len(raw))}
	}

	address := raw[0]
	flags := raw[1]
	bodyLength := binary.BigEndian.Uint16(raw[2:4])
	low := raw[4]
	msgType := raw[5]

	if err := ValidateHeader(bodyLength, flags); err != nil {
		return Header{}, err
	}

	direction := flags & 0x01
	if direction != expectDirection {
		return Header{}, &ProtocolError{Reason: fmt.Sprintf("direction bit %d does not match expected role %d", direction, expectDirection)}
	}

	return Header{
		Address:    address,
		Direction:  direction,
		MessageNum: FullMessageNumber(flags, low),
		BodyLength: bodyLength,
		Type:       msgType,
	}, nil
}

// DecodeBody parses the type-dependent body bytes into the matching typed
// Body, given a header already validated by DecodeHeader.
func DecodeBody(h Header, raw []byte) (Body, error) {
	if len(raw) != int(h.BodyLength) {
		return nil, &ProtocolError{Reason: fmt.Sprintf("body length mismatch: header says %d, got %d bytes", h.BodyLength, len(raw))}
	}

	switch h.Type {
	case TypeInitChannel:
		return decodeInitChannel(raw)
	case TypeConfirmInit:
		return decodeConfirmInit(raw)
	case TypeProvestiControl:
		return decodeProvestiControl(raw)
	case TypeControlConfirm:
		return decodeControlConfirm(raw)
	case TypeVydatControlResults:
		return decodeVydatControlResults(raw)
	case TypeControlResults:
		return decodeControlResults(raw)
	case TypeVydatLineState:
		return decodeVydatLineState(raw)
	case TypeLineState:
		return decodeLineState(raw)
	case TypeNavigationData:
		return &NavigationDataBody{Raw: append([]byte(nil), raw...)}, nil
	case TypeWarning:
		return decodeWarning(raw)
	default:
		if h.Type >= TypeParamSO && h.Type <= TypeParamExtra {
			return &ParameterAcceptBody{ParamType: h.Type, Raw: append([]byte(nil), raw...)}, nil
		}
		return &UnknownBody{MsgType: h.Type, Raw: append([]byte(nil), raw...)}, nil
	}
}

func need(raw []byte, n int, what string) error {
	if len(raw) < n {
		return &ProtocolError{Reason: fmt.Sprintf("%s body too short: need %d bytes, got %d", what, n, len(raw))}
	}
	return nil
}

// InitChannelBody is CCU→RSM type 128: LAUVM(1), LAK(1).
type InitChannelBody struct {
	LAUVM uint8
	LAK   uint8
}

func (b *InitChannelBody) Type() uint8 { return TypeInitChannel }
func (b *InitChannelBody) Encode() []byte {
	return []byte{b.LAUVM, b.LAK}
}
func decodeInitChannel(raw []byte) (*InitChannelBody, error) {
	if err := need(raw, 2, "InitChannel"); err != nil {
		return nil, err
	}
	return &InitChannelBody{LAUVM: raw[0], LAK: raw[1]}, nil
}

// ConfirmInitBody is RSM→CCU type 129: LAK(1), SLP(1), VDR(1), VOR1(1), VOR2(1), BCB(4).
type ConfirmInitBody struct {
	LAK  uint8
	SLP  uint8
	VDR  uint8
	VOR1 uint8
	VOR2 uint8
	BCB  uint32
}

func (b *ConfirmInitBody) Type() uint8 { return TypeConfirmInit }
func (b *ConfirmInitBody) Encode() []byte {
	out := make([]byte, 9)
	out[0], out[1], out[2], out[3], out[4] = b.LAK, b.SLP, b.VDR, b.VOR1, b.VOR2
	binary.BigEndian.PutUint32(out[5:9], b.BCB)
	return out
}
func decodeConfirmInit(raw []byte) (*ConfirmInitBody, error) {
	if err := need(raw, 9, "ConfirmInit"); err != nil {
		return nil, err
	}
	return &ConfirmInitBody{
		LAK: raw[0], SLP: raw[1], VDR: raw[2], VOR1: raw[3], VOR2: raw[4],
		BCB: binary.BigEndian.Uint32(raw[5:9]),
	}, nil
}

// ProvestiControlBody is CCU→RSM type 130: TK(1).
type ProvestiControlBody struct {
	TK uint8
}

func (b *ProvestiControlBody) Type() uint8    { return TypeProvestiControl }
func (b *ProvestiControlBody) Encode() []byte { return []byte{b.TK} }
func decodeProvestiControl(raw []byte) (*ProvestiControlBody, error) {
	if err := need(raw, 1, "ProvestiControl"); err != nil {
		return nil, err
	}
	return &ProvestiControlBody{TK: raw[0]}, nil
}

// ControlConfirmBody is RSM→CCU type 131: LAK(1), TK(1), BCB(4).
type ControlConfirmBody struct {
	LAK uint8
	TK  uint8
	BCB uint32
}

func (b *ControlConfirmBody) Type() uint8 { return TypeControlConfirm }
func (b *ControlConfirmBody) Encode() []byte {
	out := make([]byte, 6)
	out[0], out[1] = b.LAK, b.TK
	binary.BigEndian.PutUint32(out[2:6], b.BCB)
	return out
}
func decodeControlConfirm(raw []byte) (*ControlConfirmBody, error) {
	if err := need(raw, 6, "ControlConfirm"); err != nil {
		return nil, err
	}
	return &ControlConfirmBody{LAK: raw[0], TK: raw[1], BCB: binary.BigEndian.Uint32(raw[2:6])}, nil
}

// VydatControlResultsBody is CCU→RSM type 132: VRK(1).
type VydatControlResultsBody struct {
	VRK uint8
}

func (b *VydatControlResultsBody) Type() uint8    { return TypeVydatControlResults }
func (b *VydatControlResultsBody) Encode() []byte { return []byte{b.VRK} }
func decodeVydatControlResults(raw []byte) (*VydatControlResultsBody, error) {
	if err := need(raw, 1, "VydatControlResults"); err != nil {
		return nil, err
	}
	return &VydatControlResultsBody{VRK: raw[0]}, nil
}

// ControlResultsBody is RSM→CCU type 133: LAK(1), RSK(1), VSK(2), BCB(4).
//
// RSK is 0x3F when the requested self-test completed ok, 0x3E when
// simulate_control_failure forced a failure; VSK carries the measured
// self-test duration in milliseconds.
type ControlResultsBody struct {
	LAK uint8
	RSK uint8
	VSK uint16
	BCB uint32
}

const (
	RSKOK      = 0x3F
	RSKFailure = 0x3E
)

func (b *ControlResultsBody) Type() uint8 { return TypeControlResults }
func (b *ControlResultsBody) Encode() []byte {
	out := make([]byte, 8)
	out[0], out[1] = b.LAK, b.RSK
	binary.BigEndian.PutUint16(out[2:4], b.VSK)
	binary.BigEndian.PutUint32(out[4:8], b.BCB)
	return out
}
func decodeControlResults(raw []byte) (*ControlResultsBody, error) {
	if err := need(raw, 8, "ControlResults"); err != nil {
		return nil, err
	}
	return &ControlResultsBody{
		LAK: raw[0], RSK: raw[1],
		VSK: binary.BigEndian.Uint16(raw[2:4]),
		BCB: binary.BigEndian.Uint32(raw[4:8]),
	}, nil
}

// VydatLineStateBody is CCU→RSM type 134: empty body.
type VydatLineStateBody struct{}

func (b *VydatLineStateBody) Type() uint8    { return TypeVydatLineState }
func (b *VydatLineStateBody) Encode() []byte { return nil }
func decodeVydatLineState(raw []byte) (*VydatLineStateBody, error) {
	if len(raw) != 0 {
		return nil, &ProtocolError{Reason: fmt.Sprintf("VydatLineState body must be empty, got %d bytes", len(raw))}
	}
	return &VydatLineStateBody{}, nil
}

// LineStateBody is RSM→CCU type 135: LAK(1), KLA(2), SLA(4), KSA(2), BCB(4).
type LineStateBody struct {
	LAK uint8
	KLA uint16
	SLA uint32
	KSA uint16
	BCB uint32
}

func (b *LineStateBody) Type() uint8 { return TypeLineState }
func (b *LineStateBody) Encode() []byte {
	out := make([]byte, 13)
	out[0] = b.LAK
	binary.BigEndian.PutUint16(out[1:3], b.KLA)
	binary.BigEndian.PutUint32(out[3:7], b.SLA)
	binary.BigEndian.PutUint16(out[7:9], b.KSA)
	binary.BigEndian.PutUint32(out[9:13], b.BCB)
	return out
}
func decodeLineState(raw []byte) (*LineStateBody, error) {
	if err := need(raw, 13, "LineState"); err != nil {
		return nil, err
	}
	return &LineStateBody{
		LAK: raw[0],
		KLA: binary.BigEndian.Uint16(raw[1:3]),
		SLA: binary.BigEndian.Uint32(raw[3:7]),
		KSA: binary.BigEndian.Uint16(raw[7:9]),
		BCB: binary.BigEndian.Uint32(raw[9:13]),
	}, nil
}

// ParameterAcceptBody carries one of the opaque 137..144 parameter-accept
// payloads. Some of these carry a variable-length trailing array whose size
// is encoded in a field of the fixed prefix; since the core never
// interprets parameter semantics (§1 non-goals), the payload is retained
// verbatim, only long enough to log, and never acknowledged.
type ParameterAcceptBody struct {
	ParamType uint8
	Raw       []byte
}

func (b *ParameterAcceptBody) Type() uint8    { return b.ParamType }
func (b *ParameterAcceptBody) Encode() []byte { return append([]byte(nil), b.Raw...) }

// NavigationDataBody carries the opaque fixed type-145 payload, never
// interpreted by the core.
type NavigationDataBody struct {
	Raw []byte
}

func (b *NavigationDataBody) Type() uint8    { return TypeNavigationData }
func (b *NavigationDataBody) Encode() []byte { return append([]byte(nil), b.Raw...) }

// WarningBody is RSM→CCU type 146: LAK(1), TKS(1), PKS(6), BCB(4).
type WarningBody struct {
	LAK uint8
	TKS uint8
	PKS [6]byte
	BCB uint32
}

func (b *WarningBody) Type() uint8 { return TypeWarning }
func (b *WarningBody) Encode() []byte {
	out := make([]byte, 12)
	out[0], out[1] = b.LAK, b.TKS
	copy(out[2:8], b.PKS[:])
	binary.BigEndian.PutUint32(out[8:12], b.BCB)
	return out
}
func decodeWarning(raw []byte) (*WarningBody, error) {
	if err := need(raw, 12, "Warning"); err != nil {
		return nil, err
	}
	w := &WarningBody{LAK: raw[0], TKS: raw[1], BCB: binary.BigEndian.Uint32(raw[8:12])}
	copy(w.PKS[:], raw[2:8])
	return w, nil
}

// UnknownBody preserves the raw payload of a message type this core does
// not recognize, so the caller can log it without decoding failure.
type UnknownBody struct {
	MsgType uint8
	Raw     []byte
}

func (b *UnknownBody) Type() uint8    { return b.MsgType }
func (b *UnknownBody) Encode() []byte { return append([]byte(nil), b.Raw...) }
