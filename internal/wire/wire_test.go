package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFullMessageNumber_PackRoundTrip(t *testing.T) {
	for _, n := range []uint16{0, 1, 255, 256, 1023, 1024, 2046, 2047} {
		flags, low := PackMessageNumber(n, DirectionCCUToRSM)
		got := FullMessageNumber(flags, low)
		assert.Equal(t, n, got, "round trip for %d", n)
	}
}

func TestPackMessageNumber_WrapsAtModulus(t *testing.T) {
	flags, low := PackMessageNumber(2048, DirectionRSMToCCU)
	assert.Equal(t, uint16(0), FullMessageNumber(flags, low))

	flags, low = PackMessageNumber(2049, DirectionRSMToCCU)
	assert.Equal(t, uint16(1), FullMessageNumber(flags, low))
}

func TestPackMessageNumber_PreservesDirectionClearsReserved(t *testing.T) {
	flags, _ := PackMessageNumber(0x3FF, DirectionRSMToCCU)
	assert.Equal(t, byte(1), flags&0x01, "direction bit preserved")
	assert.Zero(t, flags&ReservedFlagBits, "reserved bits clear")
}

func TestEncodeDecode_RoundTrip_ConfirmInit(t *testing.T) {
	f := &Frame{
		Address:    AddressCCU,
		Direction:  DirectionRSMToCCU,
		MessageNum: 42,
		Body: &ConfirmInitBody{
			LAK: 0x08, SLP: 1, VDR: 2, VOR1: 3, VOR2: 4, BCB: 0xDEADBEEF,
		},
	}

	encoded := Encode(f)
	require.Len(t, encoded, HeaderSize+9)

	h, err := DecodeHeader(encoded[:HeaderSize], DirectionRSMToCCU)
	require.NoError(t, err)
	assert.Equal(t, AddressCCU, int(h.Address))
	assert.Equal(t, uint16(42), h.MessageNum)
	assert.Equal(t, uint16(9), h.BodyLength)
	assert.Equal(t, uint8(TypeConfirmInit), h.Type)

	body, err := DecodeBody(h, encoded[HeaderSize:])
	require.NoError(t, err)
	got, ok := body.(*ConfirmInitBody)
	require.True(t, ok)
	assert.Equal(t, f.Body.(*ConfirmInitBody), got)
}

func TestEncodeDecode_RoundTrip_EmptyBody(t *testing.T) {
	f := &Frame{Address: 0x08, Direction: DirectionCCUToRSM, MessageNum: 0, Body: &VydatLineStateBody{}}
	encoded := Encode(f)
	require.Len(t, encoded, HeaderSize)

	h, err := DecodeHeader(encoded, DirectionCCUToRSM)
	require.NoError(t, err)
	assert.Equal(t, uint16(0), h.BodyLength)

	body, err := DecodeBody(h, nil)
	require.NoError(t, err)
	assert.IsType(t, &VydatLineStateBody{}, body)
}

func TestDecodeHeader_RejectsOversizedBody(t *testing.T) {
	raw := make([]byte, HeaderSize)
	raw[2], raw[3] = 0xFF, 0xFF // body_length = 65535 > 65522
	raw[5] = TypeVydatLineState

	_, err := DecodeHeader(raw, DirectionCCUToRSM)
	require.Error(t, err)
	var protoErr *ProtocolError
	assert.ErrorAs(t, err, &protoErr)
}

func TestDecodeHeader_AcceptsMaxBodyLength(t *testing.T) {
	raw := make([]byte, HeaderSize)
	raw[2], raw[3] = 0xFF, 0xF2 // 65522
	raw[5] = TypeNavigationData

	h, err := DecodeHeader(raw, DirectionCCUToRSM)
	require.NoError(t, err)
	assert.Equal(t, uint16(MaxBodyLength), h.BodyLength)
}

func TestDecodeHeader_RejectsOneByteOverMax(t *testing.T) {
	raw := make([]byte, HeaderSize)
	raw[2], raw[3] = 0xFF, 0xF3 // 65523
	raw[5] = TypeNavigationData

	_, err := DecodeHeader(raw, DirectionCCUToRSM)
	require.Error(t, err)
}

func TestDecodeHeader_RejectsReservedBits(t *testing.T) {
	raw := make([]byte, HeaderSize)
	raw[1] = 0x80 // a reserved bit set
	raw[5] = TypeVydatLineState

	_, err := DecodeHeader(raw, DirectionCCUToRSM)
	require.Error(t, err)
}

func TestDecodeHeader_RejectsDirectionMismatch(t *testing.T) {
	raw := make([]byte, HeaderSize)
	raw[1] = 0x00 // direction bit 0 (CCU->RSM)
	raw[5] = TypeInitChannel

	_, err := DecodeHeader(raw, DirectionRSMToCCU)
	require.Error(t, err)
	var protoErr *ProtocolError
	assert.ErrorAs(t, err, &protoErr)
}

func TestReadFrame_TwoPhaseRead(t *testing.T) {
	f := &Frame{
		Address:    0x08,
		Direction:  DirectionCCUToRSM,
		MessageNum: 7,
		Body:       &InitChannelBody{LAUVM: AddressCCU, LAK: 0x08},
	}
	encoded := Encode(f)

	h, body, err := ReadFrame(bytes.NewReader(encoded), DirectionCCUToRSM)
	require.NoError(t, err)
	assert.Equal(t, uint16(7), h.MessageNum)
	assert.Equal(t, f.Body, body)
}

func TestDecodeBody_RejectsShortBody(t *testing.T) {
	_, err := DecodeBody(Header{Type: TypeConfirmInit, BodyLength: 3}, make([]byte, 3))
	require.Error(t, err)
}

func TestDecodeBody_ParameterAcceptRangeIsOpaque(t *testing.T) {
	raw := []byte{1, 2, 3, 4}
	h := Header{Type: TypeParamSO, BodyLength: uint16(len(raw))}
	body, err := DecodeBody(h, raw)
	require.NoError(t, err)
	pab, ok := body.(*ParameterAcceptBody)
	require.True(t, ok)
	assert.Equal(t, raw, pab.Raw)
	assert.Equal(t, uint8(TypeParamSO), pab.Type())
}

func TestWarningBody_RoundTrip(t *testing.T) {
	w := &WarningBody{LAK: 0x08, TKS: 0x05, PKS: [6]byte{1, 2, 3, 4, 5, 6}, BCB: 12345}
	encoded := w.Encode()
	decoded, err := decodeWarning(encoded)
	require.NoError(t, err)
	assert.Equal(t, w, decoded)
}
