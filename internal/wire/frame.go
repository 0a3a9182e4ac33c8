package wire

import (
	"io"
)

// ReadFrame performs the two-phase frame read described in §4.5: a 6-byte
// header, then exactly body_length bytes. It never returns a short read to
// the caller; io.ReadFull retries internally until the frame is complete,
// an error occurs, or the peer closes mid-frame.
func ReadFrame(r io.Reader, expectDirection uint8) (Header, Body, error) {
	var headerBuf [HeaderSize]byte
	if _, err := io.ReadFull(r, headerBuf[:]); err != nil {
		return Header{}, nil, err
	}

	h, err := DecodeHeader(headerBuf[:], expectDirection)
	if err != nil {
		return Header{}, nil, err
	}

	bodyBuf := make([]byte, h.BodyLength)
	if h.BodyLength > 0 {
		if _, err := io.ReadFull(r, bodyBuf); err != nil {
			return Header{}, nil, err
		}
	}

	body, err := DecodeBody(h, bodyBuf)
	if err != nil {
		return Header{}, nil, err
	}

	return h, body, nil
}

// WriteFrame encodes and writes a Frame in one call, for callers that do not
// need to reuse the encoded bytes.
func WriteFrame(w io.Writer, f *Frame) error {
	_, err := w.Write(Encode(f))
	return err
}
