package transport

// FrameWriter adapts a Handle into a plain io.Writer so wire.WriteFrame can
// write to it directly.
type FrameWriter struct {
	h *Handle
}

// NewFrameWriter wraps h for sequential frame writes.
func NewFrameWriter(h *Handle) *FrameWriter {
	return &FrameWriter{h: h}
}

func (w *FrameWriter) Write(p []byte) (int, error) {
	if err := Send(w.h, p); err != nil {
		return 0, err
	}
	return len(p), nil
}
