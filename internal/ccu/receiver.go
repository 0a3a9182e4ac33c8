package ccu

import (
	"errors"
	"io"

	"github.com/marmos91/dittofs/internal/logger"
	"github.com/marmos91/dittofs/internal/queue"
	"github.com/marmos91/dittofs/internal/transport"
	"github.com/marmos91/dittofs/internal/wire"
	"github.com/marmos91/dittofs/pkg/metrics"
)

// runReceiver is one link's receiver task (§4.10): blocks reading frames,
// enqueues each on the shared response queue, and updates the link's
// activity timestamp on every successful decode. On peer close it
// transitions the link to Inactive; on any other error, to Failed. It
// always publishes the final status transition and terminates on stop.
func runReceiver(l *Link, h *transport.Handle, stop <-chan struct{}, responses *queue.CCUResponseQueue, m metrics.CCUMetrics, onStatus func(*Link, Status)) {
	r := transport.NewFrameReader(h, stop)

	for {
		header, body, err := wire.ReadFrame(r, wire.DirectionRSMToCCU)
		if err != nil {
			if errors.Is(err, transport.ErrStopped) {
				logger.Debug("ccu receiver stopped", "link", l.ID)
				return
			}

			closed := errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)

			if closed {
				old := l.setStatus(Inactive)
				logger.Info("ccu link closed by peer", "link", l.ID, "from", old.String())
				onStatus(l, Inactive)
			} else {
				old := l.setStatus(Failed)
				logger.Warn("ccu link receive error", "link", l.ID, "from", old.String(), "error", err)
				onStatus(l, Failed)
			}
			return
		}

		l.touchActivity()
		l.recordRecv(header.Type, header.MessageNum, bcbOf(body))
		if m != nil {
			m.RecordMessageReceived(l.ID, header.Type)
		}

		if err := responses.Enqueue(queue.CCUItem{
			TargetID: l.ID,
			Message: queue.Message{
				Address:    header.Address,
				Direction:  header.Direction,
				MessageNum: header.MessageNum,
				Body:       body,
			},
		}); err != nil {
			return
		}
	}
}

// bcbOf extracts the BCB field carried by every RSM→CCU response body that
// has one; unsolicited Warning frames carry it too.
func bcbOf(b wire.Body) uint32 {
	switch v := b.(type) {
	case *wire.ConfirmInitBody:
		return v.BCB
	case *wire.ControlConfirmBody:
		return v.BCB
	case *wire.ControlResultsBody:
		return v.BCB
	case *wire.LineStateBody:
		return v.BCB
	case *wire.WarningBody:
		return v.BCB
	default:
		return 0
	}
}
