package ccu

import (
	"github.com/marmos91/dittofs/internal/logger"
	"github.com/marmos91/dittofs/internal/queue"
	"github.com/marmos91/dittofs/internal/transport"
	"github.com/marmos91/dittofs/internal/wire"
	"github.com/marmos91/dittofs/pkg/metrics"
)

// runSender is the single shared sender task across the whole process
// (§4.9). It dequeues UvmRequest values; SendMessage looks up the target
// link's handle and status under the link's own lock, drops if not Active,
// else sends and marks Failed on error. The outstanding-sends counter is
// decremented on every outcome (success, drop, error) so the sequencer
// always makes progress. Shutdown requests stop the loop.
func runSender(links map[int]*Link, outbound *queue.CCUQueue, outstanding *OutstandingSends, m metrics.CCUMetrics, onStatus func(*Link, Status)) {
	for {
		req, err := outbound.Dequeue()
		if err != nil {
			return
		}

		if req.Kind == queue.Shutdown {
			return
		}

		l, known := links[req.TargetID]
		if !known {
			outstanding.Done()
			continue
		}

		if l.Status() != Active {
			logger.Debug("ccu sender: link not active, dropping send", "link", l.ID, "status", l.Status().String())
			outstanding.Done()
			continue
		}

		h := l.Handle()
		if h == nil {
			outstanding.Done()
			continue
		}

		frame := &wire.Frame{
			Address:    req.Message.Address,
			Direction:  req.Message.Direction,
			MessageNum: req.Message.MessageNum,
			Body:       req.Message.Body,
		}

		if err := wire.WriteFrame(transport.NewFrameWriter(h), frame); err != nil {
			old := l.setStatus(Failed)
			logger.Warn("ccu sender: send failed, marking link failed", "link", l.ID, "from", old.String(), "error", err)
			_ = transport.HalfClose(h)
			onStatus(l, Failed)
			outstanding.Done()
			continue
		}

		l.recordSent(frame.Body.Type(), frame.MessageNum)
		if m != nil {
			m.RecordMessageSent(l.ID, frame.Body.Type())
		}
		outstanding.Done()
	}
}
