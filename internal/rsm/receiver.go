package rsm

import (
	"errors"

	"github.com/marmos91/dittofs/internal/logger"
	"github.com/marmos91/dittofs/internal/queue"
	"github.com/marmos91/dittofs/internal/transport"
	"github.com/marmos91/dittofs/internal/wire"
)

// runReceiver blocks reading full frames off h until the peer closes, a
// transport error occurs, or stop fires, decoding each into the instance's
// incoming queue. On every termination path it shuts down incoming so the
// processor unblocks (§4.5).
func runReceiver(in *Instance, h *transport.Handle, stop <-chan struct{}, incoming *queue.Queue[wireItem]) {
	defer incoming.Shutdown()

	r := transport.NewFrameReader(h, stop)

	for {
		header, body, err := wire.ReadFrame(r, wire.DirectionCCUToRSM)
		if err != nil {
			if errors.Is(err, transport.ErrStopped) {
				logger.Debug("rsm receiver stopped", "instance", in.ID)
				return
			}
			var protoErr *wire.ProtocolError
			if errors.As(err, &protoErr) {
				logger.Warn("rsm protocol error", "instance", in.ID, "error", err)
				return
			}
			logger.Info("rsm receiver terminating", "instance", in.ID, "error", err)
			return
		}

		logger.Debug("rsm received frame",
			"instance", in.ID, "type", wire.TypeName(header.Type), "num", header.MessageNum)

		if err := incoming.Enqueue(wireItem{
			address:    header.Address,
			messageNum: header.MessageNum,
			msgType:    header.Type,
			body:       body,
		}); err != nil {
			return
		}
	}
}
