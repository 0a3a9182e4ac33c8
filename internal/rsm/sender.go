package rsm

import (
	"github.com/marmos91/dittofs/internal/logger"
	"github.com/marmos91/dittofs/internal/queue"
	"github.com/marmos91/dittofs/internal/transport"
	"github.com/marmos91/dittofs/internal/wire"
)

// runSender is the single shared sender task for the whole process (§4.7).
// It dequeues (instance_id, message), looks up that instance's current
// transport handle, encodes, and sends. A send error is logged and
// half-closes the socket, so that connection ends through its receiver;
// the sender itself keeps serving other instances. It exits when outbound is
// shut down.
func runSender(instances map[int]*Instance, outbound *queue.RSMQueue) {
	for {
		item, err := outbound.Dequeue()
		if err != nil {
			return
		}

		in, known := instances[item.InstanceID]
		if !known {
			continue
		}

		h := in.handle()
		if h == nil {
			logger.Debug("rsm sender: instance has no active connection, dropping", "instance", item.InstanceID)
			continue
		}

		frame := &wire.Frame{
			Address:    item.Message.Address,
			Direction:  item.Message.Direction,
			MessageNum: item.Message.MessageNum,
			Body:       item.Message.Body,
		}

		if err := wire.WriteFrame(transport.NewFrameWriter(h), frame); err != nil {
			logger.Warn("rsm sender: send failed, marking instance connection failed",
				"instance", item.InstanceID, "error", err)
			_ = transport.HalfClose(h)
			continue
		}

		logger.Debug("rsm sent frame",
			"instance", item.InstanceID, "type", wire.TypeName(frame.Body.Type()), "num", frame.MessageNum)
	}
}
