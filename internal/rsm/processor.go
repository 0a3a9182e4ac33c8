package rsm

import (
	"github.com/marmos91/dittofs/internal/logger"
	"github.com/marmos91/dittofs/internal/queue"
	"github.com/marmos91/dittofs/internal/wire"
	"github.com/marmos91/dittofs/pkg/metrics"
)

// runProcessor dequeues from the instance's incoming queue, dispatches each
// message to its handler, and enqueues any response on the shared outbound
// queue. It returns when the incoming queue is shut down (§4.6). disconnect
// is called at most once, when disconnect_after_messages is reached, to
// signal the listener to tear down the connection.
func runProcessor(in *Instance, outbound *queue.RSMQueue, m metrics.RSMMetrics, disconnect func()) {
	for {
		item, err := in.incomingQueue().Dequeue()
		if err != nil {
			return
		}

		if m != nil {
			m.RecordMessageReceived(in.ID, item.msgType)
		}

		result := handle(in, item.msgType, item.body.(wire.Body))
		if result.response == nil {
			continue
		}

		in.emit(in.ID, outbound, result.response, m, disconnect)

		if item.msgType == wire.TypeInitChannel && in.Faults.SendWarningOnConfirm {
			in.emit(in.ID, outbound, &wire.WarningBody{
				LAK: in.LAK(),
				TKS: in.Faults.WarningTKS,
				BCB: in.BCB(),
			}, m, disconnect)
		}
	}
}

// emit addresses, sequences, and enqueues a response on the shared outbound
// queue, unless simulate_response_timeout drops it instead (§4.6).
// messages_sent_count counts every response emitted, including one dropped
// by simulate_response_timeout (§3, §9), so the counter is bumped here
// rather than once per incoming message — an
// InitChannel with send_warning_on_confirm set emits two responses and must
// count as two toward disconnect_after_messages.
func (in *Instance) emit(instanceID int, outbound *queue.RSMQueue, body wire.Body, m metrics.RSMMetrics, disconnect func()) {
	if in.Faults.SimulateResponseTimeout {
		logger.Debug("rsm dropping response (simulate_response_timeout)", "instance", instanceID, "type", body.Type())
		if m != nil {
			m.RecordMessageDropped(instanceID, body.Type())
		}
		if in.incrementMessagesSent() {
			logger.Info("rsm disconnecting after configured message count", "instance", instanceID)
			disconnect()
		}
		return
	}

	num := in.nextSequence()
	msg := queue.Message{
		Address:    wire.AddressCCU,
		Direction:  wire.DirectionRSMToCCU,
		MessageNum: num,
		Body:       body,
	}

	if err := outbound.Enqueue(queue.RSMItem{InstanceID: instanceID, Message: msg}); err != nil {
		logger.Debug("rsm outbound queue shut down, dropping response", "instance", instanceID)
		return
	}

	if m != nil {
		m.RecordMessageSent(instanceID, body.Type())
	}

	if in.incrementMessagesSent() {
		logger.Info("rsm disconnecting after configured message count", "instance", instanceID)
		disconnect()
	}
}

// incomingQueue returns the instance's current per-connection incoming
// queue. Callers must only use it while the instance is known active.
func (in *Instance) incomingQueue() *queue.Queue[wireItem] {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.incoming
}
