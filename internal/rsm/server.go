package rsm

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/marmos91/dittofs/internal/logger"
	"github.com/marmos91/dittofs/internal/queue"
	"github.com/marmos91/dittofs/internal/telemetry"
	"github.com/marmos91/dittofs/internal/transport"
	"github.com/marmos91/dittofs/pkg/metrics"
)

// outboundQueueCapacity bounds the shared sender queue; it is sized
// generously relative to the per-instance handler fan-in since it serves
// every configured instance.
const outboundQueueCapacity = 256

// incomingQueueCapacity bounds each instance's per-connection incoming
// queue.
const incomingQueueCapacity = 64

// Server runs every configured RSM instance: one listener goroutine per
// port and one shared sender goroutine for the whole process (§4.4, §4.7).
type Server struct {
	instances map[int]*Instance
	outbound  *queue.RSMQueue
	metrics   metrics.RSMMetrics

	wg       sync.WaitGroup
	stop     chan struct{}
	stopOnce sync.Once

	addrMu sync.Mutex
	addrs  map[int]string
	ready  map[int]chan struct{}
}

// NewServer constructs a Server for the given instances, sharing one
// outbound queue and metrics collector across all of them.
func NewServer(instances []*Instance, m metrics.RSMMetrics) *Server {
	byID := make(map[int]*Instance, len(instances))
	for _, in := range instances {
		byID[in.ID] = in
	}

	ready := make(map[int]chan struct{}, len(instances))
	for _, in := range instances {
		ready[in.ID] = make(chan struct{})
	}

	return &Server{
		instances: byID,
		outbound:  queue.NewRSMQueue(outboundQueueCapacity),
		metrics:   m,
		stop:      make(chan struct{}),
		addrs:     make(map[int]string, len(instances)),
		ready:     ready,
	}
}

// Addr blocks until instanceID's listener is bound and returns its address
// (host:port), for use by tests that configure Instance.Port as 0 to pick
// an ephemeral port.
func (s *Server) Addr(instanceID int) string {
	<-s.ready[instanceID]
	s.addrMu.Lock()
	defer s.addrMu.Unlock()
	return s.addrs[instanceID]
}

// Run starts every instance's listener and the shared sender, and blocks
// until Shutdown is called.
func (s *Server) Run() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		runSender(s.instances, s.outbound)
	}()

	for _, in := range s.instances {
		in := in
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.runListener(in)
		}()
	}

	<-s.stop
}

// Shutdown closes every listening socket and active connection, shuts down
// every queue, and waits for all goroutines to exit.
func (s *Server) Shutdown() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
	s.outbound.Shutdown()
	s.wg.Wait()
}

// runListener implements the per-port accept loop (§4.4): bind, accept one
// client at a time, reject any second concurrent connection, spawn the
// per-connection worker set, and loop until the process shuts down.
func (s *Server) runListener(in *Instance) {
	ln, err := transport.Listen(in.Port)
	if err != nil {
		logger.Error("rsm failed to bind listener", "instance", in.ID, "port", in.Port, "error", err)
		return
	}
	defer transport.CloseListener(ln)

	s.addrMu.Lock()
	s.addrs[in.ID] = ln.Addr()
	s.addrMu.Unlock()
	close(s.ready[in.ID])

	listenerStop := make(chan struct{})
	go func() {
		<-s.stop
		close(listenerStop)
		_ = transport.CloseListener(ln)
	}()

	for {
		h, peer, err := transport.Accept(ln)
		if err != nil {
			select {
			case <-listenerStop:
				return
			default:
				logger.Warn("rsm accept failed", "instance", in.ID, "error", err)
				return
			}
		}

		if in.IsActive() {
			logger.Info("rsm rejecting second connection", "instance", in.ID, "peer", peer)
			_ = transport.Close(h)
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveConnection(in, h, peer)
		}()
	}
}

// serveConnection runs one accepted connection's full worker set to
// completion: spawn receiver/processor/timer, wait for receiver and
// processor to finish, stop the timer, release per-connection state.
func (s *Server) serveConnection(in *Instance, h *transport.Handle, peer string) {
	connID := uuid.NewString()

	_, span := telemetry.StartRSMSpan(context.Background(), "rsm.connection", in.ID, telemetry.Target(peer))
	defer span.End()

	incoming := queue.New[wireItem](incomingQueueCapacity)
	in.activate(h, incoming)

	if s.metrics != nil {
		s.metrics.RecordConnectionAccepted(in.ID)
		s.metrics.SetInstanceActive(in.ID, true)
	}
	logger.Info("rsm accepted connection", "instance", in.ID, "peer", peer, "conn_id", connID)

	connStop := make(chan struct{})
	disconnectOnce := sync.Once{}
	disconnect := func() {
		disconnectOnce.Do(func() {
			_ = transport.HalfClose(h)
		})
	}

	var connWG sync.WaitGroup
	connWG.Add(2)

	go func() {
		defer connWG.Done()
		runReceiver(in, h, connStop, incoming)
	}()

	go func() {
		defer connWG.Done()
		runProcessor(in, s.outbound, s.metrics, disconnect)
	}()

	timerStop := make(chan struct{})
	var timerWG sync.WaitGroup
	timerWG.Add(1)
	go func() {
		defer timerWG.Done()
		runTimer(in, timerStop, s.metrics)
	}()

	// Wake the receiver if the process shuts down while this connection is
	// still open.
	done := make(chan struct{})
	go func() {
		select {
		case <-s.stop:
			close(connStop)
			_ = transport.Close(h)
		case <-done:
		}
	}()

	// §4.4's lifecycle joins receiver and processor first, only then signals
	// the timer to stop and joins it — the timer has no reason to outlive the
	// connection it clocks, but it must not be asked to stop before the other
	// two have finished using the instance's state.
	connWG.Wait()
	close(done)
	close(timerStop)
	timerWG.Wait()

	reason := "peer_close"
	select {
	case <-s.stop:
		reason = "shutdown"
	default:
	}

	if s.metrics != nil {
		s.metrics.RecordConnectionClosed(in.ID, reason)
		s.metrics.SetInstanceActive(in.ID, false)
	}

	_ = transport.Close(h)
	in.deactivate()
	logger.Info("rsm connection closed", "instance", in.ID, "peer", peer, "conn_id", connID, "reason", reason)
}
