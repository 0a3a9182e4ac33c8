package ccu

import (
	"sync"
	"time"

	"github.com/marmos91/dittofs/internal/logger"
	"github.com/marmos91/dittofs/internal/queue"
	"github.com/marmos91/dittofs/internal/transport"
	"github.com/marmos91/dittofs/internal/wire"
	"github.com/marmos91/dittofs/pkg/config"
	"github.com/marmos91/dittofs/pkg/metrics"
)

// KeepAliveTimeout is the receive-silence threshold after which an Active
// link is declared Failed (§5).
const KeepAliveTimeout = 60 * time.Second

const watchdogInterval = time.Second

// StatusEvent is one line of the CCU→monitor event stream (§6): either a
// Warning or a LinkStatus transition, attributed to a link.
type StatusEvent struct {
	LinkID  int
	Warning bool // true: Warning event (TKS set); false: LinkStatus event
	TKS     uint8
	Status  Status
	LAK     uint8
}

// Manager owns every configured link for one CCU process: the links_mutex
// protected registry (§5), the shared outbound request queue, the shared
// inbound response queue, the outstanding-sends counter, and the keep-alive
// watchdog. One sequencer goroutine per link drives that link's phases;
// a single shared dispatcher goroutine reads the response queue and routes
// each message either to a waiting sequencer or to steady-state handling,
// which is how this implementation reproduces the source's single
// "main sequencer, shared response queue" design with Go's per-goroutine
// concurrency instead of a single hand-rolled event loop.
type Manager struct {
	mode Mode

	linksMu sync.Mutex
	links   map[int]*Link

	outbound    *queue.CCUQueue
	responses   *queue.CCUResponseQueue
	outstanding *OutstandingSends
	metrics     metrics.CCUMetrics

	waitsMu sync.Mutex
	waits   map[int]*pendingWait

	events chan StatusEvent

	wg       sync.WaitGroup
	stop     chan struct{}
	stopOnce sync.Once
}

type pendingWait struct {
	expectedType uint8
	ch           chan queue.CCUItem
}

// NewManager builds a Manager for the given instances, all reachable at
// targetIP on their configured port, driven through the given mode.
func NewManager(mode Mode, targetIP string, instances []config.InstanceConfig, m metrics.CCUMetrics) *Manager {
	links := make(map[int]*Link, len(instances))
	for _, inst := range instances {
		links[inst.ID] = NewLink(inst.ID, targetIP, inst.Port, inst.LAK)
	}

	return &Manager{
		mode:        mode,
		links:       links,
		outbound:    queue.NewCCUQueue(64),
		responses:   queue.NewCCUResponseQueue(64),
		outstanding: NewOutstandingSends(),
		metrics:     m,
		waits:       make(map[int]*pendingWait),
		events:      make(chan StatusEvent, 64),
		stop:        make(chan struct{}),
	}
}

// Events returns the channel status/warning events are published on, for
// the status publisher to consume.
func (m *Manager) Events() <-chan StatusEvent { return m.events }

// Snapshots returns a point-in-time view of every link.
func (m *Manager) Snapshots() []Snapshot {
	m.linksMu.Lock()
	defer m.linksMu.Unlock()

	out := make([]Snapshot, 0, len(m.links))
	for _, l := range m.links {
		out = append(out, l.Snapshot())
	}
	return out
}

// Run starts the shared sender, the response dispatcher, the keep-alive
// watchdog, and one sequencer per configured link, then blocks until
// Shutdown is called. It returns the number of links that reached Active at
// least once, so the caller can exit non-zero when none did (§6 CLI).
func (m *Manager) Run() int {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		runSender(m.snapshotLinks(), m.outbound, m.outstanding, m.metrics, m.onStatus)
	}()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.runDispatcher()
	}()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.runWatchdog()
	}()

	connected := make(chan bool, len(m.links))
	for _, l := range m.links {
		l := l
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			connected <- m.runLink(l)
		}()
	}

	<-m.stop
	m.wg.Wait()

	close(connected)
	count := 0
	for ok := range connected {
		if ok {
			count++
		}
	}
	return count
}

func (m *Manager) snapshotLinks() map[int]*Link {
	m.linksMu.Lock()
	defer m.linksMu.Unlock()
	out := make(map[int]*Link, len(m.links))
	for id, l := range m.links {
		out[id] = l
	}
	return out
}

// Shutdown stops every task and closes every active handle (§4.13).
func (m *Manager) Shutdown() {
	m.stopOnce.Do(func() {
		close(m.stop)
		m.outbound.Shutdown()
		m.responses.Shutdown()

		m.linksMu.Lock()
		for _, l := range m.links {
			if h := l.Handle(); h != nil {
				_ = transport.HalfClose(h)
			}
		}
		m.linksMu.Unlock()

		close(m.events)
	})
}

// onStatus is the sender/receiver callback that publishes a LinkStatus
// event whenever a task observes a status transition out-of-band from the
// sequencer's own bookkeeping.
func (m *Manager) onStatus(l *Link, s Status) {
	if m.metrics != nil {
		m.metrics.SetLinkStatus(l.ID, s.String())
	}
	m.publish(StatusEvent{LinkID: l.ID, Status: s, LAK: l.ExpectedLAK})
}

func (m *Manager) publish(ev StatusEvent) {
	select {
	case m.events <- ev:
	default:
		logger.Warn("ccu status event dropped, subscriber too slow", "link", ev.LinkID)
	}
}

// runDispatcher is the single reader of the shared response queue (§4.10,
// §4.11): every message is routed to a waiting sequencer phase if one
// matches, else handed to classify for steady-state handling.
func (m *Manager) runDispatcher() {
	for {
		item, err := m.responses.Dequeue()
		if err != nil {
			return
		}
		m.route(item)
	}
}

func (m *Manager) route(item queue.CCUItem) {
	m.waitsMu.Lock()
	w, ok := m.waits[item.TargetID]
	if ok && item.Message.Body.Type() == w.expectedType {
		delete(m.waits, item.TargetID)
		m.waitsMu.Unlock()
		w.ch <- item
		return
	}
	m.waitsMu.Unlock()

	m.classify(item)
}

// classify implements the steady-state message classification of §4.11
// step 5 for any message not claimed by an in-flight wait_for_specific_response.
func (m *Manager) classify(item queue.CCUItem) {
	m.linksMu.Lock()
	l := m.links[item.TargetID]
	m.linksMu.Unlock()
	if l == nil {
		return
	}

	switch body := item.Message.Body.(type) {
	case *wire.WarningBody:
		l.recordTKS(body.TKS)
		logger.Warn("ccu received warning", "link", l.ID, "tks", body.TKS, "pks", body.PKS)
		if l.setStatusIf(Active, Warning) {
			m.onStatus(l, Warning)
		}
		if m.metrics != nil {
			m.metrics.RecordWarning(l.ID, body.TKS)
		}
		m.publish(StatusEvent{LinkID: l.ID, Warning: true, TKS: body.TKS})
	default:
		logger.Debug("ccu unsolicited message", "link", l.ID, "type", wire.TypeName(item.Message.Body.Type()))
	}
}

func (m *Manager) runWatchdog() {
	ticker := time.NewTicker(watchdogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.checkKeepAlive()
		}
	}
}

func (m *Manager) checkKeepAlive() {
	m.linksMu.Lock()
	links := make([]*Link, 0, len(m.links))
	for _, l := range m.links {
		links = append(links, l)
	}
	m.linksMu.Unlock()

	for _, l := range links {
		if l.Status() != Active {
			continue
		}
		if l.silentFor() <= KeepAliveTimeout {
			continue
		}

		old := l.setStatus(Failed)
		logger.Warn("ccu keep-alive timeout", "link", l.ID, "from", old.String(), "silent_for", l.silentFor())
		if h := l.Handle(); h != nil {
			_ = transport.HalfClose(h)
		}
		if m.metrics != nil {
			m.metrics.RecordKeepAliveFailure(l.ID)
		}
		m.onStatus(l, Failed)
	}
}
