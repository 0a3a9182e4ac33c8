package statuspub

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/marmos91/dittofs/internal/ccu"
	"github.com/marmos91/dittofs/internal/logger"
	"github.com/marmos91/dittofs/pkg/config"
)

// stateLineInterval is how often the per-link state line (§6) is
// broadcast to connected monitors, independent of event traffic.
const stateLineInterval = time.Second

// defaultReplayLines bounds journal replay / in-memory ring size when the
// configuration leaves JournalReplayLines unset.
const defaultReplayLines = 200

// subQueueCapacity bounds how far a slow monitor connection can lag before
// its lines are dropped rather than blocking the publisher.
const subQueueCapacity = 64

// Publisher serves the CCU→monitor status stream (§6): it accepts any
// number of TCP monitor connections, replays recent history to each on
// connect, and then broadcasts live state lines and events.
type Publisher struct {
	cfg     config.StatusPublisherConfig
	journal journal
	ln      net.Listener

	subsMu  sync.Mutex
	subs    map[int]chan string
	nextSub int

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New builds a Publisher bound to cfg.Port. If cfg.JournalPath is set, the
// event history is durable across restarts (badger-backed); otherwise it is
// kept in memory only for the life of the process.
func New(cfg config.StatusPublisherConfig) (*Publisher, error) {
	replay := cfg.JournalReplayLines
	if replay <= 0 {
		replay = defaultReplayLines
	}

	var j journal
	if cfg.JournalPath != "" {
		bj, err := openBadgerJournal(cfg.JournalPath, replay)
		if err != nil {
			return nil, err
		}
		j = bj
	} else {
		j = newMemoryJournal(replay)
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		_ = j.close()
		return nil, fmt.Errorf("listen :%d: %w", cfg.Port, err)
	}

	return &Publisher{
		cfg:     cfg,
		journal: j,
		ln:      ln,
		subs:    make(map[int]chan string),
		stop:    make(chan struct{}),
	}, nil
}

// Addr returns the address the monitor listener is bound to, primarily for
// tests that configure Port 0 and need the OS-assigned port.
func (p *Publisher) Addr() string {
	return p.ln.Addr().String()
}

// Run accepts monitor connections and broadcasts state/event lines until
// Shutdown is called or events is closed. It blocks; call it in a
// goroutine.
func (p *Publisher) Run(events <-chan ccu.StatusEvent, snapshots func() []ccu.Snapshot) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.acceptLoop()
	}()

	ticker := time.NewTicker(stateLineInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			line := formatEvent(ev)
			if err := p.journal.append(line); err != nil {
				logger.Warn("status publisher journal append failed", "error", err)
			}
			p.broadcast(line)
		case <-ticker.C:
			p.broadcast(formatState(snapshots()))
		}
	}
}

// Shutdown stops accepting connections, disconnects every monitor, and
// closes the journal.
func (p *Publisher) Shutdown() {
	p.stopOnce.Do(func() {
		close(p.stop)
		_ = p.ln.Close()

		p.subsMu.Lock()
		for id, ch := range p.subs {
			close(ch)
			delete(p.subs, id)
		}
		p.subsMu.Unlock()
	})
	p.wg.Wait()
	_ = p.journal.close()
}

func (p *Publisher) acceptLoop() {
	for {
		conn, err := p.ln.Accept()
		if err != nil {
			select {
			case <-p.stop:
				return
			default:
				logger.Warn("status publisher accept failed", "error", err)
				return
			}
		}

		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.serve(conn)
		}()
	}
}

// serve replays recent journal entries to a newly connected monitor, then
// streams every subsequent broadcast line to it until it disconnects or the
// publisher shuts down (§C's reconnect-tolerant monitor behavior).
func (p *Publisher) serve(conn net.Conn) {
	defer func() { _ = conn.Close() }()

	w := bufio.NewWriter(conn)

	history, err := p.journal.replay(p.cfg.JournalReplayLines)
	if err != nil {
		logger.Warn("status publisher replay failed", "error", err)
	}
	for _, line := range history {
		if _, err := w.WriteString(line + "\n"); err != nil {
			return
		}
	}
	if err := w.Flush(); err != nil {
		return
	}

	ch := p.subscribe()
	defer p.unsubscribe(ch)

	for line := range ch {
		if _, err := w.WriteString(line + "\n"); err != nil {
			return
		}
		if err := w.Flush(); err != nil {
			return
		}
	}
}

func (p *Publisher) subscribe() chan string {
	p.subsMu.Lock()
	defer p.subsMu.Unlock()

	id := p.nextSub
	p.nextSub++
	ch := make(chan string, subQueueCapacity)
	p.subs[id] = ch
	return ch
}

func (p *Publisher) unsubscribe(ch chan string) {
	p.subsMu.Lock()
	defer p.subsMu.Unlock()
	for id, c := range p.subs {
		if c == ch {
			delete(p.subs, id)
			break
		}
	}
}

func (p *Publisher) broadcast(line string) {
	p.subsMu.Lock()
	defer p.subsMu.Unlock()
	for id, ch := range p.subs {
		select {
		case ch <- line:
		default:
			logger.Warn("status publisher subscriber too slow, dropping line", "subscriber", id)
		}
	}
}

// formatState renders the per-link state line (§6): one "ID:...;Status:...
// ;..." segment per link, joined with "|".
func formatState(snaps []ccu.Snapshot) string {
	segs := make([]string, 0, len(snaps))
	for _, s := range snaps {
		segs = append(segs, fmt.Sprintf(
			"ID:%d;Status:%d;LAK:%d;SentType:%d;SentNum:%d;RecvType:%d;RecvNum:%d",
			s.ID, s.Status.StatusCode(), s.LAK, s.LastSentType, s.LastSentNum, s.LastRecvType, s.LastRecvNum))
	}
	return strings.Join(segs, "|")
}

// formatEvent renders one EVENT line (§6): a Warning event carries TKS, a
// LinkStatus event carries the new status code and assigned LAK.
func formatEvent(ev ccu.StatusEvent) string {
	if ev.Warning {
		return fmt.Sprintf("EVENT;SVM_ID:%d;Type:Warning;Details:TKS=%d", ev.LinkID, ev.TKS)
	}
	return fmt.Sprintf("EVENT;SVM_ID:%d;Type:LinkStatus;Details:NewStatus=%d,AssignedLAK=0x%02X",
		ev.LinkID, ev.Status.StatusCode(), ev.LAK)
}
