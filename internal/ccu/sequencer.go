package ccu

import (
	"strings"
	"time"

	"github.com/marmos91/dittofs/internal/logger"
	"github.com/marmos91/dittofs/internal/queue"
	"github.com/marmos91/dittofs/internal/transport"
	"github.com/marmos91/dittofs/internal/wire"
)

// Mode is the radar operating mode selected on the CCU command line; it
// determines which parameter-accept messages are sent during session
// preparation (§4.11 step 4, §6 glossary).
type Mode string

const (
	ModeDR  Mode = "DR"
	ModeOR  Mode = "OR"
	ModeOR1 Mode = "OR1"
	ModeVR  Mode = "VR"
)

// ParseMode accepts the CCU CLI's single optional positional argument,
// case-insensitively, defaulting to DR.
func ParseMode(s string) (Mode, bool) {
	if s == "" {
		return ModeDR, true
	}
	switch Mode(strings.ToUpper(s)) {
	case ModeDR:
		return ModeDR, true
	case ModeOR:
		return ModeOR, true
	case ModeOR1:
		return ModeOR1, true
	case ModeVR:
		return ModeVR, true
	default:
		return "", false
	}
}

// sessionProgram is the mode-specific ordered sequence of parameter-accept
// message types sent during session preparation. Every listed type is sent
// with an empty payload: the core never interprets parameter contents
// (§1 non-goals), so only the ordering and type codes are meaningful here.
var sessionProgram = map[Mode][]uint8{
	ModeDR:  {wire.TypeParamSO, wire.TypeParamTimeRef, wire.TypeParamReper},
	ModeOR:  {wire.TypeParamSO, wire.TypeParamTimeRef, wire.TypeParamReper, wire.TypeParamSDR},
	ModeOR1: {wire.TypeParamSO, wire.TypeParamTimeRef, wire.TypeParamReper, wire.TypeParamSDR, wire.TypeParam3TSO},
	ModeVR:  {wire.TypeParamSO, wire.TypeParamTimeRef, wire.TypeParamRefAz, wire.TypeParamTSD},
}

const (
	responseTimeout = 2 * time.Second
	selfTestTK      = 0x01
	selfTestVRK     = 0x01
)

// runLink drives one link through its full lifecycle: connect, the four
// initialization phases, then the steady-state loop until the link fails,
// is closed by the peer, or the manager shuts down. It returns whether the
// link ever reached Active.
func (m *Manager) runLink(l *Link) bool {
	l.setStatus(Connecting)

	h, err := transport.Connect(l.Addr())
	if err != nil {
		logger.Warn("ccu connect failed", "link", l.ID, "addr", l.Addr(), "error", err)
		l.setStatus(Failed)
		m.onStatus(l, Failed)
		return false
	}

	l.setHandle(h)
	l.setStatus(Active)
	l.touchActivity()
	m.onStatus(l, Active)
	logger.Info("ccu link connected", "link", l.ID, "addr", l.Addr())

	recvStop := make(chan struct{})
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		runReceiver(l, h, recvStop, m.responses, m.metrics, m.onStatus)
	}()
	defer close(recvStop)

	if !m.initialize(l) {
		return true
	}
	m.selfTest(l)
	m.lineStateQuery(l)
	m.sessionPrepare(l)
	m.steadyState(l)
	return true
}

// send builds and enqueues a frame for l, tracking it on the outstanding
// counter as §4.9/§4.13 require.
func (m *Manager) send(l *Link, body wire.Body) {
	m.outstanding.Add(1)
	_ = m.outbound.Enqueue(queue.UvmRequest{
		Kind:     queue.SendMessage,
		TargetID: l.ID,
		Message: queue.Message{
			Address:    wire.AddressCCU,
			Direction:  wire.DirectionCCUToRSM,
			MessageNum: l.nextSeq(),
			Body:       body,
		},
	})
}

// waitFor implements wait_for_specific_response (§4.11, §5): it registers
// interest in the next message of expectedType from l, then blocks until it
// arrives or the deadline elapses. Messages that arrive for l in the
// meantime but don't match are routed to classify by the dispatcher itself,
// never dropped.
func (m *Manager) waitFor(l *Link, expectedType uint8) (queue.CCUItem, error) {
	ch := make(chan queue.CCUItem, 1)

	m.waitsMu.Lock()
	m.waits[l.ID] = &pendingWait{expectedType: expectedType, ch: ch}
	m.waitsMu.Unlock()

	select {
	case item := <-ch:
		return item, nil
	case <-time.After(responseTimeout):
		m.waitsMu.Lock()
		delete(m.waits, l.ID)
		m.waitsMu.Unlock()
		if m.metrics != nil {
			m.metrics.RecordWaitTimeout(l.ID, expectedType)
		}
		return queue.CCUItem{}, wire.ErrTimeout
	case <-m.stop:
		return queue.CCUItem{}, wire.ErrTimeout
	}
}

// initialize is §4.11 step 1.
func (m *Manager) initialize(l *Link) bool {
	m.send(l, &wire.InitChannelBody{LAUVM: wire.AddressCCU, LAK: l.ExpectedLAK})

	item, err := m.waitFor(l, wire.TypeConfirmInit)
	if err != nil {
		logger.Warn("ccu init: no ConfirmInit", "link", l.ID, "error", err)
		m.fail(l)
		return false
	}

	confirm, ok := item.Message.Body.(*wire.ConfirmInitBody)
	if !ok {
		m.fail(l)
		return false
	}
	if confirm.LAK != l.ExpectedLAK {
		logger.Warn("ccu init: LAK mismatch", "link", l.ID, "expected", l.ExpectedLAK, "got", confirm.LAK)
		m.fail(l)
		return false
	}

	logger.Info("ccu link initialized", "link", l.ID, "lak", confirm.LAK, "bcb", confirm.BCB)
	return true
}

// selfTest is §4.11 step 2. Failures here are non-fatal warnings, not link
// failures: the source treats a failed self-test as an operational warning.
func (m *Manager) selfTest(l *Link) {
	m.send(l, &wire.ProvestiControlBody{TK: selfTestTK})
	confirmItem, err := m.waitFor(l, wire.TypeControlConfirm)
	if err != nil {
		logger.Warn("ccu self-test: no ControlConfirm", "link", l.ID, "error", err)
		return
	}
	_ = confirmItem

	m.send(l, &wire.VydatControlResultsBody{VRK: selfTestVRK})
	resultsItem, err := m.waitFor(l, wire.TypeControlResults)
	if err != nil {
		logger.Warn("ccu self-test: no ControlResults", "link", l.ID, "error", err)
		return
	}

	results, ok := resultsItem.Message.Body.(*wire.ControlResultsBody)
	if !ok {
		return
	}
	l.recordRSK(results.RSK)
	if results.RSK != wire.RSKOK {
		logger.Warn("ccu self-test reported failure", "link", l.ID, "rsk", results.RSK, "vsk_ms", results.VSK)
		m.publish(StatusEvent{LinkID: l.ID, Warning: true, TKS: results.RSK})
	}
}

// lineStateQuery is §4.11 step 3.
func (m *Manager) lineStateQuery(l *Link) {
	m.send(l, &wire.VydatLineStateBody{})
	item, err := m.waitFor(l, wire.TypeLineState)
	if err != nil {
		logger.Warn("ccu line-state query: no LineState", "link", l.ID, "error", err)
		return
	}

	if ls, ok := item.Message.Body.(*wire.LineStateBody); ok {
		logger.Debug("ccu line state", "link", l.ID, "kla", ls.KLA, "sla", ls.SLA, "ksa", ls.KSA, "bcb", ls.BCB)
	}
}

// sessionPrepare is §4.11 step 4: no per-message response is expected, only
// that the batch drains before moving on.
func (m *Manager) sessionPrepare(l *Link) {
	program, ok := sessionProgram[m.mode]
	if !ok {
		logger.Warn("ccu session prepare: unknown mode, skipping", "link", l.ID, "mode", m.mode)
		return
	}

	for _, paramType := range program {
		m.send(l, &wire.ParameterAcceptBody{ParamType: paramType})
	}
	m.outstanding.Wait()
	logger.Info("ccu session prepared", "link", l.ID, "mode", m.mode, "params_sent", len(program))
}

// steadyState is §4.11 step 5: the link just sits and lets the shared
// dispatcher route every further message to classify, until the link is
// neither Active nor Warning (peer close, send/recv error, or keep-alive
// timeout).
func (m *Manager) steadyState(l *Link) {
	ticker := time.NewTicker(watchdogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			if l.Status() != Active && l.Status() != Warning {
				return
			}
		}
	}
}

func (m *Manager) fail(l *Link) {
	old := l.setStatus(Failed)
	if h := l.Handle(); h != nil {
		_ = transport.HalfClose(h)
	}
	logger.Warn("ccu link failed", "link", l.ID, "from", old.String())
	m.onStatus(l, Failed)
}
