// Package rsm implements the subordinate radar-signal module server: a
// multi-instance TCP listener, one state machine per configured instance,
// timer-driven counters, and configurable fault injection.
package rsm

import (
	"sync"
	"time"

	"github.com/marmos91/dittofs/internal/queue"
	"github.com/marmos91/dittofs/internal/transport"
)

// State is one of the three RSM per-instance states (§4.12).
type State int

const (
	NotInitialized State = iota
	Initialized
	SelfTest
)

func (s State) String() string {
	switch s {
	case NotInitialized:
		return "NotInitialized"
	case Initialized:
		return "Initialized"
	case SelfTest:
		return "SelfTest"
	default:
		return "Unknown"
	}
}

// FirmwareInfo carries the opaque version/status bytes returned in every
// ConfirmInit. The original hard-codes these per instance at startup; this
// implementation keeps the same per-instance static table, set by the
// caller of NewInstance. The configuration has no firmware fields, and
// cmd/rsm passes a zero FirmwareInfo.
type FirmwareInfo struct {
	SLP  uint8
	VDR  uint8
	VOR1 uint8
	VOR2 uint8
}

// FaultConfig carries the immutable-during-run fault injection flags
// configured per instance (§3).
type FaultConfig struct {
	SimulateControlFailure  bool
	DisconnectAfterMessages int // -1 = off
	SimulateResponseTimeout bool
	SendWarningOnConfirm    bool
	WarningTKS              uint8
	SelfTestDuration        time.Duration
}

// Instance is one RSM instance's full state, created at startup from
// configuration and living for the lifetime of the process. Per-connection
// fields are reset on accept and released on disconnect; the mutex
// protects every field listed in §5's shared-resource policy.
type Instance struct {
	ID          int
	Port        uint16
	Firmware    FirmwareInfo
	Faults      FaultConfig
	RandSeed    int64

	mu                    sync.Mutex
	assignedLAK           uint8
	state                 State
	bcbCounter            uint32
	linkUpChanges         uint16
	linkUpLowTimeUs100    uint32
	signDetChanges        uint16
	outboundSequence      uint16
	clientHandle          *transport.Handle
	incoming              *queue.Queue[wireItem]
	isActive              bool
	messagesSentCount     int
	lastSelfTestDurationMs uint16
}

// wireItem is the per-instance incoming queue payload: a decoded frame plus
// its header, so handlers see both the typed body and addressing fields.
type wireItem struct {
	address    uint8
	messageNum uint16
	msgType    uint8
	body       any
}

// NewInstance constructs an instance in its NotInitialized, inactive state.
func NewInstance(id int, port uint16, lak uint8, fw FirmwareInfo, faults FaultConfig) *Instance {
	return &Instance{
		ID:          id,
		Port:        port,
		Firmware:    fw,
		Faults:      faults,
		assignedLAK: lak,
	}
}

// State returns the current per-instance state under lock.
func (in *Instance) State() State {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.state
}

func (in *Instance) setState(s State) {
	in.state = s
}

// LAK returns the currently assigned logical address.
func (in *Instance) LAK() uint8 {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.assignedLAK
}

// BCB returns the current BCB counter value.
func (in *Instance) BCB() uint32 {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.bcbCounter
}

// IsActive reports whether a connection currently owns this instance.
func (in *Instance) IsActive() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.isActive
}

// activate resets per-connection state and marks the instance active. Must
// be called once per accepted connection, before spawning its workers.
func (in *Instance) activate(h *transport.Handle, incoming *queue.Queue[wireItem]) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.clientHandle = h
	in.incoming = incoming
	in.isActive = true
	in.messagesSentCount = 0
	in.outboundSequence = 0
}

// deactivate releases per-connection state after a connection drops.
func (in *Instance) deactivate() {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.clientHandle = nil
	in.incoming = nil
	in.isActive = false
}

// handle returns the current transport handle, or nil if inactive.
func (in *Instance) handle() *transport.Handle {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.clientHandle
}

// nextSequence returns the next outbound message number and advances the
// counter, wrapping at 2048 (§4.1).
func (in *Instance) nextSequence() uint16 {
	in.mu.Lock()
	defer in.mu.Unlock()
	n := in.outboundSequence
	in.outboundSequence = (in.outboundSequence + 1) % 2048
	return n
}

// incrementMessagesSent bumps the per-connection response counter and
// reports whether disconnect_after_messages has now been reached.
func (in *Instance) incrementMessagesSent() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.messagesSentCount++
	return in.Faults.DisconnectAfterMessages >= 0 && in.messagesSentCount >= in.Faults.DisconnectAfterMessages
}

// tickBCB advances the hardware clock counter by one, wrapping at 2^32, and
// returns the new value.
func (in *Instance) tickBCB() uint32 {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.bcbCounter++
	return in.bcbCounter
}

// lineStateSnapshot returns the current line-state counters under lock, for
// a LineState response.
func (in *Instance) lineStateSnapshot() (kla uint16, sla uint32, ksa uint16) {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.linkUpChanges, in.linkUpLowTimeUs100, in.signDetChanges
}

// saturatingIncU16 increments v by 1, clamping at the type's maximum.
func saturatingIncU16(v uint16) uint16 {
	if v == ^uint16(0) {
		return v
	}
	return v + 1
}

// saturatingAddU32 adds delta to v, clamping at the type's maximum.
func saturatingAddU32(v uint32, delta uint32) uint32 {
	if ^uint32(0)-v < delta {
		return ^uint32(0)
	}
	return v + delta
}
