package rsm

import (
	"time"

	"github.com/marmos91/dittofs/internal/logger"
	"github.com/marmos91/dittofs/internal/wire"
)

// handlerResult is what a handler returns: an optional response body (nil
// means no response) and whether the message's state precondition was met
// (false means the message was logged only, never state-changed, per the
// state-machine invariant in §4.12).
type handlerResult struct {
	response Body
	ok       bool
}

// Body is a local alias so handlers don't need to import wire for the
// common case; it is exactly wire.Body.
type Body = wire.Body

// handle dispatches a decoded message to its handler, per the table in
// §4.6. Unknown types are logged and produce no response.
func handle(in *Instance, msgType uint8, body wire.Body) handlerResult {
	switch msgType {
	case wire.TypeInitChannel:
		return handleInitChannel(in, body.(*wire.InitChannelBody))
	case wire.TypeProvestiControl:
		return handleProvestiControl(in, body.(*wire.ProvestiControlBody))
	case wire.TypeVydatControlResults:
		return handleVydatControlResults(in, body.(*wire.VydatControlResultsBody))
	case wire.TypeVydatLineState:
		return handleVydatLineState(in)
	case wire.TypeNavigationData:
		logger.Debug("rsm received NavigationData", "instance", in.ID)
		return handlerResult{ok: true}
	default:
		if msgType >= wire.TypeParamSO && msgType <= wire.TypeParamExtra {
			p := body.(*wire.ParameterAcceptBody)
			logger.Debug("rsm received parameter-accept message",
				"instance", in.ID, "type", msgType, "bytes", len(p.Raw))
			return handlerResult{ok: true}
		}
		logger.Warn("rsm received unhandled message type", "instance", in.ID, "type", msgType)
		return handlerResult{ok: false}
	}
}

func handleInitChannel(in *Instance, b *wire.InitChannelBody) handlerResult {
	in.mu.Lock()
	in.assignedLAK = b.LAK
	old := in.state
	in.setState(Initialized)
	bcb := in.bcbCounter
	in.mu.Unlock()

	logger.Info("rsm state transition", "instance", in.ID, "from", old.String(), "to", Initialized.String())

	return handlerResult{
		ok: true,
		response: &wire.ConfirmInitBody{
			LAK:  b.LAK,
			SLP:  in.Firmware.SLP,
			VDR:  in.Firmware.VDR,
			VOR1: in.Firmware.VOR1,
			VOR2: in.Firmware.VOR2,
			BCB:  bcb,
		},
	}
}

func handleProvestiControl(in *Instance, b *wire.ProvestiControlBody) handlerResult {
	in.mu.Lock()
	if in.state != Initialized {
		in.mu.Unlock()
		logger.Debug("rsm ignoring ProvestiControl outside Initialized", "instance", in.ID, "state", in.state.String())
		return handlerResult{ok: false}
	}
	old := in.state
	in.setState(SelfTest)
	in.mu.Unlock()
	logger.Info("rsm state transition", "instance", in.ID, "from", old.String(), "to", SelfTest.String())

	start := time.Now()
	holdDuration := in.Faults.SelfTestDuration
	if holdDuration <= 0 {
		holdDuration = 50 * time.Millisecond
	}
	time.Sleep(holdDuration)
	elapsed := time.Since(start)

	in.mu.Lock()
	in.setState(Initialized)
	in.lastSelfTestDurationMs = uint16(elapsed.Milliseconds())
	bcb := in.bcbCounter
	in.mu.Unlock()

	logger.Info("rsm state transition", "instance", in.ID, "from", SelfTest.String(), "to", Initialized.String())

	return handlerResult{
		ok: true,
		response: &wire.ControlConfirmBody{
			LAK: in.LAK(),
			TK:  b.TK,
			BCB: bcb,
		},
	}
}

func handleVydatControlResults(in *Instance, b *wire.VydatControlResultsBody) handlerResult {
	in.mu.Lock()
	if in.state != Initialized {
		in.mu.Unlock()
		return handlerResult{ok: false}
	}
	rsk := uint8(wire.RSKOK)
	if in.Faults.SimulateControlFailure {
		rsk = wire.RSKFailure
	}
	vsk := in.lastSelfTestDurationMs
	lak := in.assignedLAK
	bcb := in.bcbCounter
	in.mu.Unlock()

	return handlerResult{
		ok: true,
		response: &wire.ControlResultsBody{
			LAK: lak,
			RSK: rsk,
			VSK: vsk,
			BCB: bcb,
		},
	}
}

func handleVydatLineState(in *Instance) handlerResult {
	in.mu.Lock()
	if in.state != Initialized {
		in.mu.Unlock()
		return handlerResult{ok: false}
	}
	lak := in.assignedLAK
	bcb := in.bcbCounter
	in.mu.Unlock()

	kla, sla, ksa := in.lineStateSnapshot()

	return handlerResult{
		ok: true,
		response: &wire.LineStateBody{
			LAK: lak,
			KLA: kla,
			SLA: sla,
			KSA: ksa,
			BCB: bcb,
		},
	}
}
