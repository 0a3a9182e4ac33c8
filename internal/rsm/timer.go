package rsm

import (
	"math/rand"
	"time"

	"github.com/marmos91/dittofs/internal/logger"
	"github.com/marmos91/dittofs/pkg/metrics"
)

// BCBPeriod is how often the per-instance timer task ticks (§4.8).
const BCBPeriod = 50 * time.Millisecond

// linkPeriodTicks is LINK_PERIOD / BCB_PERIOD: every this many ticks, the
// line-state counters are updated.
const linkPeriodTicks = 40

// runTimer is the per-instance timer task. It wakes every BCBPeriod,
// advances the BCB counter, and every linkPeriodTicks updates the
// line-state counters from a seeded PRNG. stop is closed by the listener
// when the connection that owns this instance is torn down; a ticker plus
// select is this codebase's replacement for the source's condition-variable
// timed wait, since Go has no timed Cond.Wait — functionally equivalent
// prompt cancellation, channel-based rather than predicate-based.
func runTimer(in *Instance, stop <-chan struct{}, m metrics.RSMMetrics) {
	ticker := time.NewTicker(BCBPeriod)
	defer ticker.Stop()

	rng := rand.New(rand.NewSource(in.RandSeed))
	ticks := 0

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			bcb := in.tickBCB()
			if m != nil {
				m.SetBCB(in.ID, bcb)
			}

			ticks++
			if ticks >= linkPeriodTicks {
				ticks = 0
				updateLineState(in, rng)
			}
		}
	}
}

// updateLineState applies the documented probability model (§4.8, kept as
// constants per §9's open question): with probability 1/2 increment
// link_up_changes; nested with probability 1/10, add 2000*10 (units of
// 1/100us) to link_up_low_time_us100; independently with probability 1/3,
// increment sign_det_changes. Every increment saturates at its width's max.
func updateLineState(in *Instance, rng *rand.Rand) {
	in.mu.Lock()
	defer in.mu.Unlock()

	if rng.Intn(2) == 0 {
		in.linkUpChanges = saturatingIncU16(in.linkUpChanges)

		if rng.Intn(10) == 0 {
			in.linkUpLowTimeUs100 = saturatingAddU32(in.linkUpLowTimeUs100, 2000*10)
		}
	}

	if rng.Intn(3) == 0 {
		in.signDetChanges = saturatingIncU16(in.signDetChanges)
	}

	logger.Debug("rsm line-state tick",
		"instance", in.ID,
		"link_up_changes", in.linkUpChanges,
		"link_up_low_time_us100", in.linkUpLowTimeUs100,
		"sign_det_changes", in.signDetChanges,
	)
}
