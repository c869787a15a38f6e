package manager

import (
	"time"
)

// drain waits up to drainTimeout for admitted streams of inst to close.
// The caller has already set inst.draining so no new work is admitted.
// Streams still open at the deadline are canceled so the provider's engine
// can close; their consumers see context.Canceled.
func (m *Manager) drain(inst *Instance) {
	deadline := time.Now().Add(m.drainTimeout)
	for {
		qlen := len(inst.queueCh)
		inflight := len(inst.genCh)
		if inflight == 0 && qlen == 0 {
			return
		}
		if time.Now().After(deadline) {
			m.log.Warn().Str("event", "drain_timeout").Str("model", inst.ID).Int("inflight", inflight).Int("queue", qlen).Msg("manager")
			m.publish("drain_timeout", inst.ID, map[string]any{"inflight": inflight, "queue": qlen})
			if n := m.cancelStreams(inst); n > 0 {
				m.log.Warn().Str("event", "streams_canceled").Str("model", inst.ID).Int("count", n).Msg("manager")
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
}
