package rle

import (
	"errors"
	"fmt"
	"sync/atomic"

	"icc.tech/rlelink/internal/log"
	"icc.tech/rlelink/internal/metrics"
)

// Transmitter turns SDUs into FPDUs: encapsulation into ALPDUs across eight
// fragment-id contexts, fragmentation into PPDUs, packing into fixed-size
// bursts. It is safe for concurrent producers as long as each fragment-id is
// driven by at most one of them; only the free-context bitmap is shared.
type Transmitter struct {
	conf Config
	ctx  [numFragContexts]*txContext

	// busyCtx has bit i set exactly while fragment-id i holds an unfinished
	// ALPDU. Test-and-set keeps concurrent producers off the same context.
	busyCtx atomic.Uint32
}

// NewTransmitter validates the configuration and builds a transmitter with
// all eight fragment-ids free.
func NewTransmitter(conf Config) (*Transmitter, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	t := &Transmitter{conf: conf}
	for i := range t.ctx {
		t.ctx[i] = newTxContext(uint8(i), conf)
	}
	return t, nil
}

// acquire atomically claims a fragment-id. It fails when the context still
// holds an unfinished ALPDU.
func (t *Transmitter) acquire(fragID uint8) bool {
	mask := uint32(1) << fragID
	for {
		old := t.busyCtx.Load()
		if old&mask != 0 {
			return false
		}
		if t.busyCtx.CompareAndSwap(old, old|mask) {
			return true
		}
	}
}

func (t *Transmitter) release(fragID uint8) {
	mask := uint32(1) << fragID
	for {
		old := t.busyCtx.Load()
		if t.busyCtx.CompareAndSwap(old, old&^mask) {
			return
		}
	}
}

func (t *Transmitter) busy(fragID uint8) bool {
	return t.busyCtx.Load()&(uint32(1)<<fragID) != 0
}

// Encapsulate wraps one SDU into an ALPDU on the given fragment-id. The
// fragment-id stays claimed until the ALPDU has been fully emitted or an
// emission error drops it.
func (t *Transmitter) Encapsulate(sdu SDU, fragID uint8) error {
	if fragID > MaxFragID {
		return fmt.Errorf("rle: fragment id %d out of range 0..%d", fragID, MaxFragID)
	}
	if !t.acquire(fragID) {
		return fmt.Errorf("%w: fragment id %d", ErrContextBusy, fragID)
	}
	if err := t.ctx[fragID].encapsulate(sdu); err != nil {
		t.ctx[fragID].stats.PacketsDropped++
		t.release(fragID)
		return err
	}
	metrics.SDUsEncapsulatedTotal.Inc()
	return nil
}

// EmitPPDU produces one PPDU of at most burstSize bytes from the given
// fragment-id. done reports that the ALPDU is fully consumed and the
// fragment-id has been released.
func (t *Transmitter) EmitPPDU(fragID uint8, burstSize int) (ppdu []byte, done bool, err error) {
	if fragID > MaxFragID {
		return nil, false, fmt.Errorf("rle: fragment id %d out of range 0..%d", fragID, MaxFragID)
	}
	if !t.busy(fragID) {
		return nil, false, ErrNoALPDU
	}
	dst := make([]byte, burstSize)
	n, done, err := t.ctx[fragID].emitPPDU(dst)
	if err != nil {
		if errors.Is(err, ErrTooManyFragments) {
			t.ctx[fragID].drop()
			t.release(fragID)
		}
		return nil, false, err
	}
	if done {
		t.release(fragID)
	}
	return dst[:n], done, nil
}

// PackFPDU drains pending fragment-ids into one fixed-size FPDU: the
// payload-label prefix, then PPDUs packed in fragment-id order, then zero
// padding. It returns the FPDU and the number of padding bytes. ErrNoALPDU
// is returned when no context has anything to emit.
func (t *Transmitter) PackFPDU(fpduSize int) (fpdu []byte, padding int, err error) {
	labelLen := len(t.conf.PayloadLabel)
	if fpduSize < labelLen+minContEndBurst {
		return nil, 0, fmt.Errorf("%w: FPDU size %d", ErrBurstTooSmall, fpduSize)
	}

	fpdu = make([]byte, fpduSize)
	off := labelLen
	copy(fpdu, t.conf.PayloadLabel)

	for id := uint8(0); id <= MaxFragID; id++ {
		if !t.busy(id) || !t.ctx[id].buf.sduCopied {
			continue
		}
		for fpduSize-off >= minContEndBurst {
			n, done, emitErr := t.ctx[id].emitPPDU(fpdu[off:])
			if emitErr != nil {
				if errors.Is(emitErr, ErrBurstTooSmall) {
					break // context needs more room; another may still fit
				}
				t.ctx[id].drop()
				t.release(id)
				log.GetLogger().WithError(emitErr).WithField("frag_id", id).
					Warn("SDU dropped during fragmentation")
				break
			}
			off += n
			if done {
				t.release(id)
				break
			}
		}
	}

	if off == labelLen {
		return nil, 0, ErrNoALPDU
	}
	metrics.FPDUsPackedTotal.Inc()
	return fpdu, fpduSize - off, nil
}

// Pending reports whether any fragment-id still holds an unfinished ALPDU.
func (t *Transmitter) Pending() bool {
	return t.busyCtx.Load() != 0
}

// ContextStats returns the counters of one fragment-id context.
func (t *Transmitter) ContextStats(fragID uint8) (Stats, error) {
	if fragID > MaxFragID {
		return Stats{}, fmt.Errorf("rle: fragment id %d out of range 0..%d", fragID, MaxFragID)
	}
	return t.ctx[fragID].stats, nil
}

// Stats aggregates the counters of all fragment-id contexts.
func (t *Transmitter) Stats() Stats {
	var s Stats
	for _, c := range t.ctx {
		s.add(c.stats)
	}
	return s
}

// Reset drops every in-progress ALPDU and frees all fragment-ids. Counters
// are preserved.
func (t *Transmitter) Reset() {
	for id := uint8(0); id <= MaxFragID; id++ {
		if t.busy(id) {
			t.ctx[id].drop()
			t.release(id)
		}
	}
}
