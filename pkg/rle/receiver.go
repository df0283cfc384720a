package rle

import (
	"fmt"

	"icc.tech/rlelink/internal/log"
	"icc.tech/rlelink/internal/metrics"
)

// Receiver rebuilds SDUs from FPDUs: unpacking into PPDUs, per-fragment-id
// reassembly, trailer validation and protocol-type reconstruction. A
// receiver instance is single-threaded; hosts wanting parallel receive
// instantiate one per worker.
type Receiver struct {
	conf Config
	ctx  [numFragContexts]*rxContext

	// agg counts traffic with no fragment-id context: Complete PPDUs and
	// FPDU-level scan failures.
	agg Stats
}

// NewReceiver validates the configuration and builds a receiver with all
// eight reassembly contexts free.
func NewReceiver(conf Config) (*Receiver, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	r := &Receiver{conf: conf}
	for i := range r.ctx {
		r.ctx[i] = newRxContext(uint8(i), conf)
	}
	return r, nil
}

// Decapsulate scans one FPDU and feeds its PPDUs through the reassembly
// state machines, returning every SDU completed by this FPDU. Protocol
// errors inside the FPDU are counted and logged, not returned; the error
// return is reserved for an FPDU too short to carry its payload label.
func (r *Receiver) Decapsulate(fpdu []byte) ([]SDU, error) {
	scanner, err := newPPDUScanner(fpdu, len(r.conf.PayloadLabel))
	if err != nil {
		return nil, fmt.Errorf("%w: FPDU shorter than payload label", ErrNilBuffer)
	}
	metrics.FPDUsUnpackedTotal.Inc()

	var sdus []SDU
	for {
		ppdu, hdr, ok, scanErr := scanner.next()
		if scanErr != nil {
			r.agg.PacketsDropped++
			metrics.SDUsDroppedTotal.WithLabelValues("rx").Inc()
			log.GetLogger().WithError(scanErr).Warn("FPDU scan aborted on malformed PPDU header")
			break
		}
		if !ok {
			break
		}

		switch hdr.kind {
		case ppduComp:
			if sdu, delivered := r.handleComp(hdr, ppdu); delivered {
				sdus = append(sdus, sdu)
			}
		case ppduStart:
			r.ctx[hdr.fragID].handleStart(hdr, ppdu)
		case ppduCont:
			r.ctx[hdr.fragID].handleCont(hdr, ppdu)
		case ppduEnd:
			if sdu, delivered := r.ctx[hdr.fragID].handleEnd(hdr, ppdu); delivered {
				sdus = append(sdus, sdu)
			}
		}
	}
	return sdus, nil
}

// handleComp extracts the SDU of a Complete PPDU. COMP PPDUs carry no
// fragment-id and no trailer, so they bypass the contexts entirely.
func (r *Receiver) handleComp(hdr ppduHeader, ppdu []byte) (SDU, bool) {
	r.agg.PacketsIn++
	r.agg.BytesIn += uint64(len(ppdu))

	alpdu := ppdu[hdr.headerLen:]
	info, err := parseALPDUHeader(r.conf, hdr, alpdu)
	if err != nil {
		r.compFailed(err)
		return SDU{}, false
	}

	sdu, err := resolveSDU(info, alpdu[info.hdrLen:])
	if err != nil {
		r.compFailed(err)
		return SDU{}, false
	}

	// Complete PPDUs alias the FPDU buffer; hand the caller a copy unless
	// the VLAN reconstruction already allocated one.
	if info.compPtype != ptypeCompVLANNoPtype {
		sdu.Payload = append([]byte(nil), sdu.Payload...)
	}

	r.agg.PacketsOK++
	r.agg.BytesOK += uint64(len(sdu.Payload))
	metrics.SDUsDeliveredTotal.Inc()
	return sdu, true
}

func (r *Receiver) compFailed(err error) {
	r.agg.PacketsDropped++
	metrics.SDUsDroppedTotal.WithLabelValues("rx").Inc()
	log.GetLogger().WithError(err).Warn("Complete PPDU rejected")
}

// ContextStats returns the counters of one reassembly context.
func (r *Receiver) ContextStats(fragID uint8) (Stats, error) {
	if fragID > MaxFragID {
		return Stats{}, fmt.Errorf("rle: fragment id %d out of range 0..%d", fragID, MaxFragID)
	}
	return r.ctx[fragID].stats, nil
}

// Stats aggregates the counters of all contexts plus context-less traffic.
func (r *Receiver) Stats() Stats {
	s := r.agg
	for _, c := range r.ctx {
		s.add(c.stats)
	}
	return s
}

// Reset drops every in-progress reassembly and clears the per-context
// sequence-number state. Counters are preserved.
func (r *Receiver) Reset() {
	for _, c := range r.ctx {
		if c.inProgress {
			c.dropInProgress(true, "receiver reset")
		}
		c.seqInit = false
		c.expectedSeq = 0
	}
}
