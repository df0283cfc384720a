package rle

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"icc.tech/rlelink/internal/log"
	"icc.tech/rlelink/internal/metrics"
)

// alpduHeaderInfo is what the receiver learns from the front of an ALPDU.
type alpduHeaderInfo struct {
	hdrLen        int
	compPtype     uint8
	explicitPtype uint16
	hasExplicit   bool
}

// parseALPDUHeader reads the protocol-type portion of an ALPDU according to
// the PPDU flags and the shared configuration. frag is the first ALPDU
// fragment; it must contain the whole header.
func parseALPDUHeader(conf Config, hdr ppduHeader, frag []byte) (alpduHeaderInfo, error) {
	var info alpduHeaderInfo

	if hdr.ptypeSuppressed {
		if hdr.labelType == labelTypeSignal {
			info.compPtype = ptypeCompL2S
			info.explicitPtype = PtypeL2S
			info.hasExplicit = true
		} else {
			info.compPtype = conf.ImplicitProtocolType
		}
		return info, nil
	}

	if conf.UseCompressedPtype {
		if len(frag) < 1 {
			return info, fmt.Errorf("%w: ALPDU too short for compressed protocol type", ErrInvalidPPDU)
		}
		code := frag[0]
		if code == ptypeCompFallback {
			if len(frag) < 3 {
				return info, fmt.Errorf("%w: ALPDU too short for fallback protocol type", ErrInvalidPPDU)
			}
			info.hdrLen = 3
			info.compPtype = code
			info.explicitPtype = binary.LittleEndian.Uint16(frag[1:3])
			info.hasExplicit = true
			return info, nil
		}
		if code != ptypeCompIP && code != ptypeCompVLANNoPtype {
			if _, ok := decompressPtype(code); !ok {
				return info, fmt.Errorf("%w: unknown compressed protocol type 0x%02x",
					ErrInvalidPPDU, code)
			}
		}
		info.hdrLen = 1
		info.compPtype = code
		return info, nil
	}

	if len(frag) < 2 {
		return info, fmt.Errorf("%w: ALPDU too short for protocol type", ErrInvalidPPDU)
	}
	info.hdrLen = 2
	info.explicitPtype = binary.LittleEndian.Uint16(frag[0:2])
	info.hasExplicit = true
	if code, ok := compressPtype(info.explicitPtype); ok {
		info.compPtype = code
	} else {
		info.compPtype = ptypeCompFallback
	}
	return info, nil
}

// resolveSDU turns the accumulated SDU bytes plus protocol-type information
// into the delivered SDU, handling the deferred cases: the dual IPv4/IPv6
// implicit type and the VLAN frame whose protocol-type field was suppressed
// on the wire.
func resolveSDU(info alpduHeaderInfo, raw []byte) (SDU, error) {
	switch info.compPtype {
	case ptypeCompVLANNoPtype:
		return insertVLANPtype(raw)
	case ptypeCompIP:
		if len(raw) < 1 {
			return SDU{}, fmt.Errorf("%w: empty SDU for implicit IP protocol type", ErrInvalidPPDU)
		}
		switch ipVersionNibble(raw[0]) {
		case 4:
			return SDU{Payload: raw, ProtocolType: PtypeIPv4}, nil
		case 6:
			return SDU{Payload: raw, ProtocolType: PtypeIPv6}, nil
		}
		return SDU{}, fmt.Errorf("%w: IP version nibble is neither 4 nor 6", ErrInvalidPPDU)
	}
	if info.hasExplicit {
		return SDU{Payload: raw, ProtocolType: info.explicitPtype}, nil
	}
	ptype, ok := decompressPtype(info.compPtype)
	if !ok {
		return SDU{}, fmt.Errorf("%w: unknown compressed protocol type 0x%02x",
			ErrInvalidPPDU, info.compPtype)
	}
	return SDU{Payload: raw, ProtocolType: ptype}, nil
}

// insertVLANPtype rebuilds the suppressed VLAN protocol-type field from the
// IP version nibble of the VLAN payload and returns the SDU expanded by the
// 2 restored bytes.
func insertVLANPtype(raw []byte) (SDU, error) {
	if len(raw) < vlanPtypeOffset+1 {
		return SDU{}, fmt.Errorf("%w: %d bytes, need at least %d to read the IP version",
			ErrVLANReconstruct, len(raw), vlanPtypeOffset+1)
	}
	if outer := binary.BigEndian.Uint16(raw[etherTypeOffset:]); outer != PtypeVLAN {
		return SDU{}, fmt.Errorf("%w: outer EtherType 0x%04x is not VLAN", ErrVLANReconstruct, outer)
	}

	var restored uint16
	switch ipVersionNibble(raw[vlanPtypeOffset]) {
	case 4:
		restored = PtypeIPv4
	case 6:
		restored = PtypeIPv6
	default:
		return SDU{}, fmt.Errorf("%w: IP version nibble is neither 4 nor 6", ErrVLANReconstruct)
	}

	payload := make([]byte, len(raw)+2)
	copy(payload, raw[:vlanPtypeOffset])
	binary.BigEndian.PutUint16(payload[vlanPtypeOffset:], restored)
	copy(payload[vlanPtypeOffset+2:], raw[vlanPtypeOffset:])
	return SDU{Payload: payload, ProtocolType: PtypeVLAN}, nil
}

// rxContext is one of the receiver's eight reassembly contexts; each runs
// the FREE / IN_PROGRESS state machine of its fragment-id.
type rxContext struct {
	fragID uint8
	conf   Config
	buf    *rasmBuf

	inProgress  bool
	seqInit     bool
	expectedSeq uint8

	stats Stats
}

func newRxContext(fragID uint8, conf Config) *rxContext {
	return &rxContext{fragID: fragID, conf: conf, buf: newRasmBuf()}
}

// dropInProgress abandons the current reassembly, counting the SDU as
// dropped and, when lost is set, its unreceived remainder as one lost
// packet.
func (c *rxContext) dropInProgress(lost bool, reason string) {
	c.stats.PacketsDropped++
	c.stats.BytesDropped += c.buf.burstBytes
	if lost {
		c.stats.PacketsLost++
	}
	c.inProgress = false
	metrics.SDUsDroppedTotal.WithLabelValues("rx").Inc()
	log.GetLogger().WithFields(map[string]interface{}{
		"frag_id": c.fragID,
		"reason":  reason,
	}).Warn("reassembly dropped")
}

// handleStart processes a START PPDU. A START on a busy context first drops
// the in-progress SDU (one packet lost), then starts the new reassembly.
func (c *rxContext) handleStart(hdr ppduHeader, ppdu []byte) {
	if c.inProgress {
		c.dropInProgress(true, "START on context not free")
	}

	c.stats.PacketsIn++
	c.stats.BytesIn += uint64(len(ppdu))

	frag := ppdu[hdr.headerLen:]
	info, err := parseALPDUHeader(c.conf, hdr, frag)
	if err != nil {
		c.beginFailed(uint64(len(ppdu)), err)
		return
	}

	trailerLen := seqnumTrailerLen
	if hdr.useCRC {
		trailerLen = crcTrailerLen
	}
	if hdr.totalLen < info.hdrLen+trailerLen {
		c.beginFailed(uint64(len(ppdu)), fmt.Errorf(
			"%w: declared ALPDU length %d below header %d + trailer %d",
			ErrInvalidPPDU, hdr.totalLen, info.hdrLen, trailerLen))
		return
	}
	if len(frag) > hdr.totalLen {
		c.beginFailed(uint64(len(ppdu)), fmt.Errorf(
			"%w: START carries %d ALPDU bytes, %d declared in total",
			ErrLengthOverflow, len(frag), hdr.totalLen))
		return
	}

	c.buf.begin(hdr.totalLen, info.hdrLen, trailerLen, hdr.useCRC)
	c.buf.compPtype = info.compPtype
	c.buf.explicitPtype = info.explicitPtype
	c.buf.hasExplicit = info.hasExplicit
	c.buf.burstBytes = uint64(len(ppdu))
	c.buf.append(frag)
	c.inProgress = true
}

// beginFailed accounts for a START that could not open a reassembly.
func (c *rxContext) beginFailed(ppduLen uint64, err error) {
	c.stats.PacketsDropped++
	c.stats.PacketsLost++
	c.stats.BytesDropped += ppduLen
	c.inProgress = false
	metrics.SDUsDroppedTotal.WithLabelValues("rx").Inc()
	log.GetLogger().WithError(err).WithField("frag_id", c.fragID).Warn("START PPDU rejected")
}

// handleCont processes a CONT PPDU.
func (c *rxContext) handleCont(hdr ppduHeader, ppdu []byte) {
	if !c.inProgress {
		c.stats.PacketsDropped++
		c.stats.BytesDropped += uint64(len(ppdu))
		metrics.SDUsDroppedTotal.WithLabelValues("rx").Inc()
		log.GetLogger().WithError(ErrInvalidTransition).WithField("frag_id", c.fragID).
			Warn("CONT PPDU on free context")
		return
	}
	c.stats.BytesIn += uint64(len(ppdu))
	c.buf.burstBytes += uint64(len(ppdu))

	frag := ppdu[hdr.headerLen:]
	if c.buf.received+len(frag) > c.buf.total {
		c.dropInProgress(true, "CONT exceeds declared ALPDU length")
		return
	}
	c.buf.append(frag)
}

// handleEnd processes an END PPDU, validates the trailer and, on success,
// returns the reassembled SDU.
func (c *rxContext) handleEnd(hdr ppduHeader, ppdu []byte) (SDU, bool) {
	if !c.inProgress {
		c.stats.PacketsDropped++
		c.stats.BytesDropped += uint64(len(ppdu))
		metrics.SDUsDroppedTotal.WithLabelValues("rx").Inc()
		log.GetLogger().WithError(ErrInvalidTransition).WithField("frag_id", c.fragID).
			Warn("END PPDU on free context")
		return SDU{}, false
	}
	c.stats.BytesIn += uint64(len(ppdu))
	c.buf.burstBytes += uint64(len(ppdu))

	frag := ppdu[hdr.headerLen:]
	if c.buf.received+len(frag) > c.buf.total {
		c.dropInProgress(true, "END exceeds declared ALPDU length")
		return SDU{}, false
	}
	c.buf.append(frag)

	if c.buf.received != c.buf.total {
		c.dropInProgress(true, fmt.Sprintf("END with %d of %d ALPDU bytes",
			c.buf.received, c.buf.total))
		return SDU{}, false
	}

	info := alpduHeaderInfo{
		hdrLen:        c.buf.hdrLen,
		compPtype:     c.buf.compPtype,
		explicitPtype: c.buf.explicitPtype,
		hasExplicit:   c.buf.hasExplicit,
	}
	sdu, err := resolveSDU(info, c.buf.sdu())
	if err != nil {
		c.dropInProgress(true, err.Error())
		return SDU{}, false
	}
	if info.compPtype != ptypeCompVLANNoPtype {
		// The resolved payload aliases the reassembly buffer, which the next
		// START will overwrite.
		sdu.Payload = append([]byte(nil), sdu.Payload...)
	}

	if c.buf.useCRC {
		if !c.checkCRCTrailer(sdu) {
			return SDU{}, false
		}
	} else if !c.checkSeqnumTrailer() {
		return SDU{}, false
	}

	c.stats.PacketsOK++
	c.stats.BytesOK += uint64(len(sdu.Payload))
	c.inProgress = false
	metrics.SDUsDeliveredTotal.Inc()
	return sdu, true
}

// checkCRCTrailer validates the 4-byte CRC trailer over the ALPDU header and
// the (reconstructed) SDU bytes.
func (c *rxContext) checkCRCTrailer(sdu SDU) bool {
	var want [crcTrailerLen]byte
	binary.LittleEndian.PutUint32(want[:], alpduCRC(c.buf.header(), sdu.Payload))
	if !bytes.Equal(c.buf.trailer(), want[:]) {
		c.dropInProgress(true, ErrTrailerMismatch.Error())
		return false
	}
	return true
}

// checkSeqnumTrailer validates the 1-byte sequence-number trailer. The first
// END seen on a fragment-id seeds the expected value; afterwards a forward
// gap of delta counts delta lost packets but the current SDU is still
// delivered — 3-bit modular arithmetic cannot tell a gap from reordering,
// so every non-zero delta is read as loss.
func (c *rxContext) checkSeqnumTrailer() bool {
	seq := c.buf.trailer()[0] & 0x07
	if !c.seqInit {
		c.seqInit = true
		c.expectedSeq = (seq + 1) % seqnumModulo
		return true
	}
	delta := (seq - c.expectedSeq + seqnumModulo) % seqnumModulo
	if delta != 0 {
		c.stats.PacketsLost += uint64(delta)
		metrics.LostPacketsTotal.Add(float64(delta))
		log.GetLogger().WithFields(map[string]interface{}{
			"frag_id":  c.fragID,
			"expected": c.expectedSeq,
			"received": seq,
		}).Warn("sequence-number gap")
	}
	c.expectedSeq = (seq + 1) % seqnumModulo
	return true
}
