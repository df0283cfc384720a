package rle

import (
	"encoding/binary"
	"fmt"

	"icc.tech/rlelink/internal/log"
)

// Ethernet/VLAN offsets used by the VLAN protocol-type suppression.
const (
	etherHeaderLen     = 14
	etherTypeOffset    = 12
	vlanHeaderLen      = 4
	vlanTCILen         = 2
	vlanPtypeOffset    = etherHeaderLen + vlanTCILen // 16
	vlanPayloadOffset  = etherHeaderLen + vlanHeaderLen
	minVLANIPFrameLen  = vlanPayloadOffset + 1
	compVLANIPFrameCut = vlanPtypeOffset // bytes kept before the elided field
)

// alpduPlan is the outcome of protocol-type handling for one SDU: the ALPDU
// header bytes, the payload chunks to copy (the SDU, possibly with the VLAN
// protocol-type field elided), and the PPDU header flags announcing it.
type alpduPlan struct {
	header          []byte
	chunks          [][]byte
	labelType       uint8
	ptypeSuppressed bool
	compPtype       uint8
}

// vlanPtypeSuppressible reports whether the SDU is an Ethernet/VLAN frame
// carrying IPv4 or IPv6, i.e. whether its VLAN protocol-type field can be
// elided and rebuilt by the receiver from the IP version nibble.
func vlanPtypeSuppressible(p []byte) bool {
	if len(p) < minVLANIPFrameLen {
		return false
	}
	if binary.BigEndian.Uint16(p[etherTypeOffset:]) != PtypeVLAN {
		return false
	}
	inner := binary.BigEndian.Uint16(p[vlanPtypeOffset:])
	switch ipVersionNibble(p[vlanPayloadOffset]) {
	case 4:
		return inner == PtypeIPv4
	case 6:
		return inner == PtypeIPv6
	}
	return false
}

// planALPDU decides how the protocol type of sdu is carried: omitted,
// compressed (with the VLAN/IP and fallback special cases), or passthrough.
func planALPDU(conf Config, sdu SDU) alpduPlan {
	plan := alpduPlan{chunks: [][]byte{sdu.Payload}, labelType: labelTypeImplicit}

	if conf.AllowPtypeOmission && isSuppressible(sdu.ProtocolType, conf.ImplicitProtocolType) {
		plan.ptypeSuppressed = true
		if sdu.ProtocolType == PtypeL2S {
			plan.labelType = labelTypeSignal
			plan.compPtype = ptypeCompL2S
		} else {
			plan.compPtype = conf.ImplicitProtocolType
		}
		return plan
	}

	if conf.UseCompressedPtype {
		if sdu.ProtocolType == PtypeVLAN && vlanPtypeSuppressible(sdu.Payload) {
			// VLAN with embedded IPv4/IPv6: drop the 2-byte protocol-type
			// field from the VLAN header, the receiver rebuilds it from the
			// IP version nibble.
			plan.header = []byte{ptypeCompVLANNoPtype}
			plan.compPtype = ptypeCompVLANNoPtype
			plan.chunks = [][]byte{
				sdu.Payload[:compVLANIPFrameCut],
				sdu.Payload[vlanPtypeOffset+2:],
			}
			return plan
		}
		if code, ok := compressPtype(sdu.ProtocolType); ok {
			plan.header = []byte{code}
			plan.compPtype = code
			return plan
		}
		plan.header = []byte{
			ptypeCompFallback,
			byte(sdu.ProtocolType), byte(sdu.ProtocolType >> 8),
		}
		plan.compPtype = ptypeCompFallback
		return plan
	}

	plan.header = []byte{byte(sdu.ProtocolType), byte(sdu.ProtocolType >> 8)}
	return plan
}

// encapsulate builds a well-formed ALPDU for sdu inside the context's
// fragmentation buffer. The trailer is not written here: whether the ALPDU
// gets one at all is only known once the fragmentation engine decides
// between a Complete PPDU and a START/CONT/END split. The trailer CRC is
// precomputed, though, because it covers the original SDU bytes and the
// VLAN special case stores an elided copy.
func (c *txContext) encapsulate(sdu SDU) error {
	if sdu.Payload == nil {
		return ErrNilBuffer
	}
	if len(sdu.Payload) > MaxSDUSize {
		return fmt.Errorf("%w: %d bytes, maximum %d", ErrSDUTooBig, len(sdu.Payload), MaxSDUSize)
	}

	plan := planALPDU(c.conf, sdu)

	c.buf.reset()
	c.buf.putSDU(plan.chunks...)
	c.buf.prependHeader(plan.header)

	c.labelType = plan.labelType
	c.ptypeSuppressed = plan.ptypeSuppressed
	c.compPtype = plan.compPtype
	c.fragmented = false
	c.useCRC = c.conf.AllowALPDUCRC
	c.fragCount = 0
	if c.useCRC {
		c.pendingCRC = alpduCRC(plan.header, sdu.Payload)
	}

	c.stats.PacketsIn++
	c.stats.BytesIn += uint64(len(sdu.Payload))

	log.GetLogger().WithFields(map[string]interface{}{
		"frag_id":    c.fragID,
		"sdu_len":    len(sdu.Payload),
		"ptype":      fmt.Sprintf("0x%04x", sdu.ProtocolType),
		"alpdu_len":  c.buf.alpduLen(),
		"suppressed": plan.ptypeSuppressed,
	}).Debug("SDU encapsulated")
	return nil
}
