package rle

import (
	"encoding/binary"

	"icc.tech/rlelink/internal/log"
	"icc.tech/rlelink/internal/metrics"
)

// txContext is one of the transmitter's eight fragmentation contexts. A
// context is logically single-writer: the producer that took its fragment-id
// drives it until the END (or COMP) PPDU is out.
type txContext struct {
	fragID uint8
	conf   Config
	buf    *fragBuf

	nextSeq         uint8 // 3-bit sequence number for the next fragmented ALPDU
	fragmented      bool
	useCRC          bool
	pendingCRC      uint32
	fragCount       int
	labelType       uint8
	ptypeSuppressed bool
	compPtype       uint8

	stats Stats
}

func newTxContext(fragID uint8, conf Config) *txContext {
	return &txContext{fragID: fragID, conf: conf, buf: newFragBuf()}
}

// pending reports whether the context holds an unfinished ALPDU.
func (c *txContext) pending() bool {
	return c.buf.sduCopied && c.buf.remaining() > 0
}

// writeTrailer appends the ALPDU trailer the moment the ALPDU is first
// split. Complete PPDUs never carry one. The sequence number advances here,
// so interleaved unfragmented SDUs do not consume sequence space.
func (c *txContext) writeTrailer() {
	if c.useCRC {
		var t [crcTrailerLen]byte
		binary.LittleEndian.PutUint32(t[:], c.pendingCRC)
		c.buf.appendTrailer(t[:])
		return
	}
	c.buf.appendTrailer([]byte{c.nextSeq & 0x07})
	c.nextSeq = (c.nextSeq + 1) % seqnumModulo
}

// emitPPDU produces exactly one PPDU into dst, whose length is the burst
// size, and advances the cursor. done is true when the ALPDU is fully
// consumed (END or COMP emitted) and the fragment-id can be released.
func (c *txContext) emitPPDU(dst []byte) (n int, done bool, err error) {
	if !c.buf.sduCopied {
		return 0, false, ErrNoALPDU
	}
	burst := len(dst)

	if !c.fragmented {
		alpdu := c.buf.alpduLen()
		if alpdu+compHeaderLen <= burst && alpdu <= maxPPDUPayloadLen {
			putCompHeader(dst, c.labelType, c.ptypeSuppressed, alpdu)
			copy(dst[compHeaderLen:], c.buf.alpdu())
			c.buf.take(alpdu)
			c.finishALPDU(compHeaderLen + alpdu)
			metrics.PPDUsEmittedTotal.WithLabelValues(ppduComp.String()).Inc()
			return compHeaderLen + alpdu, true, nil
		}

		if burst < minStartBurst {
			return 0, false, ErrBurstTooSmall
		}
		c.writeTrailer()
		c.fragmented = true
		total := c.buf.alpduLen()
		fragLen := minInt(burst-startHeaderLen, maxPPDUPayloadLen, c.buf.remaining())
		putStartHeader(dst, c.labelType, c.ptypeSuppressed,
			fragLen, c.fragID, total, c.useCRC)
		copy(dst[startHeaderLen:], c.buf.take(fragLen))
		c.fragCount = 1
		c.stats.BytesSent += uint64(startHeaderLen + fragLen)
		metrics.PPDUsEmittedTotal.WithLabelValues(ppduStart.String()).Inc()
		return startHeaderLen + fragLen, false, nil
	}

	if burst < minContEndBurst {
		return 0, false, ErrBurstTooSmall
	}
	if c.fragCount >= c.conf.fragmentCap() {
		return 0, false, ErrTooManyFragments
	}

	remaining := c.buf.remaining()
	if remaining <= burst-contEndHeaderLen && remaining <= maxPPDUPayloadLen {
		putContEndHeader(dst, true, remaining, c.fragID)
		copy(dst[contEndHeaderLen:], c.buf.take(remaining))
		c.fragCount++
		c.finishALPDU(contEndHeaderLen + remaining)
		metrics.PPDUsEmittedTotal.WithLabelValues(ppduEnd.String()).Inc()
		return contEndHeaderLen + remaining, true, nil
	}

	fragLen := minInt(burst-contEndHeaderLen, maxPPDUPayloadLen)
	putContEndHeader(dst, false, fragLen, c.fragID)
	copy(dst[contEndHeaderLen:], c.buf.take(fragLen))
	c.fragCount++
	c.stats.BytesSent += uint64(contEndHeaderLen + fragLen)
	metrics.PPDUsEmittedTotal.WithLabelValues(ppduCont.String()).Inc()
	return contEndHeaderLen + fragLen, false, nil
}

// finishALPDU closes out the accounting for a fully emitted ALPDU.
func (c *txContext) finishALPDU(lastPPDULen int) {
	c.stats.BytesSent += uint64(lastPPDULen)
	c.stats.PacketsSent++
	c.stats.PacketsOK++
	c.buf.sduCopied = false
	log.GetLogger().WithField("frag_id", c.fragID).Debug("ALPDU fully emitted")
}

// drop abandons the in-progress ALPDU after an unrecoverable error.
func (c *txContext) drop() {
	c.stats.PacketsDropped++
	c.stats.BytesDropped += uint64(c.buf.sduEnd - c.buf.sduStart)
	c.buf.sduCopied = false
	metrics.SDUsDroppedTotal.WithLabelValues("tx").Inc()
}

func minInt(vals ...int) int {
	m := vals[0]
	for _, v := range vals[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
