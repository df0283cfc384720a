package rle

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

// fragmentSDU runs one SDU through a fresh transmitter context and returns
// its PPDUs.
func fragmentSDU(t *testing.T, conf Config, sdu SDU, burst int) [][]byte {
	t.Helper()
	ctx := testContext(t, conf)
	if err := ctx.encapsulate(sdu); err != nil {
		t.Fatalf("encapsulate error: %v", err)
	}
	return emitAll(t, ctx, burst)
}

// feed dispatches raw PPDUs into a reassembly context, returning whatever
// SDUs complete.
func feed(t *testing.T, ctx *rxContext, ppdus [][]byte) []SDU {
	t.Helper()
	var out []SDU
	for i, p := range ppdus {
		hdr, err := parsePPDUHeader(p)
		if err != nil {
			t.Fatalf("PPDU %d malformed: %v", i, err)
		}
		switch hdr.kind {
		case ppduStart:
			ctx.handleStart(hdr, p)
		case ppduCont:
			ctx.handleCont(hdr, p)
		case ppduEnd:
			if sdu, ok := ctx.handleEnd(hdr, p); ok {
				out = append(out, sdu)
			}
		default:
			t.Fatalf("PPDU %d has unexpected kind %v", i, hdr.kind)
		}
	}
	return out
}

func testRxContext(t *testing.T, conf Config) *rxContext {
	t.Helper()
	if err := conf.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	return newRxContext(0, conf)
}

func patternSDU(n int) SDU {
	payload := make([]byte, n)
	for i := range payload {
		payload[i] = byte(i % 251)
	}
	return SDU{Payload: payload, ProtocolType: PtypeIPv4}
}

func TestReassembleFragmented(t *testing.T) {
	conf := DefaultConfig()
	in := patternSDU(500)
	ppdus := fragmentSDU(t, conf, in, 64)

	ctx := testRxContext(t, conf)
	out := feed(t, ctx, ppdus)
	if len(out) != 1 {
		t.Fatalf("delivered %d SDUs; want 1", len(out))
	}
	if !bytes.Equal(out[0].Payload, in.Payload) || out[0].ProtocolType != in.ProtocolType {
		t.Errorf("delivered SDU differs: %d bytes ptype 0x%04x",
			len(out[0].Payload), out[0].ProtocolType)
	}
	if ctx.stats.PacketsOK != 1 || ctx.stats.PacketsDropped != 0 {
		t.Errorf("stats = %+v", ctx.stats)
	}
}

func TestContOnFreeContext(t *testing.T) {
	ctx := testRxContext(t, DefaultConfig())
	cont := make([]byte, contEndHeaderLen+4)
	putContEndHeader(cont, false, 4, 0)
	hdr, _ := parsePPDUHeader(cont)

	ctx.handleCont(hdr, cont)
	if ctx.stats.PacketsDropped != 1 || ctx.inProgress {
		t.Errorf("stats = %+v inProgress=%v; want 1 dropped, still free",
			ctx.stats, ctx.inProgress)
	}
}

func TestEndOnFreeContext(t *testing.T) {
	ctx := testRxContext(t, DefaultConfig())
	end := make([]byte, contEndHeaderLen+4)
	putContEndHeader(end, true, 4, 0)
	hdr, _ := parsePPDUHeader(end)

	if _, ok := ctx.handleEnd(hdr, end); ok {
		t.Error("END on a free context delivered an SDU")
	}
	if ctx.stats.PacketsDropped != 1 {
		t.Errorf("dropped = %d; want 1", ctx.stats.PacketsDropped)
	}
}

func TestStartOnBusyContext(t *testing.T) {
	conf := DefaultConfig()
	first := fragmentSDU(t, conf, patternSDU(300), 64)
	second := fragmentSDU(t, conf, patternSDU(200), 64)

	ctx := testRxContext(t, conf)
	// START + one CONT of the first SDU, then the full second SDU.
	feed(t, ctx, first[:2])
	out := feed(t, ctx, second)

	if len(out) != 1 || len(out[0].Payload) != 200 {
		t.Fatalf("delivered %d SDUs; want the 200-byte second SDU", len(out))
	}
	if ctx.stats.PacketsDropped != 1 || ctx.stats.PacketsLost < 1 {
		t.Errorf("stats = %+v; want first SDU counted dropped and lost", ctx.stats)
	}
}

func TestContBeyondDeclaredLength(t *testing.T) {
	conf := DefaultConfig()
	ppdus := fragmentSDU(t, conf, patternSDU(100), 64)
	ctx := testRxContext(t, conf)

	feed(t, ctx, ppdus[:1])

	// A rogue CONT larger than what the START declared as remaining.
	rogue := make([]byte, contEndHeaderLen+200)
	putContEndHeader(rogue, false, 200, 0)
	hdr, _ := parsePPDUHeader(rogue)
	ctx.handleCont(hdr, rogue)

	if ctx.inProgress || ctx.stats.PacketsDropped != 1 {
		t.Errorf("stats = %+v inProgress=%v; want context dropped", ctx.stats, ctx.inProgress)
	}
}

func TestEndWithMissingBytes(t *testing.T) {
	conf := DefaultConfig()
	ppdus := fragmentSDU(t, conf, patternSDU(300), 64)
	if len(ppdus) < 3 {
		t.Fatalf("need at least 3 PPDUs, got %d", len(ppdus))
	}
	ctx := testRxContext(t, conf)

	// Drop one CONT in the middle.
	gappy := append([][]byte{}, ppdus[0])
	gappy = append(gappy, ppdus[2:]...)
	out := feed(t, ctx, gappy)

	if len(out) != 0 {
		t.Fatalf("delivered %d SDUs from an incomplete reassembly", len(out))
	}
	if ctx.stats.PacketsDropped != 1 || ctx.stats.PacketsLost != 1 {
		t.Errorf("stats = %+v; want 1 dropped, 1 lost", ctx.stats)
	}
}

func TestSeqnumGapCountsLost(t *testing.T) {
	conf := DefaultConfig()
	tx := testContext(t, conf)
	ctx := testRxContext(t, conf)

	sduPPDUs := func() [][]byte {
		if err := tx.encapsulate(patternSDU(100)); err != nil {
			t.Fatal(err)
		}
		return emitAll(t, tx, 42)
	}

	first := sduPPDUs()  // seq 0
	second := sduPPDUs() // seq 1
	third := sduPPDUs()  // seq 2

	out := feed(t, ctx, first)
	out = append(out, feed(t, ctx, third)...) // second SDU never arrives
	_ = second

	if len(out) != 2 {
		t.Fatalf("delivered %d SDUs; want 2", len(out))
	}
	if ctx.stats.PacketsLost != 1 {
		t.Errorf("lost = %d; want 1 from the sequence gap", ctx.stats.PacketsLost)
	}

	// No gap afterwards: counters must not move.
	fourth := sduPPDUs() // seq 3
	out = feed(t, ctx, fourth)
	if len(out) != 1 || ctx.stats.PacketsLost != 1 {
		t.Errorf("after in-sequence SDU: delivered=%d lost=%d; want 1 and 1",
			len(out), ctx.stats.PacketsLost)
	}
}

func TestCRCBitFlipDropsSDU(t *testing.T) {
	conf := DefaultConfig()
	conf.AllowALPDUCRC = true
	conf.AllowALPDUSeqnum = false

	ppdus := fragmentSDU(t, conf, patternSDU(300), 64)
	// Flip one payload bit in a CONT PPDU.
	ppdus[1][contEndHeaderLen+5] ^= 0x10

	ctx := testRxContext(t, conf)
	out := feed(t, ctx, ppdus)
	if len(out) != 0 {
		t.Fatal("corrupted SDU was delivered")
	}
	if ctx.stats.PacketsDropped != 1 {
		t.Errorf("dropped = %d; want 1", ctx.stats.PacketsDropped)
	}
}

func TestImplicitIPResolution(t *testing.T) {
	conf := DefaultConfig()
	conf.AllowPtypeOmission = true // implicit 0x30: IPv4 or IPv6 by nibble

	tests := []struct {
		name      string
		firstByte byte
		ptype     uint16
	}{
		{"IPv4", 0x45, PtypeIPv4},
		{"IPv6", 0x60, PtypeIPv6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := make([]byte, 80)
			payload[0] = tt.firstByte
			in := SDU{Payload: payload, ProtocolType: tt.ptype}

			ppdus := fragmentSDU(t, conf, in, 32)
			ctx := testRxContext(t, conf)
			out := feed(t, ctx, ppdus)
			if len(out) != 1 {
				t.Fatalf("delivered %d SDUs; want 1", len(out))
			}
			if out[0].ProtocolType != tt.ptype {
				t.Errorf("protocol type = 0x%04x; want 0x%04x", out[0].ProtocolType, tt.ptype)
			}
			if !bytes.Equal(out[0].Payload, payload) {
				t.Error("payload differs")
			}
		})
	}
}

func TestInsertVLANPtype(t *testing.T) {
	// Suppressed form: Ethernet header + TCI, protocol-type field elided.
	frame := makeVLANIPFrame(PtypeIPv4, 0x45, 20)
	elided := append([]byte(nil), frame[:vlanPtypeOffset]...)
	elided = append(elided, frame[vlanPtypeOffset+2:]...)

	sdu, err := insertVLANPtype(elided)
	if err != nil {
		t.Fatalf("insertVLANPtype error: %v", err)
	}
	if sdu.ProtocolType != PtypeVLAN {
		t.Errorf("protocol type = 0x%04x; want 0x8100", sdu.ProtocolType)
	}
	if !bytes.Equal(sdu.Payload, frame) {
		t.Errorf("reconstructed frame differs from the original")
	}
	if got := binary.BigEndian.Uint16(sdu.Payload[vlanPtypeOffset:]); got != PtypeIPv4 {
		t.Errorf("restored VLAN protocol type = 0x%04x; want 0x0800", got)
	}
}

func TestInsertVLANPtypeIPv6(t *testing.T) {
	frame := makeVLANIPFrame(PtypeIPv6, 0x60, 40)
	elided := append([]byte(nil), frame[:vlanPtypeOffset]...)
	elided = append(elided, frame[vlanPtypeOffset+2:]...)

	sdu, err := insertVLANPtype(elided)
	if err != nil {
		t.Fatalf("insertVLANPtype error: %v", err)
	}
	if got := binary.BigEndian.Uint16(sdu.Payload[vlanPtypeOffset:]); got != PtypeIPv6 {
		t.Errorf("restored VLAN protocol type = 0x%04x; want 0x86dd", got)
	}
}

func TestInsertVLANPtypeMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  func() []byte
	}{
		{"too short", func() []byte { return make([]byte, vlanPtypeOffset) }},
		{"outer not VLAN", func() []byte {
			raw := make([]byte, 32)
			binary.BigEndian.PutUint16(raw[etherTypeOffset:], PtypeIPv4)
			raw[vlanPtypeOffset] = 0x45
			return raw
		}},
		{"bad IP version", func() []byte {
			raw := make([]byte, 32)
			binary.BigEndian.PutUint16(raw[etherTypeOffset:], PtypeVLAN)
			raw[vlanPtypeOffset] = 0x25
			return raw
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := insertVLANPtype(tt.raw()); !errors.Is(err, ErrVLANReconstruct) {
				t.Errorf("error = %v; want ErrVLANReconstruct", err)
			}
		})
	}
}

func TestVLANSuppressedRoundtripFragmented(t *testing.T) {
	conf := DefaultConfig()
	conf.UseCompressedPtype = true

	frame := makeVLANIPFrame(PtypeIPv4, 0x45, 60)
	in := SDU{Payload: frame, ProtocolType: PtypeVLAN}

	ppdus := fragmentSDU(t, conf, in, 24)
	ctx := testRxContext(t, conf)
	out := feed(t, ctx, ppdus)
	if len(out) != 1 {
		t.Fatalf("delivered %d SDUs; want 1", len(out))
	}
	if out[0].ProtocolType != PtypeVLAN {
		t.Errorf("protocol type = 0x%04x; want 0x8100", out[0].ProtocolType)
	}
	if !bytes.Equal(out[0].Payload, frame) {
		t.Error("reconstructed frame differs: the 2-byte protocol type was not restored")
	}
}
