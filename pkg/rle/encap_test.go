package rle

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func testContext(t *testing.T, conf Config) *txContext {
	t.Helper()
	if err := conf.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	return newTxContext(0, conf)
}

// makeVLANIPFrame builds an Ethernet/VLAN frame: 14-byte Ethernet header
// with EtherType 0x8100, 2-byte TCI, 2-byte inner protocol type, then ipLen
// payload bytes starting with versionByte.
func makeVLANIPFrame(inner uint16, versionByte byte, ipLen int) []byte {
	frame := make([]byte, etherHeaderLen+vlanHeaderLen+ipLen)
	binary.BigEndian.PutUint16(frame[etherTypeOffset:], PtypeVLAN)
	binary.BigEndian.PutUint16(frame[14:], 0x0064) // TCI, VLAN id 100
	binary.BigEndian.PutUint16(frame[vlanPtypeOffset:], inner)
	frame[vlanPayloadOffset] = versionByte
	return frame
}

func TestEncapUncompressedIPv4(t *testing.T) {
	ctx := testContext(t, DefaultConfig())
	sdu := SDU{Payload: make([]byte, 100), ProtocolType: PtypeIPv4}
	if err := ctx.encapsulate(sdu); err != nil {
		t.Fatalf("encapsulate error: %v", err)
	}

	alpdu := ctx.buf.alpdu()
	if len(alpdu) != 102 {
		t.Fatalf("ALPDU length = %d; want 102", len(alpdu))
	}
	want := append([]byte{0x00, 0x08}, make([]byte, 100)...)
	if !bytes.Equal(alpdu, want) {
		t.Errorf("ALPDU = % x...; want 00 08 + 100 zero bytes", alpdu[:4])
	}
}

func TestEncapCompressedIPv4(t *testing.T) {
	conf := DefaultConfig()
	conf.UseCompressedPtype = true
	ctx := testContext(t, conf)
	if err := ctx.encapsulate(SDU{Payload: make([]byte, 100), ProtocolType: PtypeIPv4}); err != nil {
		t.Fatalf("encapsulate error: %v", err)
	}

	alpdu := ctx.buf.alpdu()
	if len(alpdu) != 101 {
		t.Fatalf("ALPDU length = %d; want 101", len(alpdu))
	}
	if alpdu[0] != 0x0d {
		t.Errorf("ALPDU header = 0x%02x; want 0x0d", alpdu[0])
	}
}

func TestEncapCompressedFallback(t *testing.T) {
	conf := DefaultConfig()
	conf.UseCompressedPtype = true
	ctx := testContext(t, conf)
	if err := ctx.encapsulate(SDU{Payload: make([]byte, 100), ProtocolType: 0x1234}); err != nil {
		t.Fatalf("encapsulate error: %v", err)
	}

	alpdu := ctx.buf.alpdu()
	if len(alpdu) != 103 {
		t.Fatalf("ALPDU length = %d; want 103", len(alpdu))
	}
	if !bytes.Equal(alpdu[:3], []byte{0xff, 0x34, 0x12}) {
		t.Errorf("ALPDU header = % x; want ff 34 12", alpdu[:3])
	}
}

func TestEncapOmittedIPv4(t *testing.T) {
	conf := DefaultConfig()
	conf.AllowPtypeOmission = true
	conf.ImplicitProtocolType = ptypeCompIPv4
	ctx := testContext(t, conf)
	if err := ctx.encapsulate(SDU{Payload: make([]byte, 100), ProtocolType: PtypeIPv4}); err != nil {
		t.Fatalf("encapsulate error: %v", err)
	}

	alpdu := ctx.buf.alpdu()
	if len(alpdu) != 100 {
		t.Fatalf("ALPDU length = %d; want 100 (no header)", len(alpdu))
	}
	if !ctx.ptypeSuppressed {
		t.Error("context should record the protocol type as suppressed")
	}
	if ctx.labelType != labelTypeImplicit {
		t.Errorf("label type = %d; want %d", ctx.labelType, labelTypeImplicit)
	}
}

func TestEncapOmittedL2SUsesSignalLabel(t *testing.T) {
	conf := DefaultConfig()
	conf.AllowPtypeOmission = true
	ctx := testContext(t, conf)
	if err := ctx.encapsulate(SDU{Payload: []byte{0x01}, ProtocolType: PtypeL2S}); err != nil {
		t.Fatalf("encapsulate error: %v", err)
	}
	if !ctx.ptypeSuppressed || ctx.labelType != labelTypeSignal {
		t.Errorf("suppressed=%v labelType=%d; want true/%d",
			ctx.ptypeSuppressed, ctx.labelType, labelTypeSignal)
	}
}

func TestEncapVLANPtypeSuppression(t *testing.T) {
	conf := DefaultConfig()
	conf.UseCompressedPtype = true
	ctx := testContext(t, conf)

	frame := makeVLANIPFrame(PtypeIPv4, 0x45, 20)
	if err := ctx.encapsulate(SDU{Payload: frame, ProtocolType: PtypeVLAN}); err != nil {
		t.Fatalf("encapsulate error: %v", err)
	}

	alpdu := ctx.buf.alpdu()
	if alpdu[0] != ptypeCompVLANNoPtype {
		t.Fatalf("ALPDU header = 0x%02x; want 0x31", alpdu[0])
	}
	// The 2-byte VLAN protocol-type field is elided.
	if len(alpdu) != 1+len(frame)-2 {
		t.Errorf("ALPDU length = %d; want %d", len(alpdu), 1+len(frame)-2)
	}
	if !bytes.Equal(alpdu[1:1+vlanPtypeOffset], frame[:vlanPtypeOffset]) {
		t.Error("bytes before the elided field were modified")
	}
	if !bytes.Equal(alpdu[1+vlanPtypeOffset:], frame[vlanPtypeOffset+2:]) {
		t.Error("bytes after the elided field were modified")
	}
}

func TestEncapVLANFallsBackOnMalformedFrame(t *testing.T) {
	conf := DefaultConfig()
	conf.UseCompressedPtype = true

	tests := []struct {
		name  string
		frame []byte
	}{
		{"too short", makeVLANIPFrame(PtypeIPv4, 0x45, 20)[:10]},
		{"inner not IP", makeVLANIPFrame(PtypeARP, 0x45, 20)},
		{"version mismatch", makeVLANIPFrame(PtypeIPv4, 0x65, 20)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := testContext(t, conf)
			if err := ctx.encapsulate(SDU{Payload: tt.frame, ProtocolType: PtypeVLAN}); err != nil {
				t.Fatalf("encapsulate error: %v", err)
			}
			alpdu := ctx.buf.alpdu()
			if alpdu[0] != ptypeCompVLAN {
				t.Errorf("ALPDU header = 0x%02x; want plain VLAN code 0x0f", alpdu[0])
			}
			if len(alpdu) != 1+len(tt.frame) {
				t.Errorf("ALPDU length = %d; want %d (SDU untouched)", len(alpdu), 1+len(tt.frame))
			}
		})
	}
}

func TestEncapSizeBoundary(t *testing.T) {
	ctx := testContext(t, DefaultConfig())

	if err := ctx.encapsulate(SDU{Payload: make([]byte, MaxSDUSize), ProtocolType: PtypeIPv4}); err != nil {
		t.Errorf("encapsulate(%d bytes) error: %v", MaxSDUSize, err)
	}
	err := ctx.encapsulate(SDU{Payload: make([]byte, MaxSDUSize+1), ProtocolType: PtypeIPv4})
	if !errors.Is(err, ErrSDUTooBig) {
		t.Errorf("encapsulate(%d bytes) error = %v; want ErrSDUTooBig", MaxSDUSize+1, err)
	}
}

func TestEncapNilPayload(t *testing.T) {
	ctx := testContext(t, DefaultConfig())
	if err := ctx.encapsulate(SDU{ProtocolType: PtypeIPv4}); !errors.Is(err, ErrNilBuffer) {
		t.Errorf("encapsulate(nil payload) error = %v; want ErrNilBuffer", err)
	}
}
