package rle

import "fmt"

// DefaultMaxFragments caps how many PPDUs a single ALPDU may be split into
// when the configuration does not say otherwise.
const DefaultMaxFragments = 255

// maxLabelSize bounds every label-size field of the configuration.
const maxLabelSize = 15

// Config is shared by the transmitter and the receiver of a link. Both ends
// must agree on every field for reassembly to succeed.
type Config struct {
	// AllowPtypeOmission omits the ALPDU protocol-type field when the SDU
	// protocol type matches ImplicitProtocolType.
	AllowPtypeOmission bool

	// UseCompressedPtype encodes the protocol type as a 1-byte compressed
	// code (with a 3-byte fallback for unknown types) instead of the plain
	// 2-byte field.
	UseCompressedPtype bool

	// AllowALPDUCRC selects the 4-byte CRC trailer for fragmented ALPDUs.
	AllowALPDUCRC bool

	// AllowALPDUSeqnum selects the 1-byte sequence-number trailer. It must
	// be set whenever AllowALPDUCRC is not.
	AllowALPDUSeqnum bool

	// UseExplicitPayloadHeaderMap is reserved and must be false.
	UseExplicitPayloadHeaderMap bool

	// ImplicitProtocolType is the compressed code assumed when the
	// protocol-type field is omitted. The special value 0x30 means "IPv4 or
	// IPv6, decided from the first payload nibble".
	ImplicitProtocolType uint8

	// Label sizes, each 0 to 15 bytes.
	ImplicitPPDULabelSize    uint8
	ImplicitPayloadLabelSize uint8
	Type0ALPDULabelSize      uint8

	// PayloadLabel is prepended to every packed FPDU; its length must equal
	// ImplicitPayloadLabelSize.
	PayloadLabel []byte

	// MaxFragments caps the number of PPDUs one ALPDU may be fragmented
	// into. Zero means DefaultMaxFragments.
	MaxFragments int
}

// DefaultConfig returns the configuration librle ships with: sequence-number
// trailers and the dual IPv4/IPv6 implicit protocol type.
func DefaultConfig() Config {
	return Config{
		AllowALPDUSeqnum:     true,
		ImplicitProtocolType: ptypeCompIP,
	}
}

// Validate rejects illegal option combinations. A Config that does not
// validate is refused by NewTransmitter and NewReceiver.
func (c Config) Validate() error {
	if c.UseExplicitPayloadHeaderMap {
		return fmt.Errorf("%w: explicit payload header map is reserved", ErrInvalidConfig)
	}
	if !c.AllowALPDUCRC && !c.AllowALPDUSeqnum {
		return fmt.Errorf("%w: neither CRC nor sequence-number trailer allowed", ErrInvalidConfig)
	}
	if !validImplicitPtype(c.ImplicitProtocolType) {
		return fmt.Errorf("%w: implicit protocol type 0x%02x is not a defined compressed code",
			ErrInvalidConfig, c.ImplicitProtocolType)
	}
	if c.ImplicitPPDULabelSize > maxLabelSize ||
		c.ImplicitPayloadLabelSize > maxLabelSize ||
		c.Type0ALPDULabelSize > maxLabelSize {
		return fmt.Errorf("%w: label size exceeds %d", ErrInvalidConfig, maxLabelSize)
	}
	if c.ImplicitPPDULabelSize != 0 || c.Type0ALPDULabelSize != 0 {
		// No API surface provides the label content, so non-empty PPDU and
		// ALPDU labels cannot be emitted or stripped.
		return fmt.Errorf("%w: PPDU and ALPDU labels are not supported", ErrInvalidConfig)
	}
	if len(c.PayloadLabel) != int(c.ImplicitPayloadLabelSize) {
		return fmt.Errorf("%w: payload label is %d bytes, configured size is %d",
			ErrInvalidConfig, len(c.PayloadLabel), c.ImplicitPayloadLabelSize)
	}
	if c.MaxFragments < 0 {
		return fmt.Errorf("%w: negative fragment cap", ErrInvalidConfig)
	}
	return nil
}

// trailerLen is the ALPDU trailer size selected by the configuration.
func (c Config) trailerLen() int {
	if c.AllowALPDUCRC {
		return crcTrailerLen
	}
	return seqnumTrailerLen
}

func (c Config) fragmentCap() int {
	if c.MaxFragments == 0 {
		return DefaultMaxFragments
	}
	return c.MaxFragments
}
