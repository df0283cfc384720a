package rle

// Uncompressed protocol types (EtherType values) with a dedicated
// compressed code.
const (
	PtypeL2S        = 0x0082 // level-2 signalling
	PtypeIPv4       = 0x0800
	PtypeARP        = 0x0806
	PtypeVLAN       = 0x8100
	PtypeQinQ       = 0x88a8
	PtypeQinQLegacy = 0x9100
	PtypeIPv6       = 0x86dd
)

// Compressed protocol-type codes.
const (
	ptypeCompIPv4        = 0x0d
	ptypeCompARP         = 0x0e
	ptypeCompVLAN        = 0x0f
	ptypeCompIPv6        = 0x11
	ptypeCompQinQ        = 0x19
	ptypeCompQinQLegacy  = 0x1a
	ptypeCompIP          = 0x30 // IPv4 or IPv6, decided from the version nibble
	ptypeCompVLANNoPtype = 0x31 // VLAN whose protocol-type field is suppressed
	ptypeCompL2S         = 0x42
	ptypeCompFallback    = 0xff // followed by the 2-byte uncompressed type
)

// compressPtype maps an uncompressed protocol type to its 1-byte compressed
// code. The second return value is false when only the 0xff fallback applies.
func compressPtype(ptype uint16) (uint8, bool) {
	switch ptype {
	case PtypeIPv4:
		return ptypeCompIPv4, true
	case PtypeIPv6:
		return ptypeCompIPv6, true
	case PtypeARP:
		return ptypeCompARP, true
	case PtypeVLAN:
		return ptypeCompVLAN, true
	case PtypeQinQ:
		return ptypeCompQinQ, true
	case PtypeQinQLegacy:
		return ptypeCompQinQLegacy, true
	case PtypeL2S:
		return ptypeCompL2S, true
	}
	return ptypeCompFallback, false
}

// decompressPtype maps a compressed code back to the uncompressed protocol
// type. The codes 0x30 and 0x31 need payload context and are resolved by
// resolveSDU instead; for them (and for unknown codes) ok is false.
func decompressPtype(code uint8) (uint16, bool) {
	switch code {
	case ptypeCompIPv4:
		return PtypeIPv4, true
	case ptypeCompIPv6:
		return PtypeIPv6, true
	case ptypeCompARP:
		return PtypeARP, true
	case ptypeCompVLAN:
		return PtypeVLAN, true
	case ptypeCompQinQ:
		return PtypeQinQ, true
	case ptypeCompQinQLegacy:
		return PtypeQinQLegacy, true
	case ptypeCompL2S:
		return PtypeL2S, true
	}
	return 0, false
}

// validImplicitPtype reports whether code may serve as the configured
// implicit protocol type. 0x31 is a wire-only marker and never implicit;
// undefined codes are rejected outright.
func validImplicitPtype(code uint8) bool {
	if code == ptypeCompIP {
		return true
	}
	_, ok := decompressPtype(code)
	return ok
}

// isSuppressible reports whether an SDU of the given protocol type can have
// its protocol-type field omitted under the given implicit code. L2S is
// always suppressible (signalled by ALPDU label type 3). VLAN under the
// implicit code 0x30 is deliberately not suppressible.
func isSuppressible(ptype uint16, implicit uint8) bool {
	switch ptype {
	case PtypeL2S:
		return true
	case PtypeVLAN:
		return implicit == ptypeCompVLAN
	case PtypeQinQ:
		return implicit == ptypeCompQinQ
	case PtypeQinQLegacy:
		return implicit == ptypeCompQinQLegacy
	case PtypeIPv4:
		return implicit == ptypeCompIPv4 || implicit == ptypeCompIP
	case PtypeIPv6:
		return implicit == ptypeCompIPv6 || implicit == ptypeCompIP
	case PtypeARP:
		return implicit == ptypeCompARP
	}
	return false
}

// ipVersionNibble returns the IP version encoded in the first payload byte.
func ipVersionNibble(b byte) uint8 {
	return (b >> 4) & 0x0f
}
