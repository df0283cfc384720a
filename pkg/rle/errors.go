// Package rle implements the Return Link Encapsulation (RLE) protocol of
// ETSI TS 103 179 / EN 301 545-2: SDUs are wrapped into ALPDUs, optionally
// fragmented into PPDUs across eight fragment-id contexts, and packed into
// fixed-size FPDU bursts. The receiver side reverses the pipeline.
package rle

import "errors"

// Sentinel errors returned by the codec. Callers match with errors.Is.
var (
	// Input validation
	ErrNilBuffer     = errors.New("rle: nil or empty buffer")
	ErrInvalidConfig = errors.New("rle: invalid configuration")
	ErrSDUTooBig     = errors.New("rle: SDU exceeds maximum size")

	// Capacity
	ErrContextBusy      = errors.New("rle: fragment context already in use")
	ErrNoALPDU          = errors.New("rle: no ALPDU pending on context")
	ErrBurstTooSmall    = errors.New("rle: burst too small for a fragment")
	ErrTooManyFragments = errors.New("rle: fragment count cap exceeded")

	// Protocol violations (receive side)
	ErrInvalidPPDU       = errors.New("rle: malformed PPDU")
	ErrInvalidTransition = errors.New("rle: invalid reassembly transition")
	ErrTrailerMismatch   = errors.New("rle: ALPDU trailer mismatch")
	ErrLengthOverflow    = errors.New("rle: declared ALPDU length exceeded")
	ErrVLANReconstruct   = errors.New("rle: VLAN protocol type reconstruction failed")

	// Header-overhead query
	ErrHeaderSizeNonDeterministic = errors.New(
		"rle: traffic FPDU header size depends on runtime protocol type")
)
