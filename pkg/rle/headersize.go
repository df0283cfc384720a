package rle

import "fmt"

// FPDUType identifies the outer frame class for the header-overhead query.
type FPDUType int

const (
	FPDUTraffic FPDUType = iota
	FPDUTrafficControl
	FPDUControl
	FPDULogon
)

func (t FPDUType) String() string {
	switch t {
	case FPDUTraffic:
		return "traffic"
	case FPDUTrafficControl:
		return "traffic-control"
	case FPDUControl:
		return "control"
	case FPDULogon:
		return "logon"
	}
	return fmt.Sprintf("FPDUType(%d)", int(t))
}

// Fixed per-class FPDU header overheads.
const (
	logonFPDUHeaderSize          = 6
	controlFPDUHeaderSize        = 3
	trafficControlFPDUHeaderSize = 5
)

// HeaderSize returns the FPDU header overhead for the given frame class
// under the given configuration. Traffic FPDUs carry a protocol-type field
// whose size depends on the SDU seen at runtime, so their overhead cannot be
// answered from the configuration alone and ErrHeaderSizeNonDeterministic is
// returned.
func HeaderSize(conf Config, fpduType FPDUType) (int, error) {
	if err := conf.Validate(); err != nil {
		return 0, err
	}
	switch fpduType {
	case FPDULogon:
		return logonFPDUHeaderSize, nil
	case FPDUControl:
		return controlFPDUHeaderSize, nil
	case FPDUTrafficControl:
		return trafficControlFPDUHeaderSize, nil
	case FPDUTraffic:
		return 0, ErrHeaderSizeNonDeterministic
	}
	return 0, fmt.Errorf("%w: unknown FPDU type %d", ErrInvalidConfig, int(fpduType))
}
