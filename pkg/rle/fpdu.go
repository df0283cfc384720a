package rle

// FPDU scanning. An FPDU is the payload-label prefix, a concatenation of
// PPDUs from offset 0, then zero padding. Padding starts at a zero byte in a
// PPDU-header position. One header is ambiguous under that rule: a CONT PPDU
// shorter than 32 bytes also has a zero first byte (its indicator bits are
// both 0 and the high length bits do not reach the first octet). Such a CONT
// always has a non-zero second byte, while padding is all zeros, so the
// scanner looks one byte further before declaring padding.

// ppduScanner walks the PPDUs of one FPDU lazily. Each slice aliases the
// FPDU buffer; only header-level consistency is checked here.
type ppduScanner struct {
	data []byte
	off  int
}

func newPPDUScanner(fpdu []byte, payloadLabelSize int) (*ppduScanner, error) {
	if len(fpdu) < payloadLabelSize {
		return nil, ErrNilBuffer
	}
	return &ppduScanner{data: fpdu, off: payloadLabelSize}, nil
}

// next returns the next PPDU slice and its decoded header. ok is false once
// padding or the end of the FPDU is reached.
func (s *ppduScanner) next() (ppdu []byte, hdr ppduHeader, ok bool, err error) {
	if s.off >= len(s.data) {
		return nil, ppduHeader{}, false, nil
	}
	if s.data[s.off] == 0 && (s.off+1 >= len(s.data) || s.data[s.off+1] == 0) {
		return nil, ppduHeader{}, false, nil
	}
	hdr, err = parsePPDUHeader(s.data[s.off:])
	if err != nil {
		if s.data[s.off] == 0 {
			// Zero first byte but not a consistent CONT header: padding
			// followed by unread garbage.
			return nil, ppduHeader{}, false, nil
		}
		return nil, ppduHeader{}, false, err
	}
	n := hdr.headerLen + hdr.length
	ppdu = s.data[s.off : s.off+n]
	s.off += n
	return ppdu, hdr, true, nil
}
