package rle

// fragBuf is the zero-copy fragmentation buffer: one contiguous allocation
// sized for the worst-case ALPDU, with integer indices instead of the raw
// pointers the wire format was designed around. The SDU is copied in once at
// a fixed offset leaving headroom for the ALPDU header; the header is
// prepended and the trailer appended in place, and the fragmentation engine
// walks cursor from head to tail.
type fragBuf struct {
	buf []byte

	head     int // first ALPDU byte (header start)
	sduStart int // first SDU byte
	sduEnd   int // one past the last SDU byte
	tail     int // one past the last ALPDU byte (trailer end)
	cursor   int // next byte to emit

	initialised bool
	sduCopied   bool
}

func newFragBuf() *fragBuf {
	return &fragBuf{buf: make([]byte, maxALPDULen)}
}

func (b *fragBuf) reset() {
	b.head = maxALPDUHeaderLen
	b.sduStart = maxALPDUHeaderLen
	b.sduEnd = maxALPDUHeaderLen
	b.tail = maxALPDUHeaderLen
	b.cursor = maxALPDUHeaderLen
	b.initialised = true
	b.sduCopied = false
}

// putSDU copies the SDU bytes in at the fixed headroom offset. chunks allows
// the VLAN special case to copy a payload with its protocol-type field
// elided without an intermediate allocation.
func (b *fragBuf) putSDU(chunks ...[]byte) {
	off := b.sduStart
	for _, c := range chunks {
		off += copy(b.buf[off:], c)
	}
	b.sduEnd = off
	b.tail = off
	b.cursor = b.head
	b.sduCopied = true
}

// prependHeader writes the ALPDU header into the headroom.
func (b *fragBuf) prependHeader(hdr []byte) {
	b.head = b.sduStart - len(hdr)
	copy(b.buf[b.head:], hdr)
	b.cursor = b.head
}

// appendTrailer reserves and fills the trailer bytes after the SDU.
func (b *fragBuf) appendTrailer(trailer []byte) {
	copy(b.buf[b.tail:], trailer)
	b.tail += len(trailer)
}

// alpduLen is the current ALPDU length: header + SDU + any trailer.
func (b *fragBuf) alpduLen() int { return b.tail - b.head }

// remaining is the number of not-yet-emitted ALPDU bytes.
func (b *fragBuf) remaining() int { return b.tail - b.cursor }

// alpdu returns the whole ALPDU as a slice into the buffer.
func (b *fragBuf) alpdu() []byte { return b.buf[b.head:b.tail] }

// header returns the ALPDU header bytes.
func (b *fragBuf) header() []byte { return b.buf[b.head:b.sduStart] }

// take returns the next n ALPDU bytes and advances the cursor.
func (b *fragBuf) take(n int) []byte {
	p := b.buf[b.cursor : b.cursor+n]
	b.cursor += n
	return p
}
