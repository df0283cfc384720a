package rle

// Stats carries the per-context and aggregate counters of a transmitter or
// receiver. Contexts are single-writer, so plain integers suffice; aggregate
// views are computed on demand.
type Stats struct {
	PacketsIn      uint64 // SDUs submitted (tx) or SDU reassemblies begun (rx)
	PacketsSent    uint64 // SDUs fully emitted as PPDUs (tx only)
	PacketsOK      uint64 // SDUs completed successfully
	PacketsDropped uint64 // SDUs abandoned on error
	PacketsLost    uint64 // rx only: sequence-number gap sizes plus one per abandoned reassembly

	BytesIn      uint64
	BytesSent    uint64
	BytesOK      uint64
	BytesDropped uint64
}

func (s *Stats) add(o Stats) {
	s.PacketsIn += o.PacketsIn
	s.PacketsSent += o.PacketsSent
	s.PacketsOK += o.PacketsOK
	s.PacketsDropped += o.PacketsDropped
	s.PacketsLost += o.PacketsLost
	s.BytesIn += o.BytesIn
	s.BytesSent += o.BytesSent
	s.BytesOK += o.BytesOK
	s.BytesDropped += o.BytesDropped
}
