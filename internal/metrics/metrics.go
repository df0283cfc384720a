// Package metrics implements Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SDUsEncapsulatedTotal counts SDUs accepted by a transmitter.
	SDUsEncapsulatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rlelink_sdus_encapsulated_total",
			Help: "Total number of SDUs encapsulated into ALPDUs",
		},
	)

	// SDUsDeliveredTotal counts SDUs reassembled and delivered by a receiver.
	SDUsDeliveredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rlelink_sdus_delivered_total",
			Help: "Total number of SDUs reassembled and delivered",
		},
	)

	// SDUsDroppedTotal counts SDUs abandoned on error, by side.
	SDUsDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rlelink_sdus_dropped_total",
			Help: "Total number of SDUs dropped on protocol or validation errors",
		},
		[]string{"side"},
	)

	// PPDUsEmittedTotal counts emitted PPDUs by kind (COMP/START/CONT/END).
	PPDUsEmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rlelink_ppdus_emitted_total",
			Help: "Total number of PPDUs emitted by the fragmentation engine",
		},
		[]string{"kind"},
	)

	// FPDUsPackedTotal counts FPDUs produced by transmitters.
	FPDUsPackedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rlelink_fpdus_packed_total",
			Help: "Total number of FPDUs packed",
		},
	)

	// FPDUsUnpackedTotal counts FPDUs scanned by receivers.
	FPDUsUnpackedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rlelink_fpdus_unpacked_total",
			Help: "Total number of FPDUs unpacked",
		},
	)

	// LostPacketsTotal counts peer SDUs inferred lost from seqnum gaps.
	LostPacketsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rlelink_lost_packets_total",
			Help: "Total number of peer SDUs inferred lost from sequence-number gaps",
		},
	)
)
