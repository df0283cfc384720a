package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/spf13/cobra"

	"icc.tech/rlelink/internal/log"
	"icc.tech/rlelink/pkg/rle"
)

var (
	encapInput  string
	encapOutput string
)

var encapCmd = &cobra.Command{
	Use:   "encap",
	Short: "Encapsulate Ethernet frames from a pcap file into an FPDU stream",
	Long: `Read Ethernet frames from a pcap file, submit each as an SDU with its
EtherType as protocol type, and write the resulting fixed-size FPDUs as a
plain concatenation to the output file.`,
	Run: func(cmd *cobra.Command, args []string) {
		runEncap()
	},
}

func init() {
	encapCmd.Flags().StringVarP(&encapInput, "in", "i", "", "input pcap file (required)")
	encapCmd.Flags().StringVarP(&encapOutput, "out", "o", "", "output FPDU stream file (required)")
	encapCmd.MarkFlagRequired("in")
	encapCmd.MarkFlagRequired("out")
}

func runEncap() {
	cfg := loadConfig()
	conf, err := cfg.Link.ToRLE()
	if err != nil {
		exitWithError("link configuration", err)
	}
	tx, err := rle.NewTransmitter(conf)
	if err != nil {
		exitWithError("transmitter", err)
	}

	in, err := os.Open(encapInput)
	if err != nil {
		exitWithError("input", err)
	}
	defer in.Close()

	reader, err := pcapgo.NewReader(in)
	if err != nil {
		exitWithError("pcap", err)
	}

	out, err := os.Create(encapOutput)
	if err != nil {
		exitWithError("output", err)
	}
	defer out.Close()

	sdus := readSDUs(reader)
	fpdus := 0

	for len(sdus) > 0 || tx.Pending() {
		for fid := uint8(0); fid <= rle.MaxFragID && len(sdus) > 0; fid++ {
			err := tx.Encapsulate(sdus[0], fid)
			switch {
			case err == nil:
				sdus = sdus[1:]
			case errors.Is(err, rle.ErrContextBusy):
				// try the next fragment-id
			default:
				log.GetLogger().WithError(err).Warn("SDU skipped")
				sdus = sdus[1:]
			}
		}

		fpdu, _, err := tx.PackFPDU(cfg.FPDUSize)
		if errors.Is(err, rle.ErrNoALPDU) {
			break
		}
		if err != nil {
			exitWithError("pack", err)
		}
		if _, err := out.Write(fpdu); err != nil {
			exitWithError("write", err)
		}
		fpdus++
	}

	stats := tx.Stats()
	fmt.Printf("%d SDU(s) in, %d sent, %d dropped, %d FPDU(s) of %d bytes\n",
		stats.PacketsIn, stats.PacketsSent, stats.PacketsDropped, fpdus, cfg.FPDUSize)
}

// readSDUs drains the pcap reader, one SDU per Ethernet frame. The protocol
// type is the outermost EtherType as decoded by gopacket.
func readSDUs(reader *pcapgo.Reader) []rle.SDU {
	var sdus []rle.SDU
	for {
		data, _, err := reader.ReadPacketData()
		if err == io.EOF {
			return sdus
		}
		if err != nil {
			log.GetLogger().WithError(err).Warn("pcap read aborted")
			return sdus
		}

		packet := gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.Lazy)
		ethLayer := packet.Layer(layers.LayerTypeEthernet)
		eth, ok := ethLayer.(*layers.Ethernet)
		if !ok {
			log.GetLogger().Warn("non-Ethernet frame skipped")
			continue
		}

		sdus = append(sdus, rle.SDU{Payload: data, ProtocolType: uint16(eth.EthernetType)})
	}
}
