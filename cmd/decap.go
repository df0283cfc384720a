package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/spf13/cobra"

	"icc.tech/rlelink/pkg/rle"
)

var (
	decapInput  string
	decapOutput string
)

var decapCmd = &cobra.Command{
	Use:   "decap",
	Short: "Decapsulate an FPDU stream back into a pcap file",
	Long: `Read fixed-size FPDUs from the input file, run them through the RLE
receiver, and write every reassembled SDU as an Ethernet frame to the output
pcap file.`,
	Run: func(cmd *cobra.Command, args []string) {
		runDecap()
	},
}

func init() {
	decapCmd.Flags().StringVarP(&decapInput, "in", "i", "", "input FPDU stream file (required)")
	decapCmd.Flags().StringVarP(&decapOutput, "out", "o", "", "output pcap file (required)")
	decapCmd.MarkFlagRequired("in")
	decapCmd.MarkFlagRequired("out")
}

func runDecap() {
	cfg := loadConfig()
	conf, err := cfg.Link.ToRLE()
	if err != nil {
		exitWithError("link configuration", err)
	}
	rcv, err := rle.NewReceiver(conf)
	if err != nil {
		exitWithError("receiver", err)
	}

	in, err := os.Open(decapInput)
	if err != nil {
		exitWithError("input", err)
	}
	defer in.Close()

	out, err := os.Create(decapOutput)
	if err != nil {
		exitWithError("output", err)
	}
	defer out.Close()

	writer := pcapgo.NewWriter(out)
	if err := writer.WriteFileHeader(65535, layers.LinkTypeEthernet); err != nil {
		exitWithError("pcap header", err)
	}

	fpdu := make([]byte, cfg.FPDUSize)
	fpdus, frames := 0, 0
	for {
		if _, err := io.ReadFull(in, fpdu); err != nil {
			if err != io.EOF && err != io.ErrUnexpectedEOF {
				exitWithError("read", err)
			}
			break
		}
		fpdus++

		sdus, err := rcv.Decapsulate(fpdu)
		if err != nil {
			exitWithError("decapsulate", err)
		}
		for _, sdu := range sdus {
			ci := gopacket.CaptureInfo{
				Timestamp:     time.Now(),
				CaptureLength: len(sdu.Payload),
				Length:        len(sdu.Payload),
			}
			if err := writer.WritePacket(ci, sdu.Payload); err != nil {
				exitWithError("pcap write", err)
			}
			frames++
		}
	}

	stats := rcv.Stats()
	fmt.Printf("%d FPDU(s) in, %d frame(s) out, %d dropped, %d lost\n",
		fpdus, frames, stats.PacketsDropped, stats.PacketsLost)
}
