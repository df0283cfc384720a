package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"icc.tech/rlelink/pkg/rle"
)

var headersCmd = &cobra.Command{
	Use:   "headers",
	Short: "Print the FPDU header overhead for the configured link",
	Run: func(cmd *cobra.Command, args []string) {
		runHeaders()
	},
}

func runHeaders() {
	cfg := loadConfig()
	conf, err := cfg.Link.ToRLE()
	if err != nil {
		exitWithError("link configuration", err)
	}

	types := []rle.FPDUType{
		rle.FPDULogon, rle.FPDUControl, rle.FPDUTrafficControl, rle.FPDUTraffic,
	}
	for _, t := range types {
		size, err := rle.HeaderSize(conf, t)
		switch {
		case errors.Is(err, rle.ErrHeaderSizeNonDeterministic):
			fmt.Printf("%-16s non-deterministic (depends on runtime protocol type)\n", t)
		case err != nil:
			exitWithError("header size", err)
		default:
			fmt.Printf("%-16s %d bytes\n", t, size)
		}
	}
}
