// Package cmd implements CLI commands using cobra framework.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"icc.tech/rlelink/internal/config"
	"icc.tech/rlelink/internal/log"
)

var configFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "rlelink",
	Short: "rlelink - Return Link Encapsulation codec for satellite return channels",
	Long: `rlelink implements the RLE protocol (ETSI TS 103 179 / EN 301 545-2):
network PDUs are wrapped into ALPDUs, fragmented into PPDUs across eight
fragment-id contexts and packed into fixed-size FPDU bursts.

The CLI is a file-based harness around the codec:
  encap     Ethernet frames from a pcap file -> FPDU stream
  decap     FPDU stream -> reassembled frames as a pcap file
  headers   FPDU header-overhead query for the configured link
  validate  check a link configuration file`,
	Version: "0.1.0",
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"link configuration file (YAML); defaults apply when omitted")

	rootCmd.AddCommand(encapCmd)
	rootCmd.AddCommand(decapCmd)
	rootCmd.AddCommand(headersCmd)
	rootCmd.AddCommand(validateCmd)
}

// loadConfig reads the configuration and initialises logging from it.
func loadConfig() *config.AppConfig {
	cfg, err := config.Load(configFile)
	if err != nil {
		exitWithError("configuration", err)
	}
	if err := log.Init(cfg.Log); err != nil {
		exitWithError("logging", err)
	}
	return cfg
}

// exitWithError prints error message and exits with code 1
func exitWithError(msg string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
	}
	os.Exit(1)
}
