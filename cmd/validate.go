package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a link configuration file",
	Long: `Validate a link configuration file and echo the effective configuration
(defaults applied) as YAML.

Example:
  rlelink validate -c link.yml`,
	Run: func(cmd *cobra.Command, args []string) {
		runValidate()
	},
}

func runValidate() {
	cfg := loadConfig()

	echo, err := yaml.Marshal(cfg)
	if err != nil {
		exitWithError("marshal", err)
	}
	fmt.Printf("VALID: effective configuration\n%s", echo)
}
