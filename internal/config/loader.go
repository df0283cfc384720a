package config

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Defaults applied before the file is read.
const (
	defaultFPDUSize             = 599 // DVB-RCS2 style burst payload
	defaultImplicitProtocolType = 0x30
	defaultLogLevel             = "info"
	defaultLogFormat            = "text"
)

// Load reads the YAML configuration at path, applies defaults and decodes it
// into an AppConfig. An empty path yields the pure-default configuration.
func Load(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetDefault("fpdu_size", defaultFPDUSize)
	v.SetDefault("link.allow_alpdu_sequence_number", true)
	v.SetDefault("link.implicit_protocol_type", defaultImplicitProtocolType)
	v.SetDefault("log.level", defaultLogLevel)
	v.SetDefault("log.format", defaultLogFormat)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg AppConfig
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}
