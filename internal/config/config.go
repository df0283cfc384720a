// Package config handles CLI configuration loading using viper.
package config

import (
	"encoding/hex"
	"fmt"

	"icc.tech/rlelink/internal/log"
	"icc.tech/rlelink/pkg/rle"
)

// AppConfig is the top-level YAML configuration of the rlelink CLI.
type AppConfig struct {
	// FPDUSize is the fixed burst size every packed FPDU is padded to.
	FPDUSize int `mapstructure:"fpdu_size"`

	Link LinkConfig `mapstructure:"link"`
	Log  log.Config `mapstructure:"log"`
}

// LinkConfig mirrors rle.Config in YAML-friendly form; both link ends must
// be run with identical values.
type LinkConfig struct {
	AllowPtypeOmission       bool   `mapstructure:"allow_ptype_omission"`
	UseCompressedPtype       bool   `mapstructure:"use_compressed_ptype"`
	AllowALPDUCRC            bool   `mapstructure:"allow_alpdu_crc"`
	AllowALPDUSeqnum         bool   `mapstructure:"allow_alpdu_sequence_number"`
	ImplicitProtocolType     uint8  `mapstructure:"implicit_protocol_type"`
	ImplicitPPDULabelSize    uint8  `mapstructure:"implicit_ppdu_label_size"`
	ImplicitPayloadLabelSize uint8  `mapstructure:"implicit_payload_label_size"`
	Type0ALPDULabelSize      uint8  `mapstructure:"type_0_alpdu_label_size"`
	PayloadLabel             string `mapstructure:"payload_label"` // hex encoded
	MaxFragments             int    `mapstructure:"max_fragments"`
}

// ToRLE converts the YAML form into a validated codec configuration.
func (l LinkConfig) ToRLE() (rle.Config, error) {
	label, err := hex.DecodeString(l.PayloadLabel)
	if err != nil {
		return rle.Config{}, fmt.Errorf("payload_label is not valid hex: %w", err)
	}
	conf := rle.Config{
		AllowPtypeOmission:       l.AllowPtypeOmission,
		UseCompressedPtype:       l.UseCompressedPtype,
		AllowALPDUCRC:            l.AllowALPDUCRC,
		AllowALPDUSeqnum:         l.AllowALPDUSeqnum,
		ImplicitProtocolType:     l.ImplicitProtocolType,
		ImplicitPPDULabelSize:    l.ImplicitPPDULabelSize,
		ImplicitPayloadLabelSize: l.ImplicitPayloadLabelSize,
		Type0ALPDULabelSize:      l.Type0ALPDULabelSize,
		PayloadLabel:             label,
		MaxFragments:             l.MaxFragments,
	}
	if err := conf.Validate(); err != nil {
		return rle.Config{}, err
	}
	return conf, nil
}

// Validate checks the CLI-level settings; the codec settings are validated
// by rle.Config.Validate via ToRLE.
func (c AppConfig) Validate() error {
	if c.FPDUSize < 8 || c.FPDUSize > 65535 {
		return fmt.Errorf("fpdu_size %d out of range 8..65535", c.FPDUSize)
	}
	if _, err := c.Link.ToRLE(); err != nil {
		return err
	}
	return nil
}
