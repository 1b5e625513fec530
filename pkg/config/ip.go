// Copyright 2024 LiveKit, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"net"

	"github.com/pkg/errors"
)

const (
	DefaultPrimaryDstPort   = 50000
	DefaultSecondaryDstPort = 50001
	DefaultVideoPayloadType = 96
	DefaultAudioPayloadType = 97
)

// LegConfig is one of the two redundant network paths of a stream. A leg
// whose destination is unset or the unspecified address is disabled.
type LegConfig struct {
	DstAddress  string `yaml:"dst_address"`
	SrcAddress  string `yaml:"src_address"`
	IfAddress   string `yaml:"if_address"`
	DstPort     uint16 `yaml:"dst_port"`
	SrcPort     uint16 `yaml:"src_port"`
	PayloadType uint8  `yaml:"payload_type"`
}

type IPConfig struct {
	Primary   LegConfig `yaml:"primary"`
	Secondary LegConfig `yaml:"secondary"`
	// PlayoutDelayMs is passed to the engine for receive streams.
	PlayoutDelayMs int `yaml:"playout_delay_ms"`
}

func defaultIPConfig() IPConfig {
	return IPConfig{
		Primary: LegConfig{
			DstAddress:  "239.1.1.1",
			SrcAddress:  "192.168.0.1",
			IfAddress:   "192.168.0.1",
			DstPort:     DefaultPrimaryDstPort,
			PayloadType: DefaultVideoPayloadType,
		},
		Secondary: LegConfig{
			DstAddress:  "0.0.0.0",
			SrcAddress:  "0.0.0.0",
			IfAddress:   "0.0.0.0",
			DstPort:     DefaultSecondaryDstPort,
			PayloadType: DefaultVideoPayloadType,
		},
	}
}

func (l LegConfig) Enabled() bool {
	ip := net.ParseIP(l.DstAddress)
	return ip != nil && !ip.IsUnspecified()
}

func (l LegConfig) Validate() error {
	for _, addr := range []string{l.DstAddress, l.SrcAddress, l.IfAddress} {
		if addr == "" {
			continue
		}
		if net.ParseIP(addr).To4() == nil {
			return errors.Wrapf(ErrInvalidConfig, "address %q is not IPv4", addr)
		}
	}
	if !l.Enabled() {
		return nil
	}
	if l.DstPort == 0 {
		return errors.Wrapf(ErrInvalidConfig, "destination port is required for %s", l.DstAddress)
	}
	if l.PayloadType < 96 || l.PayloadType > 127 {
		return errors.Wrapf(ErrInvalidConfig, "payload type %d is not dynamic", l.PayloadType)
	}
	return nil
}

func (c IPConfig) Validate() error {
	if !c.Primary.Enabled() && !c.Secondary.Enabled() {
		return errors.Wrap(ErrInvalidConfig, "at least one leg must be enabled")
	}
	if err := c.Primary.Validate(); err != nil {
		return errors.WithMessage(err, "primary")
	}
	if err := c.Secondary.Validate(); err != nil {
		return errors.WithMessage(err, "secondary")
	}
	if c.PlayoutDelayMs < 0 {
		return errors.Wrapf(ErrInvalidConfig, "playout_delay_ms %d", c.PlayoutDelayMs)
	}
	return nil
}
