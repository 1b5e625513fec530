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

	"github.com/livekit/protocol/logger"
	"github.com/pkg/errors"
	"golang.org/x/exp/slices"
)

const (
	// one UHD frame of 10 bit 4:2:2 is about 20MB on the wire
	minUDPBufferSize     = 32 * 1024 * 1024
	defaultUDPBufferSize = 64 * 1024 * 1024
)

var ErrNoLocalAddress = errors.New("could not find local IP address")

// LocalIPv4Addresses lists every IPv4 address assigned to the host,
// loopback included.
func LocalIPv4Addresses() ([]string, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil, err
	}
	var local []string
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok {
			continue
		}
		if ip := ipNet.IP.To4(); ip != nil {
			local = append(local, ip.String())
		}
	}
	if len(local) == 0 {
		return nil, ErrNoLocalAddress
	}
	return local, nil
}

// ForeignInterfaces returns the "stream/leg: address" of every enabled leg
// whose interface address is not one of local.
func (c *Config) ForeignInterfaces(local []string) []string {
	var foreign []string
	check := func(stream, leg string, l LegConfig) {
		if !l.Enabled() || l.IfAddress == "" {
			return
		}
		if ip := net.ParseIP(l.IfAddress); ip == nil || ip.IsUnspecified() {
			return
		}
		if !slices.Contains(local, l.IfAddress) {
			foreign = append(foreign, stream+"/"+leg+": "+l.IfAddress)
		}
	}
	for _, s := range c.Streams {
		check(s.Name, "primary", s.IP.Primary)
		check(s.Name, "secondary", s.IP.Secondary)
	}
	return foreign
}

// Preflight logs host conditions that would keep the configured streams
// from running on real interfaces. It never fails.
func (c *Config) Preflight(l logger.Logger) {
	local, err := LocalIPv4Addresses()
	if err != nil {
		l.Warnw("could not list local addresses", err)
	} else {
		for _, f := range c.ForeignInterfaces(local) {
			l.Warnw("interface address is not local", nil, "leg", f)
		}
	}

	if slices.ContainsFunc(c.Streams, func(s StreamConfig) bool { return !s.IsTx() }) {
		checkUDPReadBuffer(l)
	}
}
