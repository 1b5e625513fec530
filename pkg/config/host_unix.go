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

//go:build !windows
// +build !windows

package config

import (
	"net"
	"syscall"

	"github.com/livekit/protocol/logger"
)

func checkUDPReadBuffer(l logger.Logger) {
	val, err := getUDPReadBuffer()
	if err != nil {
		l.Debugw("could not read UDP receive buffer size", "error", err)
		return
	}
	if val < minUDPBufferSize {
		l.Warnw("UDP receive buffer is too small for uncompressed video", nil,
			"current", val,
			"suggested", minUDPBufferSize)
	} else {
		l.Debugw("UDP receive buffer size", "current", val)
	}
}

func getUDPReadBuffer() (int, error) {
	conn, err := net.ListenUDP("udp4", nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = conn.Close() }()
	_ = conn.SetReadBuffer(defaultUDPBufferSize)

	raw, err := conn.SyscallConn()
	if err != nil {
		return 0, err
	}
	var size int
	var sockErr error
	if err := raw.Control(func(fd uintptr) {
		size, sockErr = syscall.GetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_RCVBUF)
	}); err != nil {
		return 0, err
	}
	return size, sockErr
}
