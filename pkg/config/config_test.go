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
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/livekit/st2110util/pkg/rxpacer"
	"github.com/livekit/st2110util/pkg/troffset"
	"github.com/livekit/st2110util/pkg/txpacer"
)

const sampleConfig = `
logging:
  level: debug
monitor:
  debug_message_interval: 5
streams:
  - name: cam1
    direction: tx
    media: video
    video:
      scan: progressive
      frame_rate: 60000/1001
      resolution: 3840x2160
  - name: mic1
    direction: rx
    media: audio
    audio:
      channels: 8
      packet_time: 125us
    rx_audio:
      almost_empty_below: 1
      almost_empty_leave_at: 3
    ip:
      primary:
        dst_address: 239.1.1.2
      secondary:
        dst_address: 239.2.1.2
        dst_port: 50003
`

func TestParse(t *testing.T) {
	conf, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)

	require.Equal(t, "debug", conf.Logging.Level)
	require.Equal(t, 5*time.Second, conf.Monitor.Interval())
	require.Len(t, conf.Streams, 2)

	cam, ok := conf.Stream("cam1")
	require.True(t, ok)
	require.True(t, cam.IsTx())
	timing, err := cam.VideoTiming()
	require.NoError(t, err)
	require.Equal(t, troffset.VideoTiming{
		Scan:       troffset.ScanProgressive,
		FrameRate:  troffset.FrameRate60000_1001,
		Resolution: troffset.Resolution3840x2160,
	}, timing)
	require.Equal(t, txpacer.DefaultVideoTxDelay, cam.TxDelay())
	require.Equal(t, uint8(DefaultVideoPayloadType), cam.IP.Primary.PayloadType)
	require.True(t, cam.IP.Primary.Enabled())
	require.False(t, cam.IP.Secondary.Enabled())
	size, err := cam.UnitSize()
	require.NoError(t, err)
	require.Equal(t, 3840*2160*5/2, size)

	mic, ok := conf.Stream("mic1")
	require.True(t, ok)
	require.False(t, mic.IsTx())
	require.Equal(t, rxpacer.AudioConfig{EnterBelow: 1, LeaveAt: 3}, mic.RxAudio)
	require.Equal(t, rxpacer.DefaultConfig, mic.RxPacing)
	require.Equal(t, txpacer.DefaultAudioTxDelay, mic.TxDelay())
	require.Equal(t, uint8(DefaultAudioPayloadType), mic.IP.Primary.PayloadType)
	require.Equal(t, "239.1.1.2", mic.IP.Primary.DstAddress)
	require.Equal(t, "192.168.0.1", mic.IP.Primary.IfAddress)
	require.Equal(t, uint16(DefaultPrimaryDstPort), mic.IP.Primary.DstPort)
	require.Equal(t, uint16(50003), mic.IP.Secondary.DstPort)
	require.True(t, mic.IP.Secondary.Enabled())
	pt, err := mic.PacketTime()
	require.NoError(t, err)
	require.Equal(t, 125*time.Microsecond, pt)
	size, err = mic.UnitSize()
	require.NoError(t, err)
	require.Equal(t, 6*8*3, size)
	period, err := mic.UnitPeriod()
	require.NoError(t, err)
	require.Equal(t, 125*time.Microsecond, period)

	_, ok = conf.Stream("missing")
	require.False(t, ok)
}

func TestParseDefaults(t *testing.T) {
	conf, err := Parse([]byte("streams:\n  - media: video\n"))
	require.NoError(t, err)
	require.Equal(t, DefaultDebugMessageInterval, conf.Monitor.DebugMessageInterval)
	require.Len(t, conf.Streams, 1)

	s := conf.Streams[0]
	require.Equal(t, "stream0", s.Name)
	require.Equal(t, DirectionRx, s.Direction)
	require.Equal(t, rxpacer.DefaultConfig, s.RxPacing)
	require.Equal(t, rxpacer.DefaultAudioConfig, s.RxAudio)
	require.Equal(t, 8, s.FifoSize)
	size, err := s.UnitSize()
	require.NoError(t, err)
	require.Equal(t, 1920*1080*5/2, size)
	period, err := s.UnitPeriod()
	require.NoError(t, err)
	require.Equal(t, troffset.FrameRate60000_1001.Period(), period)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		err  error
	}{
		{
			name: "tx configuration gap",
			yaml: "streams:\n  - direction: tx\n    video:\n      frame_rate: 30000/1001\n",
			err:  troffset.ErrConfigurationGap,
		},
		{
			name: "rx accepts unmatched timing",
			yaml: "streams:\n  - direction: rx\n    video:\n      frame_rate: 30000/1001\n",
		},
		{
			name: "resolution carries no scan",
			yaml: "streams:\n  - video:\n      frame_rate: 30000/1001\n      resolution: 1080i\n",
			err:  troffset.ErrUnknownValue,
		},
		{
			name: "interlaced through scan",
			yaml: "streams:\n  - direction: tx\n    video:\n      scan: tff\n      frame_rate: 30000/1001\n      resolution: 1920x1080\n",
		},
		{
			name: "bad direction",
			yaml: "streams:\n  - direction: sideways\n",
			err:  ErrInvalidConfig,
		},
		{
			name: "unknown media",
			yaml: "streams:\n  - media: smell\n",
			err:  troffset.ErrUnknownValue,
		},
		{
			name: "duplicate names",
			yaml: "streams:\n  - name: a\n  - name: a\n",
			err:  ErrInvalidConfig,
		},
		{
			name: "threshold order",
			yaml: "streams:\n  - rx_pacing:\n      under_threshold: 5\n      middle: 4\n",
			err:  rxpacer.ErrThresholdOrder,
		},
		{
			name: "audio latch order",
			yaml: "streams:\n  - media: audio\n    rx_audio:\n      almost_empty_below: 6\n",
			err:  rxpacer.ErrThresholdOrder,
		},
		{
			name: "audio ignores video pacing",
			yaml: "streams:\n  - media: audio\n    rx_pacing:\n      under_threshold: 5\n      middle: 4\n",
		},
		{
			name: "unsupported packet time",
			yaml: "streams:\n  - media: audio\n    audio:\n      packet_time: 4ms\n",
			err:  ErrInvalidConfig,
		},
		{
			name: "ancillary needs payload size",
			yaml: "streams:\n  - media: anc\n",
			err:  ErrInvalidConfig,
		},
		{
			name: "ancillary with payload size",
			yaml: "streams:\n  - media: anc\n    direction: tx\n    payload_size: 1200\n",
		},
		{
			name: "bad address",
			yaml: "streams:\n  - ip:\n      primary:\n        dst_address: nowhere\n",
			err:  ErrInvalidConfig,
		},
		{
			name: "no enabled leg",
			yaml: "streams:\n  - ip:\n      primary:\n        dst_address: 0.0.0.0\n",
			err:  ErrInvalidConfig,
		},
		{
			name: "static payload type",
			yaml: "streams:\n  - ip:\n      primary:\n        payload_type: 33\n",
			err:  ErrInvalidConfig,
		},
		{
			name: "negative interval",
			yaml: "monitor:\n  debug_message_interval: -1\n",
			err:  ErrInvalidConfig,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := Parse([]byte(c.yaml))
			if c.err == nil {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.True(t, errors.Is(err, c.err), err.Error())
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(t.TempDir() + "/missing.yaml")
	require.Error(t, err)
}
