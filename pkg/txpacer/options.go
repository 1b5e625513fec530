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

package txpacer

import (
	"time"

	"github.com/benbjohnson/clock"
	"github.com/livekit/protocol/logger"

	"github.com/livekit/st2110util/pkg/troffset"
)

const (
	DefaultVideoTxDelay    = 500 * time.Millisecond
	DefaultAudioTxDelay    = 200 * time.Millisecond
	DefaultAudioPacketTime = time.Millisecond
	// units other than uncompressed video and audio follow the video timeline
	defaultFrameRate = troffset.FrameRate60000_1001
)

type pacerParams struct {
	Kind       troffset.MediaKind
	Timing     *troffset.VideoTiming
	FrameRate  troffset.FrameRate
	PacketTime time.Duration
	TxDelay    time.Duration
	Clock      clock.Clock
	Logger     logger.Logger
}

type PacerOpt func(params *pacerParams)

// WithVideoTiming sets the negotiated raster. Required for uncompressed video.
func WithVideoTiming(timing troffset.VideoTiming) PacerOpt {
	return func(params *pacerParams) {
		params.Timing = &timing
		params.FrameRate = timing.FrameRate
	}
}

// WithFrameRate sets the unit rate of ancillary and compressed video streams.
func WithFrameRate(rate troffset.FrameRate) PacerOpt {
	return func(params *pacerParams) {
		params.FrameRate = rate
	}
}

func WithPacketTime(packetTime time.Duration) PacerOpt {
	return func(params *pacerParams) {
		params.PacketTime = packetTime
	}
}

// WithTxDelay sets how far in the future the first unit is scheduled.
func WithTxDelay(delay time.Duration) PacerOpt {
	return func(params *pacerParams) {
		params.TxDelay = delay
	}
}

func WithClock(c clock.Clock) PacerOpt {
	return func(params *pacerParams) {
		params.Clock = c
	}
}

func WithLogger(l logger.Logger) PacerOpt {
	return func(params *pacerParams) {
		params.Logger = l
	}
}

func defaultParams(kind troffset.MediaKind) pacerParams {
	params := pacerParams{
		Kind:       kind,
		FrameRate:  defaultFrameRate,
		PacketTime: DefaultAudioPacketTime,
		TxDelay:    DefaultVideoTxDelay,
		Clock:      clock.New(),
		Logger:     logger.GetLogger(),
	}
	if kind == troffset.MediaKindAudio {
		params.TxDelay = DefaultAudioTxDelay
	}
	return params
}
