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

package st2110util

import (
	"math/bits"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"

	"github.com/livekit/st2110util/pkg/troffset"
)

const (
	RTPClockRateVideo uint32 = 90000
	RTPClockRateAudio uint32 = 48000

	// TAI is ahead of UTC by the accumulated leap seconds.
	TAIOffset = 37 * time.Second

	nsPerSecond = uint64(time.Second)
)

var (
	ErrInvalidFrameRate  = errors.New("invalid frame rate")
	ErrInvalidPacketTime = errors.New("invalid packet time")
	ErrNegativeTime      = errors.New("alignment point before epoch")
)

// TAIFromTime converts a wall clock instant to TAI nanoseconds since the
// SMPTE/PTP epoch (1970-01-01 TAI).
func TAIFromTime(t time.Time) uint64 {
	return uint64(t.UnixNano()) + uint64(TAIOffset)
}

func TAINow(c clock.Clock) uint64 {
	return TAIFromTime(c.Now())
}

// TAIToRTPTime returns the RTP timestamp of a TAI instant for the given media
// clock rate, wrapped to 32 bits.
func TAIToRTPTime(taiNs uint64, clockRate uint32) uint32 {
	return uint32(mulDiv(taiNs, uint64(clockRate), nsPerSecond))
}

// NextVideoAlignmentPoint returns the first frame boundary at or after taiNs,
// advanced by frameOffset frame periods. Boundaries are exact multiples of
// den/num seconds from the epoch and are truncated to whole nanoseconds.
func NextVideoAlignmentPoint(taiNs uint64, rate troffset.FrameRate, frameOffset int64) (uint64, error) {
	num, den := rate.Fraction()
	if num == 0 {
		return 0, errors.Wrapf(ErrInvalidFrameRate, "%s", rate)
	}

	periodDen := den * nsPerSecond
	frame, rem := mulDivRem(taiNs, num, periodDen)
	if rem != 0 {
		frame++
	}
	target := int64(frame) + frameOffset
	if target < 0 {
		return 0, ErrNegativeTime
	}
	return mulDiv(uint64(target), periodDen, num), nil
}

// NextAudioAlignmentPoint is the audio counterpart of NextVideoAlignmentPoint,
// aligning on packet time boundaries.
func NextAudioAlignmentPoint(taiNs uint64, packetTime time.Duration, packetOffset int64) (uint64, error) {
	if packetTime <= 0 {
		return 0, errors.Wrapf(ErrInvalidPacketTime, "%s", packetTime)
	}

	period := uint64(packetTime)
	packet := taiNs / period
	if taiNs%period != 0 {
		packet++
	}
	target := int64(packet) + packetOffset
	if target < 0 {
		return 0, ErrNegativeTime
	}
	return uint64(target) * period, nil
}

// ReleaseTime adds a TR offset to an alignment point. An Unavailable offset is
// reported as a configuration gap rather than folded into the result.
func ReleaseTime(alignNs uint64, offset troffset.Offset) (uint64, error) {
	if !offset.IsAvailable() {
		return 0, troffset.ErrConfigurationGap
	}
	if offset < 0 && uint64(-int64(offset)) > alignNs {
		return 0, ErrNegativeTime
	}
	return uint64(int64(alignNs) + int64(offset)), nil
}

// ------------------------------------------

func mulDiv(a, b, c uint64) uint64 {
	q, _ := mulDivRem(a, b, c)
	return q
}

// mulDivRem computes a*b/c with a 128-bit intermediate. The quotient is taken
// modulo 2^64.
func mulDivRem(a, b, c uint64) (uint64, uint64) {
	hi, lo := bits.Mul64(a, b)
	// reduce the high word first so Div64 cannot overflow
	_, hiRem := bits.Div64(0, hi, c)
	return bits.Div64(hiRem, lo, c)
}
