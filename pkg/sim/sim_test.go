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

package sim

import (
	"context"
	"encoding/binary"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"github.com/livekit/st2110util/pkg/config"
	"github.com/livekit/st2110util/pkg/rxpacer"
	"github.com/livekit/st2110util/pkg/troffset"
)

func parseStream(t *testing.T, yaml string) config.StreamConfig {
	conf, err := config.Parse([]byte(yaml))
	require.NoError(t, err)
	require.Len(t, conf.Streams, 1)
	return conf.Streams[0]
}

func newMockClock() *clock.Mock {
	mock := clock.NewMock()
	mock.Set(time.Unix(1000, 0))
	return mock
}

func seqOf(t *testing.T, res Output) uint64 {
	require.GreaterOrEqual(t, len(res.Payload), 8)
	return binary.BigEndian.Uint64(res.Payload)
}

func TestJitter(t *testing.T) {
	p, err := newParams([]Option{WithStallProbability(0.3), WithSeed(7)})
	require.NoError(t, err)

	j := newJitter(p)
	total := 0
	stalls := 0
	for i := 0; i < 1000; i++ {
		n := j.next()
		if n == 0 {
			stalls++
		}
		total += n
	}
	require.Equal(t, 1000, total+j.deferred)
	require.Positive(t, stalls)

	p, err = newParams(nil)
	require.NoError(t, err)
	j = newJitter(p)
	for i := 0; i < 10; i++ {
		require.Equal(t, 1, j.next())
	}
}

func TestParams(t *testing.T) {
	_, err := newParams([]Option{WithStallProbability(1)})
	require.ErrorIs(t, err, ErrInvalidJitter)
	_, err = newParams([]Option{WithDrift(-1e6)})
	require.ErrorIs(t, err, ErrInvalidJitter)

	p, err := newParams([]Option{WithDrift(1000)})
	require.NoError(t, err)
	require.Equal(t, 1001*time.Microsecond, p.producerPeriod(time.Millisecond))
	require.Equal(t, 16_700_016*time.Nanosecond, p.producerPeriod(16_683_333*time.Nanosecond))

	p, err = newParams([]Option{WithDrift(-250)})
	require.NoError(t, err)
	require.Equal(t, 124_969*time.Nanosecond, p.producerPeriod(125*time.Microsecond))
}

func TestLoopback(t *testing.T) {
	conf := parseStream(t, `
streams:
  - name: cam
    media: video
    payload_size: 16
`)
	l, err := NewLoopback(conf, WithClock(newMockClock()))
	require.NoError(t, err)
	require.Equal(t, "cam", l.Name())
	require.Equal(t, 16, l.unitSize)
	require.Nil(t, l.audio)

	l.Start()
	defer l.Stop()

	res := l.Consume()
	require.Equal(t, rxpacer.ActionWait, res.Action)
	require.True(t, res.IsBlank())

	for i := 0; i < 4; i++ {
		require.NoError(t, l.Produce())
	}
	res = l.Consume()
	require.Equal(t, rxpacer.ActionAcquire, res.Action)
	require.Equal(t, uint64(0), seqOf(t, res))

	res = l.Consume()
	require.Equal(t, rxpacer.ActionAdvance, res.Action)
	require.Equal(t, uint64(1), seqOf(t, res))
	res = l.Consume()
	require.Equal(t, rxpacer.ActionAdvance, res.Action)
	require.Equal(t, uint64(2), seqOf(t, res))

	res = l.Consume()
	require.Equal(t, rxpacer.ActionHold, res.Action)
	require.Equal(t, uint64(2), seqOf(t, res))

	// one queued and one borrowed leave room for six
	for i := 0; i < 8; i++ {
		require.NoError(t, l.Produce())
	}
	res = l.Consume()
	require.Equal(t, rxpacer.ActionCatchUp, res.Action)
	require.Equal(t, uint64(4), seqOf(t, res))

	s := l.Summary()
	require.Equal(t, uint64(10), s.Written)
	require.Equal(t, uint64(2), s.Dropped)
	require.Equal(t, uint64(5), s.Delivered)
	require.Equal(t, uint64(1), s.Blank)
	require.Equal(t, uint32(2), s.Status.Overflow)
	require.NotNil(t, s.Pacing)
	require.Equal(t, uint64(1), s.Pacing.CatchUps)
	require.Contains(t, s.String(), "catch-ups 1")
}

func TestLoopbackAudio(t *testing.T) {
	conf := parseStream(t, `
streams:
  - name: mic
    media: audio
`)
	l, err := NewLoopback(conf, WithClock(newMockClock()))
	require.NoError(t, err)
	require.Equal(t, 48*2*3, l.unitSize)
	require.Nil(t, l.rx)

	l.Start()
	defer l.Stop()

	for i := 0; i < 4; i++ {
		require.NoError(t, l.Produce())
	}
	res := l.Consume()
	require.True(t, res.IsBlank())
	require.Zero(t, res.Packets)

	require.NoError(t, l.Produce())
	res = l.Consume()
	require.False(t, res.IsBlank())
	require.Equal(t, 1, res.Packets)
	require.Equal(t, uint64(0), seqOf(t, res))

	res = l.Consume()
	require.Equal(t, uint64(1), seqOf(t, res))
	res = l.Consume()
	require.Equal(t, uint64(2), seqOf(t, res))

	// two stored keeps the latch open, one closes it
	res = l.Consume()
	require.Equal(t, uint64(3), seqOf(t, res))
	res = l.Consume()
	require.True(t, res.IsBlank())

	s := l.Summary()
	require.Equal(t, uint64(4), s.Delivered)
	require.Equal(t, uint64(2), s.Blank)
	require.Equal(t, uint64(1), s.Pacing.AlmostEmptyEnters)
}

func TestLoopbackStopped(t *testing.T) {
	conf := parseStream(t, "streams:\n  - media: audio\n")
	l, err := NewLoopback(conf, WithClock(newMockClock()))
	require.NoError(t, err)

	require.NoError(t, l.Produce())
	require.Equal(t, uint64(1), l.Summary().Dropped)

	res := l.Consume()
	require.True(t, res.Degraded)
	require.True(t, res.IsBlank())
}

func TestSender(t *testing.T) {
	mock := newMockClock()
	conf := parseStream(t, `
streams:
  - name: cam
    direction: tx
    media: video
    fifo_size: 4
    payload_size: 16
    tx_delay_ms: 100
`)
	s, err := NewSender(conf, WithClock(mock))
	require.NoError(t, err)
	require.Nil(t, s.PacingStats())
	require.Equal(t, troffset.ComputeOffset(troffset.MediaKindVideo, &troffset.VideoTiming{
		Scan:       troffset.ScanProgressive,
		FrameRate:  troffset.FrameRate60000_1001,
		Resolution: troffset.Resolution1920x1080,
	}), s.tx.Offset())
	require.Equal(t, troffset.Offset(617674), s.tx.Offset())

	s.Start()
	defer s.Stop()

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Produce())
	}
	require.Equal(t, uint64(4), s.Summary().Written)

	require.NoError(t, s.Transmit())
	require.Equal(t, uint64(0), s.Summary().Delivered)

	mock.Add(time.Second)
	require.NoError(t, s.Transmit())

	summary := s.Summary()
	require.Equal(t, uint64(4), summary.Delivered)
	require.Equal(t, uint32(0), summary.Status.Stored)
	require.Nil(t, summary.Pacing)
	require.NotZero(t, s.LastRTPTimestamp())
}

func TestNewStream(t *testing.T) {
	rx := parseStream(t, "streams:\n  - media: audio\n")
	stream, err := NewStream(rx)
	require.NoError(t, err)
	require.IsType(t, &Loopback{}, stream)
	require.NotNil(t, stream.PacingStats())

	tx := rx
	tx.Direction = config.DirectionTx
	stream, err = NewStream(tx)
	require.NoError(t, err)
	require.IsType(t, &Sender{}, stream)

	gap := parseStream(t, "streams:\n  - video:\n      frame_rate: 30000/1001\n")
	gap.Direction = config.DirectionTx
	stream, err = NewStream(gap)
	require.ErrorIs(t, err, troffset.ErrConfigurationGap)
	require.Nil(t, stream)
}

func TestRunStopsOnCancel(t *testing.T) {
	conf := parseStream(t, "streams:\n  - media: audio\n")
	l, err := NewLoopback(conf, WithClock(newMockClock()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, l.Run(ctx))

	status, err := l.Source().Status()
	require.NoError(t, err)
	require.False(t, status.Started)
	require.Equal(t, uint32(1), status.Reset)
}
