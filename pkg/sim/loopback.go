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
	"time"

	"github.com/benbjohnson/clock"
	"github.com/livekit/protocol/logger"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"

	util "github.com/livekit/st2110util"
	"github.com/livekit/st2110util/pkg/config"
	"github.com/livekit/st2110util/pkg/engine"
	"github.com/livekit/st2110util/pkg/fifo"
	"github.com/livekit/st2110util/pkg/rxpacer"
	"github.com/livekit/st2110util/pkg/troffset"
)

// Stream is one simulated stream driven by Run until its context ends.
type Stream interface {
	Name() string
	Run(ctx context.Context) error
	Source() engine.StatusSource
	PacingStats() *rxpacer.Stats
	Summary() Summary
}

func NewStream(conf config.StreamConfig, opts ...Option) (Stream, error) {
	if conf.IsTx() {
		s, err := NewSender(conf, opts...)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	l, err := NewLoopback(conf, opts...)
	if err != nil {
		return nil, err
	}
	return l, nil
}

// Loopback emulates a receive stream: a jittery network producer fills the
// engine FIFO and a consumer running at the unit rate pulls through the
// receive pacing controller, or through the audio reader for audio.
type Loopback struct {
	name      string
	params    params
	logger    logger.Logger
	period    time.Duration
	unitSize  int
	clockRate uint32

	fifo   *fifo.FIFO
	rx     *rxpacer.Controller
	audio  *rxpacer.AudioReader
	stats  *rxpacer.Stats
	jitter *jitter

	payload []byte
	out     []byte
	seq     uint64

	written   atomic.Uint64
	dropped   atomic.Uint64
	delivered atomic.Uint64
	blank     atomic.Uint64
}

func NewLoopback(conf config.StreamConfig, opts ...Option) (*Loopback, error) {
	p, err := newParams(opts)
	if err != nil {
		return nil, err
	}
	kind, err := conf.MediaKind()
	if err != nil {
		return nil, err
	}
	period, err := conf.UnitPeriod()
	if err != nil {
		return nil, err
	}
	size, err := conf.UnitSize()
	if err != nil {
		return nil, err
	}

	l := &Loopback{
		name:      conf.Name,
		params:    p,
		logger:    p.Logger.WithValues("stream", conf.Name, "direction", config.DirectionRx),
		period:    period,
		unitSize:  size,
		clockRate: clockRate(kind),
		fifo:      fifo.New(conf.FifoSize),
		stats:     &rxpacer.Stats{},
		jitter:    newJitter(p),
		payload:   make([]byte, size),
		out:       make([]byte, size),
	}
	rxOpts := []rxpacer.Option{
		rxpacer.WithStats(l.stats),
		rxpacer.WithLogger(l.logger),
	}
	if kind == troffset.MediaKindAudio {
		l.audio, err = rxpacer.NewAudioReader(l.fifo, conf.RxAudio, rxOpts...)
	} else {
		l.rx, err = rxpacer.NewController(l.fifo, conf.RxPacing, rxOpts...)
	}
	if err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Loopback) Name() string {
	return l.name
}

func (l *Loopback) Source() engine.StatusSource {
	return l.fifo
}

func (l *Loopback) PacingStats() *rxpacer.Stats {
	return l.stats
}

func (l *Loopback) Start() {
	l.fifo.Start()
}

func (l *Loopback) Stop() {
	if l.audio != nil {
		l.audio.Reset()
	} else {
		l.rx.Reset()
	}
	l.fifo.Stop()
}

func (l *Loopback) Run(ctx context.Context) error {
	l.Start()
	defer l.Stop()

	l.logger.Infow("starting loopback", "period", l.period, "unitSize", l.unitSize)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return tick(ctx, l.params.Clock, l.params.producerPeriod(l.period), l.Produce)
	})
	g.Go(func() error {
		return tick(ctx, l.params.Clock, l.period, func() error {
			l.Consume()
			return nil
		})
	})
	return g.Wait()
}

// Produce runs one producer tick. Units the FIFO refuses are counted as dropped.
func (l *Loopback) Produce() error {
	for n := l.jitter.next(); n > 0; n-- {
		if len(l.payload) >= 8 {
			binary.BigEndian.PutUint64(l.payload, l.seq)
		}
		l.seq++

		tai := util.TAINow(l.params.Clock)
		err := l.fifo.Write(engine.TimeInfo{
			StartTimeNs:  tai,
			RTPTimestamp: util.TAIToRTPTime(tai, l.clockRate),
		}, l.payload)
		switch {
		case err == nil:
			l.written.Inc()
		case errors.Is(err, engine.ErrBufferFull), errors.Is(err, engine.ErrNotStarted):
			l.dropped.Inc()
		default:
			return err
		}
	}
	return nil
}

// Output is one consumer cycle. Action is set for paced streams only; audio
// streams report the packets read instead.
type Output struct {
	Payload  []byte
	Action   rxpacer.Action
	Packets  int
	Degraded bool
}

func (o Output) IsBlank() bool {
	return o.Payload == nil
}

// Consume runs one output cycle.
func (l *Loopback) Consume() Output {
	var out Output
	if l.audio != nil {
		res := l.audio.Fill(l.out)
		out = Output{Packets: res.Packets, Degraded: res.Degraded}
		if !res.Silent {
			out.Payload = l.out
		}
	} else {
		res := l.rx.Fill(l.out)
		out = Output{Action: res.Action, Degraded: res.Degraded}
		if !res.IsBlank() {
			out.Payload = l.out
		}
	}

	if out.IsBlank() {
		l.blank.Inc()
	} else {
		l.delivered.Inc()
	}
	return out
}

func (l *Loopback) Summary() Summary {
	status, _ := l.fifo.Status()
	snap := l.stats.Snapshot()
	return Summary{
		Name:      l.name,
		Direction: config.DirectionRx,
		Written:   l.written.Load(),
		Dropped:   l.dropped.Load(),
		Delivered: l.delivered.Load(),
		Blank:     l.blank.Load(),
		Status:    status,
		Pacing:    &snap,
	}
}

// ------------------------------------------

func clockRate(kind troffset.MediaKind) uint32 {
	if kind == troffset.MediaKindAudio {
		return util.RTPClockRateAudio
	}
	return util.RTPClockRateVideo
}

func tick(ctx context.Context, c clock.Clock, period time.Duration, fn func() error) error {
	ticker := c.Ticker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := fn(); err != nil {
				return err
			}
		}
	}
}
