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
	"time"

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
	"github.com/livekit/st2110util/pkg/txpacer"
)

// Sender emulates a transmit stream: a producer hands units to the transmit
// pacer, which stamps them into the engine FIFO, and the engine sends each
// frame once its release time has passed.
type Sender struct {
	name     string
	params   params
	logger   logger.Logger
	period   time.Duration
	capacity int

	fifo   *fifo.FIFO
	tx     *txpacer.Pacer
	jitter *jitter

	payload []byte

	delivered atomic.Uint64
	lastRTP   atomic.Uint32
}

func NewSender(conf config.StreamConfig, opts ...Option) (*Sender, error) {
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

	s := &Sender{
		name:     conf.Name,
		params:   p,
		logger:   p.Logger.WithValues("stream", conf.Name, "direction", config.DirectionTx),
		period:   period,
		capacity: conf.FifoSize,
		fifo:     fifo.New(conf.FifoSize),
		jitter:   newJitter(p),
		payload:  make([]byte, size),
	}

	pacerOpts := []txpacer.PacerOpt{
		txpacer.WithClock(p.Clock),
		txpacer.WithLogger(s.logger),
		txpacer.WithTxDelay(conf.TxDelay()),
	}
	switch kind {
	case troffset.MediaKindVideo:
		timing, err := conf.VideoTiming()
		if err != nil {
			return nil, err
		}
		pacerOpts = append(pacerOpts, txpacer.WithVideoTiming(timing))
	case troffset.MediaKindAudio:
		pt, err := conf.PacketTime()
		if err != nil {
			return nil, err
		}
		pacerOpts = append(pacerOpts, txpacer.WithPacketTime(pt))
	default:
		rate, err := conf.FrameRate()
		if err != nil {
			return nil, err
		}
		pacerOpts = append(pacerOpts, txpacer.WithFrameRate(rate))
	}

	s.tx, err = txpacer.New(kind, s.fifo, pacerOpts...)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Sender) Name() string {
	return s.name
}

func (s *Sender) Source() engine.StatusSource {
	return s.fifo
}

func (s *Sender) PacingStats() *rxpacer.Stats {
	return nil
}

func (s *Sender) Start() {
	s.fifo.Start()
}

func (s *Sender) Stop() {
	s.fifo.Stop()
	s.tx.Reset()
}

func (s *Sender) Run(ctx context.Context) error {
	s.Start()
	defer s.Stop()

	s.logger.Infow("starting sender", "period", s.period, "offset", s.tx.Offset().Duration())
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return tick(ctx, s.params.Clock, s.params.producerPeriod(s.period), s.Produce)
	})
	g.Go(func() error {
		return tick(ctx, s.params.Clock, s.period, s.Transmit)
	})
	return g.Wait()
}

// Produce runs one producer tick. It only writes while the FIFO has room,
// so a full FIFO delays units instead of consuming timeline slots.
func (s *Sender) Produce() error {
	for n := s.jitter.next(); n > 0; n-- {
		status, err := s.fifo.Status()
		if err != nil {
			return err
		}
		if int(status.Stored) >= s.capacity {
			return nil
		}
		if _, err := s.tx.Write(s.payload); err != nil && !errors.Is(err, engine.ErrBufferFull) {
			return err
		}
	}
	return nil
}

// Transmit sends every frame that is due.
func (s *Sender) Transmit() error {
	due, err := s.fifo.TransmitDue(util.TAINow(s.params.Clock))
	if err != nil {
		if errors.Is(err, engine.ErrNotStarted) {
			return nil
		}
		return err
	}
	for _, f := range due {
		s.delivered.Inc()
		s.lastRTP.Store(f.RTPTimestamp())
	}
	return nil
}

func (s *Sender) LastRTPTimestamp() uint32 {
	return s.lastRTP.Load()
}

func (s *Sender) Summary() Summary {
	status, _ := s.fifo.Status()
	return Summary{
		Name:      s.name,
		Direction: config.DirectionTx,
		Written:   s.tx.Written(),
		Dropped:   s.tx.Dropped(),
		Delivered: s.delivered.Load(),
		Status:    status,
	}
}
