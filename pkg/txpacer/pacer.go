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

// Package txpacer stamps outgoing units with the instant the engine must
// release them: the next alignment point of the stream's timeline plus the
// TR offset of its media configuration.
package txpacer

import (
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/livekit/protocol/logger"
	"github.com/pkg/errors"
	"go.uber.org/atomic"

	util "github.com/livekit/st2110util"
	"github.com/livekit/st2110util/pkg/engine"
	"github.com/livekit/st2110util/pkg/troffset"
)

var ErrMissingWriter = errors.New("writer is required")

type Pacer struct {
	params pacerParams
	writer engine.Writer
	offset troffset.Offset
	clock  clock.Clock
	logger logger.Logger

	lock        sync.Mutex
	started     bool
	startTimeNs uint64
	unitOffset  int64

	written atomic.Uint64
	dropped atomic.Uint64
}

// New resolves the TR offset for the stream. A media configuration without a
// rule is a startup error since no release time can be derived from it.
func New(kind troffset.MediaKind, w engine.Writer, opts ...PacerOpt) (*Pacer, error) {
	if w == nil {
		return nil, ErrMissingWriter
	}

	params := defaultParams(kind)
	for _, o := range opts {
		o(&params)
	}

	offset, err := troffset.Resolve(kind, params.Timing)
	if err != nil {
		return nil, err
	}
	if kind == troffset.MediaKindAudio {
		if params.PacketTime <= 0 {
			return nil, errors.Wrapf(util.ErrInvalidPacketTime, "%s", params.PacketTime)
		}
	} else if params.FrameRate.Period() == 0 {
		return nil, errors.Wrapf(util.ErrInvalidFrameRate, "%s", params.FrameRate)
	}

	p := &Pacer{
		params: params,
		writer: w,
		offset: offset,
		clock:  params.Clock,
		logger: params.Logger.WithValues("media", kind.String()),
	}
	p.logger.Debugw("tr offset resolved", "offset", offset.Duration(), "txDelay", params.TxDelay)
	return p, nil
}

func (p *Pacer) Offset() troffset.Offset {
	return p.offset
}

func (p *Pacer) Written() uint64 {
	return p.written.Load()
}

func (p *Pacer) Dropped() uint64 {
	return p.dropped.Load()
}

// Reset restarts the timeline. The next write picks a new start time.
func (p *Pacer) Reset() {
	p.lock.Lock()
	p.started = false
	p.unitOffset = 0
	p.lock.Unlock()
}

// Write schedules one unit and hands it to the engine. A stream that is not
// started yet drops the unit without using up a slot on the timeline.
func (p *Pacer) Write(payload []byte) (engine.TimeInfo, error) {
	p.lock.Lock()
	defer p.lock.Unlock()

	if !p.started {
		p.startTimeNs = util.TAINow(p.clock) + uint64(p.params.TxDelay)
		p.started = true
	}

	align, err := p.alignmentPoint()
	if err != nil {
		return engine.TimeInfo{}, err
	}
	release, err := util.ReleaseTime(align, p.offset)
	if err != nil {
		return engine.TimeInfo{}, err
	}
	info := engine.TimeInfo{
		StartTimeNs:  release,
		RTPTimestamp: util.TAIToRTPTime(align, p.clockRate()),
	}

	if err := p.writer.Write(info, payload); err != nil {
		if errors.Is(err, engine.ErrNotStarted) {
			p.dropped.Inc()
			if p.unitOffset == 0 {
				p.started = false
			}
			return info, nil
		}
		p.unitOffset++
		p.logger.Warnw("engine write failed", err, "startTimeNs", info.StartTimeNs)
		return info, errors.Wrap(err, "write")
	}

	p.unitOffset++
	p.written.Inc()
	return info, nil
}

func (p *Pacer) alignmentPoint() (uint64, error) {
	if p.params.Kind == troffset.MediaKindAudio {
		return util.NextAudioAlignmentPoint(p.startTimeNs, p.params.PacketTime, p.unitOffset)
	}
	return util.NextVideoAlignmentPoint(p.startTimeNs, p.params.FrameRate, p.unitOffset)
}

func (p *Pacer) clockRate() uint32 {
	if p.params.Kind == troffset.MediaKindAudio {
		return util.RTPClockRateAudio
	}
	return util.RTPClockRateVideo
}
