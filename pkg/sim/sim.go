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
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/livekit/protocol/logger"
	"github.com/pkg/errors"

	"github.com/livekit/st2110util/pkg/engine"
	"github.com/livekit/st2110util/pkg/rxpacer"
)

var ErrInvalidJitter = errors.New("jitter parameters out of range")

type params struct {
	Clock  clock.Clock
	Logger logger.Logger
	// DriftPPM skews the producer period relative to the consumer period.
	DriftPPM float64
	// StallProbability is the chance a producer tick writes nothing. Stalled
	// units are written in a burst on the next tick that does not stall.
	StallProbability float64
	Seed             int64
}

type Option func(p *params)

func WithClock(c clock.Clock) Option {
	return func(p *params) {
		p.Clock = c
	}
}

func WithLogger(l logger.Logger) Option {
	return func(p *params) {
		p.Logger = l
	}
}

func WithDrift(ppm float64) Option {
	return func(p *params) {
		p.DriftPPM = ppm
	}
}

func WithStallProbability(prob float64) Option {
	return func(p *params) {
		p.StallProbability = prob
	}
}

func WithSeed(seed int64) Option {
	return func(p *params) {
		p.Seed = seed
	}
}

func newParams(opts []Option) (params, error) {
	p := params{
		Clock:  clock.New(),
		Logger: logger.GetLogger(),
		Seed:   1,
	}
	for _, o := range opts {
		o(&p)
	}
	if p.StallProbability < 0 || p.StallProbability >= 1 {
		return p, errors.Wrapf(ErrInvalidJitter, "stall probability %v", p.StallProbability)
	}
	if p.DriftPPM <= -1e6 {
		return p, errors.Wrapf(ErrInvalidJitter, "drift %v ppm", p.DriftPPM)
	}
	return p, nil
}

func (p params) producerPeriod(period time.Duration) time.Duration {
	return period + time.Duration(math.Round(float64(period)*p.DriftPPM/1e6))
}

// jitter decides how many units a producer tick writes.
type jitter struct {
	rng      *rand.Rand
	stall    float64
	deferred int
}

func newJitter(p params) *jitter {
	return &jitter{
		rng:   rand.New(rand.NewSource(p.Seed)),
		stall: p.StallProbability,
	}
}

func (j *jitter) next() int {
	if j.stall > 0 && j.rng.Float64() < j.stall {
		j.deferred++
		return 0
	}
	n := j.deferred + 1
	j.deferred = 0
	return n
}

// ------------------------------------------

type Summary struct {
	Name      string
	Direction string
	Written   uint64
	Dropped   uint64
	Delivered uint64
	Blank     uint64
	Status    engine.Status
	Pacing    *rxpacer.StatsSnapshot
}

func (s Summary) String() string {
	str := fmt.Sprintf("%s (%s): written %d, dropped %d, delivered %d, blank %d, overflow %d, underflow %d",
		s.Name, s.Direction, s.Written, s.Dropped, s.Delivered, s.Blank, s.Status.Overflow, s.Status.Underflow)
	if s.Pacing != nil {
		str += fmt.Sprintf(", holds %d, catch-ups %d, resets %d",
			s.Pacing.Holds, s.Pacing.CatchUps, s.Pacing.Resets)
	}
	return str
}
