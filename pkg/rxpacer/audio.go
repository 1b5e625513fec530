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

package rxpacer

import (
	"fmt"
	"sync"

	"github.com/livekit/protocol/logger"
	"github.com/pkg/errors"

	"github.com/livekit/st2110util/pkg/engine"
)

// AudioConfig sets the hysteresis of the almost empty latch. The latch is
// entered when fewer than EnterBelow packets are stored and left once at
// least LeaveAt are.
type AudioConfig struct {
	EnterBelow int `yaml:"almost_empty_below"`
	LeaveAt    int `yaml:"almost_empty_leave_at"`
}

var DefaultAudioConfig = AudioConfig{
	EnterBelow: 2,
	LeaveAt:    5,
}

func (c AudioConfig) Validate() error {
	if c.EnterBelow < 0 || c.LeaveAt < 0 {
		return errors.Wrapf(ErrNegativeThreshold, "%s", c)
	}
	if c.LeaveAt < c.EnterBelow {
		return errors.Wrapf(ErrThresholdOrder, "%s", c)
	}
	return nil
}

func (c AudioConfig) String() string {
	return fmt.Sprintf("enterBelow: %d, leaveAt: %d", c.EnterBelow, c.LeaveAt)
}

// AudioResult is the outcome of one AudioReader.Fill.
type AudioResult struct {
	// Silent is set when dst was zero filled.
	Silent bool
	// Degraded is set when a status read failed during the fill.
	Degraded bool
	// Packets is the number of packets moved out of the engine.
	Packets int
}

// AudioReader drains engine audio packets into downstream buffers of any
// size. Packets are concatenated and cut to the buffer size, never repeated
// or skipped. While the queue is almost empty the output is silence and
// nothing is read, which lets the queue refill before playout resumes.
type AudioReader struct {
	lock   sync.Mutex
	cfg    AudioConfig
	engine engine.Reader
	logger logger.Logger
	stats  *Stats

	almostEmpty bool
	pending     []byte
}

func NewAudioReader(e engine.Reader, cfg AudioConfig, opts ...Option) (*AudioReader, error) {
	if e == nil {
		return nil, ErrMissingEngine
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := applyOptions(opts)
	return &AudioReader{
		cfg:         cfg,
		engine:      e,
		logger:      o.logger,
		stats:       o.stats,
		almostEmpty: true,
	}, nil
}

func (r *AudioReader) Config() AudioConfig {
	return r.cfg
}

func (r *AudioReader) Stats() *Stats {
	return r.stats
}

func (r *AudioReader) AlmostEmpty() bool {
	r.lock.Lock()
	defer r.lock.Unlock()

	return r.almostEmpty
}

// Buffered is the number of bytes read from the engine but not yet output.
func (r *AudioReader) Buffered() int {
	r.lock.Lock()
	defer r.lock.Unlock()

	return len(r.pending)
}

// Fill writes the next len(dst) bytes of audio into dst, or silence.
func (r *AudioReader) Fill(dst []byte) AudioResult {
	r.lock.Lock()
	defer r.lock.Unlock()

	var res AudioResult
	for len(r.pending) < len(dst) {
		stored, err := r.engine.Occupancy()
		if err != nil {
			res.Degraded = true
			r.stats.DegradedReads.Inc()
			r.setAlmostEmpty(true, stored)
		} else if r.almostEmpty {
			if stored >= r.cfg.LeaveAt {
				r.setAlmostEmpty(false, stored)
			}
		} else if stored < r.cfg.EnterBelow {
			r.setAlmostEmpty(true, stored)
		}
		if r.almostEmpty {
			break
		}

		item, err := r.engine.AcquireNext()
		if err != nil || item == nil {
			r.stats.AcquireFailures.Inc()
			r.logger.Debugw("could not acquire audio packet", "error", err)
			r.setAlmostEmpty(true, stored)
			break
		}
		r.pending = append(r.pending, item.Payload()...)
		if err := r.engine.Release(item); err != nil {
			r.logger.Debugw("could not release audio packet", "error", err)
		}
		r.stats.Acquires.Inc()
		res.Packets++
	}

	if r.almostEmpty || len(r.pending) < len(dst) {
		clear(dst)
		r.stats.Waits.Inc()
		res.Silent = true
		return res
	}

	copy(dst, r.pending)
	n := copy(r.pending, r.pending[len(dst):])
	r.pending = r.pending[:n]
	r.stats.Advances.Inc()
	return res
}

// Reset drops buffered audio and re-arms the latch, as on stream start.
func (r *AudioReader) Reset() {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.pending = r.pending[:0]
	r.almostEmpty = true
}

func (r *AudioReader) setAlmostEmpty(almostEmpty bool, stored int) {
	if r.almostEmpty == almostEmpty {
		return
	}
	r.almostEmpty = almostEmpty
	if almostEmpty {
		r.stats.AlmostEmptyEnters.Inc()
		r.logger.Debugw("audio queue almost empty", "stored", stored)
	} else {
		r.logger.Debugw("audio queue refilled", "stored", stored)
	}
}
