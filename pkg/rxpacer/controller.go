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

// Package rxpacer paces reads out of the engine's receive queue. Once per
// output cycle the controller looks at the queue occupancy and either waits,
// takes a first item, repeats the held item, advances by one or two items, or
// drops what it holds and falls back to blank output.
package rxpacer

import (
	"sync"

	"github.com/livekit/protocol/logger"

	"github.com/livekit/st2110util/pkg/engine"
)

type options struct {
	logger logger.Logger
	stats  *Stats
}

type Option func(o *options)

func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithStats shares a Stats instance, typically with a monitor.
func WithStats(s *Stats) Option {
	return func(o *options) {
		o.stats = s
	}
}

func applyOptions(opts []Option) options {
	o := options{
		logger: logger.GetLogger(),
		stats:  &Stats{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Result is the outcome of one cycle. A nil Payload means blank output.
type Result struct {
	Action  Action
	Payload []byte
	// Degraded is set when the occupancy could not be read this cycle.
	Degraded bool
}

func (r Result) IsBlank() bool {
	return r.Payload == nil
}

// Controller owns the read cursor of one receive stream. Each Step holds the
// lock for the whole read occupancy, decide, act sequence.
type Controller struct {
	lock   sync.Mutex
	cfg    Config
	engine engine.Reader
	logger logger.Logger
	stats  *Stats
	state  State
}

func NewController(e engine.Reader, cfg Config, opts ...Option) (*Controller, error) {
	if e == nil {
		return nil, ErrMissingEngine
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := applyOptions(opts)
	return &Controller{
		cfg:    cfg,
		engine: e,
		logger: o.logger,
		stats:  o.stats,
	}, nil
}

func (c *Controller) Config() Config {
	return c.cfg
}

func (c *Controller) Stats() *Stats {
	return c.stats
}

func (c *Controller) State() State {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.state
}

// Step runs one cycle. expectedSize is the payload size downstream sized its
// buffer for; a held item of any other size is dropped.
func (c *Controller) Step(expectedSize int) Result {
	c.lock.Lock()
	defer c.lock.Unlock()

	occupancy, err := c.engine.Occupancy()
	degraded := err != nil
	var action Action
	if degraded {
		// starve rather than trust a stale picture of the queue
		c.stats.DegradedReads.Inc()
		occupancy = 0
		action = Starve(c.state)
	} else {
		action = Decide(c.state, c.cfg, occupancy)
	}
	switch action {
	case ActionAcquire:
		if !c.acquire() {
			action = ActionWait
			break
		}
		c.logger.Debugw("holding first item", "occupancy", occupancy, "size", len(c.state.held.Payload()))

	case ActionHold:
		c.state.lowCount++

	case ActionAdvance:
		if !c.advance() {
			action = ActionReset
		}

	case ActionCatchUp:
		if !c.advance() || !c.advance() {
			action = ActionReset
		}
	}

	if needsReset(c.state, c.cfg, expectedSize) {
		size := len(c.state.held.Payload())
		if size != expectedSize {
			c.stats.SizeMismatches.Inc()
			c.logger.Infow("dropping held item, size mismatch", "size", size, "expected", expectedSize)
		} else {
			c.stats.LowStreakResets.Inc()
			c.logger.Infow("dropping held item, low occupancy streak", "lowCount", c.state.lowCount, "occupancy", occupancy)
		}
		c.releaseHeld()
		action = ActionReset
	}
	c.stats.record(action)

	res := Result{
		Action:   action,
		Degraded: degraded,
	}
	if c.state.IsHolding() && !degraded {
		res.Payload = c.state.held.Payload()
	}
	return res
}

// Fill runs one cycle and writes its output into dst, zero filling on blank.
func (c *Controller) Fill(dst []byte) Result {
	res := c.Step(len(dst))
	if res.IsBlank() {
		clear(dst)
	} else {
		copy(dst, res.Payload)
	}
	return res
}

// Reset returns any held item to the engine. Used on stream stop and after a
// capability change.
func (c *Controller) Reset() {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.releaseHeld()
}

func (c *Controller) acquire() bool {
	item, err := c.engine.AcquireNext()
	if err != nil || item == nil {
		c.stats.AcquireFailures.Inc()
		c.logger.Debugw("could not acquire next item", "error", err)
		return false
	}
	c.state = Holding(item, 0)
	return true
}

func (c *Controller) advance() bool {
	c.releaseHeld()
	return c.acquire()
}

func (c *Controller) releaseHeld() {
	if !c.state.IsHolding() {
		return
	}
	if err := c.engine.Release(c.state.held); err != nil {
		c.logger.Debugw("could not release item", "error", err)
	}
	c.state = Empty()
}
