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

package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/livekit/protocol/logger"
	"github.com/pkg/errors"
	"golang.org/x/exp/slices"

	"github.com/livekit/st2110util/pkg/engine"
	"github.com/livekit/st2110util/pkg/rxpacer"
)

var (
	ErrInvalidInterval = errors.New("monitor interval must be positive")
	ErrDuplicateStream = errors.New("stream already monitored")
)

type Option func(m *Monitor)

func WithClock(c clock.Clock) Option {
	return func(m *Monitor) {
		m.clock = c
	}
}

func WithLogger(l logger.Logger) Option {
	return func(m *Monitor) {
		m.logger = l
	}
}

func WithMetrics(metrics *Metrics) Option {
	return func(m *Monitor) {
		m.metrics = metrics
	}
}

type stream struct {
	name   string
	source engine.StatusSource
	stats  *rxpacer.Stats
	last   engine.Status
}

// Monitor periodically reads engine status and pacing counters of each
// registered stream and reports them.
type Monitor struct {
	interval time.Duration
	clock    clock.Clock
	logger   logger.Logger
	metrics  *Metrics

	lock    sync.Mutex
	streams []*stream
}

func New(interval time.Duration, opts ...Option) (*Monitor, error) {
	if interval <= 0 {
		return nil, errors.Wrapf(ErrInvalidInterval, "interval %s", interval)
	}
	m := &Monitor{
		interval: interval,
		clock:    clock.New(),
		logger:   logger.GetLogger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Add registers a stream. stats may be nil for transmit streams.
func (m *Monitor) Add(name string, source engine.StatusSource, stats *rxpacer.Stats) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	if slices.ContainsFunc(m.streams, func(s *stream) bool { return s.name == name }) {
		return errors.Wrapf(ErrDuplicateStream, "stream %s", name)
	}
	m.streams = append(m.streams, &stream{name: name, source: source, stats: stats})
	return nil
}

func (m *Monitor) Remove(name string) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.streams = slices.DeleteFunc(m.streams, func(s *stream) bool { return s.name == name })
	if m.metrics != nil {
		m.metrics.remove(name)
	}
}

// Run polls until ctx is done.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := m.clock.Ticker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.Poll()
		}
	}
}

// Poll reports every stream once. A stream whose status cannot be read is
// logged and skipped.
func (m *Monitor) Poll() {
	m.lock.Lock()
	defer m.lock.Unlock()

	for _, s := range m.streams {
		m.pollStream(s)
	}
}

func (m *Monitor) pollStream(s *stream) {
	l := m.logger.WithValues("stream", s.name)

	status, err := s.source.Status()
	if err != nil {
		l.Warnw("could not read engine status", err)
		return
	}

	kv := []interface{}{
		"reset", status.Reset,
		"enqueue", status.Enqueue,
		"dequeue", status.Dequeue,
		"stored", status.Stored,
		"capacity", status.Capacity,
		"overflow", status.Overflow,
		"underflow", status.Underflow,
		"started", status.Started,
	}
	var snap rxpacer.StatsSnapshot
	if s.stats != nil {
		snap = s.stats.Snapshot()
		kv = append(kv,
			"holds", snap.Holds,
			"advances", snap.Advances,
			"catchUps", snap.CatchUps,
			"resets", snap.Resets,
			"degradedReads", snap.DegradedReads,
			"almostEmptyEnters", snap.AlmostEmptyEnters,
		)
	}
	l.Infow("stream status", kv...)

	if overflow := status.Overflow - s.last.Overflow; status.Overflow > s.last.Overflow {
		l.Warnw("engine fifo overflowed", nil, "count", overflow)
	}
	if status.Reset > s.last.Reset {
		l.Infow("engine was reset", "count", status.Reset-s.last.Reset)
	}
	s.last = status

	if m.metrics != nil {
		m.metrics.observeStatus(s.name, status)
		if s.stats != nil {
			m.metrics.observePacer(s.name, snap)
		}
	}
}
