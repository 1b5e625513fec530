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

import "go.uber.org/atomic"

// Stats counts controller decisions. It is safe to read from a goroutine
// other than the one driving the controller.
type Stats struct {
	Waits    atomic.Uint64
	Acquires atomic.Uint64
	Holds    atomic.Uint64
	Advances atomic.Uint64
	CatchUps atomic.Uint64
	Resets   atomic.Uint64

	SizeMismatches  atomic.Uint64
	LowStreakResets atomic.Uint64
	DegradedReads   atomic.Uint64
	AcquireFailures atomic.Uint64

	// AlmostEmptyEnters counts audio reader latch entries.
	AlmostEmptyEnters atomic.Uint64
}

type StatsSnapshot struct {
	Waits             uint64
	Acquires          uint64
	Holds             uint64
	Advances          uint64
	CatchUps          uint64
	Resets            uint64
	SizeMismatches    uint64
	LowStreakResets   uint64
	DegradedReads     uint64
	AcquireFailures   uint64
	AlmostEmptyEnters uint64
}

func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Waits:             s.Waits.Load(),
		Acquires:          s.Acquires.Load(),
		Holds:             s.Holds.Load(),
		Advances:          s.Advances.Load(),
		CatchUps:          s.CatchUps.Load(),
		Resets:            s.Resets.Load(),
		SizeMismatches:    s.SizeMismatches.Load(),
		LowStreakResets:   s.LowStreakResets.Load(),
		DegradedReads:     s.DegradedReads.Load(),
		AcquireFailures:   s.AcquireFailures.Load(),
		AlmostEmptyEnters: s.AlmostEmptyEnters.Load(),
	}
}

func (s *Stats) record(a Action) {
	switch a {
	case ActionWait:
		s.Waits.Inc()
	case ActionAcquire:
		s.Acquires.Inc()
	case ActionHold:
		s.Holds.Inc()
	case ActionAdvance:
		s.Advances.Inc()
	case ActionCatchUp:
		s.CatchUps.Inc()
	case ActionReset:
		s.Resets.Inc()
	}
}
