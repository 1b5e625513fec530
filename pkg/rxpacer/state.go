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

	"github.com/livekit/st2110util/pkg/engine"
)

type Action int

const (
	// ActionWait keeps the controller empty and outputs blank.
	ActionWait Action = iota
	// ActionAcquire takes the first item after being empty.
	ActionAcquire
	// ActionHold repeats the held item because occupancy is low.
	ActionHold
	// ActionAdvance releases the held item and takes the next one.
	ActionAdvance
	// ActionCatchUp advances twice in one cycle to skip a buffered item.
	ActionCatchUp
	// ActionReset drops the held item and outputs blank.
	ActionReset
)

func (a Action) String() string {
	switch a {
	case ActionWait:
		return "wait"
	case ActionAcquire:
		return "acquire"
	case ActionHold:
		return "hold"
	case ActionAdvance:
		return "advance"
	case ActionCatchUp:
		return "catch-up"
	case ActionReset:
		return "reset"
	default:
		return fmt.Sprintf("Action(%d)", int(a))
	}
}

// State is either empty (no held item) or holding one borrowed item together
// with the number of consecutive cycles it has been repeated.
type State struct {
	held     engine.Item
	lowCount int
}

func Empty() State {
	return State{}
}

func Holding(item engine.Item, lowCount int) State {
	return State{held: item, lowCount: lowCount}
}

func (s State) IsHolding() bool {
	return s.held != nil
}

func (s State) Held() engine.Item {
	return s.held
}

func (s State) LowCount() int {
	return s.lowCount
}

func (s State) String() string {
	if !s.IsHolding() {
		return "empty"
	}
	return fmt.Sprintf("holding(lowCount: %d)", s.lowCount)
}

// Decide picks the action for one cycle from the current state and the
// engine's occupancy. It does not apply the validity check, which depends on
// the item obtained by the action.
func Decide(s State, cfg Config, occupancy int) Action {
	if !s.IsHolding() {
		if occupancy >= cfg.MiddleThreshold {
			return ActionAcquire
		}
		return ActionWait
	}

	switch {
	case occupancy > cfg.OverThreshold:
		return ActionCatchUp
	case occupancy >= cfg.UnderThreshold:
		return ActionAdvance
	default:
		return ActionHold
	}
}

// needsReset is the validity check run after every action.
// Starve is the action taken when the occupancy is unknown. It never moves
// the read cursor, whatever the thresholds.
func Starve(s State) Action {
	if s.IsHolding() {
		return ActionHold
	}
	return ActionWait
}

func needsReset(s State, cfg Config, expectedSize int) bool {
	if !s.IsHolding() {
		return false
	}
	return len(s.held.Payload()) != expectedSize || s.lowCount >= cfg.MaxLowStreak
}
