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

	"github.com/pkg/errors"
)

// Config holds the occupancy thresholds of a receive stream. It is fixed once
// a Controller is built.
type Config struct {
	// UnderThreshold is the occupancy below which the held item is repeated.
	UnderThreshold int `yaml:"under_threshold"`
	// MiddleThreshold is the occupancy needed to take the first item.
	MiddleThreshold int `yaml:"middle"`
	// OverThreshold is the occupancy above which the controller skips an item.
	OverThreshold int `yaml:"over_threshold"`
	// MaxLowStreak bounds how many consecutive cycles a held item may repeat.
	MaxLowStreak int `yaml:"under_count_max"`
}

var DefaultConfig = Config{
	UnderThreshold:  2,
	MiddleThreshold: 4,
	OverThreshold:   6,
	MaxLowStreak:    60,
}

func (c Config) Validate() error {
	if c.UnderThreshold < 0 || c.MiddleThreshold < 0 || c.OverThreshold < 0 {
		return errors.Wrapf(ErrNegativeThreshold, "%s", c)
	}
	if c.UnderThreshold > c.MiddleThreshold || c.MiddleThreshold > c.OverThreshold {
		return errors.Wrapf(ErrThresholdOrder, "%s", c)
	}
	if c.MaxLowStreak < 1 {
		return errors.Wrapf(ErrInvalidLowStreak, "%s", c)
	}
	return nil
}

func (c Config) String() string {
	return fmt.Sprintf("under: %d, middle: %d, over: %d, maxLowStreak: %d",
		c.UnderThreshold, c.MiddleThreshold, c.OverThreshold, c.MaxLowStreak)
}
