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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecide(t *testing.T) {
	holding := Holding(&fakeItem{payload: []byte{1}}, 0)

	testCases := []struct {
		name      string
		state     State
		occupancy int
		expected  Action
	}{
		{"empty, nothing queued", Empty(), 0, ActionWait},
		{"empty, below middle", Empty(), 3, ActionWait},
		{"empty, at middle", Empty(), 4, ActionAcquire},
		{"empty, above over", Empty(), 10, ActionAcquire},
		{"holding, nothing queued", holding, 0, ActionHold},
		{"holding, below under", holding, 1, ActionHold},
		{"holding, at under", holding, 2, ActionAdvance},
		{"holding, at over", holding, 6, ActionAdvance},
		{"holding, above over", holding, 7, ActionCatchUp},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expected, Decide(tc.state, testConfig, tc.occupancy))
		})
	}
}

func TestStarve(t *testing.T) {
	holding := Holding(&fakeItem{payload: []byte{1}}, 0)

	require.Equal(t, ActionWait, Starve(Empty()))
	require.Equal(t, ActionHold, Starve(holding))
}

func TestNeedsReset(t *testing.T) {
	item := &fakeItem{payload: []byte{1, 2, 3, 4}}

	require.False(t, needsReset(Empty(), testConfig, 4))
	require.False(t, needsReset(Holding(item, testConfig.MaxLowStreak-1), testConfig, 4))
	require.True(t, needsReset(Holding(item, testConfig.MaxLowStreak), testConfig, 4))
	require.True(t, needsReset(Holding(item, 0), testConfig, 3))
}

func TestConfigValidate(t *testing.T) {
	testCases := []struct {
		name string
		cfg  Config
		err  error
	}{
		{"default", DefaultConfig, nil},
		{"all equal", Config{3, 3, 3, 1}, nil},
		{"zero thresholds", Config{0, 0, 0, 1}, nil},
		{"negative", Config{-1, 4, 6, 60}, ErrNegativeThreshold},
		{"under above middle", Config{5, 4, 6, 60}, ErrThresholdOrder},
		{"middle above over", Config{2, 7, 6, 60}, ErrThresholdOrder},
		{"no low streak", Config{2, 4, 6, 0}, ErrInvalidLowStreak},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.err == nil {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, tc.err)
			}
		})
	}
}

func TestActionString(t *testing.T) {
	require.Equal(t, "catch-up", ActionCatchUp.String())
	require.Equal(t, "Action(99)", Action(99).String())
	require.Equal(t, "empty", Empty().String())
	require.Equal(t, "holding(lowCount: 3)", Holding(&fakeItem{}, 3).String())
}
