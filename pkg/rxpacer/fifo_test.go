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

package rxpacer_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/livekit/st2110util/pkg/engine"
	"github.com/livekit/st2110util/pkg/fifo"
	"github.com/livekit/st2110util/pkg/rxpacer"
)

func push(t *testing.T, f *fifo.FIFO, n int, first byte) {
	for i := 0; i < n; i++ {
		b := first + byte(i)
		require.NoError(t, f.Write(engine.TimeInfo{RTPTimestamp: uint32(b)}, []byte{b, b, b}))
	}
}

func TestControllerOverFIFO(t *testing.T) {
	f := fifo.New(16)
	f.Start()

	c, err := rxpacer.NewController(f, rxpacer.DefaultConfig)
	require.NoError(t, err)

	dst := make([]byte, 3)

	// build up to the middle threshold before the first frame is shown
	push(t, f, 3, 1)
	require.Equal(t, rxpacer.ActionWait, c.Fill(dst).Action)
	require.Equal(t, []byte{0, 0, 0}, dst)

	push(t, f, 1, 4)
	require.Equal(t, rxpacer.ActionAcquire, c.Fill(dst).Action)
	require.Equal(t, []byte{1, 1, 1}, dst)

	// steady state: one in, one out
	for i := byte(5); i < 10; i++ {
		push(t, f, 1, i)
		require.Equal(t, rxpacer.ActionAdvance, c.Fill(dst).Action)
		require.Equal(t, []byte{i - 3, i - 3, i - 3}, dst)
	}

	// a burst pushes occupancy over the threshold and frames are skipped
	push(t, f, 5, 10)
	res := c.Fill(dst)
	require.Equal(t, rxpacer.ActionCatchUp, res.Action)
	require.Equal(t, []byte{8, 8, 8}, dst)

	status, err := f.Status()
	require.NoError(t, err)
	require.True(t, status.Borrowed)
	require.Equal(t, uint32(6), status.Stored)

	c.Reset()
	status, err = f.Status()
	require.NoError(t, err)
	require.False(t, status.Borrowed)
}

func TestControllerOverStoppedFIFO(t *testing.T) {
	f := fifo.New(4)
	c, err := rxpacer.NewController(f, rxpacer.DefaultConfig)
	require.NoError(t, err)

	dst := []byte{1, 2}
	res := c.Fill(dst)
	require.True(t, res.Degraded)
	require.True(t, res.IsBlank())
	require.Equal(t, []byte{0, 0}, dst)
}

func TestAudioReaderOverFIFO(t *testing.T) {
	f := fifo.New(16)
	f.Start()

	r, err := rxpacer.NewAudioReader(f, rxpacer.DefaultAudioConfig)
	require.NoError(t, err)

	dst := make([]byte, 6)
	push(t, f, 4, 1)
	require.True(t, r.Fill(dst).Silent)

	push(t, f, 1, 5)
	res := r.Fill(dst)
	require.False(t, res.Silent)
	require.Equal(t, []byte{1, 1, 1, 2, 2, 2}, dst)

	res = r.Fill(dst)
	require.False(t, res.Silent)
	require.Equal(t, []byte{3, 3, 3, 4, 4, 4}, dst)

	// one packet left is below the enter threshold
	require.True(t, r.Fill(dst).Silent)
	n, err := f.Occupancy()
	require.NoError(t, err)
	require.Equal(t, 1, n)

	status, err := f.Status()
	require.NoError(t, err)
	require.False(t, status.Borrowed)
}
