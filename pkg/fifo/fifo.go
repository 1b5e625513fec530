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

// Package fifo is an in-process stand-in for the engine's application FIFO.
// A transmit pacer can write into it and a receive pacer can borrow from it,
// which makes a loopback stream without the proprietary engine.
package fifo

import (
	"sync"

	"github.com/gammazero/deque"
	"github.com/pkg/errors"

	"github.com/livekit/st2110util/pkg/engine"
)

const (
	DefaultCapacity = 8
	minCapacityExp  = 4
)

type Frame struct {
	payload      []byte
	rtpTimestamp uint32
	startTimeNs  uint64
	seq          uint64
}

func (f *Frame) Payload() []byte {
	return f.payload
}

func (f *Frame) RTPTimestamp() uint32 {
	return f.rtpTimestamp
}

func (f *Frame) StartTimeNs() uint64 {
	return f.startTimeNs
}

func (f *Frame) SequenceNumber() uint64 {
	return f.seq
}

// FIFO is a bounded queue with a single outstanding read pointer. The
// borrowed frame keeps its slot until it is released.
type FIFO struct {
	lock     sync.Mutex
	capacity int
	frames   deque.Deque[*Frame]
	borrowed *Frame
	started  bool
	nextSeq  uint64

	reset     uint32
	enqueue   uint32
	dequeue   uint32
	overflow  uint32
	underflow uint32
}

func New(capacity int) *FIFO {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	f := &FIFO{
		capacity: capacity,
	}
	f.frames.SetMinCapacity(minCapacityExp)
	return f
}

func (f *FIFO) Capacity() int {
	return f.capacity
}

func (f *FIFO) Start() {
	f.lock.Lock()
	f.started = true
	f.lock.Unlock()
}

// Stop drops everything queued, including a borrowed frame.
func (f *FIFO) Stop() {
	f.lock.Lock()
	defer f.lock.Unlock()

	if !f.started {
		return
	}
	f.started = false
	f.frames.Clear()
	f.borrowed = nil
	f.reset++
}

func (f *FIFO) Write(info engine.TimeInfo, payload []byte) error {
	f.lock.Lock()
	defer f.lock.Unlock()

	if !f.started {
		return engine.ErrNotStarted
	}
	if f.used() >= f.capacity {
		f.overflow++
		return errors.Wrapf(engine.ErrBufferFull, "capacity %d", f.capacity)
	}

	stored := make([]byte, len(payload))
	copy(stored, payload)
	f.frames.PushBack(&Frame{
		payload:      stored,
		rtpTimestamp: info.RTPTimestamp,
		startTimeNs:  info.StartTimeNs,
		seq:          f.nextSeq,
	})
	f.nextSeq++
	f.enqueue++
	return nil
}

func (f *FIFO) Occupancy() (int, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	if !f.started {
		return 0, engine.ErrNotStarted
	}
	return f.frames.Len(), nil
}

func (f *FIFO) AcquireNext() (engine.Item, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	if !f.started {
		return nil, engine.ErrNotStarted
	}
	if f.borrowed != nil {
		return nil, errors.Wrapf(engine.ErrReadPtrHeld, "seq %d", f.borrowed.seq)
	}
	if f.frames.Len() == 0 {
		f.underflow++
		return nil, engine.ErrBufferEmpty
	}

	f.borrowed = f.frames.PopFront()
	f.dequeue++
	return f.borrowed, nil
}

func (f *FIFO) Release(item engine.Item) error {
	f.lock.Lock()
	defer f.lock.Unlock()

	frame, ok := item.(*Frame)
	if !ok || frame == nil || frame != f.borrowed {
		return engine.ErrNotBorrowed
	}
	f.borrowed = nil
	return nil
}

// TransmitDue pops queued frames whose start time is at or before taiNs, in
// order, and returns them. It stops at the first frame that is not yet due.
func (f *FIFO) TransmitDue(taiNs uint64) ([]*Frame, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	if !f.started {
		return nil, engine.ErrNotStarted
	}
	var due []*Frame
	for f.frames.Len() > 0 && f.frames.Front().startTimeNs <= taiNs {
		due = append(due, f.frames.PopFront())
		f.dequeue++
	}
	return due, nil
}

func (f *FIFO) Status() (engine.Status, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	return engine.Status{
		Reset:     f.reset,
		Enqueue:   f.enqueue,
		Dequeue:   f.dequeue,
		Stored:    uint32(f.frames.Len()),
		Capacity:  uint32(f.capacity),
		Overflow:  f.overflow,
		Underflow: f.underflow,
		Borrowed:  f.borrowed != nil,
		Started:   f.started,
	}, nil
}

func (f *FIFO) used() int {
	n := f.frames.Len()
	if f.borrowed != nil {
		n++
	}
	return n
}
