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

// Package engine describes the surface of the external ST 2110 media engine
// that the pacers borrow from and write to. The engine owns the stream handle,
// RTP packetization and network I/O; this package only names the primitives.
package engine

// Item is a media unit borrowed from the engine's receive queue. It stays
// valid until it is handed back through Release.
type Item interface {
	Payload() []byte
}

// TimeInfo is attached to every unit written to a transmit stream.
type TimeInfo struct {
	// StartTimeNs is the TAI instant at which the engine releases the unit to the wire.
	StartTimeNs uint64
	// RTPTimestamp is derived from the nominal alignment point, not from StartTimeNs.
	RTPTimestamp uint32
}

// Status is a snapshot of the engine's application FIFO counters.
type Status struct {
	Reset     uint32
	Enqueue   uint32
	Dequeue   uint32
	Stored    uint32
	Capacity  uint32
	Overflow  uint32
	Underflow uint32
	Borrowed  bool
	Started   bool
}

// Reader is the receive side of a stream.
type Reader interface {
	// Occupancy returns the number of fully formed units currently queued.
	Occupancy() (int, error)
	// AcquireNext borrows the oldest queued unit without blocking.
	AcquireNext() (Item, error)
	// Release returns a borrowed unit. Releasing a unit twice is harmless.
	Release(item Item) error
}

// Writer is the transmit side of a stream.
type Writer interface {
	Write(info TimeInfo, payload []byte) error
}

// StatusSource is implemented by anything the monitor can poll.
type StatusSource interface {
	Status() (Status, error)
}
