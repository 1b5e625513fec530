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

// Package troffset computes the transmit offset (TR offset) of a stream: the
// time before a unit's nominal presentation instant at which it must be
// released to the wire.
package troffset

import (
	"time"

	"github.com/pkg/errors"
	"golang.org/x/exp/slices"
)

// Offset is a TR offset in nanoseconds.
type Offset int32

// Unavailable means no rule matched the media configuration.
const Unavailable Offset = -9999

const (
	AudioOffset           Offset = 100000
	AncillaryOffset       Offset = 40000
	CompressedVideoOffset Offset = 620000
)

func (o Offset) IsAvailable() bool {
	return o != Unavailable
}

func (o Offset) Duration() time.Duration {
	return time.Duration(o)
}

// OffsetSpec is a table entry: the budget from the timing model and the
// safety margin subtracted from it.
type OffsetSpec struct {
	SpecTimeNs int32
	MarginNs   int32
}

func (s OffsetSpec) Offset() Offset {
	return Offset(s.SpecTimeNs - s.MarginNs)
}

// ------------------------------------------

type scanFamily int

const (
	progressiveFamily scanFamily = iota
	interlacedFamily
)

func familyOf(s ScanMode) scanFamily {
	if s.IsProgressive() {
		return progressiveFamily
	}
	return interlacedFamily
}

type tableKey struct {
	family     scanFamily
	frameRate  FrameRate
	resolution Resolution
}

const defaultMarginNs = 20000

// videoTable is exhaustive. Combinations not listed have no rule.
var videoTable = map[tableKey]OffsetSpec{
	{progressiveFamily, FrameRate60000_1001, Resolution3840x2160}: {637674, defaultMarginNs},
	{progressiveFamily, FrameRate60000_1001, Resolution1920x1080}: {637674, defaultMarginNs},
	{interlacedFamily, FrameRate30000_1001, Resolution1920x1080}:  {652503, defaultMarginNs},
	{progressiveFamily, FrameRate50_1, Resolution3840x2160}:       {764444, defaultMarginNs},
	{progressiveFamily, FrameRate50_1, Resolution1920x1080}:       {764444, defaultMarginNs},
	{interlacedFamily, FrameRate25_1, Resolution1920x1080}:        {782222, defaultMarginNs},
	{progressiveFamily, FrameRate60_1, Resolution3840x2160}:       {637037, defaultMarginNs},
	{progressiveFamily, FrameRate60_1, Resolution1920x1080}:       {637037, defaultMarginNs},
}

// Lookup returns the table entry for a video timing. ok is false when the
// combination has no entry, which is distinct from an entry whose offset is zero.
func Lookup(t VideoTiming) (spec OffsetSpec, ok bool) {
	spec, ok = videoTable[tableKey{familyOf(t.Scan), t.FrameRate, t.Resolution}]
	return
}

// ComputeOffset maps a media kind and, for uncompressed video, its timing to
// a TR offset. timing is ignored for every other kind. The result is
// Unavailable when no rule matches; it must not be used arithmetically.
func ComputeOffset(kind MediaKind, timing *VideoTiming) Offset {
	switch kind {
	case MediaKindAudio:
		return AudioOffset
	case MediaKindAncillary:
		return AncillaryOffset
	case MediaKindCompressedVideo:
		return CompressedVideoOffset
	case MediaKindVideo:
		if timing == nil {
			return Unavailable
		}
		spec, ok := Lookup(*timing)
		if !ok {
			return Unavailable
		}
		return spec.Offset()
	default:
		return Unavailable
	}
}

// Resolve is ComputeOffset with the Unavailable sentinel turned into ErrConfigurationGap.
func Resolve(kind MediaKind, timing *VideoTiming) (Offset, error) {
	offset := ComputeOffset(kind, timing)
	if !offset.IsAvailable() {
		if timing == nil {
			return Unavailable, errors.Wrapf(ErrConfigurationGap, "media %s", kind)
		}
		return Unavailable, errors.Wrapf(ErrConfigurationGap, "media %s, timing %s", kind, timing)
	}
	return offset, nil
}

// SupportedTimings lists one representative timing per table entry,
// ordered by scan family, frame rate and resolution.
func SupportedTimings() []VideoTiming {
	keys := make([]tableKey, 0, len(videoTable))
	for k := range videoTable {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b tableKey) int {
		if a.family != b.family {
			return int(a.family) - int(b.family)
		}
		if a.frameRate != b.frameRate {
			return int(a.frameRate) - int(b.frameRate)
		}
		return int(a.resolution) - int(b.resolution)
	})

	timings := make([]VideoTiming, 0, len(keys))
	for _, k := range keys {
		scan := ScanProgressive
		if k.family == interlacedFamily {
			scan = ScanInterlaceTopFirst
		}
		timings = append(timings, VideoTiming{Scan: scan, FrameRate: k.frameRate, Resolution: k.resolution})
	}
	return timings
}
