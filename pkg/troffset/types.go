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

package troffset

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
)

type MediaKind int

const (
	MediaKindVideo MediaKind = iota
	MediaKindAudio
	MediaKindAncillary
	MediaKindCompressedVideo
)

func (k MediaKind) String() string {
	switch k {
	case MediaKindVideo:
		return "video"
	case MediaKindAudio:
		return "audio"
	case MediaKindAncillary:
		return "anc"
	case MediaKindCompressedVideo:
		return "jxsv"
	default:
		return fmt.Sprintf("MediaKind(%d)", int(k))
	}
}

func ParseMediaKind(s string) (MediaKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "video":
		return MediaKindVideo, nil
	case "audio":
		return MediaKindAudio, nil
	case "anc", "ancillary":
		return MediaKindAncillary, nil
	case "jxsv", "jpeg-xs", "compressed":
		return MediaKindCompressedVideo, nil
	default:
		return 0, errors.Wrapf(ErrUnknownValue, "media kind %q", s)
	}
}

// ------------------------------------------

type ScanMode int

const (
	ScanProgressive ScanMode = iota
	ScanInterlaceTopFirst
	ScanInterlaceBottomFirst
)

func (s ScanMode) IsProgressive() bool {
	return s == ScanProgressive
}

func (s ScanMode) String() string {
	switch s {
	case ScanProgressive:
		return "progressive"
	case ScanInterlaceTopFirst:
		return "tff"
	case ScanInterlaceBottomFirst:
		return "bff"
	default:
		return fmt.Sprintf("ScanMode(%d)", int(s))
	}
}

func ParseScanMode(s string) (ScanMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "progressive", "p", "":
		return ScanProgressive, nil
	case "tff", "interlace", "interlace-tff", "i":
		return ScanInterlaceTopFirst, nil
	case "bff", "interlace-bff":
		return ScanInterlaceBottomFirst, nil
	default:
		return 0, errors.Wrapf(ErrUnknownValue, "scan mode %q", s)
	}
}

// ------------------------------------------

type FrameRate int

const (
	FrameRate60000_1001 FrameRate = iota
	FrameRate30000_1001
	FrameRate50_1
	FrameRate25_1
	FrameRate60_1
)

var frameRates = map[FrameRate][2]uint64{
	FrameRate60000_1001: {60000, 1001},
	FrameRate30000_1001: {30000, 1001},
	FrameRate50_1:       {50, 1},
	FrameRate25_1:       {25, 1},
	FrameRate60_1:       {60, 1},
}

// Fraction returns numerator and denominator in frames per second.
// Both are zero for an unknown rate.
func (r FrameRate) Fraction() (num uint64, den uint64) {
	f := frameRates[r]
	return f[0], f[1]
}

// Period returns the frame period truncated to whole nanoseconds.
func (r FrameRate) Period() time.Duration {
	num, den := r.Fraction()
	if num == 0 {
		return 0
	}
	return time.Duration(den * uint64(time.Second) / num)
}

func (r FrameRate) String() string {
	num, den := r.Fraction()
	if num == 0 {
		return fmt.Sprintf("FrameRate(%d)", int(r))
	}
	return fmt.Sprintf("%d/%d", num, den)
}

func ParseFrameRate(s string) (FrameRate, error) {
	s = strings.TrimSpace(s)
	switch s {
	case "59.94":
		return FrameRate60000_1001, nil
	case "29.97":
		return FrameRate30000_1001, nil
	}
	if !strings.Contains(s, "/") {
		s += "/1"
	}
	for r := range frameRates {
		if r.String() == s {
			return r, nil
		}
	}
	return 0, errors.Wrapf(ErrUnknownValue, "frame rate %q", s)
}

// ------------------------------------------

type Resolution int

const (
	Resolution3840x2160 Resolution = iota
	Resolution1920x1080
)

func (r Resolution) Size() (width int, height int) {
	switch r {
	case Resolution3840x2160:
		return 3840, 2160
	case Resolution1920x1080:
		return 1920, 1080
	default:
		return 0, 0
	}
}

func (r Resolution) String() string {
	w, h := r.Size()
	if w == 0 {
		return fmt.Sprintf("Resolution(%d)", int(r))
	}
	return fmt.Sprintf("%dx%d", w, h)
}

// ParseResolution accepts a raster size only. Scan is configured separately,
// so "1080i" style names are rejected rather than half-parsed.
func ParseResolution(s string) (Resolution, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "3840x2160", "2160", "uhd":
		return Resolution3840x2160, nil
	case "1920x1080", "1080", "hd":
		return Resolution1920x1080, nil
	default:
		return 0, errors.Wrapf(ErrUnknownValue, "resolution %q", s)
	}
}

// ------------------------------------------

// VideoTiming is the negotiated raster of a video stream.
type VideoTiming struct {
	Scan       ScanMode
	FrameRate  FrameRate
	Resolution Resolution
}

func (t VideoTiming) String() string {
	scan := "p"
	if !t.Scan.IsProgressive() {
		scan = "i"
	}
	_, h := t.Resolution.Size()
	return fmt.Sprintf("%d%s@%s", h, scan, t.FrameRate)
}
