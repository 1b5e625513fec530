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

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/livekit/protocol/logger"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/livekit/st2110util/pkg/fifo"
	"github.com/livekit/st2110util/pkg/rxpacer"
	"github.com/livekit/st2110util/pkg/troffset"
	"github.com/livekit/st2110util/pkg/txpacer"
)

const (
	DirectionTx = "tx"
	DirectionRx = "rx"

	DefaultDebugMessageInterval = 10

	// 10 bit 4:2:2 packs two pixels into five bytes
	uyvpBytesPerPixelNum = 5
	uyvpBytesPerPixelDen = 2
	audioBytesPerSample  = 3
	audioSampleRate      = 48000
)

type Config struct {
	Logging logger.Config  `yaml:"logging"`
	Monitor MonitorConfig  `yaml:"monitor"`
	Streams []StreamConfig `yaml:"streams"`
}

type MonitorConfig struct {
	// DebugMessageInterval is the status polling period in seconds. Zero disables polling.
	DebugMessageInterval int `yaml:"debug_message_interval"`
}

func (m MonitorConfig) Interval() time.Duration {
	return time.Duration(m.DebugMessageInterval) * time.Second
}

type StreamConfig struct {
	Name      string         `yaml:"name"`
	Direction string         `yaml:"direction"`
	Media     string         `yaml:"media"`
	Video     VideoConfig    `yaml:"video"`
	Audio     AudioConfig    `yaml:"audio"`
	TxDelayMs int            `yaml:"tx_delay_ms"`
	FifoSize  int            `yaml:"fifo_size"`
	RxPacing  rxpacer.Config `yaml:"rx_pacing"`
	IP        IPConfig       `yaml:"ip"`

	// RxAudio replaces RxPacing for audio receive streams.
	RxAudio rxpacer.AudioConfig `yaml:"rx_audio"`

	// PayloadSize overrides the unit size derived from the media format.
	PayloadSize int `yaml:"payload_size"`
}

type VideoConfig struct {
	Scan       string `yaml:"scan"`
	FrameRate  string `yaml:"frame_rate"`
	Resolution string `yaml:"resolution"`
}

type AudioConfig struct {
	Channels   int    `yaml:"channels"`
	PacketTime string `yaml:"packet_time"`
}

func defaultConfig() Config {
	return Config{
		Logging: logger.Config{Level: "info"},
		Monitor: MonitorConfig{DebugMessageInterval: DefaultDebugMessageInterval},
	}
}

func defaultStreamConfig(media string) StreamConfig {
	ip := defaultIPConfig()
	if kind, err := troffset.ParseMediaKind(media); err == nil && kind == troffset.MediaKindAudio {
		ip.Primary.PayloadType = DefaultAudioPayloadType
		ip.Secondary.PayloadType = DefaultAudioPayloadType
	}
	return StreamConfig{
		Direction: DirectionRx,
		Media:     media,
		Video: VideoConfig{
			Scan:       "progressive",
			FrameRate:  "60000/1001",
			Resolution: "1920x1080",
		},
		Audio: AudioConfig{
			Channels:   2,
			PacketTime: "1ms",
		},
		FifoSize: fifo.DefaultCapacity,
		RxPacing: rxpacer.DefaultConfig,
		RxAudio:  rxpacer.DefaultAudioConfig,
		IP:       ip,
	}
}

// UnmarshalYAML fills unset stream fields with defaults for the stream's media.
func (s *StreamConfig) UnmarshalYAML(value *yaml.Node) error {
	var probe struct {
		Media string `yaml:"media"`
	}
	if err := value.Decode(&probe); err != nil {
		return err
	}
	if probe.Media == "" {
		probe.Media = "video"
	}

	type plain StreamConfig
	p := plain(defaultStreamConfig(probe.Media))
	if err := value.Decode(&p); err != nil {
		return err
	}
	*s = StreamConfig(p)
	return nil
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read config %s", path)
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	conf := defaultConfig()
	if err := yaml.Unmarshal(data, &conf); err != nil {
		return nil, errors.Wrap(err, "could not parse config")
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return &conf, nil
}

func (c *Config) Validate() error {
	if c.Monitor.DebugMessageInterval < 0 {
		return errors.Wrapf(ErrInvalidConfig, "negative debug_message_interval %d", c.Monitor.DebugMessageInterval)
	}

	names := make(map[string]struct{}, len(c.Streams))
	for i := range c.Streams {
		s := &c.Streams[i]
		if s.Name == "" {
			s.Name = fmt.Sprintf("stream%d", i)
		}
		if _, ok := names[s.Name]; ok {
			return errors.Wrapf(ErrInvalidConfig, "duplicate stream name %q", s.Name)
		}
		names[s.Name] = struct{}{}

		if err := s.Validate(); err != nil {
			return errors.WithMessagef(err, "stream %q", s.Name)
		}
	}
	return nil
}

func (c *Config) Stream(name string) (StreamConfig, bool) {
	for _, s := range c.Streams {
		if s.Name == name {
			return s, true
		}
	}
	return StreamConfig{}, false
}

// ------------------------------------------

func (s StreamConfig) Validate() error {
	switch strings.ToLower(s.Direction) {
	case DirectionTx, DirectionRx:
	default:
		return errors.Wrapf(ErrInvalidConfig, "direction %q", s.Direction)
	}

	kind, err := s.MediaKind()
	if err != nil {
		return err
	}
	if s.FifoSize <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "fifo_size %d", s.FifoSize)
	}
	if s.TxDelayMs < 0 {
		return errors.Wrapf(ErrInvalidConfig, "tx_delay_ms %d", s.TxDelayMs)
	}

	switch kind {
	case troffset.MediaKindVideo:
		timing, err := s.VideoTiming()
		if err != nil {
			return err
		}
		if s.IsTx() {
			// no release time can be computed without a rule
			if _, err := troffset.Resolve(kind, &timing); err != nil {
				return err
			}
		}
	case troffset.MediaKindAudio:
		if _, err := s.PacketTime(); err != nil {
			return err
		}
		if s.Audio.Channels <= 0 {
			return errors.Wrapf(ErrInvalidConfig, "audio channels %d", s.Audio.Channels)
		}
	default:
		if _, err := s.FrameRate(); err != nil {
			return err
		}
	}

	if _, err := s.UnitSize(); err != nil {
		return err
	}
	switch {
	case s.IsTx():
	case kind == troffset.MediaKindAudio:
		if err := s.RxAudio.Validate(); err != nil {
			return err
		}
	default:
		if err := s.RxPacing.Validate(); err != nil {
			return err
		}
	}
	return s.IP.Validate()
}

func (s StreamConfig) IsTx() bool {
	return strings.ToLower(s.Direction) == DirectionTx
}

func (s StreamConfig) MediaKind() (troffset.MediaKind, error) {
	return troffset.ParseMediaKind(s.Media)
}

func (s StreamConfig) FrameRate() (troffset.FrameRate, error) {
	return troffset.ParseFrameRate(s.Video.FrameRate)
}

func (s StreamConfig) VideoTiming() (troffset.VideoTiming, error) {
	scan, err := troffset.ParseScanMode(s.Video.Scan)
	if err != nil {
		return troffset.VideoTiming{}, err
	}
	rate, err := s.FrameRate()
	if err != nil {
		return troffset.VideoTiming{}, err
	}
	res, err := troffset.ParseResolution(s.Video.Resolution)
	if err != nil {
		return troffset.VideoTiming{}, err
	}
	return troffset.VideoTiming{Scan: scan, FrameRate: rate, Resolution: res}, nil
}

// PacketTime accepts the two packet times of ST 2110-30 level A and C.
func (s StreamConfig) PacketTime() (time.Duration, error) {
	d, err := time.ParseDuration(s.Audio.PacketTime)
	if err != nil {
		return 0, errors.Wrapf(ErrInvalidConfig, "packet_time %q", s.Audio.PacketTime)
	}
	if d != time.Millisecond && d != 125*time.Microsecond {
		return 0, errors.Wrapf(ErrInvalidConfig, "unsupported packet_time %s", d)
	}
	return d, nil
}

// TxDelay is how far ahead of now the first unit is scheduled.
func (s StreamConfig) TxDelay() time.Duration {
	if s.TxDelayMs > 0 {
		return time.Duration(s.TxDelayMs) * time.Millisecond
	}
	if kind, err := s.MediaKind(); err == nil && kind == troffset.MediaKindAudio {
		return txpacer.DefaultAudioTxDelay
	}
	return txpacer.DefaultVideoTxDelay
}

// UnitPeriod is the time covered by one unit on the stream's timeline.
func (s StreamConfig) UnitPeriod() (time.Duration, error) {
	kind, err := s.MediaKind()
	if err != nil {
		return 0, err
	}
	if kind == troffset.MediaKindAudio {
		return s.PacketTime()
	}
	rate, err := s.FrameRate()
	if err != nil {
		return 0, err
	}
	return rate.Period(), nil
}

// UnitSize is the payload size of one unit as downstream sizes its buffers.
func (s StreamConfig) UnitSize() (int, error) {
	if s.PayloadSize < 0 {
		return 0, errors.Wrapf(ErrInvalidConfig, "payload_size %d", s.PayloadSize)
	}
	if s.PayloadSize > 0 {
		return s.PayloadSize, nil
	}

	kind, err := s.MediaKind()
	if err != nil {
		return 0, err
	}
	switch kind {
	case troffset.MediaKindVideo:
		timing, err := s.VideoTiming()
		if err != nil {
			return 0, err
		}
		w, h := timing.Resolution.Size()
		return w * h * uyvpBytesPerPixelNum / uyvpBytesPerPixelDen, nil
	case troffset.MediaKindAudio:
		pt, err := s.PacketTime()
		if err != nil {
			return 0, err
		}
		samples := int(int64(audioSampleRate) * int64(pt) / int64(time.Second))
		return samples * s.Audio.Channels * audioBytesPerSample, nil
	default:
		return 0, errors.Wrapf(ErrInvalidConfig, "payload_size is required for %s", kind)
	}
}
