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

package monitor

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/livekit/st2110util/pkg/engine"
	"github.com/livekit/st2110util/pkg/rxpacer"
)

const namespace = "st2110"

type Metrics struct {
	Stored    *prometheus.GaugeVec
	Capacity  *prometheus.GaugeVec
	Enqueued  *prometheus.GaugeVec
	Dequeued  *prometheus.GaugeVec
	Overflow  *prometheus.GaugeVec
	Underflow *prometheus.GaugeVec
	Resets    *prometheus.GaugeVec
	Actions   *prometheus.GaugeVec
}

func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	gauge := func(name, help string, labels ...string) *prometheus.GaugeVec {
		return prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "fifo",
			Name:      name,
			Help:      help,
		}, append([]string{"stream"}, labels...))
	}

	// counters owned by the engine or pacer are mirrored as gauges of the
	// last polled value
	m := &Metrics{
		Stored:    gauge("stored", "Units stored in the engine FIFO."),
		Capacity:  gauge("capacity", "Engine FIFO capacity."),
		Enqueued:  gauge("enqueued", "Units enqueued since the engine started."),
		Dequeued:  gauge("dequeued", "Units dequeued since the engine started."),
		Overflow:  gauge("overflows", "Writes refused because the FIFO was full."),
		Underflow: gauge("underflows", "Reads attempted on an empty FIFO."),
		Resets:    gauge("resets", "Engine resets since start."),
		Actions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "rx_pacer",
			Name:      "actions",
			Help:      "Receive pacing decisions by action.",
		}, []string{"stream", "action"}),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{
			m.Stored, m.Capacity, m.Enqueued, m.Dequeued, m.Overflow, m.Underflow, m.Resets, m.Actions,
		} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

func (m *Metrics) observeStatus(stream string, s engine.Status) {
	m.Stored.WithLabelValues(stream).Set(float64(s.Stored))
	m.Capacity.WithLabelValues(stream).Set(float64(s.Capacity))
	m.Enqueued.WithLabelValues(stream).Set(float64(s.Enqueue))
	m.Dequeued.WithLabelValues(stream).Set(float64(s.Dequeue))
	m.Overflow.WithLabelValues(stream).Set(float64(s.Overflow))
	m.Underflow.WithLabelValues(stream).Set(float64(s.Underflow))
	m.Resets.WithLabelValues(stream).Set(float64(s.Reset))
}

func (m *Metrics) observePacer(stream string, s rxpacer.StatsSnapshot) {
	for action, v := range map[rxpacer.Action]uint64{
		rxpacer.ActionWait:    s.Waits,
		rxpacer.ActionAcquire: s.Acquires,
		rxpacer.ActionHold:    s.Holds,
		rxpacer.ActionAdvance: s.Advances,
		rxpacer.ActionCatchUp: s.CatchUps,
		rxpacer.ActionReset:   s.Resets,
	} {
		m.Actions.WithLabelValues(stream, action.String()).Set(float64(v))
	}
}

func (m *Metrics) remove(stream string) {
	for _, g := range []*prometheus.GaugeVec{
		m.Stored, m.Capacity, m.Enqueued, m.Dequeued, m.Overflow, m.Underflow, m.Resets,
	} {
		g.DeleteLabelValues(stream)
	}
	m.Actions.DeletePartialMatch(prometheus.Labels{"stream": stream})
}
