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

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/livekit/protocol/logger"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/livekit/st2110util/pkg/config"
	"github.com/livekit/st2110util/pkg/monitor"
	"github.com/livekit/st2110util/pkg/sim"
	"github.com/livekit/st2110util/pkg/troffset"
)

type options struct {
	configPath  string
	duration    time.Duration
	driftPPM    float64
	stall       float64
	seed        int64
	metricsAddr string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "st2110sim",
		Short:        "Simulate ST 2110 transmit and receive pacing",
		SilenceUsage: true,
	}
	root.AddCommand(newRunCommand(), newOffsetsCommand())
	return root
}

func newRunCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the configured streams through the pacing pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "path to the stream config")
	cmd.Flags().DurationVarP(&opts.duration, "duration", "d", 0, "stop after this long, 0 runs until interrupted")
	cmd.Flags().Float64Var(&opts.driftPPM, "drift", 0, "producer clock drift in ppm")
	cmd.Flags().Float64Var(&opts.stall, "stall", 0, "probability that a producer tick stalls")
	cmd.Flags().Int64Var(&opts.seed, "seed", 1, "jitter seed")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}

func newOffsetsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "offsets",
		Short: "List the video timings that have a TR offset",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, timing := range troffset.SupportedTimings() {
				offset, err := troffset.Resolve(troffset.MediaKindVideo, &timing)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-24s %s\n", timing, offset.Duration())
			}
			return nil
		},
	}
}

func run(ctx context.Context, opts *options) error {
	conf, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	logger.InitFromConfig(conf.Logging, "st2110sim")
	l := logger.GetLogger()

	if len(conf.Streams) == 0 {
		return errors.Wrap(config.ErrInvalidConfig, "no streams configured")
	}
	conf.Preflight(l)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if opts.duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.duration)
		defer cancel()
	}

	reg := prometheus.NewRegistry()
	metrics, err := monitor.NewMetrics(reg)
	if err != nil {
		return err
	}

	var mon *monitor.Monitor
	if interval := conf.Monitor.Interval(); interval > 0 {
		mon, err = monitor.New(interval, monitor.WithLogger(l), monitor.WithMetrics(metrics))
		if err != nil {
			return err
		}
	}

	simOpts := []sim.Option{
		sim.WithLogger(l),
		sim.WithDrift(opts.driftPPM),
		sim.WithStallProbability(opts.stall),
		sim.WithSeed(opts.seed),
	}
	streams := make([]sim.Stream, 0, len(conf.Streams))
	for _, sc := range conf.Streams {
		s, err := sim.NewStream(sc, simOpts...)
		if err != nil {
			return errors.WithMessagef(err, "stream %s", sc.Name)
		}
		streams = append(streams, s)
		if mon != nil {
			if err := mon.Add(s.Name(), s.Source(), s.PacingStats()); err != nil {
				return err
			}
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, s := range streams {
		s := s
		g.Go(func() error {
			return errors.WithMessagef(s.Run(ctx), "stream %s", s.Name())
		})
	}
	if mon != nil {
		g.Go(func() error {
			return mon.Run(ctx)
		})
	}
	if opts.metricsAddr != "" {
		srv := &http.Server{
			Addr:    opts.metricsAddr,
			Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		}
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			return srv.Close()
		})
	}

	l.Infow("simulation running", "streams", len(streams), "duration", opts.duration)
	err = g.Wait()

	for _, s := range streams {
		fmt.Println(s.Summary())
	}
	return err
}
