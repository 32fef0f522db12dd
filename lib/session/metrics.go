// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("gymnet.session")

var (
	stepDuration    metric.Float64Histogram
	receiveTimeouts metric.Int64Counter
	launches        metric.Int64Counter
	episodes        metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics creates the instruments. Without an SDK installed they
// record nothing. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		stepDuration, err = meter.Float64Histogram(
			"gymnet_step_duration_seconds",
			metric.WithDescription("Time from sending an action to receiving the next observation"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		receiveTimeouts, err = meter.Int64Counter(
			"gymnet_receive_timeouts_total",
			metric.WithDescription("Receives that gave up waiting for the simulator"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		launches, err = meter.Int64Counter(
			"gymnet_simulator_launches_total",
			metric.WithDescription("Simulator launch attempts"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		episodes, err = meter.Int64Counter(
			"gymnet_episodes_total",
			metric.WithDescription("Episodes ended, by how they ended"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordStep(ctx context.Context, duration time.Duration, outcome string) {
	if err := initMetrics(); err != nil {
		return
	}
	stepDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("outcome", outcome),
	))
}

func recordReceiveTimeout(ctx context.Context) {
	if err := initMetrics(); err != nil {
		return
	}
	receiveTimeouts.Add(ctx, 1)
}

func recordLaunch(ctx context.Context, success bool) {
	if err := initMetrics(); err != nil {
		return
	}
	result := "ok"
	if !success {
		result = "error"
	}
	launches.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

func recordEpisodeEnd(ctx context.Context, end string) {
	if err := initMetrics(); err != nil {
		return
	}
	episodes.Add(ctx, 1, metric.WithAttributes(attribute.String("end", end)))
}
