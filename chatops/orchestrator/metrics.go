/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autopatch_events_total",
			Help: "Total number of events processed, by planned action",
		},
		[]string{"action"},
	)

	stageFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autopatch_stage_failures_total",
			Help: "Total number of runs that failed, by stage",
		},
		[]string{"stage"},
	)

	duplicatesCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "autopatch_duplicate_events_total",
			Help: "Total number of events dropped as duplicates",
		},
	)

	pipelineDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "autopatch_pipeline_duration_seconds",
			Help:    "End to end processing time of an event",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		},
		[]string{"action", "outcome"},
	)
)

func observe(out *Outcome) {
	action := out.Action
	if action == "" {
		action = "unplanned"
	}
	eventsCounter.WithLabelValues(action).Inc()
	outcome := "done"
	if out.Failed() {
		outcome = "failed"
		stageFailures.WithLabelValues(out.Stage).Inc()
	}
	pipelineDuration.WithLabelValues(action, outcome).Observe(out.Duration.Seconds())
}
