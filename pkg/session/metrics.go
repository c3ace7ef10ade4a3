// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "vsphere_rest"

var (
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "session_cache_hit_count",
		Help:      "The total number of requests served by an already connected session.",
	})

	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "session_cache_miss_count",
		Help:      "The total number of requests that found no usable session.",
	})

	opens = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "session_open_count",
		Help:      "The total number of remote logins attempted.",
	})

	openFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "session_open_failure_count",
		Help:      "The total number of remote logins that failed.",
	})

	sharedOpens = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "session_open_deduplicated_count",
		Help:      "The total number of requests that waited on another request's login.",
	})

	cachedSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "session_cache_size",
		Help:      "The number of sessions currently cached.",
	})
)
