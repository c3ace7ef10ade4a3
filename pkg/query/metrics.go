// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package query

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "vsphere_rest"

var (
	searchScans = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "search_scan_count",
		Help:      "The total number of first-phase searches that fetched only the searched property.",
	})

	searchRefetches = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "search_refetch_count",
		Help:      "The total number of second-phase fetches of matched entities.",
	})

	searchShortCircuits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "search_empty_count",
		Help:      "The total number of searches that matched nothing and skipped the second phase.",
	})

	deletes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "entity_delete_count",
		Help:      "The total number of entities destroyed through the gateway.",
	})
)
