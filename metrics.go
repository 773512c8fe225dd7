// Copyright (c) 2024 LevelGraph Go Contributors
//
// Permission is hereby granted, free of charge, to any person
// obtaining a copy of this software and associated documentation
// files (the "Software"), to deal in the Software without
// restriction, including without limitation the rights to use,
// copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the
// Software is furnished to do so, subject to the following
// conditions:
//
// The above copyright notice and this permission notice shall be
// included in all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND,
// EXPRESS OR IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES
// OF MERCHANTABILITY, FITNESS FOR A PARTICULAR PURPOSE AND
// NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR COPYRIGHT
// HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY,
// WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING
// FROM, OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR
// OTHER DEALINGS IN THE SOFTWARE.

package hannoygo

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics holds the handful of process-wide counters and histograms every
// opened index reports through. There is one registration per process (not
// per index); individual series are labeled by index_id so a store with
// several indexes stays distinguishable in one scrape.
type metrics struct {
	itemsIndexed  *prometheus.CounterVec
	buildDuration *prometheus.HistogramVec
	buildErrors   *prometheus.CounterVec
	searchLatency *prometheus.HistogramVec
}

var metricsOnce = promauto.With(prometheus.DefaultRegisterer)

func newMetrics() *metrics {
	return &metrics{
		itemsIndexed: metricsOnce.NewCounterVec(prometheus.CounterOpts{
			Name: "hannoygo_items_indexed_total",
			Help: "Total items inserted or deleted across all completed builds.",
		}, []string{"index_id", "op"}),
		buildDuration: metricsOnce.NewHistogramVec(prometheus.HistogramOpts{
			Name: "hannoygo_build_duration_seconds",
			Help: "Wall-clock duration of completed Build calls.",
		}, []string{"index_id"}),
		buildErrors: metricsOnce.NewCounterVec(prometheus.CounterOpts{
			Name: "hannoygo_build_errors_total",
			Help: "Build calls that aborted without committing.",
		}, []string{"index_id"}),
		searchLatency: metricsOnce.NewHistogramVec(prometheus.HistogramOpts{
			Name: "hannoygo_search_latency_seconds",
			Help: "Latency of completed Search calls.",
		}, []string{"index_id"}),
	}
}

var defaultMetrics = newMetrics()
