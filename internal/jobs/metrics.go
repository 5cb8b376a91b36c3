package jobs

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsQueryTimeout = 2 * time.Second

// QueueCollector exposes live pending/processing/dead-letter depths as
// Prometheus gauges. Unlike a counter incremented inline with each
// operation, depth is queried fresh from Redis on every scrape — the
// queue's true depth can change between submits/claims from other
// processes, so a cached counter would drift.
type QueueCollector struct {
	queue *Queue

	pendingDesc    *prometheus.Desc
	processingDesc *prometheus.Desc
	deadLetterDesc *prometheus.Desc
}

// NewQueueCollector builds a collector over queue. Register it with a
// prometheus.Registerer to expose titan_jobs_pending/processing/dead_letter.
func NewQueueCollector(queue *Queue) *QueueCollector {
	return &QueueCollector{
		queue:          queue,
		pendingDesc:    prometheus.NewDesc("titan_jobs_pending", "Jobs waiting to be claimed.", nil, nil),
		processingDesc: prometheus.NewDesc("titan_jobs_processing", "Jobs currently claimed and running.", nil, nil),
		deadLetterDesc: prometheus.NewDesc("titan_jobs_dead_letter", "Jobs that exhausted their retry budget.", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *QueueCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.pendingDesc
	ch <- c.processingDesc
	ch <- c.deadLetterDesc
}

// Collect implements prometheus.Collector, querying Redis for each
// depth. A failed query is reported as zero rather than blocking the
// whole scrape on one bad list.
func (c *QueueCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), metricsQueryTimeout)
	defer cancel()

	pending, _ := c.queue.client.LLen(ctx, keyPending).Result()
	processing, _ := c.queue.client.LLen(ctx, keyProcessing).Result()
	dead, _ := c.queue.client.LLen(ctx, keyDLQ).Result()

	ch <- prometheus.MustNewConstMetric(c.pendingDesc, prometheus.GaugeValue, float64(pending))
	ch <- prometheus.MustNewConstMetric(c.processingDesc, prometheus.GaugeValue, float64(processing))
	ch <- prometheus.MustNewConstMetric(c.deadLetterDesc, prometheus.GaugeValue, float64(dead))
}
