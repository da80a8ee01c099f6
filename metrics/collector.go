// Package metrics exports sharedmutex statistics to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/thetarby/sharedmutex"
)

// StatsSource is implemented by *sharedmutex.Mutex.
type StatsSource interface {
	Stats() sharedmutex.Stats
}

type Collector struct {
	src StatsSource

	activeReaders  *prometheus.Desc
	writerActive   *prometheus.Desc
	waitingReaders *prometheus.Desc
	waitingWriters *prometheus.Desc
	acquired       *prometheus.Desc
	contended      *prometheus.Desc
	cancelled      *prometheus.Desc
}

// NewCollector returns a collector reading src on every scrape. The lock
// name is attached to every series as the "lock" label.
func NewCollector(namespace, lock string, src StatsSource) *Collector {
	labels := prometheus.Labels{"lock": lock}
	desc := func(name, help string, variable ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "sharedmutex", name), help, variable, labels)
	}
	return &Collector{
		src:            src,
		activeReaders:  desc("active_readers", "Readers currently holding the lock."),
		writerActive:   desc("writer_active", "1 if a writer holds the lock."),
		waitingReaders: desc("waiting_readers", "Readers queued for the lock."),
		waitingWriters: desc("waiting_writers", "Writers queued for the lock."),
		acquired:       desc("acquired_total", "Granted acquisitions by mode.", "mode"),
		contended:      desc("contended_total", "Acquisitions that had to wait."),
		cancelled:      desc("cancelled_total", "Waits abandoned by cancellation or timeout."),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.activeReaders
	ch <- c.writerActive
	ch <- c.waitingReaders
	ch <- c.waitingWriters
	ch <- c.acquired
	ch <- c.contended
	ch <- c.cancelled
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.src.Stats()

	writer := 0.0
	if s.WriterActive {
		writer = 1
	}
	ch <- prometheus.MustNewConstMetric(c.activeReaders, prometheus.GaugeValue, float64(s.ActiveReaders))
	ch <- prometheus.MustNewConstMetric(c.writerActive, prometheus.GaugeValue, writer)
	ch <- prometheus.MustNewConstMetric(c.waitingReaders, prometheus.GaugeValue, float64(s.WaitingReaders))
	ch <- prometheus.MustNewConstMetric(c.waitingWriters, prometheus.GaugeValue, float64(s.WaitingWriters))
	ch <- prometheus.MustNewConstMetric(c.acquired, prometheus.CounterValue, float64(s.SharedAcquired), "shared")
	ch <- prometheus.MustNewConstMetric(c.acquired, prometheus.CounterValue, float64(s.ExclusiveAcquired), "exclusive")
	ch <- prometheus.MustNewConstMetric(c.contended, prometheus.CounterValue, float64(s.Contended))
	ch <- prometheus.MustNewConstMetric(c.cancelled, prometheus.CounterValue, float64(s.Cancelled))
}

var _ prometheus.Collector = (*Collector)(nil)
