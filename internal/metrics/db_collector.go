package metrics

import "github.com/prometheus/client_golang/prometheus"

// PoolStats is a snapshot of connection pool state.
type PoolStats struct {
	Total        int32
	Idle         int32
	Acquired     int32
	Max          int32
	AcquireCount int64
}

// DBPoolStatFunc returns database pool statistics without importing pgxpool.
type DBPoolStatFunc func() PoolStats

// dbPoolCollector implements prometheus.Collector for DB pool stats.
type dbPoolCollector struct {
	statFunc DBPoolStatFunc

	totalDesc    *prometheus.Desc
	idleDesc     *prometheus.Desc
	acquiredDesc *prometheus.Desc
	maxDesc      *prometheus.Desc
	acquiresDesc *prometheus.Desc
}

// NewDBPoolCollector creates a collector exposing pool gauges and the
// cumulative acquire count.
func NewDBPoolCollector(statFunc DBPoolStatFunc) prometheus.Collector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc("portico_db_pool_"+name, help, nil, nil)
	}
	return &dbPoolCollector{
		statFunc:     statFunc,
		totalDesc:    desc("total_conns", "Total number of connections in the DB pool."),
		idleDesc:     desc("idle_conns", "Number of idle connections in the DB pool."),
		acquiredDesc: desc("acquired_conns", "Number of acquired connections in the DB pool."),
		maxDesc:      desc("max_conns", "Maximum size of the DB pool."),
		acquiresDesc: desc("acquires_total", "Cumulative count of successful connection acquires."),
	}
}

func (c *dbPoolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.totalDesc
	ch <- c.idleDesc
	ch <- c.acquiredDesc
	ch <- c.maxDesc
	ch <- c.acquiresDesc
}

func (c *dbPoolCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.statFunc()
	ch <- prometheus.MustNewConstMetric(c.totalDesc, prometheus.GaugeValue, float64(s.Total))
	ch <- prometheus.MustNewConstMetric(c.idleDesc, prometheus.GaugeValue, float64(s.Idle))
	ch <- prometheus.MustNewConstMetric(c.acquiredDesc, prometheus.GaugeValue, float64(s.Acquired))
	ch <- prometheus.MustNewConstMetric(c.maxDesc, prometheus.GaugeValue, float64(s.Max))
	ch <- prometheus.MustNewConstMetric(c.acquiresDesc, prometheus.CounterValue, float64(s.AcquireCount))
}
