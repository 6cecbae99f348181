package metrics

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	dto "github.com/prometheus/client_model/go"
)

// Summary is the JSON document served by the metrics endpoint.
type Summary struct {
	HTTP         httpSummary `json:"http"`
	Auth         authInfo    `json:"auth"`
	Logins       loginInfo   `json:"logins"`
	SoftFailures float64     `json:"softFailures"`
	DB           dbInfo      `json:"db"`
	Server       serverInfo  `json:"server"`
}

type httpSummary struct {
	TotalRequests float64 `json:"totalRequests"`
	ErrorRate     float64 `json:"errorRate"`
	P50Latency    float64 `json:"p50Latency"`
	P95Latency    float64 `json:"p95Latency"`
	P99Latency    float64 `json:"p99Latency"`
}

type authInfo struct {
	Failures  float64 `json:"failures"`
	Successes float64 `json:"successes"`
}

type loginInfo struct {
	Success float64 `json:"success"`
	Invalid float64 `json:"invalid"`
	Errors  float64 `json:"errors"`
}

type dbInfo struct {
	TotalConns    float64 `json:"totalConns"`
	IdleConns     float64 `json:"idleConns"`
	AcquiredConns float64 `json:"acquiredConns"`
	MaxConns      float64 `json:"maxConns"`
}

type serverInfo struct {
	StartTime     float64 `json:"startTime"`
	UptimeSeconds float64 `json:"uptimeSeconds"`
}

// Summary gathers the registry and condenses it into a Summary.
func (m *Metrics) Summary() (*Summary, error) {
	gathered, err := m.registry.Gather()
	if err != nil {
		return nil, fmt.Errorf("gathering metrics: %w", err)
	}

	fs := make(families, len(gathered))
	for _, f := range gathered {
		fs[f.GetName()] = f
	}

	const (
		requests  = "portico_http_requests_total"
		durations = "portico_http_request_duration_seconds"
		logins    = "portico_logins_total"
	)

	s := &Summary{}

	s.HTTP.TotalRequests = fs.total(requests, nil)
	if s.HTTP.TotalRequests > 0 {
		failed := fs.total(requests, func(l labels) bool {
			return strings.HasPrefix(l["status_code"], "4") || strings.HasPrefix(l["status_code"], "5")
		})
		s.HTTP.ErrorRate = failed / s.HTTP.TotalRequests
	}
	s.HTTP.P50Latency = fs.quantile(durations, 0.50)
	s.HTTP.P95Latency = fs.quantile(durations, 0.95)
	s.HTTP.P99Latency = fs.quantile(durations, 0.99)

	s.Auth.Failures = fs.total("portico_auth_failures_total", nil)
	s.Auth.Successes = fs.total("portico_auth_successes_total", nil)

	s.Logins.Success = fs.total(logins, labelIs("result", "success"))
	s.Logins.Invalid = fs.total(logins, labelIs("result", "invalid"))
	s.Logins.Errors = fs.total(logins, labelIs("result", "error"))

	s.SoftFailures = fs.total("portico_soft_failures_total", nil)

	s.DB.TotalConns = fs.gauge("portico_db_pool_total_conns")
	s.DB.IdleConns = fs.gauge("portico_db_pool_idle_conns")
	s.DB.AcquiredConns = fs.gauge("portico_db_pool_acquired_conns")
	s.DB.MaxConns = fs.gauge("portico_db_pool_max_conns")

	s.Server.StartTime = fs.gauge("portico_server_start_time_seconds")
	s.Server.UptimeSeconds = float64(time.Now().Unix()) - s.Server.StartTime

	return s, nil
}

// families indexes gathered metric families by name.
type families map[string]*dto.MetricFamily

type labels map[string]string

func labelIs(name, value string) func(labels) bool {
	return func(l labels) bool { return l[name] == value }
}

func labelsOf(m *dto.Metric) labels {
	l := make(labels, len(m.GetLabel()))
	for _, lp := range m.GetLabel() {
		l[lp.GetName()] = lp.GetValue()
	}
	return l
}

// total sums the counter series of name accepted by match (all when nil).
func (fs families) total(name string, match func(labels) bool) float64 {
	var sum float64
	for _, m := range fs[name].GetMetric() {
		c := m.GetCounter()
		if c == nil {
			continue
		}
		if match == nil || match(labelsOf(m)) {
			sum += c.GetValue()
		}
	}
	return sum
}

// gauge returns the value of the first series of name, or 0.
func (fs families) gauge(name string) float64 {
	ms := fs[name].GetMetric()
	if len(ms) == 0 {
		return 0
	}
	return ms[0].GetGauge().GetValue()
}

// quantile estimates the q-quantile of the histogram name across all label
// sets, interpolating linearly inside the bucket holding the rank. A rank in
// the +Inf bucket reports the largest finite bound.
func (fs families) quantile(name string, q float64) float64 {
	cumulative := map[float64]uint64{}
	var count uint64
	for _, m := range fs[name].GetMetric() {
		h := m.GetHistogram()
		if h == nil {
			continue
		}
		count += h.GetSampleCount()
		for _, b := range h.GetBucket() {
			if !math.IsInf(b.GetUpperBound(), 1) {
				cumulative[b.GetUpperBound()] += b.GetCumulativeCount()
			}
		}
	}
	if count == 0 || len(cumulative) == 0 {
		return 0
	}

	bounds := make([]float64, 0, len(cumulative))
	for ub := range cumulative {
		bounds = append(bounds, ub)
	}
	slices.Sort(bounds)

	rank := q * float64(count)
	lower, below := 0.0, uint64(0)
	for _, upper := range bounds {
		upTo := cumulative[upper]
		if float64(upTo) >= rank {
			in := upTo - below
			if in == 0 {
				return upper
			}
			return lower + (upper-lower)*(rank-float64(below))/float64(in)
		}
		lower, below = upper, upTo
	}
	return bounds[len(bounds)-1]
}
