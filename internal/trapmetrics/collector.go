// Copyright 2025 Edgeo SCADA
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

// Package trapmetrics exports snmp.Metrics to Prometheus.
package trapmetrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/edgeo-scada/snmptrap/snmp"
)

const namespace = "snmptrap"

type counterDesc struct {
	desc  *prometheus.Desc
	value func(s *snmp.MetricsSnapshot) int64
}

// Collector is a prometheus.Collector reading one or more snmp.Metrics,
// each identified by an instance label.
type Collector struct {
	sources map[string]*snmp.Metrics

	counters []counterDesc
	latency  *prometheus.Desc
	uptime   *prometheus.Desc
}

func newCounter(name, help string, value func(s *snmp.MetricsSnapshot) int64) counterDesc {
	return counterDesc{
		desc:  prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, []string{"instance"}, nil),
		value: value,
	}
}

// NewCollector creates a collector. sources maps an instance label
// (e.g. "udp4", "sender") to its metrics.
func NewCollector(sources map[string]*snmp.Metrics) *Collector {
	return &Collector{
		sources: sources,
		counters: []counterDesc{
			newCounter("traps_sent_total", "Traps handed to the network.",
				func(s *snmp.MetricsSnapshot) int64 { return s.TrapsSent }),
			newCounter("send_errors_total", "Trap sends that failed.",
				func(s *snmp.MetricsSnapshot) int64 { return s.SendErrors }),
			newCounter("varbinds_sent_total", "Payload varbinds sent.",
				func(s *snmp.MetricsSnapshot) int64 { return s.VarbindsSent }),
			newCounter("traps_received_total", "Traps delivered to the handler.",
				func(s *snmp.MetricsSnapshot) int64 { return s.TrapsReceived }),
			newCounter("informs_received_total", "InformRequests received and dropped.",
				func(s *snmp.MetricsSnapshot) int64 { return s.InformsReceived }),
			newCounter("varbinds_received_total", "Payload varbinds received.",
				func(s *snmp.MetricsSnapshot) int64 { return s.VarbindsReceived }),
			newCounter("decode_errors_total", "Datagrams that failed to decode.",
				func(s *snmp.MetricsSnapshot) int64 { return s.DecodeErrors }),
			newCounter("unsupported_version_total", "Datagrams with an SNMP version other than v1 or v2c.",
				func(s *snmp.MetricsSnapshot) int64 { return s.UnsupportedVersion }),
			newCounter("dropped_total", "Well-formed datagrams that were not traps.",
				func(s *snmp.MetricsSnapshot) int64 { return s.Dropped }),
			newCounter("community_mismatch_total", "Traps rejected by the community filter.",
				func(s *snmp.MetricsSnapshot) int64 { return s.CommunityMismatch }),
		},
		latency: prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "send_latency_milliseconds"),
			"Trap send latency.", []string{"instance"}, nil),
		uptime: prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "uptime_seconds"),
			"Seconds since the metrics were created.", []string{"instance"}, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, cd := range c.counters {
		ch <- cd.desc
	}
	ch <- c.latency
	ch <- c.uptime
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for instance, m := range c.sources {
		snap := m.Snapshot()
		for _, cd := range c.counters {
			ch <- prometheus.MustNewConstMetric(cd.desc, prometheus.CounterValue, float64(cd.value(&snap)), instance)
		}
		ch <- prometheus.MustNewConstHistogram(c.latency,
			uint64(snap.SendLatency.Count), float64(snap.SendLatency.Sum),
			cumulativeBuckets(snap.SendLatency), instance)
		ch <- prometheus.MustNewConstMetric(c.uptime, prometheus.GaugeValue, snap.Uptime.Seconds(), instance)
	}
}

// cumulativeBuckets converts per-bucket counts to Prometheus upper-bound
// counts. The overflow bucket is covered by the histogram count.
func cumulativeBuckets(s snmp.LatencyStats) map[float64]uint64 {
	out := make(map[float64]uint64, len(s.Bounds))
	var total uint64
	for i, bound := range s.Bounds {
		if i < len(s.Buckets) {
			total += uint64(s.Buckets[i])
		}
		out[float64(bound)] = total
	}
	return out
}

// Handler returns an HTTP handler serving the collector on its own registry.
func Handler(c *Collector) (http.Handler, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(c); err != nil {
		return nil, err
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), nil
}

// Serve exposes /metrics and /health on addr until ctx is done.
func Serve(ctx context.Context, addr string, c *Collector, logger *slog.Logger) error {
	h, err := Handler(c)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", h)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics server listening", "address", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
