package metrics

import (
	"context"
	"errors"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"

	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/store/remote"
)

const namespace = "impostor"

// Metrics is the document server's collector set
type Metrics struct {
	registry *prometheus.Registry
	proc     *process.Process

	connections prometheus.Gauge
	rooms       prometheus.Gauge
	requests    *prometheus.CounterVec
	rateLimited prometheus.Counter
	cpuPercent  prometheus.Gauge
	rssBytes    prometheus.Gauge
}

// Stats is a point in time process sample
type Stats struct {
	CPUPercent       float64 `json:"cpuPercent"`
	RSSBytes         uint64  `json:"rssBytes"`
	SystemMemPercent float64 `json:"systemMemPercent"`
	Goroutines       int     `json:"goroutines"`
}

// New registers every collector on a private registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections",
			Help:      "Open store protocol connections",
		}),
		rooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rooms",
			Help:      "Rooms held by the document server",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_requests_total",
			Help:      "Store protocol requests by op and result",
		}, []string{"op", "result"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the per-connection limiter",
		}),
		cpuPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "process_cpu_percent",
			Help:      "Process CPU usage sampled by gopsutil",
		}),
		rssBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "process_rss_bytes",
			Help:      "Process resident memory sampled by gopsutil",
		}),
	}
	m.registry.MustRegister(
		m.connections, m.rooms, m.requests, m.rateLimited, m.cpuPercent, m.rssBytes,
		collectors.NewGoCollector(),
	)
	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		m.proc = p
	}
	return m
}

// Handler serves the registry in the prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the registry for tests and extra collectors
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ConnectionOpened and ConnectionClosed track live sockets
func (m *Metrics) ConnectionOpened() { m.connections.Inc() }
func (m *Metrics) ConnectionClosed() { m.connections.Dec() }

// ObserveRequest counts one handled store request
func (m *Metrics) ObserveRequest(op string, err error) {
	result := "ok"
	switch {
	case errors.Is(err, remote.ErrRateLimited):
		result = "limited"
		m.rateLimited.Inc()
	case err != nil:
		result = "error"
	}
	m.requests.WithLabelValues(op, result).Inc()
}

// SetRooms records the current room count
func (m *Metrics) SetRooms(n int) {
	m.rooms.Set(float64(n))
}

// Sample reads process and host stats
func (m *Metrics) Sample(ctx context.Context) (Stats, error) {
	s := Stats{Goroutines: runtime.NumGoroutine()}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		s.SystemMemPercent = vm.UsedPercent
	}
	if m.proc == nil {
		return s, errors.New("process stats unavailable")
	}
	cpu, err := m.proc.CPUPercentWithContext(ctx)
	if err != nil {
		return s, err
	}
	info, err := m.proc.MemoryInfoWithContext(ctx)
	if err != nil {
		return s, err
	}
	s.CPUPercent, s.RSSBytes = cpu, info.RSS
	return s, nil
}

// Run samples every interval until ctx ends; rooms, when set, feeds the room gauge
func (m *Metrics) Run(ctx context.Context, interval time.Duration, rooms func() int, log *zap.Logger) {
	if log == nil {
		log = zap.NewNop()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s, err := m.Sample(ctx)
			if err != nil {
				log.Debug("process sample failed", zap.Error(err))
			}
			m.cpuPercent.Set(s.CPUPercent)
			m.rssBytes.Set(float64(s.RSSBytes))
			if rooms != nil {
				m.SetRooms(rooms())
			}
		}
	}
}
