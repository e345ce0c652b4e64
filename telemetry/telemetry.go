package telemetry

import (
	"errors"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector captures telemetry events emitted by parameters and the station.
//
// Implementations may forward metrics to Prometheus, loggers or other
// monitoring systems. They should be inexpensive to call because hooks are
// executed inline with every parameter get and set.
type Collector interface {
	IncParameterGet(parameter string)
	IncParameterSet(parameter string)
	IncCacheRefresh(parameter string)
	IncParameterError(parameter, operation string)
	IncHotReload(file string)
}

type noopCollector struct{}

// Noop returns a collector that discards all metrics.
func Noop() Collector {
	return noopCollector{}
}

// ForProvider selects the collector for a station's telemetry settings.
// A disabled section yields Noop; Prometheus registers on the default registry.
func ForProvider(enabled bool, provider string) (Collector, error) {
	if !enabled {
		return Noop(), nil
	}
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "", "prometheus":
		collector, err := NewPrometheusCollector(nil)
		if err != nil {
			return nil, err
		}
		return collector, nil
	}
	return nil, fmt.Errorf("unsupported telemetry provider %q", provider)
}

func (noopCollector) IncParameterGet(string)           {}
func (noopCollector) IncParameterSet(string)           {}
func (noopCollector) IncCacheRefresh(string)           {}
func (noopCollector) IncParameterError(string, string) {}
func (noopCollector) IncHotReload(string)              {}

// PrometheusCollector exposes telemetry counters via Prometheus.
type PrometheusCollector struct {
	gets       *prometheus.CounterVec
	sets       *prometheus.CounterVec
	refreshes  *prometheus.CounterVec
	errors     *prometheus.CounterVec
	hotReloads *prometheus.CounterVec
}

// NewPrometheusCollector registers the required metrics with the provided
// registerer. Metrics that are already registered are reused.
func NewPrometheusCollector(reg prometheus.Registerer) (*PrometheusCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gets, err := registerCounterVec(reg, prometheus.CounterOpts{
		Name: "qlab_parameter_get_total",
		Help: "Number of successful parameter gets.",
	}, "parameter")
	if err != nil {
		return nil, err
	}
	sets, err := registerCounterVec(reg, prometheus.CounterOpts{
		Name: "qlab_parameter_set_total",
		Help: "Number of successful parameter sets.",
	}, "parameter")
	if err != nil {
		return nil, err
	}
	refreshes, err := registerCounterVec(reg, prometheus.CounterOpts{
		Name: "qlab_parameter_cache_refresh_total",
		Help: "Number of cache reads that had to fetch a fresh value from the instrument.",
	}, "parameter")
	if err != nil {
		return nil, err
	}
	failures, err := registerCounterVec(reg, prometheus.CounterOpts{
		Name: "qlab_parameter_errors_total",
		Help: "Number of failed parameter operations.",
	}, "parameter", "operation")
	if err != nil {
		return nil, err
	}
	hotReloads, err := registerCounterVec(reg, prometheus.CounterOpts{
		Name: "qlab_config_hot_reload_total",
		Help: "Number of hot reload operations triggered per configuration source file.",
	}, "file")
	if err != nil {
		return nil, err
	}
	return &PrometheusCollector{
		gets:       gets,
		sets:       sets,
		refreshes:  refreshes,
		errors:     failures,
		hotReloads: hotReloads,
	}, nil
}

func registerCounterVec(reg prometheus.Registerer, opts prometheus.CounterOpts, labels ...string) (*prometheus.CounterVec, error) {
	counter := prometheus.NewCounterVec(opts, labels)
	if err := reg.Register(counter); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
		}
		return nil, err
	}
	return counter, nil
}

// IncParameterGet counts a successful get.
func (p *PrometheusCollector) IncParameterGet(parameter string) {
	if p == nil || p.gets == nil {
		return
	}
	p.gets.WithLabelValues(parameter).Inc()
}

// IncParameterSet counts a successful set.
func (p *PrometheusCollector) IncParameterSet(parameter string) {
	if p == nil || p.sets == nil {
		return
	}
	p.sets.WithLabelValues(parameter).Inc()
}

// IncCacheRefresh counts a cache read that fell through to the getter.
func (p *PrometheusCollector) IncCacheRefresh(parameter string) {
	if p == nil || p.refreshes == nil {
		return
	}
	p.refreshes.WithLabelValues(parameter).Inc()
}

// IncParameterError counts a failed get or set.
func (p *PrometheusCollector) IncParameterError(parameter, operation string) {
	if p == nil || p.errors == nil {
		return
	}
	p.errors.WithLabelValues(parameter, operation).Inc()
}

// IncHotReload increments the counter for the provided file path.
func (p *PrometheusCollector) IncHotReload(file string) {
	if p == nil || p.hotReloads == nil {
		return
	}
	p.hotReloads.WithLabelValues(file).Inc()
}
