package exdatum

import (
	"github.com/prometheus/client_golang/prometheus"
)

var pkgMetrics *Metrics

// Metrics holds Prometheus counters for the expand/flatten lifecycle.
//
// Metrics:
//   - exdatum_expansions_total{type} - compact values decoded into expanded ones
//   - exdatum_passthrough_total{type} - expansions of already expanded values
//   - exdatum_flattens_total{type} - values flattened into compact form
//   - exdatum_flat_bytes_total{type} - bytes written by flattening
//   - exdatum_teardowns_total{type} - expanded values torn down by region release
//   - exdatum_decode_errors_total{type} - malformed compact values rejected
//   - exdatum_toast_total{form} - values prepared for storage, by resulting form
//   - exdatum_detoast_total{form} - non-plain compact values unpacked, by form
type Metrics struct {
	Expansions   *prometheus.CounterVec
	PassThrough  *prometheus.CounterVec
	Flattens     *prometheus.CounterVec
	FlatBytes    *prometheus.CounterVec
	Teardowns    *prometheus.CounterVec
	DecodeErrors *prometheus.CounterVec
	Toasts       *prometheus.CounterVec
	Detoasts     *prometheus.CounterVec
}

// NewMetrics creates the counters and registers them with reg, unless reg is nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	counter := func(name, help, label string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "exdatum",
			Name:      name,
			Help:      help,
		}, []string{label})
	}
	m := &Metrics{
		Expansions:   counter("expansions_total", "Compact values decoded into expanded values", "type"),
		PassThrough:  counter("passthrough_total", "Expansions of values that were already expanded", "type"),
		Flattens:     counter("flattens_total", "Expanded values flattened into compact form", "type"),
		FlatBytes:    counter("flat_bytes_total", "Bytes written by flattening", "type"),
		Teardowns:    counter("teardowns_total", "Expanded values torn down on region release", "type"),
		DecodeErrors: counter("decode_errors_total", "Malformed compact values rejected", "type"),
		Toasts:       counter("toast_total", "Values prepared for storage, by resulting form", "form"),
		Detoasts:     counter("detoast_total", "Compressed or external values unpacked, by form", "form"),
	}
	if reg != nil {
		reg.MustRegister(m.Expansions, m.PassThrough, m.Flattens, m.FlatBytes, m.Teardowns, m.DecodeErrors, m.Toasts, m.Detoasts)
	}
	return m
}

// SetMetrics installs m as the package metrics; nil disables metrics. Must be
// called before any other exdatum operation.
func SetMetrics(m *Metrics) {
	pkgMetrics = m
}

func metrics() *Metrics {
	return pkgMetrics
}

func (m *Metrics) observeExpansion(typ string) {
	if m != nil {
		m.Expansions.WithLabelValues(typ).Inc()
	}
}

func (m *Metrics) observePassThrough(typ string) {
	if m != nil {
		m.PassThrough.WithLabelValues(typ).Inc()
	}
}

func (m *Metrics) observeFlatten(typ string, n int) {
	if m != nil {
		m.Flattens.WithLabelValues(typ).Inc()
		m.FlatBytes.WithLabelValues(typ).Add(float64(n))
	}
}

func (m *Metrics) observeTeardown(typ string) {
	if m != nil {
		m.Teardowns.WithLabelValues(typ).Inc()
	}
}

// unknownTypeLabel labels decode errors that happen before the type of a
// compact value is known.
const unknownTypeLabel = "unknown"

func (m *Metrics) observeDecodeError(typ string) {
	if m != nil {
		m.DecodeErrors.WithLabelValues(typ).Inc()
	}
}

func (m *Metrics) observeToast(f form) {
	if m != nil {
		m.Toasts.WithLabelValues(f.String()).Inc()
	}
}

func (m *Metrics) observeDetoast(f form) {
	if m != nil {
		m.Detoasts.WithLabelValues(f.String()).Inc()
	}
}
