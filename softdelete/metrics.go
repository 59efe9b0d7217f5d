package softdelete

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "tombstone"

// Collector is a prometheus.Collector counting soft delete transitions and
// audit findings. A nil *Collector records nothing.
type Collector struct {
	transitions *prometheus.CounterVec
	violations  *prometheus.CounterVec
}

// NewCollector returns a new Collector.
func NewCollector() *Collector {
	return &Collector{
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "transitions_total",
				Help:      "The number of delete and restore transactions, by outcome.",
			}, []string{"entity_type", "transition", "result"},
		),
		violations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "audit_violations_total",
				Help:      "The number of index inconsistencies found by audits.",
			}, []string{"entity_type", "kind"},
		),
	}
}

// Describe is part of the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.transitions.Describe(ch)
	c.violations.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.transitions.Collect(ch)
	c.violations.Collect(ch)
}

// Transitions returns the counter for one label combination.
func (c *Collector) Transitions(entityType, transition, result string) prometheus.Counter {
	return c.transitions.WithLabelValues(entityType, transition, result)
}

// Violations returns the counter for one label combination.
func (c *Collector) Violations(entityType string, kind Violation) prometheus.Counter {
	return c.violations.WithLabelValues(entityType, kind.String())
}

func (c *Collector) observeTransition(entityType string, t transition, err error) {
	if c == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.Transitions(entityType, string(t), result).Inc()
}

func (c *Collector) observeViolation(entityType string, kind Violation) {
	if c == nil || kind == ViolationNone {
		return
	}
	c.Violations(entityType, kind).Inc()
}
