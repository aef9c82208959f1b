package issue

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	opList   = "list"
	opCreate = "create"
	opUpdate = "update"
	opDelete = "delete"
)

type Metrics struct {
	opsTotal *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		opsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "issue_operations_total",
				Help: "Issue operations by outcome.",
			},
			[]string{"operation", "result"},
		),
	}
	reg.MustRegister(m.opsTotal)
	return m
}

// observe is a no-op on a nil receiver so the service can run without metrics.
func (m *Metrics) observe(op string, err error) {
	if m == nil {
		return
	}
	m.opsTotal.WithLabelValues(op, resultLabel(err)).Inc()
}

func resultLabel(err error) string {
	var ve *ValidationError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &ve):
		return "validation_failed"
	case errors.Is(err, ErrMissingID):
		return "missing_id"
	case errors.Is(err, ErrInvalidID):
		return "invalid_id"
	case errors.Is(err, ErrNoUpdateFields):
		return "no_update_fields"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "store_unavailable"
	}
}
