package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/ariefcatur/marketplace-core/internal/domain"
)

func TestResult(t *testing.T) {
	cases := map[string]error{
		"ok":                 nil,
		"validation":         &domain.ValidationError{Field: "quantity", Reason: "must be at least 1"},
		"not_found":          domain.ErrProductNotFound,
		"insufficient_stock": &domain.StockShortageError{ProductID: "p1", Requested: 2},
		"forbidden":          domain.ErrForbidden,
		"invalid_transition": domain.TransitionError(domain.StatusAccepted, domain.StatusCancelled),
		"empty_cart":         domain.ErrEmptyCart,
		"error":              errors.New("db down"),
	}
	for want, err := range cases {
		assert.Equal(t, want, Result(err))
	}
}

func TestRecorders(t *testing.T) {
	m := NewWithRegisterer(prometheus.NewRegistry())

	m.RecordCartOp("add", nil)
	m.RecordCartOp("add", domain.ErrInsufficientStock)
	m.RecordReserved(3)
	m.RecordReleased(2)
	m.RecordReleased(0)
	m.RecordCheckout(2, time.Now(), nil)
	m.RecordCheckout(0, time.Now(), domain.ErrEmptyCart)
	m.RecordTransition(domain.StatusCancelled, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.cartOps.WithLabelValues("add", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cartOps.WithLabelValues("add", "insufficient_stock")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.stockUnits.WithLabelValues("reserved")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.stockUnits.WithLabelValues("released")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ordersCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.checkouts.WithLabelValues("empty_cart")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("cancelled", "ok")))
}

func TestRegisterTwiceReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := NewWithRegisterer(reg)
	b := NewWithRegisterer(reg)

	a.RecordCartOp("clear", nil)
	assert.Equal(t, 1.0, testutil.ToFloat64(b.cartOps.WithLabelValues("clear", "ok")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordCartOp("add", nil)
		m.RecordCheckout(1, time.Now(), nil)
		m.RecordTransition(domain.StatusAccepted, nil)
		m.RecordPublished("OrderCreated", nil)
		m.RecordProjected("OrderCreated", "ok")
	})
}
