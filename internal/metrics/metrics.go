package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ariefcatur/marketplace-core/internal/domain"
)

// Metrics holds the marketplace collectors. A nil *Metrics records nothing.
type Metrics struct {
	cartOps          *prometheus.CounterVec
	stockUnits       *prometheus.CounterVec
	checkouts        *prometheus.CounterVec
	ordersCreated    prometheus.Counter
	transitions      *prometheus.CounterVec
	checkoutDuration prometheus.Histogram
	eventsPublished  *prometheus.CounterVec
	eventsProjected  *prometheus.CounterVec
}

func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

func NewWithRegisterer(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &Metrics{
		cartOps: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "marketplace_cart_operations_total",
			Help: "Cart operations by operation and outcome",
		}, []string{"op", "result"}),
		stockUnits: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "marketplace_stock_units_total",
			Help: "Stock units reserved or released",
		}, []string{"direction"}),
		checkouts: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "marketplace_checkouts_total",
			Help: "Checkouts by outcome",
		}, []string{"result"}),
		ordersCreated: registerCounter(registerer, prometheus.CounterOpts{
			Name: "marketplace_orders_created_total",
			Help: "Orders created by checkout",
		}),
		transitions: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "marketplace_order_transitions_total",
			Help: "Order status changes by target status and outcome",
		}, []string{"to", "result"}),
		checkoutDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "marketplace_checkout_duration_seconds",
			Help:    "Duration of the checkout transaction",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
		}),
		eventsPublished: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "marketplace_events_published_total",
			Help: "Order events handed to the broker",
		}, []string{"event_type", "result"}),
		eventsProjected: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "marketplace_events_projected_total",
			Help: "Order events applied by the projector",
		}, []string{"event_type", "result"}),
	}
}

// Result maps an error to a low cardinality label.
func Result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrValidation):
		return "validation"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, domain.ErrForbidden):
		return "forbidden"
	case errors.Is(err, domain.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, domain.ErrEmptyCart):
		return "empty_cart"
	default:
		return "error"
	}
}

func (m *Metrics) RecordCartOp(op string, err error) {
	if m == nil {
		return
	}
	m.cartOps.WithLabelValues(op, Result(err)).Inc()
}

func (m *Metrics) RecordReserved(units int) {
	if m == nil || units <= 0 {
		return
	}
	m.stockUnits.WithLabelValues("reserved").Add(float64(units))
}

func (m *Metrics) RecordReleased(units int) {
	if m == nil || units <= 0 {
		return
	}
	m.stockUnits.WithLabelValues("released").Add(float64(units))
}

func (m *Metrics) RecordCheckout(orders int, started time.Time, err error) {
	if m == nil {
		return
	}
	m.checkouts.WithLabelValues(Result(err)).Inc()
	m.checkoutDuration.Observe(time.Since(started).Seconds())
	if err == nil {
		m.ordersCreated.Add(float64(orders))
	}
}

func (m *Metrics) RecordTransition(to domain.OrderStatus, err error) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(string(to), Result(err)).Inc()
}

func (m *Metrics) RecordPublished(eventType string, err error) {
	if m == nil {
		return
	}
	m.eventsPublished.WithLabelValues(eventType, Result(err)).Inc()
}

func (m *Metrics) RecordProjected(eventType, result string) {
	if m == nil {
		return
	}
	m.eventsProjected.WithLabelValues(eventType, result).Inc()
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			existing, ok := already.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			existing, ok := already.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			existing, ok := already.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}
