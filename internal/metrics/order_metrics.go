package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OrderMetrics содержит метрики жизненного цикла заказов.
type OrderMetrics struct {
	// Счётчики операций
	ordersCreated      prometheus.Counter
	orderCreateFailed  prometheus.Counter
	reservationDenied  prometheus.Counter
	customerTransition prometheus.Counter
	adminTransition    prometheus.Counter
	refundsSettled     prometheus.Counter
	timelineEvents     prometheus.Counter

	// Гистограммы времени выполнения по операциям
	opDuration *prometheus.HistogramVec

	// Гистограмма суммы созданного заказа
	orderAmount prometheus.Histogram
}

// NewOrderMetrics создаёт метрики и регистрирует их в дефолтном реестре.
func NewOrderMetrics() *OrderMetrics {
	return newOrderMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newOrderMetricsWithRegisterer(registerer prometheus.Registerer) *OrderMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &OrderMetrics{
		ordersCreated: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_orders_created_total",
			Help: "Total number of orders created",
		}),
		orderCreateFailed: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_order_create_failed_total",
			Help: "Total number of failed order creations",
		}),
		reservationDenied: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_stock_reservation_denied_total",
			Help: "Total number of reservations denied due to insufficient stock",
		}),
		customerTransition: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_item_customer_transitions_total",
			Help: "Total number of customer-initiated item status transitions",
		}),
		adminTransition: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_item_admin_transitions_total",
			Help: "Total number of admin-initiated item status transitions",
		}),
		refundsSettled: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_refunds_settled_total",
			Help: "Total number of refund decisions that restored stock",
		}),
		timelineEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_timeline_events_total",
			Help: "Total number of timeline events recorded",
		}),
		opDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "shop_order_op_duration_seconds",
			Help:    "Duration of order service operations in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"op"}),
		orderAmount: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "shop_order_amount_minor",
			Help:    "Amount of created orders in minor currency units",
			Buckets: prometheus.ExponentialBuckets(100, 10, 7),
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.HistogramVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram vec %q: %v", opts.Name, err))
	}
	return collector
}

// RecordOrderCreated фиксирует успешно созданный заказ и его сумму.
func (m *OrderMetrics) RecordOrderCreated(amountMinor int64) {
	if m == nil {
		return
	}
	m.ordersCreated.Inc()
	m.orderAmount.Observe(float64(amountMinor))
}

// RecordOrderCreateFailed фиксирует неудачную сборку заказа.
func (m *OrderMetrics) RecordOrderCreateFailed() {
	if m == nil {
		return
	}
	m.orderCreateFailed.Inc()
}

// RecordReservationDenied фиксирует отказ по нехватке остатка.
func (m *OrderMetrics) RecordReservationDenied() {
	if m == nil {
		return
	}
	m.reservationDenied.Inc()
}

// RecordCustomerTransition фиксирует клиентский переход статуса позиции.
func (m *OrderMetrics) RecordCustomerTransition() {
	if m == nil {
		return
	}
	m.customerTransition.Inc()
}

// RecordAdminTransition фиксирует административный переход статуса.
func (m *OrderMetrics) RecordAdminTransition() {
	if m == nil {
		return
	}
	m.adminTransition.Inc()
}

// RecordRefundSettled фиксирует закрытое решение по возврату.
func (m *OrderMetrics) RecordRefundSettled() {
	if m == nil {
		return
	}
	m.refundsSettled.Inc()
}

// RecordTimelineEvent увеличивает счётчик событий ленты.
func (m *OrderMetrics) RecordTimelineEvent() {
	if m == nil {
		return
	}
	m.timelineEvents.Inc()
}

// RecordOpDuration записывает длительность операции сервиса.
func (m *OrderMetrics) RecordOpDuration(op string, duration time.Duration) {
	if m == nil {
		return
	}
	m.opDuration.WithLabelValues(op).Observe(duration.Seconds())
}
