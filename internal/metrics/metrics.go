package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ticketsReserved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tickets_reserved_total",
			Help: "Tickets moved from available to reserved",
		},
		[]string{"concert_id"},
	)

	ticketsReleased = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tickets_released_total",
			Help: "Reserved tickets returned to the available pool",
		},
		[]string{"reason"},
	)

	ordersPlaced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_placed_total",
			Help: "Orders created, by channel",
		},
		[]string{"channel"},
	)

	purchaseFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "purchase_failures_total",
			Help: "Failed purchase attempts by reason",
		},
		[]string{"reason"},
	)

	paymentDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_charge_duration_seconds",
			Help:    "Latency of payment gateway charges",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"result"},
	)

	notificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_notifications_total",
			Help: "Order confirmation notifications by status",
		},
		[]string{"status"},
	)
)

func TicketsReserved(concertID string, n int) {
	ticketsReserved.WithLabelValues(concertID).Add(float64(n))
}

func TicketsReleased(reason string, n int64) {
	ticketsReleased.WithLabelValues(reason).Add(float64(n))
}

func OrderPlaced(channel string) {
	ordersPlaced.WithLabelValues(channel).Inc()
}

func PurchaseFailed(reason string) {
	purchaseFailures.WithLabelValues(reason).Inc()
}

func ObservePayment(result string, seconds float64) {
	paymentDuration.WithLabelValues(result).Observe(seconds)
}

func NotificationSent(status string) {
	notificationsSent.WithLabelValues(status).Inc()
}

func Handler() http.Handler {
	return promhttp.Handler()
}
