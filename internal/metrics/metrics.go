// README: Prometheus counters for the booking/matching lifecycle.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BookingsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "courier_bookings_created_total",
		Help: "Bookings created.",
	})
	BookingsCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "courier_bookings_cancelled_total",
		Help: "Bookings cancelled.",
	})
	BookingsDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "courier_bookings_delivered_total",
		Help: "Bookings that reached the delivered stage.",
	})
	OffersIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "courier_offers_issued_total",
		Help: "Offers issued to riders, including reoffers.",
	})
	OffersAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "courier_offers_accepted_total",
		Help: "Offers accepted by riders.",
	})
	OffersDeclined = promauto.NewCounter(prometheus.CounterOpts{
		Name: "courier_offers_declined_total",
		Help: "Offers declined by riders.",
	})
	OffersExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "courier_offers_expired_total",
		Help: "Offers that timed out and were swept.",
	})
	SearchExhausted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "courier_search_exhausted_total",
		Help: "Search rounds that found no fresh candidate.",
	})
)
