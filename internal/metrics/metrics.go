// Package metrics exposes the ride lifecycle as Prometheus collectors.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records ride lifecycle events. A nil *Metrics is valid and records nothing.
type Metrics struct {
	reservations        *prometheus.CounterVec
	transitions         *prometheus.CounterVec
	settlements         *prometheus.CounterVec
	fares               prometheus.Histogram
	expiredReservations prometheus.Counter
	topUps              prometheus.Counter
}

// New registers the collectors on reg, or on the default registerer when reg
// is nil. Collectors that are already registered are reused.
func New(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		reservations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evride_reservations_total",
			Help: "Reservation attempts by outcome",
		}, []string{"outcome"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evride_ride_transitions_total",
			Help: "Ride status transitions by target status",
		}, []string{"status"}),
		settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evride_settlements_total",
			Help: "Ride payment settlements by outcome",
		}, []string{"outcome"}),
		fares: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "evride_ride_fare",
			Help:    "Final fare charged per completed ride",
			Buckets: []float64{10, 20, 35, 50, 75, 100, 150, 250, 500},
		}),
		expiredReservations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "evride_reservations_expired_total",
			Help: "Reservations cancelled because they timed out",
		}),
		topUps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "evride_wallet_topup_amount_total",
			Help: "Total amount added to wallets",
		}),
	}

	var err error
	m.reservations, err = register(reg, m.reservations)
	if err != nil {
		return nil, err
	}
	m.transitions, err = register(reg, m.transitions)
	if err != nil {
		return nil, err
	}
	m.settlements, err = register(reg, m.settlements)
	if err != nil {
		return nil, err
	}
	m.fares, err = register(reg, m.fares)
	if err != nil {
		return nil, err
	}
	m.expiredReservations, err = register(reg, m.expiredReservations)
	if err != nil {
		return nil, err
	}
	m.topUps, err = register(reg, m.topUps)
	if err != nil {
		return nil, err
	}

	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// Reservation counts a reservation attempt. outcome is "ok" or an error code.
func (m *Metrics) Reservation(outcome string) {
	if m == nil {
		return
	}
	m.reservations.WithLabelValues(outcome).Inc()
}

// RideTransition counts a ride entering status.
func (m *Metrics) RideTransition(status string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(status).Inc()
}

// Settlement counts a payment attempt at ride end and observes the fare on success.
func (m *Metrics) Settlement(outcome string, finalFare float64) {
	if m == nil {
		return
	}
	m.settlements.WithLabelValues(outcome).Inc()
	if outcome == "ok" {
		m.fares.Observe(finalFare)
	}
}

// ReservationExpired counts a timed out reservation.
func (m *Metrics) ReservationExpired() {
	if m == nil {
		return
	}
	m.expiredReservations.Inc()
}

// TopUp adds amount to the wallet top-up total.
func (m *Metrics) TopUp(amount float64) {
	if m == nil {
		return
	}
	m.topUps.Add(amount)
}
