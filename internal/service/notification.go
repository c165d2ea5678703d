package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"evride/internal/domain"
	"evride/internal/events"
)

// NotificationType represents the type of notification.
type NotificationType string

const (
	NotificationRideReserved       NotificationType = "RIDE_RESERVED"
	NotificationRideStarted        NotificationType = "RIDE_STARTED"
	NotificationRideCompleted      NotificationType = "RIDE_COMPLETED"
	NotificationRideCancelled      NotificationType = "RIDE_CANCELLED"
	NotificationReservationExpired NotificationType = "RESERVATION_EXPIRED"
	NotificationPaymentFailed      NotificationType = "PAYMENT_FAILED"
	NotificationWalletTopUp        NotificationType = "WALLET_TOPUP"
)

var (
	// ErrNotificationQueueFull is returned when the publishing worker is too
	// far behind to accept another notification.
	ErrNotificationQueueFull = errors.New("notification queue is full")
	// ErrNotificationsClosed is returned after Close.
	ErrNotificationsClosed = errors.New("notification service is closed")
)

// Notification represents a notification to be sent.
type Notification struct {
	ID          string           `json:"id"`
	Type        NotificationType `json:"type"`
	RecipientID string           `json:"recipient_id"`
	Title       string           `json:"title"`
	Message     string           `json:"message"`
	Data        map[string]any   `json:"data,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}

// NotificationService turns ride lifecycle changes into notifications and
// publishes them on the ride.notifications topic. Push, SMS and email
// delivery consume that topic elsewhere.
//
// Publishing happens on a background worker so a slow broker never holds up
// the request that triggered the notification. Notifications are published
// in the order they were sent; when the queue is full they are dropped.
type NotificationService struct {
	publisher events.Publisher
	log       zerolog.Logger
	now       func() time.Time
	timeout   time.Duration

	mu      sync.Mutex
	closed  bool
	queue   chan queuedNotification
	pending sync.WaitGroup
	done    chan struct{}
}

type queuedNotification struct {
	ctx          context.Context
	notification Notification
}

const (
	notificationQueueSize      = 256
	notificationPublishTimeout = 5 * time.Second
)

// NewNotificationService creates a new NotificationService and starts its
// publishing worker. A nil publisher only logs. Call Close to stop the worker.
func NewNotificationService(publisher events.Publisher, log zerolog.Logger) *NotificationService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	s := &NotificationService{
		publisher: publisher,
		log:       log,
		now:       time.Now,
		timeout:   notificationPublishTimeout,
		queue:     make(chan queuedNotification, notificationQueueSize),
		done:      make(chan struct{}),
	}
	go s.run()
	return s
}

// Wait blocks until every notification sent so far has been published or
// has failed.
func (s *NotificationService) Wait() {
	s.pending.Wait()
}

// Close stops accepting notifications and waits for the queued ones to be
// published. It does not close the publisher.
func (s *NotificationService) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		<-s.done
		return
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()
	<-s.done
}

func (s *NotificationService) run() {
	defer close(s.done)
	for q := range s.queue {
		s.publish(q.ctx, q.notification)
		s.pending.Done()
	}
}

func (s *NotificationService) publish(ctx context.Context, n Notification) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.publisher.Publish(ctx, events.TopicRideNotifications, n.RecipientID, n); err != nil {
		s.log.Warn().Err(err).Str("type", string(n.Type)).Str("id", n.ID).Msg("publish notification")
	}
}

// NotifyRideReserved tells the user how long the vehicle is held.
func (s *NotificationService) NotifyRideReserved(ctx context.Context, ride *domain.Ride, vehicle *domain.Vehicle, expiresAt time.Time) error {
	return s.send(ctx, Notification{
		Type:        NotificationRideReserved,
		RecipientID: ride.UserID,
		Title:       "Vehicle Reserved",
		Message:     fmt.Sprintf("Vehicle %s is reserved for you until %s", vehicle.Number, expiresAt.Format("15:04")),
		Data: map[string]any{
			"ride_id":    ride.ID,
			"vehicle_id": vehicle.ID,
			"expires_at": expiresAt,
		},
	})
}

// NotifyRideStarted notifies the user that the ride has started.
func (s *NotificationService) NotifyRideStarted(ctx context.Context, ride *domain.Ride) error {
	return s.send(ctx, Notification{
		Type:        NotificationRideStarted,
		RecipientID: ride.UserID,
		Title:       "Ride Started",
		Message:     "Your ride has started. Enjoy your ride!",
		Data: map[string]any{
			"ride_id":    ride.ID,
			"vehicle_id": ride.VehicleID,
			"started_at": ride.StartTime,
		},
	})
}

// NotifyRideCompleted sends the payment summary of a finished ride.
func (s *NotificationService) NotifyRideCompleted(ctx context.Context, ride *domain.Ride, summary PaymentSummary) error {
	return s.send(ctx, Notification{
		Type:        NotificationRideCompleted,
		RecipientID: ride.UserID,
		Title:       "Ride Completed",
		Message: fmt.Sprintf("You rode %.2f km and saved %.2f kg of CO2. Charged %.2f, earned %d points",
			summary.DistanceKm, summary.CarbonSavedKg, summary.FinalFare, summary.PointsEarned),
		Data: map[string]any{
			"ride_id":         ride.ID,
			"final_fare":      summary.FinalFare,
			"points_redeemed": summary.PointsRedeemed,
			"points_earned":   summary.PointsEarned,
			"wallet_balance":  summary.WalletBalance,
		},
	})
}

// NotifyRideCancelled notifies the user that the ride was cancelled.
func (s *NotificationService) NotifyRideCancelled(ctx context.Context, ride *domain.Ride) error {
	return s.send(ctx, Notification{
		Type:        NotificationRideCancelled,
		RecipientID: ride.UserID,
		Title:       "Ride Cancelled",
		Message:     "Your ride has been cancelled",
		Data: map[string]any{
			"ride_id":    ride.ID,
			"vehicle_id": ride.VehicleID,
		},
	})
}

// NotifyReservationExpired notifies the user that a reservation timed out.
func (s *NotificationService) NotifyReservationExpired(ctx context.Context, ride *domain.Ride) error {
	return s.send(ctx, Notification{
		Type:        NotificationReservationExpired,
		RecipientID: ride.UserID,
		Title:       "Reservation Expired",
		Message:     "Your reservation expired and the vehicle was released",
		Data: map[string]any{
			"ride_id":     ride.ID,
			"vehicle_id":  ride.VehicleID,
			"reserved_at": ride.ReservedAt,
		},
	})
}

// NotifyPaymentFailed tells the user the wallet could not cover the fare.
func (s *NotificationService) NotifyPaymentFailed(ctx context.Context, ride *domain.Ride, message string) error {
	return s.send(ctx, Notification{
		Type:        NotificationPaymentFailed,
		RecipientID: ride.UserID,
		Title:       "Payment Failed",
		Message:     message,
		Data: map[string]any{
			"ride_id": ride.ID,
		},
	})
}

// NotifyWalletTopUp confirms money added to the wallet.
func (s *NotificationService) NotifyWalletTopUp(ctx context.Context, userID string, amount, balance float64) error {
	return s.send(ctx, Notification{
		Type:        NotificationWalletTopUp,
		RecipientID: userID,
		Title:       "Wallet Topped Up",
		Message:     fmt.Sprintf("%.2f added to your wallet. Balance: %.2f", amount, balance),
		Data: map[string]any{
			"amount":         amount,
			"wallet_balance": balance,
		},
	})
}

// send queues n for publishing. The request context only contributes its
// values; the publish outlives the request.
func (s *NotificationService) send(ctx context.Context, n Notification) error {
	n.ID = uuid.New().String()
	n.CreatedAt = s.now()

	s.log.Info().
		Str("type", string(n.Type)).
		Str("recipient", n.RecipientID).
		Str("title", n.Title).
		Msg(n.Message)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrNotificationsClosed
	}

	s.pending.Add(1)
	select {
	case s.queue <- queuedNotification{ctx: context.WithoutCancel(ctx), notification: n}:
		return nil
	default:
		s.pending.Done()
		s.log.Warn().Str("type", string(n.Type)).Str("id", n.ID).Msg("notification queue full, dropping")
		return ErrNotificationQueueFull
	}
}
