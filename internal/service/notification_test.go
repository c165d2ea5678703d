package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evride/internal/domain"
)

// blockingPublisher holds every publish until release is closed or the
// publish context ends.
type blockingPublisher struct {
	release chan struct{}

	mu        sync.Mutex
	published []Notification
	failed    int
}

func newBlockingPublisher() *blockingPublisher {
	return &blockingPublisher{release: make(chan struct{})}
}

func (p *blockingPublisher) Publish(ctx context.Context, topic, key string, value any) error {
	select {
	case <-p.release:
	case <-ctx.Done():
		p.mu.Lock()
		p.failed++
		p.mu.Unlock()
		return ctx.Err()
	}

	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	var n Notification
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	p.mu.Lock()
	p.published = append(p.published, n)
	p.mu.Unlock()
	return nil
}

func (p *blockingPublisher) Close() error { return nil }

func (p *blockingPublisher) types() []NotificationType {
	p.mu.Lock()
	defer p.mu.Unlock()
	var types []NotificationType
	for _, n := range p.published {
		types = append(types, n.Type)
	}
	return types
}

func TestEndRide_DoesNotWaitForPublisher(t *testing.T) {
	publisher := newBlockingPublisher()
	notifications := NewNotificationService(publisher, zerolog.Nop())
	t.Cleanup(notifications.Close)

	f := newFixtureWith(t, func(d *Dependencies) { d.Notifications = notifications })
	f.addUser(t, "u1", 100, 0)
	f.addVehicle(t, "v1", 100)
	ride := f.startedRide(t, "u1", "v1")
	f.clock.Advance(10 * time.Minute)

	ctx, cancel := context.WithCancel(f.ctx)
	done := make(chan error, 1)
	go func() {
		_, err := f.rides.End(ctx, EndRideRequest{RideID: ride.ID, UserID: "u1", Location: oneKmOut})
		done <- err
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("End blocked on the notification publisher")
	}
	assert.Equal(t, domain.RideStatusCompleted, f.ride(t, ride.ID).Status)

	// The request is gone by the time the broker recovers.
	cancel()
	close(publisher.release)
	notifications.Wait()

	assert.Equal(t, []NotificationType{
		NotificationRideReserved,
		NotificationRideStarted,
		NotificationRideCompleted,
	}, publisher.types())
}

func TestNotificationService_PublishTimeout(t *testing.T) {
	publisher := newBlockingPublisher()
	notifications := NewNotificationService(publisher, zerolog.Nop())
	t.Cleanup(notifications.Close)
	notifications.timeout = 20 * time.Millisecond

	require.NoError(t, notifications.NotifyWalletTopUp(context.Background(), "u1", 50, 150))
	notifications.Wait()

	assert.Empty(t, publisher.types())
	assert.Equal(t, 1, publisher.failed)
}

func TestNotificationService_Close(t *testing.T) {
	publisher := newBlockingPublisher()
	close(publisher.release)
	notifications := NewNotificationService(publisher, zerolog.Nop())

	ride := &domain.Ride{ID: "r1", UserID: "u1", VehicleID: "v1"}
	require.NoError(t, notifications.NotifyRideCancelled(context.Background(), ride))
	notifications.Close()
	notifications.Close()

	assert.Equal(t, []NotificationType{NotificationRideCancelled}, publisher.types())
	assert.ErrorIs(t, notifications.NotifyRideCancelled(context.Background(), ride), ErrNotificationsClosed)
}
