package service

import (
	"time"

	"github.com/rs/zerolog"

	"evride/internal/metrics"
	"evride/internal/redis"
	"evride/internal/repository"
)

// Dependencies are the collaborators shared by the ride services. Store is
// required; every other field may be left zero.
type Dependencies struct {
	Store         repository.Store
	Locks         redis.LockStoreInterface
	Locations     redis.LocationStoreInterface
	Cache         redis.VehicleCacheInterface
	Notifications *NotificationService
	Metrics       *metrics.Metrics
	Log           zerolog.Logger
	Clock         func() time.Time
}

func (d Dependencies) clock() func() time.Time {
	if d.Clock != nil {
		return d.Clock
	}
	return time.Now
}

func (d Dependencies) index() vehicleIndex {
	return vehicleIndex{locations: d.Locations, cache: d.Cache, log: d.Log}
}

// notify runs fn when notifications are configured. fn only queues the
// notification; publish failures are logged by the NotificationService worker
// and never fail the operation.
func (d Dependencies) notify(fn func(n *NotificationService) error) {
	if d.Notifications != nil {
		_ = fn(d.Notifications)
	}
}
