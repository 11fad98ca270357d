package storefront

import (
	"context"
	"sync/atomic"
	"time"

	"bahri-storefront/internal/service/catalog"
	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultMaxDevices  = 10000
	DefaultIdleTimeout = 30 * time.Minute
)

// Registry keeps one live Device per device id. Devices are evicted when the
// registry is full or when they sit idle, and reopen from storage on the next
// request.
type Registry struct {
	opts    Options
	catalog *catalog.Service
	logger  *zap.Logger

	maxDevices int
	idle       time.Duration
	now        func() time.Time

	devices *lru.Cache
	group   singleflight.Group
}

type RegistryOption func(*Registry)

func WithMaxDevices(n int) RegistryOption {
	return func(r *Registry) {
		if n > 0 {
			r.maxDevices = n
		}
	}
}

// WithIdleTimeout sets how long a device may go unused before EvictIdle
// closes it. Zero disables idle eviction.
func WithIdleTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) {
		if d >= 0 {
			r.idle = d
		}
	}
}

func withClock(now func() time.Time) RegistryOption {
	return func(r *Registry) { r.now = now }
}

type registered struct {
	device   *Device
	lastSeen atomic.Int64
}

func (e *registered) touch(now time.Time) { e.lastSeen.Store(now.UnixNano()) }

func NewRegistry(opts Options, options ...RegistryOption) *Registry {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{
		opts:       opts,
		logger:     logger.Named("registry"),
		maxDevices: DefaultMaxDevices,
		idle:       DefaultIdleTimeout,
		now:        time.Now,
	}
	if opts.Backend != nil {
		r.catalog = catalog.New(opts.Backend)
	}
	for _, opt := range options {
		opt(r)
	}
	// NewWithEvict only fails for a non-positive size, which the options rule out.
	r.devices, _ = lru.NewWithEvict(r.maxDevices, func(key, value interface{}) {
		value.(*registered).device.Close()
		r.logger.Debug("device evicted", zap.String("device", key.(string)))
	})
	return r
}

// Catalog is a catalog reader shared by every device. It never sends a
// credential, so anonymous browsing does not need a device.
func (r *Registry) Catalog() *catalog.Service {
	return r.catalog
}

// Get returns the device, opening it on first use. Concurrent first requests
// for the same id open it once.
func (r *Registry) Get(ctx context.Context, id string) (*Device, error) {
	if v, ok := r.devices.Get(id); ok {
		e := v.(*registered)
		e.touch(r.now())
		return e.device, nil
	}

	v, err, _ := r.group.Do(id, func() (interface{}, error) {
		if v, ok := r.devices.Get(id); ok {
			return v.(*registered).device, nil
		}
		opened, err := Open(context.WithoutCancel(ctx), id, r.opts)
		if err != nil {
			return nil, err
		}
		e := &registered{device: opened}
		e.touch(r.now())
		r.devices.Add(id, e)
		return opened, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Device), nil
}

func (r *Registry) Len() int {
	return r.devices.Len()
}

// EvictIdle closes devices unused for longer than the idle timeout and
// returns how many were removed.
func (r *Registry) EvictIdle() int {
	if r.idle <= 0 {
		return 0
	}
	cutoff := r.now().Add(-r.idle).UnixNano()
	evicted := 0
	for _, key := range r.devices.Keys() {
		v, ok := r.devices.Peek(key)
		if !ok {
			continue
		}
		if v.(*registered).lastSeen.Load() > cutoff {
			continue
		}
		r.devices.Remove(key)
		evicted++
	}
	return evicted
}

// Sweep runs EvictIdle every interval until ctx is done.
func (r *Registry) Sweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.EvictIdle(); n > 0 {
				r.logger.Info("evicted idle devices", zap.Int("count", n), zap.Int("open", r.Len()))
			}
		}
	}
}

// Close detaches every open device.
func (r *Registry) Close() {
	r.devices.Purge()
}
