package backend

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bnema/wlbar/internal/handle"
	"github.com/bnema/wlbar/internal/logger"
)

// Selector tries drivers in priority order and activates exactly one. The
// selection runs once per Selector; later calls return the first result.
type Selector struct {
	drivers []Driver

	once   sync.Once
	active Driver
	err    error

	mu   sync.RWMutex
	kind handle.Kind
}

// NewSelector creates a selector over drivers, highest priority first
func NewSelector(drivers ...Driver) *Selector {
	return &Selector{drivers: drivers}
}

// Select probes each driver and activates the first one present. Each
// activation runs against fresh registries and control tables; only the
// winner's are installed into env, so a driver whose activation fails leaves
// nothing behind. It is closed and the next one is tried. Subscriptions on
// env's registries must be made after Select returns.
func (s *Selector) Select(ctx context.Context, env *Env) (Driver, error) {
	s.once.Do(func() {
		s.active, s.err = s.selectOnce(ctx, env)
		if s.active != nil {
			s.mu.Lock()
			s.kind = s.active.Kind()
			s.mu.Unlock()
		}
	})
	return s.active, s.err
}

func (s *Selector) selectOnce(ctx context.Context, env *Env) (Driver, error) {
	for i, d := range s.drivers {
		logger.Debugf("Selector: trying backend %d: %s", i, d.Kind())

		if err := d.Probe(ctx); err != nil {
			if errors.Is(err, ErrNotPresent) {
				logger.Debugf("Selector: %s not present", d.Kind())
			} else {
				logger.Debugf("Selector: %s probe failed: %v", d.Kind(), err)
			}
			continue
		}

		scratch := env.fresh()
		if err := d.Activate(ctx, scratch); err != nil {
			logger.Warnf("Selector: %s detected but activation failed: %v", d.Kind(), err)
			if cerr := d.Close(); cerr != nil {
				logger.Debugf("Selector: closing %s: %v", d.Kind(), cerr)
			}
			continue
		}

		*env = *scratch
		logger.Infof("Using %s backend", d.Kind())
		return d, nil
	}
	return nil, ErrNoBackend
}

// Active returns the kind of the selected backend, or KindNone
func (s *Selector) Active() handle.Kind {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.kind
}

// Detect probes drivers in order without activating any and returns the
// kind that Select would pick. Whatever the winning probe opened is closed
// again before returning.
func Detect(ctx context.Context, drivers ...Driver) (handle.Kind, error) {
	var errs []error
	for _, d := range drivers {
		err := d.Probe(ctx)
		if err == nil {
			if cerr := d.Close(); cerr != nil {
				logger.Debugf("Detect: closing %s: %v", d.Kind(), cerr)
			}
			return d.Kind(), nil
		}
		if !errors.Is(err, ErrNotPresent) {
			errs = append(errs, fmt.Errorf("%s: %w", d.Kind(), err))
		}
	}
	return handle.KindNone, errors.Join(append([]error{ErrNoBackend}, errs...)...)
}
