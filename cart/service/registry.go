package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/Alturino/storefront/internal/log"
	"github.com/Alturino/storefront/internal/metrics"
)

const loadTimeout = 5 * time.Second

// Registry hands out the single Store of each session, opening it on first access.
type Registry struct {
	storage Storage
	metrics *metrics.Metrics

	mu     sync.Mutex
	stores map[uuid.UUID]*Store
	sfg    singleflight.Group
}

func NewRegistry(storage Storage, m *metrics.Metrics) *Registry {
	if m == nil {
		m = metrics.New(nil)
	}
	return &Registry{storage: storage, metrics: m, stores: map[uuid.UUID]*Store{}}
}

// Get returns the store of sessionID, opening it on first access. A store that failed to load is
// not kept, the next Get tries again.
func (r *Registry) Get(c context.Context, sessionID uuid.UUID) (*Store, error) {
	if s, ok := r.lookup(sessionID); ok {
		return s, nil
	}

	// concurrent first access of one session must not load it twice, and the load is shared so
	// it must outlive the caller that started it
	v, err, _ := r.sfg.Do(sessionID.String(), func() (interface{}, error) {
		if s, ok := r.lookup(sessionID); ok {
			return s, nil
		}
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(c), loadTimeout)
		defer cancel()
		s, err := Open(loadCtx, sessionID, r.storage, r.metrics)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.stores[sessionID] = s
		r.mu.Unlock()
		return s, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed opening cart sessionId=%s with error=%w", sessionID.String(), err)
	}
	return v.(*Store), nil
}

// Close flushes every open store. It returns the joined PersistenceErrors.
func (r *Registry) Close(c context.Context) error {
	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "Registry Close").
		Str(log.KeyProcess, "closing stores").
		Logger()

	r.mu.Lock()
	stores := r.stores
	r.stores = map[uuid.UUID]*Store{}
	r.mu.Unlock()

	logger.Info().Int("stores", len(stores)).Msg("closing stores")
	var errs error
	for id, s := range stores {
		if err := s.Close(c); err != nil {
			err = fmt.Errorf("failed closing store sessionId=%s with error=%w", id.String(), err)
			logger.Error().Err(err).Msg(err.Error())
			errs = errors.Join(errs, err)
		}
	}
	logger.Info().Msg("closed stores")

	return errs
}

func (r *Registry) lookup(sessionID uuid.UUID) (*Store, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.stores[sessionID]
	return s, ok
}
