package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Alturino/storefront/cart/domain"
	inErrors "github.com/Alturino/storefront/internal/errors"
	"github.com/Alturino/storefront/internal/log"
	"github.com/Alturino/storefront/internal/metrics"
	"github.com/Alturino/storefront/internal/otel"
)

// Storage is the durable shadow of a cart. Load returns inErrors.ErrCartNotFound when nothing was
// saved for the session yet.
type Storage interface {
	Name() string
	Load(c context.Context, sessionID uuid.UUID) ([]domain.Line, error)
	Save(c context.Context, sessionID uuid.UUID, lines []domain.Line) error
}

// Store owns the cart of one session. Mutations are serialized by mu and applied in memory
// first; the durable copy is written behind by the writer.
type Store struct {
	mu           sync.Mutex
	sessionID    uuid.UUID
	epoch        uuid.UUID
	lines        []domain.Line
	revision     uint64
	listeners    map[uint64]func(domain.Snapshot)
	nextListener uint64

	writer  *writer
	metrics *metrics.Metrics
}

// Open loads the persisted cart of sessionID and starts its writer. A missing or unreadable
// record yields an empty cart. Any other load failure is returned as ErrCartUnavailable and no
// store is created, so the durable record is never overwritten by a cart that failed to load.
func Open(
	c context.Context,
	sessionID uuid.UUID,
	storage Storage,
	m *metrics.Metrics,
) (*Store, error) {
	c, span := otel.Tracer.Start(
		c,
		"Store Open",
		trace.WithAttributes(attribute.String(log.KeySessionID, sessionID.String())),
	)
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "Store Open").
		Str(log.KeySessionID, sessionID.String()).
		Str(log.KeyStorage, storage.Name()).
		Logger()

	if m == nil {
		m = metrics.New(nil)
	}

	logger = logger.With().Str(log.KeyProcess, "loading cart").Logger()
	logger.Info().Msg("loading cart")
	lines, err := storage.Load(c, sessionID)
	switch {
	case errors.Is(err, inErrors.ErrCartNotFound):
		logger.Info().Msg("no persisted cart, starting empty")
		lines = nil
	case errors.Is(err, inErrors.ErrCartUnreadable):
		err = fmt.Errorf("%w: failed loading cart with error=%w", inErrors.ErrPersistence, err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg("unreadable cart record, starting empty")
		lines = nil
	case err != nil:
		err = fmt.Errorf(
			"%w: %w: failed loading cart with error=%w",
			inErrors.ErrCartUnavailable,
			inErrors.ErrPersistence,
			err,
		)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		m.PersistenceFailures.WithLabelValues(storage.Name()).Inc()
		return nil, err
	default:
		lines = domain.Normalize(lines)
		logger.Info().Int(log.KeyCartLines, len(lines)).Msg("loaded cart")
	}

	s := &Store{
		sessionID: sessionID,
		epoch:     uuid.New(),
		lines:     lines,
		listeners: map[uint64]func(domain.Snapshot){},
		metrics:   m,
	}
	s.writer = newWriter(logger, sessionID, storage, m)
	go s.writer.run()
	return s, nil
}

func (s *Store) SessionID() uuid.UUID {
	return s.sessionID
}

// AddLine merges quantity into the line keyed by (product, size, color), appending a new line
// when there is none.
func (s *Store) AddLine(
	c context.Context,
	product domain.Product,
	quantity int,
	size, color domain.Option,
) error {
	key := domain.NewKey(product.ID, size, color)
	c, span, logger := s.begin(c, "Store AddLine", key)
	defer span.End()

	if quantity < 1 {
		err := fmt.Errorf(
			"failed adding line quantity=%d with error=%w",
			quantity,
			inErrors.ValidationError{Fields: []string{"quantity"}},
		)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}

	logger = logger.With().Int(log.KeyQuantity, quantity).Logger()
	logger.Trace().Msg("adding line")
	s.mutate(c, "add", func() bool {
		for i := range s.lines {
			if s.lines[i].Key() == key {
				s.lines[i].Quantity = domain.AddQuantity(s.lines[i].Quantity, quantity)
				return true
			}
		}
		s.lines = append(s.lines, domain.Line{
			Product:  product,
			Quantity: quantity,
			Size:     size,
			Color:    color,
		})
		return true
	})
	logger.Info().Msg("added line")

	return nil
}

// RemoveLine deletes the keyed line. Removing an absent line does nothing.
func (s *Store) RemoveLine(c context.Context, productID domain.ProductID, size, color domain.Option) {
	key := domain.NewKey(productID, size, color)
	c, span, logger := s.begin(c, "Store RemoveLine", key)
	defer span.End()

	logger.Trace().Msg("removing line")
	s.mutate(c, "remove", func() bool {
		return s.removeLocked(key)
	})
	logger.Info().Msg("removed line")
}

// SetQuantity replaces the quantity of the keyed line; a quantity of zero or less removes it.
func (s *Store) SetQuantity(
	c context.Context,
	productID domain.ProductID,
	quantity int,
	size, color domain.Option,
) {
	key := domain.NewKey(productID, size, color)
	c, span, logger := s.begin(c, "Store SetQuantity", key)
	defer span.End()

	logger = logger.With().Int(log.KeyQuantity, quantity).Logger()
	if quantity <= 0 {
		logger.Trace().Msg("quantity below one, removing line")
		s.mutate(c, "remove", func() bool {
			return s.removeLocked(key)
		})
		logger.Info().Msg("removed line")
		return
	}

	logger.Trace().Msg("setting quantity")
	s.mutate(c, "set_quantity", func() bool {
		for i := range s.lines {
			if s.lines[i].Key() == key {
				if s.lines[i].Quantity == quantity {
					return false
				}
				s.lines[i].Quantity = quantity
				return true
			}
		}
		return false
	})
	logger.Info().Msg("set quantity")
}

func (s *Store) Clear(c context.Context) {
	c, span := otel.Tracer.Start(c, "Store Clear")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "Store Clear").
		Str(log.KeySessionID, s.sessionID.String()).
		Logger()

	logger.Trace().Msg("clearing cart")
	s.mutate(c, "clear", func() bool {
		if len(s.lines) == 0 {
			return false
		}
		s.lines = nil
		return true
	})
	logger.Info().Msg("cleared cart")
}

func (s *Store) Snapshot() domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe registers fn to receive a snapshot after every change. The returned func removes it.
func (s *Store) Subscribe(fn func(domain.Snapshot)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// Sync writes the latest unsaved state and reports the PersistenceError, if any.
func (s *Store) Sync(c context.Context) error {
	return s.writer.flush(c)
}

// Close flushes pending state and stops the writer. Changes made after Close are saved
// synchronously by the mutating call.
func (s *Store) Close(c context.Context) error {
	return s.writer.close(c)
}

func (s *Store) begin(
	c context.Context,
	name string,
	key domain.Key,
) (context.Context, trace.Span, zerolog.Logger) {
	c, span := otel.Tracer.Start(
		c,
		name,
		trace.WithAttributes(
			attribute.String(log.KeySessionID, s.sessionID.String()),
			attribute.Int64(log.KeyProductID, int64(key.ProductID)),
			attribute.String(log.KeySize, key.Size.String()),
			attribute.String(log.KeyColor, key.Color.String()),
		),
	)
	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, name).
		Str(log.KeySessionID, s.sessionID.String()).
		Object("key", key).
		Logger()
	return c, span, logger
}

// mutate applies fn under the lock. When fn reports a change the revision is bumped, the new
// state is handed to the writer and listeners are notified outside the lock.
func (s *Store) mutate(c context.Context, op string, fn func() bool) {
	s.mu.Lock()
	if !fn() {
		s.mu.Unlock()
		return
	}
	s.revision++
	snapshot := s.snapshotLocked()
	scheduled := s.writer.schedule(snapshot)
	listeners := make([]func(domain.Snapshot), 0, len(s.listeners))
	for _, listener := range s.listeners {
		listeners = append(listeners, listener)
	}
	s.mu.Unlock()

	s.metrics.CartMutations.WithLabelValues(op).Inc()
	if !scheduled {
		// closed store, nothing runs in the background anymore
		_ = s.writer.saveNow(c)
	}
	zerolog.Ctx(c).Trace().
		Str(log.KeySessionID, s.sessionID.String()).
		Uint64(log.KeyRevision, snapshot.Revision()).
		Int64(log.KeyCartTotal, int64(snapshot.Total())).
		Int(log.KeyCartItemCount, snapshot.ItemCount()).
		Msg("cart changed")

	for _, listener := range listeners {
		listener(snapshot)
	}
}

func (s *Store) removeLocked(key domain.Key) bool {
	for i := range s.lines {
		if s.lines[i].Key() == key {
			s.lines = append(s.lines[:i:i], s.lines[i+1:]...)
			return true
		}
	}
	return false
}

func (s *Store) snapshotLocked() domain.Snapshot {
	return domain.NewSnapshot(s.sessionID, s.epoch, s.revision, s.lines)
}
