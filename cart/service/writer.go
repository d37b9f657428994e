package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Alturino/storefront/cart/domain"
	inErrors "github.com/Alturino/storefront/internal/errors"
	"github.com/Alturino/storefront/internal/log"
	"github.com/Alturino/storefront/internal/metrics"
	"github.com/Alturino/storefront/internal/otel"
)

const saveTimeout = 5 * time.Second

// writer persists the latest scheduled snapshot in the background. Intermediate states may be
// skipped; a failed save is kept pending until a newer state replaces it.
type writer struct {
	logger    zerolog.Logger
	sessionID uuid.UUID
	storage   Storage
	metrics   *metrics.Metrics

	mu      sync.Mutex
	pending *domain.Snapshot

	saveMu sync.Mutex

	notify    chan struct{}
	done      chan struct{}
	stopped   chan struct{}
	closed    atomic.Bool
	closeOnce sync.Once
}

func newWriter(
	logger zerolog.Logger,
	sessionID uuid.UUID,
	storage Storage,
	m *metrics.Metrics,
) *writer {
	return &writer{
		logger:    logger.With().Str(log.KeyTag, "writer").Logger(),
		sessionID: sessionID,
		storage:   storage,
		metrics:   m,
		notify:    make(chan struct{}, 1),
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}
}

// schedule hands snapshot to the background loop. It reports false once the writer is closed;
// the caller then saves with saveNow.
func (w *writer) schedule(snapshot domain.Snapshot) bool {
	w.mu.Lock()
	w.pending = &snapshot
	w.mu.Unlock()

	if w.closed.Load() {
		return false
	}
	select {
	case w.notify <- struct{}{}:
	default:
	}
	return true
}

func (w *writer) saveNow(c context.Context) error {
	c, cancel := context.WithTimeout(context.WithoutCancel(c), saveTimeout)
	defer cancel()
	return w.flush(c)
}

func (w *writer) run() {
	defer close(w.stopped)
	for {
		select {
		case <-w.notify:
			c, cancel := context.WithTimeout(w.logger.WithContext(context.Background()), saveTimeout)
			_ = w.flush(c)
			cancel()
		case <-w.done:
			return
		}
	}
}

func (w *writer) flush(c context.Context) error {
	w.saveMu.Lock()
	defer w.saveMu.Unlock()

	w.mu.Lock()
	pending := w.pending
	w.pending = nil
	w.mu.Unlock()
	if pending == nil {
		return nil
	}

	c, span := otel.Tracer.Start(c, "writer flush")
	defer span.End()

	logger := w.logger.With().
		Str(log.KeyProcess, "saving cart").
		Str(log.KeySessionID, w.sessionID.String()).
		Uint64(log.KeyRevision, pending.Revision()).
		Logger()

	logger.Trace().Msg("saving cart")
	err := w.storage.Save(c, w.sessionID, pending.Lines())
	if err != nil {
		err = fmt.Errorf(
			"%w: failed saving cart revision=%d with error=%w",
			inErrors.ErrPersistence,
			pending.Revision(),
			err,
		)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		w.metrics.PersistenceFailures.WithLabelValues(w.storage.Name()).Inc()

		w.mu.Lock()
		if w.pending == nil {
			w.pending = pending
		}
		w.mu.Unlock()
		return err
	}
	logger.Trace().Msg("saved cart")

	return nil
}

func (w *writer) close(c context.Context) error {
	w.closeOnce.Do(func() {
		w.closed.Store(true)
		close(w.done)
	})
	<-w.stopped
	return w.flush(c)
}
