package service

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/Alturino/storefront/cart/domain"
	inErrors "github.com/Alturino/storefront/internal/errors"
)

var errDiskFull = errors.New("disk full")

type memoryStorage struct {
	mu      sync.Mutex
	carts   map[uuid.UUID][]domain.Line
	saves   int
	loads   int
	failing bool
	loadErr error
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{carts: map[uuid.UUID][]domain.Line{}}
}

func (m *memoryStorage) Name() string {
	return "memory"
}

func (m *memoryStorage) Load(c context.Context, sessionID uuid.UUID) ([]domain.Line, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads++
	if err := c.Err(); err != nil {
		return nil, err
	}
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	lines, ok := m.carts[sessionID]
	if !ok {
		return nil, inErrors.ErrCartNotFound
	}
	return append([]domain.Line(nil), lines...), nil
}

func (m *memoryStorage) Save(c context.Context, sessionID uuid.UUID, lines []domain.Line) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.failing {
		return errDiskFull
	}
	m.carts[sessionID] = append([]domain.Line(nil), lines...)
	return nil
}

func (m *memoryStorage) setLoadErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadErr = err
}

func (m *memoryStorage) loadCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loads
}

func (m *memoryStorage) setFailing(failing bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failing = failing
}

func (m *memoryStorage) stored(sessionID uuid.UUID) ([]domain.Line, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lines, ok := m.carts[sessionID]
	return append([]domain.Line(nil), lines...), ok
}
