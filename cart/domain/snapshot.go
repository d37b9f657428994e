package domain

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Snapshot is a point in time copy of a cart. Nothing done to the store afterwards is visible
// through it.
type Snapshot struct {
	lines     []Line
	sessionID uuid.UUID
	epoch     uuid.UUID
	revision  uint64
	total     Money
	itemCount int
}

// NewSnapshot copies lines. epoch identifies the store instance that produced revision; revisions
// of different epochs are unrelated.
func NewSnapshot(sessionID, epoch uuid.UUID, revision uint64, lines []Line) Snapshot {
	copied := make([]Line, len(lines))
	copy(copied, lines)

	s := Snapshot{lines: copied, sessionID: sessionID, epoch: epoch, revision: revision}
	for _, line := range copied {
		s.total = s.total.Plus(line.Subtotal())
		s.itemCount = AddQuantity(s.itemCount, line.Quantity)
	}
	return s
}

func (s Snapshot) Lines() []Line {
	lines := make([]Line, len(s.lines))
	copy(lines, s.lines)
	return lines
}

func (s Snapshot) Len() int {
	return len(s.lines)
}

func (s Snapshot) IsEmpty() bool {
	return len(s.lines) == 0
}

func (s Snapshot) Total() Money {
	return s.total
}

func (s Snapshot) ItemCount() int {
	return s.itemCount
}

func (s Snapshot) SessionID() uuid.UUID {
	return s.sessionID
}

func (s Snapshot) Epoch() uuid.UUID {
	return s.epoch
}

func (s Snapshot) Revision() uint64 {
	return s.revision
}

// Find returns the line stored under key.
func (s Snapshot) Find(key Key) (Line, bool) {
	for _, line := range s.lines {
		if line.Key() == key {
			return line, true
		}
	}
	return Line{}, false
}

func (s Snapshot) MarshalZerologObject(e *zerolog.Event) {
	e.Str("sessionId", s.sessionID.String()).
		Uint64("revision", s.revision).
		Int("lines", len(s.lines)).
		Int("itemCount", s.itemCount).
		Int64("total", int64(s.total))
}
