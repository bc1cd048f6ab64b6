package board

import (
	"context"
	"sync"
	"time"

	"golang.org/x/xerrors"

	"go.dedis.ch/conclave"
	"go.dedis.ch/conclave/message"
)

// Memory is a board kept in memory, with the same semantics as the
// service. It is used by tests and simulations.
type Memory struct {
	sync.Mutex
	boards    map[string][]message.Entry
	failNext  int
	failSends int
}

// NewMemory returns an empty in-memory board.
func NewMemory() *Memory {
	return &Memory{boards: make(map[string][]message.Entry)}
}

// FailNext makes the next n calls fail with a transport error.
func (m *Memory) FailNext(n int) {
	m.Lock()
	defer m.Unlock()
	m.failNext = n
}

// FailSends makes the next n calls to SendMessages fail with a transport
// error, reads keep working.
func (m *Memory) FailSends(n int) {
	m.Lock()
	defer m.Unlock()
	m.failSends = n
}

func (m *Memory) fail(send bool) bool {
	if m.failNext > 0 {
		m.failNext--
		return true
	}
	if send && m.failSends > 0 {
		m.failSends--
		return true
	}
	return false
}

// GetMessages implements Board.
func (m *Memory) GetMessages(ctx context.Context, name string, since int64) ([]message.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, conclave.Classify(conclave.ErrTransport, err)
	}
	m.Lock()
	defer m.Unlock()
	if m.fail(false) {
		return nil, xerrors.Errorf("injected read failure: %w", conclave.ErrTransport)
	}
	if !ValidName(name) {
		return nil, xerrors.Errorf("invalid board name %q: %w", name, conclave.ErrValidation)
	}
	var out []message.Entry
	for _, e := range m.boards[name] {
		if int64(e.ID) > since {
			out = append(out, e)
		}
	}
	return out, nil
}

// SendMessages implements Board.
func (m *Memory) SendMessages(ctx context.Context, name string, msgs []message.Message) ([]uint64, error) {
	if err := ctx.Err(); err != nil {
		return nil, conclave.Classify(conclave.ErrTransport, err)
	}
	if err := CheckBatch(name, msgs); err != nil {
		return nil, err
	}
	m.Lock()
	defer m.Unlock()
	if m.fail(true) {
		return nil, xerrors.Errorf("injected write failure: %w", conclave.ErrTransport)
	}
	entries := m.boards[name]
	ids := make([]uint64, len(msgs))
	now := time.Now().UnixNano()
	for i, msg := range msgs {
		id := uint64(len(entries)) + 1
		entries = append(entries, message.Entry{ID: id, Timestamp: now, Message: msg})
		ids[i] = id
	}
	m.boards[name] = entries
	return ids, nil
}

// Entries returns a copy of the entries of the named board.
func (m *Memory) Entries(name string) []message.Entry {
	m.Lock()
	defer m.Unlock()
	return append([]message.Entry(nil), m.boards[name]...)
}
