// Package trustee implements the protocol state machine of one trustee.
//
// A Trustee never talks to anybody directly: it is fed the entries of its
// board in order, folds the ones it can verify into its state and returns
// the statements it has to post in reply. Everything it knows is derived
// from the board, so two honest trustees that have seen the same prefix of
// the board agree on the state of the instance.
package trustee

import (
	"bytes"
	"sync"

	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/util/key"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"

	"go.dedis.ch/conclave"
	"go.dedis.ch/conclave/board"
	"go.dedis.ch/conclave/message"
)

// Config holds what a trustee needs to start.
type Config struct {
	// Board is the name of the board the trustee follows.
	Board string
	// Name is used as sender name and in logs.
	Name string
	// Pair is the identity of the trustee.
	Pair *key.Pair
	// Secrets keeps the polynomial dealt by the trustee.
	Secrets SecretStore
	// Proposers are the keys allowed to post a configuration. If empty,
	// every trustee listed in a configuration may propose it.
	Proposers []kyber.Point
	// Instance, if set, is the only configuration hash the trustee takes
	// part in.
	Instance []byte
}

// Trustee is the state machine of one trustee on one board.
type Trustee struct {
	sync.Mutex
	board     string
	name      string
	pair      *key.Pair
	secrets   SecretStore
	proposers []kyber.Point
	pinned    []byte
	st        *state
}

// New returns a trustee in the Bootstrap phase that has not seen any entry
// of its board.
func New(c Config) (*Trustee, error) {
	if c.Pair == nil || c.Pair.Private == nil || c.Pair.Public == nil {
		return nil, xerrors.Errorf("trustee without key pair: %w", conclave.ErrConfig)
	}
	if c.Secrets == nil {
		return nil, xerrors.Errorf("trustee without secret store: %w", conclave.ErrConfig)
	}
	if !board.ValidName(c.Board) {
		return nil, xerrors.Errorf("invalid board name %q: %w", c.Board, conclave.ErrConfig)
	}
	if c.Name == "" {
		c.Name = c.Pair.Public.String()
	}
	return &Trustee{
		board:     c.Board,
		name:      c.Name,
		pair:      c.Pair,
		secrets:   c.Secrets,
		proposers: c.Proposers,
		pinned:    c.Instance,
		st:        newState(),
	}, nil
}

// Snapshot is a copy of the state of a trustee.
type Snapshot struct {
	st *state
}

// Snapshot returns the current state, to be restored if what the caller
// does with the output of the next steps fails.
func (t *Trustee) Snapshot() *Snapshot {
	t.Lock()
	defer t.Unlock()
	return &Snapshot{st: t.st.clone()}
}

// Restore goes back to the state of the snapshot.
func (t *Trustee) Restore(s *Snapshot) {
	t.Lock()
	defer t.Unlock()
	t.st = s.st.clone()
}

// Step folds the new entries of the board and returns the messages the
// trustee has to post and the actions its driver has to perform. Entries
// that are already folded are ignored. If Step returns an error, the state
// of the trustee is unchanged.
//
// Once a fault has been raised, Step only returns that fault.
func (t *Trustee) Step(entries []message.Entry) ([]*message.Message, []Action, error) {
	t.Lock()
	defer t.Unlock()
	if t.st.fault != nil {
		return nil, nil, t.st.fault
	}

	s := t.st.clone()
	for i := range entries {
		e := &entries[i]
		if int64(e.ID) <= s.watermark {
			continue
		}
		s.watermark = int64(e.ID)
		o, err := e.Open()
		if err != nil {
			log.Lvlf2("%s: dropping entry %d from %s (%v): %v", t.board, e.ID,
				e.Message.Sender.Name, conclave.KindOf(err), err)
			continue
		}
		s.pending = append(s.pending, o)
	}

	if err := t.fold(s); err != nil {
		return nil, nil, err
	}
	actions := t.advance(s)
	if s.fault != nil {
		t.st = s
		return nil, append(actions, Action{Kind: CryptographicFault, Phase: s.phase, Fault: s.fault}), nil
	}

	out, persisted, err := t.emit(s)
	if err != nil {
		return nil, nil, err
	}
	t.st = s
	return out, append(actions, persisted...), nil
}

// fold applies the pending entries until none of them can be applied
// anymore. After every accepted entry the scan starts over, so that of two
// competing entries the one with the lowest id always wins.
func (t *Trustee) fold(s *state) error {
	for i := 0; i < len(s.pending) && s.fault == nil; {
		o := s.pending[i]
		res, err := t.apply(s, o)
		if err != nil {
			return err
		}
		if res == deferred {
			i++
			continue
		}
		s.pending = append(s.pending[:i:i], s.pending[i+1:]...)
		if res == accepted {
			i = 0
		}
	}
	if n := len(s.pending); n > 0 {
		log.Lvlf3("%s: %s defers %d entries", t.board, t.name, n)
	}
	return nil
}

// advance moves to the phase of the folded state.
func (t *Trustee) advance(s *state) []Action {
	var actions []Action
	target := s.derivedPhase()
	for s.phase < target {
		s.phase++
		log.Lvlf2("%s: %s entered %v", t.board, t.name, s.phase)
		actions = append(actions, Action{Kind: PhaseChanged, Phase: s.phase})
		if s.phase == Complete {
			actions = append(actions, Action{
				Kind:     Completed,
				Phase:    Complete,
				Points:   s.result.points,
				Artifact: s.result.artifact,
				Digest:   s.result.digest,
			})
		}
	}
	return actions
}

// Board returns the name of the board of the trustee.
func (t *Trustee) Board() string {
	return t.board
}

// Name returns the name of the trustee.
func (t *Trustee) Name() string {
	return t.name
}

// Watermark returns the id of the last folded entry, or -1.
func (t *Trustee) Watermark() int64 {
	t.Lock()
	defer t.Unlock()
	return t.st.watermark
}

// Phase returns the current phase.
func (t *Trustee) Phase() Phase {
	t.Lock()
	defer t.Unlock()
	return t.st.phase
}

// Instance returns the hash of the tracked configuration, or nil.
func (t *Trustee) Instance() []byte {
	t.Lock()
	defer t.Unlock()
	if t.st.inst == nil {
		return nil
	}
	return t.st.inst.hash
}

// PublicKey returns the joint public key once the shares of the qualified
// dealers have been verified, or nil.
func (t *Trustee) PublicKey() kyber.Point {
	t.Lock()
	defer t.Unlock()
	return t.st.jointKey
}

// Result returns the decrypted points and the artifact carrying them once
// they have been combined.
func (t *Trustee) Result() ([]kyber.Point, []byte) {
	t.Lock()
	defer t.Unlock()
	if t.st.result == nil {
		return nil, nil
	}
	return t.st.result.points, t.st.result.artifact
}

// Fault returns the fault that stopped the instance, or nil.
func (t *Trustee) Fault() *Fault {
	t.Lock()
	defer t.Unlock()
	return t.st.fault
}

// Status summarises the state of a trustee.
type Status struct {
	Board       string
	Name        string
	Phase       Phase
	Watermark   int64
	Instance    []byte
	Position    int
	Approvals   int
	Commitments int
	Shares      int
	PublicKeys  int
	Mixes       int
	Partials    int
	Plaintexts  int
	Pending     int
	Fault       *Fault
}

// Status returns a summary of the state.
func (t *Trustee) Status() Status {
	t.Lock()
	defer t.Unlock()
	s := t.st
	st := Status{
		Board:       t.board,
		Name:        t.name,
		Phase:       s.phase,
		Watermark:   s.watermark,
		Position:    -1,
		Approvals:   len(s.approvals),
		Commitments: len(s.commitments),
		Shares:      len(s.shares),
		PublicKeys:  len(s.publicKeys),
		Mixes:       len(s.mixes),
		Partials:    len(s.partials),
		Plaintexts:  len(s.plaintexts),
		Pending:     len(s.pending),
		Fault:       s.fault,
	}
	if s.inst != nil {
		st.Instance = s.inst.hash
		st.Position = s.inst.position
	}
	return st
}

func indexOf(keys []kyber.Point, p kyber.Point) int {
	for i, k := range keys {
		if k.Equal(p) {
			return i
		}
	}
	return -1
}

func (t *Trustee) allowedProposer(p kyber.Point, keys []kyber.Point) bool {
	if len(t.proposers) > 0 {
		return indexOf(t.proposers, p) >= 0
	}
	return indexOf(keys, p) >= 0
}

func (t *Trustee) pinnedTo(hash []byte) bool {
	return len(t.pinned) == 0 || bytes.Equal(t.pinned, hash)
}
