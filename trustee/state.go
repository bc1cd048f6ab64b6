package trustee

import (
	"go.dedis.ch/kyber/v3"

	"go.dedis.ch/conclave/lib"
	"go.dedis.ch/conclave/message"
)

// ciphertexts is a list of ElGamal pairs with the digest of the artifact
// that carried them.
type ciphertexts struct {
	K, C   []kyber.Point
	digest []byte
}

// instance is what a trustee knows about the configuration it tracks.
// It never changes once set.
type instance struct {
	config    *message.Configuration
	hash      []byte
	keys      []kyber.Point
	threshold int
	position  int
	authority kyber.Point
}

func (in *instance) n() int {
	return len(in.keys)
}

// state is the fold of the board. Values stored in the maps are never
// modified, so copying the maps is enough to snapshot it.
type state struct {
	phase     Phase
	watermark int64
	pending   []*message.Opened
	fault     *Fault
	// emitted are the statements produced by the trustee and not yet seen
	// on the board.
	emitted map[message.Kind]bool

	inst *instance

	approvals   map[int]uint64
	commitments map[int][]kyber.Point
	// dealers are the positions of the commitments in board order. The
	// first threshold of them deal the joint key.
	dealers    []int
	shares     map[int]kyber.Scalar
	publicKeys map[int]kyber.Point
	// announced are the positions of the public keys in board order. The
	// first threshold of them mix the ballots.
	announced []int
	mixes     map[int]*ciphertexts
	partials  map[int]*lib.Partial
	// partialOrder are the positions of the partial decryptions in board
	// order.
	partialOrder []int
	plaintexts   map[int][]byte

	// Derived once the shares of every qualified dealer are in.
	jointKey kyber.Point
	secret   kyber.Scalar
	verify   []kyber.Point

	ballots *ciphertexts
	result  *result
}

// result is the combined decryption of the last mix.
type result struct {
	points   []kyber.Point
	artifact []byte
	digest   []byte
}

func newState() *state {
	return &state{
		watermark:   -1,
		emitted:     make(map[message.Kind]bool),
		approvals:   make(map[int]uint64),
		commitments: make(map[int][]kyber.Point),
		shares:      make(map[int]kyber.Scalar),
		publicKeys:  make(map[int]kyber.Point),
		mixes:       make(map[int]*ciphertexts),
		partials:    make(map[int]*lib.Partial),
		plaintexts:  make(map[int][]byte),
	}
}

func (s *state) clone() *state {
	c := *s
	c.pending = append([]*message.Opened(nil), s.pending...)
	c.partialOrder = append([]int(nil), s.partialOrder...)
	c.dealers = append([]int(nil), s.dealers...)
	c.announced = append([]int(nil), s.announced...)
	c.emitted = make(map[message.Kind]bool, len(s.emitted))
	for k, v := range s.emitted {
		c.emitted[k] = v
	}
	c.approvals = make(map[int]uint64, len(s.approvals))
	for k, v := range s.approvals {
		c.approvals[k] = v
	}
	c.commitments = make(map[int][]kyber.Point, len(s.commitments))
	for k, v := range s.commitments {
		c.commitments[k] = v
	}
	c.shares = make(map[int]kyber.Scalar, len(s.shares))
	for k, v := range s.shares {
		c.shares[k] = v
	}
	c.publicKeys = make(map[int]kyber.Point, len(s.publicKeys))
	for k, v := range s.publicKeys {
		c.publicKeys[k] = v
	}
	c.mixes = make(map[int]*ciphertexts, len(s.mixes))
	for k, v := range s.mixes {
		c.mixes[k] = v
	}
	c.partials = make(map[int]*lib.Partial, len(s.partials))
	for k, v := range s.partials {
		c.partials[k] = v
	}
	c.plaintexts = make(map[int][]byte, len(s.plaintexts))
	for k, v := range s.plaintexts {
		c.plaintexts[k] = v
	}
	return &c
}

func (s *state) approved() bool {
	return s.inst != nil && len(s.approvals) >= s.inst.threshold
}

func (s *state) keyed() bool {
	return s.jointKey != nil
}

// qualified tells whether the trustee at position p is one of the first
// threshold dealers.
func (s *state) qualified(p int) bool {
	for i, d := range s.dealers {
		if i == s.inst.threshold {
			break
		}
		if d == p {
			return true
		}
	}
	return false
}

func (s *state) ready() bool {
	return s.inst != nil && len(s.publicKeys) >= s.inst.threshold
}

// mixer returns the round mixed by the trustee at position p, or -1.
func (s *state) mixer(p int) int {
	if !s.ready() {
		return -1
	}
	for r := 0; r < s.inst.threshold; r++ {
		if s.announced[r] == p {
			return r
		}
	}
	return -1
}

func (s *state) mixed() bool {
	return s.inst != nil && len(s.mixes) == s.inst.threshold
}

// lastMix returns the output of the final round.
func (s *state) lastMix() *ciphertexts {
	return s.mixes[s.inst.threshold-1]
}

// mixInput returns the input of a round, or nil if it is not known yet.
func (s *state) mixInput(round int) *ciphertexts {
	if round == 0 {
		return s.ballots
	}
	return s.mixes[round-1]
}

func (s *state) complete() bool {
	return s.result != nil && s.plaintexts[s.inst.position] != nil &&
		len(s.plaintexts) >= s.inst.threshold
}

// derivedPhase is the phase the folded state corresponds to.
func (s *state) derivedPhase() Phase {
	switch {
	case s.inst == nil:
		return Bootstrap
	case s.complete():
		return Complete
	case s.mixed():
		return Decryption
	case s.ballots != nil:
		return Mixing
	case s.ready():
		return Ready
	case len(s.commitments) > 0:
		return KeyCeremony
	case s.approved():
		return ConfigurationApproved
	}
	return ConfigurationProposed
}
