package trustee

import (
	"fmt"

	"go.dedis.ch/kyber/v3"
)

// ActionKind is the type of an action.
type ActionKind int

// The side effects a step can ask for. Actions never leave the process.
const (
	// PhaseChanged reports that the trustee entered Action.Phase.
	PhaseChanged ActionKind = iota + 1
	// PersistSecret reports that a derived secret was written to the
	// secret store under Action.Secret.
	PersistSecret
	// CryptographicFault reports Action.Fault. The instance does not
	// progress anymore.
	CryptographicFault
	// Completed hands the plaintexts over to the tally.
	Completed
)

func (k ActionKind) String() string {
	switch k {
	case PhaseChanged:
		return "PhaseChanged"
	case PersistSecret:
		return "PersistSecret"
	case CryptographicFault:
		return "CryptographicFault"
	case Completed:
		return "Completed"
	}
	return fmt.Sprintf("ActionKind(%d)", int(k))
}

// Action is a side effect the trustee wants its driver to perform.
type Action struct {
	Kind  ActionKind
	Phase Phase
	// Secret is the secret store key of PersistSecret.
	Secret string
	// Fault is set for CryptographicFault.
	Fault *Fault
	// Points are the decrypted ballots of Completed, in the order of the
	// last mix.
	Points []kyber.Point
	// Artifact is the encoded PlaintextsArtifact of Completed and Digest
	// its digest.
	Artifact []byte
	Digest   []byte
}

// Plaintexts returns the data embedded in the points of a Completed action.
// A point that does not embed data gives a nil entry.
func (a Action) Plaintexts() [][]byte {
	out := make([][]byte, len(a.Points))
	for i, p := range a.Points {
		if data, err := p.Data(); err == nil {
			out[i] = data
		}
	}
	return out
}

func (a Action) String() string {
	switch a.Kind {
	case PhaseChanged:
		return fmt.Sprintf("%v(%v)", a.Kind, a.Phase)
	case PersistSecret:
		return fmt.Sprintf("%v(%s)", a.Kind, a.Secret)
	case CryptographicFault:
		return fmt.Sprintf("%v(%v)", a.Kind, a.Fault)
	case Completed:
		return fmt.Sprintf("%v(%d plaintexts, %x)", a.Kind, len(a.Points), a.Digest)
	}
	return a.Kind.String()
}
