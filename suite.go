package conclave

import (
	"go.dedis.ch/kyber/v3/group/edwards25519"
)

// Suite is the Ed25519 suite used for identities, signatures, the joint
// election key and all the proofs exchanged over a board.
var Suite = edwards25519.NewBlakeSHA256Ed25519()
