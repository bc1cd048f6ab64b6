package lib

import (
	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/util/random"
	"golang.org/x/xerrors"

	"go.dedis.ch/conclave"
)

// Encrypt performs the ElGamal encryption algorithm. The message must fit
// in a point, see MaxMessage.
func Encrypt(public kyber.Point, msg []byte) (K, C kyber.Point, err error) {
	if len(msg) > MaxMessage() {
		return nil, nil, xerrors.Errorf("message of %d bytes does not fit in a point: %w",
			len(msg), conclave.ErrValidation)
	}
	M := conclave.Suite.Point().Embed(msg, random.New())

	k := conclave.Suite.Scalar().Pick(random.New()) // ephemeral private key
	K = conclave.Suite.Point().Mul(k, nil)          // ephemeral DH public key
	S := conclave.Suite.Point().Mul(k, public)      // ephemeral DH shared secret
	C = S.Add(S, M)                                 // message blinded with secret
	return K, C, nil
}

// Decrypt performs the ElGamal decryption algorithm.
func Decrypt(private kyber.Scalar, K, C kyber.Point) kyber.Point {
	S := conclave.Suite.Point().Mul(private, K)
	return conclave.Suite.Point().Sub(C, S)
}

// MaxMessage is the number of bytes that can be embedded in a point.
func MaxMessage() int {
	return conclave.Suite.Point().EmbedLen()
}
