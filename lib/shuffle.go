package lib

import (
	"fmt"

	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/proof"
	"go.dedis.ch/kyber/v3/shuffle"
	"go.dedis.ch/kyber/v3/util/random"
	"golang.org/x/xerrors"

	"go.dedis.ch/conclave"
)

// MixContext is the name the shuffle proof of a round is bound to.
func MixContext(hash []byte, round int) string {
	return fmt.Sprintf("conclave/mix/%x/%d", hash, round)
}

// Shuffle re-encrypts and permutes the ElGamal pairs (K, C) under the
// public key and proves it.
func Shuffle(public kyber.Point, K, C []kyber.Point, context string) (KK, CC []kyber.Point, prf []byte, err error) {
	if len(K) < 2 || len(K) != len(C) {
		return nil, nil, nil, xerrors.Errorf("cannot shuffle %d/%d ciphertexts: %w",
			len(K), len(C), conclave.ErrValidation)
	}
	KK, CC, prover := shuffle.Shuffle(conclave.Suite, nil, public, K, C, random.New())
	prf, err = proof.HashProve(conclave.Suite, context, prover)
	if err != nil {
		return nil, nil, nil, conclave.ErrorOrNil(err, "proving shuffle")
	}
	return KK, CC, prf, nil
}

// VerifyShuffle checks that (KK, CC) is a shuffle of (K, C) under the
// public key.
func VerifyShuffle(public kyber.Point, K, C, KK, CC []kyber.Point, prf []byte, context string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = xerrors.Errorf("malformed shuffle proof: %v: %w", r, conclave.ErrCryptographicFault)
		}
	}()
	if len(K) < 2 {
		return xerrors.Errorf("cannot verify less than 2 ciphertexts: %w", conclave.ErrCryptographicFault)
	}
	if len(C) != len(K) || len(KK) != len(K) || len(CC) != len(K) {
		return xerrors.Errorf("shuffle changed the number of ciphertexts: %w", conclave.ErrCryptographicFault)
	}
	verifier := shuffle.Verifier(conclave.Suite, nil, public, K, C, KK, CC)
	if err := proof.HashVerify(conclave.Suite, context, verifier, prf); err != nil {
		return xerrors.Errorf("shuffle proof: %v: %w", err, conclave.ErrCryptographicFault)
	}
	return nil
}
