package lib

import (
	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/proof/dleq"
	"go.dedis.ch/kyber/v3/share"
	"golang.org/x/xerrors"

	"go.dedis.ch/conclave"
	"go.dedis.ch/conclave/message"
)

// Partial is the partial decryption of a list of ciphertexts by the
// trustee at position Index.
type Partial struct {
	Index   int
	Factors []kyber.Point
	Proofs  []*dleq.Proof
}

// PartialDecrypt computes x·K for every ephemeral key, with a proof that the
// same x is the discrete logarithm of the trustee's verification key.
func PartialDecrypt(index int, x kyber.Scalar, K []kyber.Point) (*Partial, error) {
	p := &Partial{
		Index:   index,
		Factors: make([]kyber.Point, len(K)),
		Proofs:  make([]*dleq.Proof, len(K)),
	}
	G := conclave.Suite.Point().Base()
	for j, k := range K {
		prf, _, xK, err := dleq.NewDLEQProof(conclave.Suite, G, k, x)
		if err != nil {
			return nil, conclave.ErrorOrNil(err, "proving partial decryption")
		}
		p.Factors[j] = xK
		p.Proofs[j] = prf
	}
	return p, nil
}

// Verify checks the partial decryption against the verification key X of
// its trustee.
func (p *Partial) Verify(X kyber.Point, K []kyber.Point) error {
	if len(p.Factors) != len(K) || len(p.Proofs) != len(K) {
		return xerrors.Errorf("%d factors for %d ciphertexts: %w", len(p.Factors), len(K),
			conclave.ErrCryptographicFault)
	}
	G := conclave.Suite.Point().Base()
	for j, k := range K {
		if err := p.Proofs[j].Verify(conclave.Suite, G, k, X, p.Factors[j]); err != nil {
			return xerrors.Errorf("partial decryption %d of trustee %d: %v: %w",
				j, p.Index, err, conclave.ErrCryptographicFault)
		}
	}
	return nil
}

// Combine recovers the plaintext points of the ciphertexts (K, C) from the
// partial decryptions of at least t of the n trustees.
func Combine(partials []*Partial, C []kyber.Point, t, n int) ([]kyber.Point, error) {
	if len(partials) < t {
		return nil, xerrors.Errorf("%d partial decryptions for threshold %d: %w",
			len(partials), t, conclave.ErrValidation)
	}
	M := make([]kyber.Point, len(C))
	for j := range C {
		shares := make([]*share.PubShare, len(partials))
		for i, p := range partials {
			if len(p.Factors) != len(C) {
				return nil, xerrors.Errorf("partial decryption of trustee %d has %d factors: %w",
					p.Index, len(p.Factors), conclave.ErrValidation)
			}
			shares[i] = &share.PubShare{I: p.Index, V: p.Factors[j]}
		}
		xK, err := share.RecoverCommit(conclave.Suite, shares, t, n)
		if err != nil {
			return nil, xerrors.Errorf("recovering ciphertext %d: %v: %w", j, err, conclave.ErrCryptographicFault)
		}
		M[j] = conclave.Suite.Point().Sub(C[j], xK)
	}
	return M, nil
}

// Encode converts the partial decryption to its wire form.
func (p *Partial) Encode() (*message.DecryptionArtifact, error) {
	factors, err := PointsToBytes(p.Factors)
	if err != nil {
		return nil, err
	}
	a := &message.DecryptionArtifact{Factors: factors}
	for _, prf := range p.Proofs {
		var wire message.DLEQProof
		if wire.C, err = ScalarToBytes(prf.C); err != nil {
			return nil, err
		}
		if wire.R, err = ScalarToBytes(prf.R); err != nil {
			return nil, err
		}
		if wire.VG, err = prf.VG.MarshalBinary(); err != nil {
			return nil, xerrors.Errorf("encoding proof: %v: %w", err, conclave.ErrSerialization)
		}
		if wire.VH, err = prf.VH.MarshalBinary(); err != nil {
			return nil, xerrors.Errorf("encoding proof: %v: %w", err, conclave.ErrSerialization)
		}
		a.Proofs = append(a.Proofs, wire)
	}
	return a, nil
}

// DecodePartial parses the partial decryption of the trustee at position
// index.
func DecodePartial(index int, a *message.DecryptionArtifact) (*Partial, error) {
	factors, err := PointsFromBytes(a.Factors)
	if err != nil {
		return nil, err
	}
	p := &Partial{Index: index, Factors: factors}
	for _, wire := range a.Proofs {
		prf := &dleq.Proof{}
		if prf.C, err = ScalarFromBytes(wire.C); err != nil {
			return nil, err
		}
		if prf.R, err = ScalarFromBytes(wire.R); err != nil {
			return nil, err
		}
		if prf.VG, err = PointFromBytes(wire.VG); err != nil {
			return nil, err
		}
		if prf.VH, err = PointFromBytes(wire.VH); err != nil {
			return nil, err
		}
		p.Proofs = append(p.Proofs, prf)
	}
	return p, nil
}
