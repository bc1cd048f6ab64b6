package lib

import (
	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/share"
	"go.dedis.ch/kyber/v3/sign/schnorr"
	"go.dedis.ch/kyber/v3/util/random"
	"golang.org/x/xerrors"

	"go.dedis.ch/conclave"
)

// Polynomial is the secret polynomial a trustee deals during the key
// ceremony. The share of trustee i is the evaluation at i+1, which matches
// the indexing of kyber's share package.
type Polynomial struct {
	coeffs []kyber.Scalar
}

// NewPolynomial picks a random polynomial of degree t-1.
func NewPolynomial(t int) *Polynomial {
	coeffs := make([]kyber.Scalar, t)
	for i := range coeffs {
		coeffs[i] = conclave.Suite.Scalar().Pick(random.New())
	}
	return &Polynomial{coeffs: coeffs}
}

// Threshold returns the number of coefficients.
func (p *Polynomial) Threshold() int {
	return len(p.coeffs)
}

// Secret returns the constant term.
func (p *Polynomial) Secret() kyber.Scalar {
	return p.coeffs[0]
}

// Eval returns the share of the trustee at position i.
func (p *Polynomial) Eval(i int) kyber.Scalar {
	x := conclave.Suite.Scalar().SetInt64(int64(i + 1))
	v := conclave.Suite.Scalar().Zero()
	for j := len(p.coeffs) - 1; j >= 0; j-- {
		v.Mul(v, x)
		v.Add(v, p.coeffs[j])
	}
	return v
}

// Commit returns the Feldman commitments to the coefficients.
func (p *Polynomial) Commit() []kyber.Point {
	commits := make([]kyber.Point, len(p.coeffs))
	for i, c := range p.coeffs {
		commits[i] = conclave.Suite.Point().Mul(c, nil)
	}
	return commits
}

// Prove returns a proof of knowledge of the constant term, bound to the
// context.
func (p *Polynomial) Prove(context []byte) ([]byte, error) {
	msg, err := knowledgeMessage(context, p.Commit()[0])
	if err != nil {
		return nil, err
	}
	return schnorr.Sign(conclave.Suite, p.coeffs[0], msg)
}

// MarshalBinary concatenates the coefficients.
func (p *Polynomial) MarshalBinary() ([]byte, error) {
	var buf []byte
	for _, c := range p.coeffs {
		b, err := ScalarToBytes(c)
		if err != nil {
			return nil, err
		}
		buf = append(buf, b...)
	}
	return buf, nil
}

// UnmarshalPolynomial is the inverse of MarshalBinary.
func UnmarshalPolynomial(buf []byte) (*Polynomial, error) {
	size := conclave.Suite.ScalarLen()
	if len(buf) == 0 || len(buf)%size != 0 {
		return nil, xerrors.Errorf("polynomial of %d bytes: %w", len(buf), conclave.ErrSerialization)
	}
	p := &Polynomial{}
	for i := 0; i < len(buf); i += size {
		c, err := ScalarFromBytes(buf[i : i+size])
		if err != nil {
			return nil, err
		}
		p.coeffs = append(p.coeffs, c)
	}
	return p, nil
}

func knowledgeMessage(context []byte, c0 kyber.Point) ([]byte, error) {
	buf, err := c0.MarshalBinary()
	if err != nil {
		return nil, xerrors.Errorf("encoding commitment: %v: %w", err, conclave.ErrSerialization)
	}
	return append(append([]byte("conclave/commitment/"), context...), buf...), nil
}

// VerifyCommitment checks that a dealer published threshold commitments and
// knows the discrete logarithm of the first one.
func VerifyCommitment(commits []kyber.Point, threshold int, proof, context []byte) error {
	if len(commits) != threshold {
		return xerrors.Errorf("%d commitments for threshold %d: %w",
			len(commits), threshold, conclave.ErrCryptographicFault)
	}
	msg, err := knowledgeMessage(context, commits[0])
	if err != nil {
		return err
	}
	if err := schnorr.Verify(conclave.Suite, commits[0], msg, proof); err != nil {
		return xerrors.Errorf("proof of knowledge: %v: %w", err, conclave.ErrCryptographicFault)
	}
	return nil
}

// CheckShare verifies the share received by the trustee at position i
// against the dealer's commitments.
func CheckShare(commits []kyber.Point, i int, s kyber.Scalar) bool {
	poly := share.NewPubPoly(conclave.Suite, nil, commits)
	return poly.Check(&share.PriShare{I: i, V: s})
}

// VerificationKey returns the public counterpart of the combined secret
// share of the trustee at position i, given the commitments of the
// dealers.
func VerificationKey(dealers [][]kyber.Point, i int) kyber.Point {
	X := conclave.Suite.Point().Null()
	for _, commits := range dealers {
		poly := share.NewPubPoly(conclave.Suite, nil, commits)
		X.Add(X, poly.Eval(i).V)
	}
	return X
}

// JointKey returns the public key shared by all dealers.
func JointKey(dealers [][]kyber.Point) kyber.Point {
	X := conclave.Suite.Point().Null()
	for _, commits := range dealers {
		X.Add(X, commits[0])
	}
	return X
}

// CombineShares returns the secret share from the shares received from
// the dealers.
func CombineShares(shares []kyber.Scalar) kyber.Scalar {
	x := conclave.Suite.Scalar().Zero()
	for _, s := range shares {
		x.Add(x, s)
	}
	return x
}
