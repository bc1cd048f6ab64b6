package lib

import (
	"go.dedis.ch/kyber/v3"
	"golang.org/x/xerrors"

	"go.dedis.ch/conclave"
	"go.dedis.ch/conclave/message"
)

// PointFromBytes decodes a marshalled point.
func PointFromBytes(buf []byte) (kyber.Point, error) {
	p := conclave.Suite.Point()
	if err := p.UnmarshalBinary(buf); err != nil {
		return nil, xerrors.Errorf("decoding point: %v: %w", err, conclave.ErrSerialization)
	}
	return p, nil
}

// PointsToBytes marshals a list of points.
func PointsToBytes(points []kyber.Point) ([][]byte, error) {
	out := make([][]byte, len(points))
	for i, p := range points {
		buf, err := p.MarshalBinary()
		if err != nil {
			return nil, xerrors.Errorf("encoding point %d: %v: %w", i, err, conclave.ErrSerialization)
		}
		out[i] = buf
	}
	return out, nil
}

// PointsFromBytes decodes a list of marshalled points.
func PointsFromBytes(bufs [][]byte) ([]kyber.Point, error) {
	out := make([]kyber.Point, len(bufs))
	for i, buf := range bufs {
		p, err := PointFromBytes(buf)
		if err != nil {
			return nil, xerrors.Errorf("point %d: %w", i, err)
		}
		out[i] = p
	}
	return out, nil
}

// ScalarToBytes marshals a scalar.
func ScalarToBytes(s kyber.Scalar) ([]byte, error) {
	buf, err := s.MarshalBinary()
	if err != nil {
		return nil, xerrors.Errorf("encoding scalar: %v: %w", err, conclave.ErrSerialization)
	}
	return buf, nil
}

// ScalarFromBytes decodes a marshalled scalar.
func ScalarFromBytes(buf []byte) (kyber.Scalar, error) {
	s := conclave.Suite.Scalar()
	if len(buf) != s.MarshalSize() {
		return nil, xerrors.Errorf("scalar of %d bytes: %w", len(buf), conclave.ErrSerialization)
	}
	if err := s.UnmarshalBinary(buf); err != nil {
		return nil, xerrors.Errorf("decoding scalar: %v: %w", err, conclave.ErrSerialization)
	}
	return s, nil
}

// EncodeCiphertexts converts ElGamal pairs to their wire form.
func EncodeCiphertexts(K, C []kyber.Point) (message.Ciphertexts, error) {
	if len(K) != len(C) {
		return message.Ciphertexts{}, xerrors.Errorf("%d ephemeral keys for %d ciphertexts: %w",
			len(K), len(C), conclave.ErrValidation)
	}
	k, err := PointsToBytes(K)
	if err != nil {
		return message.Ciphertexts{}, err
	}
	c, err := PointsToBytes(C)
	if err != nil {
		return message.Ciphertexts{}, err
	}
	return message.Ciphertexts{K: k, C: c}, nil
}

// DecodeCiphertexts converts the wire form of a list of ElGamal pairs.
func DecodeCiphertexts(cts message.Ciphertexts) (K, C []kyber.Point, err error) {
	if len(cts.K) != len(cts.C) {
		return nil, nil, xerrors.Errorf("%d ephemeral keys for %d ciphertexts: %w",
			len(cts.K), len(cts.C), conclave.ErrValidation)
	}
	if K, err = PointsFromBytes(cts.K); err != nil {
		return nil, nil, err
	}
	if C, err = PointsFromBytes(cts.C); err != nil {
		return nil, nil, err
	}
	return K, C, nil
}
