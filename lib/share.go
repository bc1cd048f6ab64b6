package lib

import (
	"crypto/sha256"

	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/encrypt/ecies"
	"golang.org/x/xerrors"

	"go.dedis.ch/conclave"
)

// EncryptShare encrypts a secret share to the identity key of its
// recipient.
func EncryptShare(recipient kyber.Point, s kyber.Scalar) ([]byte, error) {
	buf, err := ScalarToBytes(s)
	if err != nil {
		return nil, err
	}
	ct, err := ecies.Encrypt(conclave.Suite, recipient, buf, sha256.New)
	if err != nil {
		return nil, conclave.ErrorOrNil(err, "encrypting share")
	}
	return ct, nil
}

// DecryptShare decrypts a share with the recipient's identity key. A
// ciphertext that does not decrypt to a scalar is a fault of the dealer.
func DecryptShare(private kyber.Scalar, ct []byte) (kyber.Scalar, error) {
	if len(ct) < conclave.Suite.PointLen() {
		return nil, xerrors.Errorf("encrypted share of %d bytes: %w", len(ct), conclave.ErrCryptographicFault)
	}
	buf, err := ecies.Decrypt(conclave.Suite, private, ct, sha256.New)
	if err != nil {
		return nil, xerrors.Errorf("decrypting share: %v: %w", err, conclave.ErrCryptographicFault)
	}
	s, err := ScalarFromBytes(buf)
	if err != nil {
		return nil, xerrors.Errorf("share is not a scalar: %v: %w", err, conclave.ErrCryptographicFault)
	}
	return s, nil
}
