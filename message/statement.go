package message

import (
	"crypto/sha256"
	"fmt"

	"go.dedis.ch/protobuf"
	"golang.org/x/xerrors"

	"go.dedis.ch/conclave"
)

// Version is the current statement encoding version.
const Version = 1

// Kind is the type of the payload of a statement.
type Kind uint32

// The statement kinds, in protocol order.
const (
	KindNone Kind = iota
	KindConfiguration
	KindApproval
	KindCommitment
	KindShare
	KindPublicKey
	KindMixRequest
	KindMixProof
	KindDecryptionShare
	KindPlaintexts
)

var kindNames = map[Kind]string{
	KindNone:            "None",
	KindConfiguration:   "Configuration",
	KindApproval:        "Approval",
	KindCommitment:      "Commitment",
	KindShare:           "Share",
	KindPublicKey:       "PublicKey",
	KindMixRequest:      "MixRequest",
	KindMixProof:        "MixProof",
	KindDecryptionShare: "DecryptionShare",
	KindPlaintexts:      "Plaintexts",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("Kind(%d)", uint32(k))
}

// NewStatement wraps a payload into a statement for the given instance. It
// returns nil if the payload is not one of the statement payloads.
func NewStatement(hash []byte, payload interface{}) *Statement {
	st := &Statement{Header: Header{Version: Version, ConfigurationHash: hash}}
	switch p := payload.(type) {
	case *Configuration:
		st.Configuration = p
	case *Approval:
		st.Approval = p
	case *Commitment:
		st.Commitment = p
	case *Share:
		st.Share = p
	case *PublicKey:
		st.PublicKey = p
	case *MixRequest:
		st.MixRequest = p
	case *MixProof:
		st.MixProof = p
	case *DecryptionShare:
		st.DecryptionShare = p
	case *Plaintexts:
		st.Plaintexts = p
	default:
		return nil
	}
	return st
}

// Kind returns the kind of the payload, or KindNone if not exactly one
// payload is set.
func (s *Statement) Kind() Kind {
	present := []bool{
		KindConfiguration:   s.Configuration != nil,
		KindApproval:        s.Approval != nil,
		KindCommitment:      s.Commitment != nil,
		KindShare:           s.Share != nil,
		KindPublicKey:       s.PublicKey != nil,
		KindMixRequest:      s.MixRequest != nil,
		KindMixProof:        s.MixProof != nil,
		KindDecryptionShare: s.DecryptionShare != nil,
		KindPlaintexts:      s.Plaintexts != nil,
	}
	kind := KindNone
	for k, p := range present {
		if !p {
			continue
		}
		if kind != KindNone {
			return KindNone
		}
		kind = Kind(k)
	}
	return kind
}

// Encode returns the canonical encoding of the statement.
func (s *Statement) Encode() ([]byte, error) {
	buf, err := protobuf.Encode(s)
	if err != nil {
		return nil, xerrors.Errorf("encoding statement: %v: %w", err, conclave.ErrSerialization)
	}
	return buf, nil
}

// DecodeStatement parses the canonical encoding of a statement.
func DecodeStatement(buf []byte) (*Statement, error) {
	st := &Statement{}
	if err := protobuf.Decode(buf, st); err != nil {
		return nil, xerrors.Errorf("decoding statement: %v: %w", err, conclave.ErrSerialization)
	}
	return st, nil
}

// Hash returns the instance identifier of the configuration.
func (c *Configuration) Hash() ([]byte, error) {
	buf, err := protobuf.Encode(c)
	if err != nil {
		return nil, xerrors.Errorf("encoding configuration: %v: %w", err, conclave.ErrSerialization)
	}
	h := sha256.Sum256(buf)
	return h[:], nil
}

// Digest returns the SHA-256 of an artifact, or nil if there is no artifact.
func Digest(artifact []byte) []byte {
	if len(artifact) == 0 {
		return nil
	}
	h := sha256.Sum256(artifact)
	return h[:]
}

// EncodeArtifact returns the canonical encoding of one of the artifact
// structures.
func EncodeArtifact(a interface{}) ([]byte, error) {
	buf, err := protobuf.Encode(a)
	if err != nil {
		return nil, xerrors.Errorf("encoding artifact: %v: %w", err, conclave.ErrSerialization)
	}
	return buf, nil
}

// DecodeArtifact parses an artifact into a, which must be a pointer to one
// of the artifact structures.
func DecodeArtifact(buf []byte, a interface{}) error {
	if len(buf) == 0 {
		return xerrors.Errorf("missing artifact: %w", conclave.ErrValidation)
	}
	if err := protobuf.Decode(buf, a); err != nil {
		return xerrors.Errorf("decoding artifact: %v: %w", err, conclave.ErrSerialization)
	}
	return nil
}
