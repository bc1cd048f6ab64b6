package message

import (
	"bytes"

	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/sign/schnorr"
	"go.dedis.ch/kyber/v3/util/key"
	"go.dedis.ch/protobuf"
	"golang.org/x/xerrors"

	"go.dedis.ch/conclave"
)

// Opened is an entry whose signature and artifact digest have been
// verified.
type Opened struct {
	ID        uint64
	Sender    Sender
	Public    kyber.Point
	Statement *Statement
	Artifact  []byte
}

// Kind returns the kind of the opened statement.
func (o *Opened) Kind() Kind {
	return o.Statement.Kind()
}

// NewSender returns the sender description of a key pair.
func NewSender(name string, public kyber.Point) (Sender, error) {
	buf, err := public.MarshalBinary()
	if err != nil {
		return Sender{}, xerrors.Errorf("marshalling public key: %v: %w", err, conclave.ErrSerialization)
	}
	return Sender{Name: name, Public: buf}, nil
}

// NewMessage fills in the artifact digest of the statement, encodes it and
// signs it with the private key of pair.
func NewMessage(pair *key.Pair, name string, st *Statement, artifact []byte) (*Message, error) {
	if st == nil || st.Kind() == KindNone {
		return nil, xerrors.Errorf("statement needs exactly one payload: %w", conclave.ErrValidation)
	}
	sender, err := NewSender(name, pair.Public)
	if err != nil {
		return nil, err
	}
	st.Header.Version = Version
	st.Header.ArtifactDigest = Digest(artifact)
	buf, err := st.Encode()
	if err != nil {
		return nil, err
	}
	sig, err := schnorr.Sign(conclave.Suite, pair.Private, buf)
	if err != nil {
		return nil, conclave.ErrorOrNil(err, "signing statement")
	}
	return &Message{
		Sender:    sender,
		Signature: sig,
		Statement: buf,
		Artifact:  artifact,
	}, nil
}

// Open verifies the signature of the message and the digest of its
// artifact, and returns the signer's key and the decoded statement.
func (m *Message) Open() (kyber.Point, *Statement, error) {
	public := conclave.Suite.Point()
	if err := public.UnmarshalBinary(m.Sender.Public); err != nil {
		return nil, nil, xerrors.Errorf("sender key: %v: %w", err, conclave.ErrSerialization)
	}
	if err := schnorr.Verify(conclave.Suite, public, m.Statement, m.Signature); err != nil {
		return nil, nil, xerrors.Errorf("signature of %s: %v: %w", m.Sender.Name, err, conclave.ErrValidation)
	}
	st, err := DecodeStatement(m.Statement)
	if err != nil {
		return nil, nil, err
	}
	if st.Kind() == KindNone {
		return nil, nil, xerrors.Errorf("statement without exactly one payload: %w", conclave.ErrValidation)
	}
	if st.Header.Version != Version {
		return nil, nil, xerrors.Errorf("unknown statement version %d: %w", st.Header.Version, conclave.ErrValidation)
	}
	if !bytes.Equal(Digest(m.Artifact), st.Header.ArtifactDigest) {
		return nil, nil, xerrors.Errorf("artifact does not match its digest: %w", conclave.ErrValidation)
	}
	return public, st, nil
}

// Open verifies the message of the entry.
func (e *Entry) Open() (*Opened, error) {
	public, st, err := e.Message.Open()
	if err != nil {
		return nil, err
	}
	return &Opened{
		ID:        e.ID,
		Sender:    e.Message.Sender,
		Public:    public,
		Statement: st,
		Artifact:  e.Message.Artifact,
	}, nil
}

// EncodeEntry returns the canonical encoding of an entry.
func EncodeEntry(e *Entry) ([]byte, error) {
	buf, err := protobuf.Encode(e)
	if err != nil {
		return nil, xerrors.Errorf("encoding entry: %v: %w", err, conclave.ErrSerialization)
	}
	return buf, nil
}

// DecodeEntry parses the canonical encoding of an entry.
func DecodeEntry(buf []byte) (*Entry, error) {
	e := &Entry{}
	if err := protobuf.Decode(buf, e); err != nil {
		return nil, xerrors.Errorf("decoding entry: %v: %w", err, conclave.ErrSerialization)
	}
	return e, nil
}
