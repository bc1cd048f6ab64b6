package message

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/util/key"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"

	"go.dedis.ch/conclave"
)

func TestMain(m *testing.M) {
	log.MainTest(m)
}

func newConfiguration(t *testing.T, n, threshold int) ([]*key.Pair, *Configuration) {
	pairs := make([]*key.Pair, n)
	pubs := make([]kyber.Point, n)
	for i := range pairs {
		pairs[i] = key.NewKeyPair(conclave.Suite)
		pubs[i] = pairs[i].Public
	}
	c, err := NewConfiguration(pubs, threshold, Parameters{Label: "election-1", Nonce: []byte{1}})
	require.NoError(t, err)
	return pairs, c
}

func TestMessage_SignAndOpen(t *testing.T) {
	pairs, c := newConfiguration(t, 3, 2)
	hash, err := c.Hash()
	require.NoError(t, err)

	artifact := []byte("some large payload")
	m, err := NewMessage(pairs[1], "t1", NewStatement(hash, &Share{Count: 3}), artifact)
	require.NoError(t, err)

	e := &Entry{ID: 7, Timestamp: 42, Message: *m}
	o, err := e.Open()
	require.NoError(t, err)
	require.Equal(t, uint64(7), o.ID)
	require.Equal(t, KindShare, o.Kind())
	require.True(t, o.Public.Equal(pairs[1].Public))
	require.Equal(t, hash, o.Statement.Header.ConfigurationHash)
	require.Equal(t, Digest(artifact), o.Statement.Header.ArtifactDigest)
	require.Equal(t, uint32(3), o.Statement.Share.Count)
	require.Equal(t, "t1", o.Sender.Name)
}

func TestMessage_Tampered(t *testing.T) {
	pairs, c := newConfiguration(t, 3, 2)
	hash, err := c.Hash()
	require.NoError(t, err)

	fresh := func() *Message {
		m, err := NewMessage(pairs[0], "t0", NewStatement(hash, &Share{Count: 3}), []byte{1, 2, 3})
		require.NoError(t, err)
		return m
	}

	m := fresh()
	m.Signature[0] ^= 0xff
	_, _, err = m.Open()
	require.True(t, xerrors.Is(err, conclave.ErrValidation))

	m = fresh()
	m.Artifact = []byte{3, 2, 1}
	_, _, err = m.Open()
	require.True(t, xerrors.Is(err, conclave.ErrValidation))

	m = fresh()
	m.Artifact = nil
	_, _, err = m.Open()
	require.True(t, xerrors.Is(err, conclave.ErrValidation))

	// Signed by somebody else than the claimed sender.
	m = fresh()
	other, err := NewSender("t0", pairs[2].Public)
	require.NoError(t, err)
	m.Sender = other
	_, _, err = m.Open()
	require.True(t, xerrors.Is(err, conclave.ErrValidation))

	m = fresh()
	m.Sender.Public = []byte{1, 2, 3}
	_, _, err = m.Open()
	require.True(t, xerrors.Is(err, conclave.ErrSerialization))
}

func TestMessage_NoPayload(t *testing.T) {
	pair := key.NewKeyPair(conclave.Suite)
	_, err := NewMessage(pair, "t0", &Statement{}, nil)
	require.True(t, xerrors.Is(err, conclave.ErrValidation))

	st := &Statement{Approval: &Approval{}, Share: &Share{}}
	require.Equal(t, KindNone, st.Kind())
	_, err = NewMessage(pair, "t0", st, nil)
	require.Error(t, err)

	require.Nil(t, NewStatement(nil, "not a payload"))
}

func TestEntry_RoundTrip(t *testing.T) {
	pairs, c := newConfiguration(t, 3, 2)
	hash, err := c.Hash()
	require.NoError(t, err)

	statements := []struct {
		st       *Statement
		artifact []byte
	}{
		{NewStatement(hash, c), nil},
		{NewStatement(hash, &Approval{Hash: hash}), nil},
		{NewStatement(hash, &Commitment{Threshold: 2}), []byte{1}},
		{NewStatement(hash, &PublicKey{Key: []byte{9, 9}}), nil},
		{NewStatement(hash, &MixProof{Round: 1, InputDigest: Digest([]byte{1})}), []byte{2, 3}},
		{NewStatement(hash, &Plaintexts{InputDigest: []byte{4}, Count: 2}), []byte{5}},
	}
	for i, s := range statements {
		m, err := NewMessage(pairs[i%3], "t", s.st, s.artifact)
		require.NoError(t, err)
		e := &Entry{ID: uint64(i + 1), Timestamp: int64(1000 + i), Message: *m}

		buf, err := EncodeEntry(e)
		require.NoError(t, err)
		e2, err := DecodeEntry(buf)
		require.NoError(t, err)
		buf2, err := EncodeEntry(e2)
		require.NoError(t, err)
		require.Equal(t, buf, buf2)
		require.Equal(t, e.ID, e2.ID)
		require.Equal(t, e.Message.Statement, e2.Message.Statement)

		o, err := e2.Open()
		require.NoError(t, err)
		require.Equal(t, s.st.Kind(), o.Kind())
	}

	_, err = DecodeEntry([]byte{0xff, 0xff, 0xff})
	require.True(t, xerrors.Is(err, conclave.ErrSerialization))
}

func TestStatement_Kind(t *testing.T) {
	require.Equal(t, KindConfiguration, NewStatement(nil, &Configuration{}).Kind())
	require.Equal(t, KindApproval, NewStatement(nil, &Approval{}).Kind())
	require.Equal(t, KindCommitment, NewStatement(nil, &Commitment{}).Kind())
	require.Equal(t, KindShare, NewStatement(nil, &Share{}).Kind())
	require.Equal(t, KindPublicKey, NewStatement(nil, &PublicKey{}).Kind())
	require.Equal(t, KindMixRequest, NewStatement(nil, &MixRequest{}).Kind())
	require.Equal(t, KindMixProof, NewStatement(nil, &MixProof{}).Kind())
	require.Equal(t, KindDecryptionShare, NewStatement(nil, &DecryptionShare{}).Kind())
	require.Equal(t, KindPlaintexts, NewStatement(nil, &Plaintexts{}).Kind())
	require.Equal(t, "MixProof", KindMixProof.String())
	require.Equal(t, "Kind(42)", Kind(42).String())
}

func TestConfiguration_Hash(t *testing.T) {
	_, c := newConfiguration(t, 3, 2)
	h1, err := c.Hash()
	require.NoError(t, err)
	h2, err := c.Hash()
	require.NoError(t, err)
	require.Equal(t, h1, h2)
	require.Len(t, h1, 32)

	c.Parameters.Nonce = []byte{2}
	h3, err := c.Hash()
	require.NoError(t, err)
	require.NotEqual(t, h1, h3)
}

func TestConfiguration_Keys(t *testing.T) {
	pairs, c := newConfiguration(t, 3, 2)
	keys, err := c.Keys()
	require.NoError(t, err)
	require.Len(t, keys, 3)
	for i, p := range pairs {
		require.True(t, keys[i].Equal(p.Public))
		require.Equal(t, i, c.Position(p.Public))
	}
	require.Equal(t, -1, c.Position(key.NewKeyPair(conclave.Suite).Public))

	pubs := []kyber.Point{pairs[0].Public, pairs[1].Public}
	_, err = NewConfiguration(pubs, 3, Parameters{})
	require.True(t, xerrors.Is(err, conclave.ErrValidation))
	_, err = NewConfiguration(pubs, 0, Parameters{})
	require.True(t, xerrors.Is(err, conclave.ErrValidation))
	_, err = NewConfiguration([]kyber.Point{pairs[0].Public, pairs[0].Public}, 1, Parameters{})
	require.True(t, xerrors.Is(err, conclave.ErrValidation))
	_, err = NewConfiguration(nil, 1, Parameters{})
	require.True(t, xerrors.Is(err, conclave.ErrValidation))

	auth, err := c.AuthorityKey()
	require.NoError(t, err)
	require.Nil(t, auth)
	c.Parameters.Authority, _ = pairs[2].Public.MarshalBinary()
	auth, err = c.AuthorityKey()
	require.NoError(t, err)
	require.True(t, auth.Equal(pairs[2].Public))
}
