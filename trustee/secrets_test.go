package trustee

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"

	"go.dedis.ch/conclave"
	"go.dedis.ch/conclave/board"
	"go.dedis.ch/conclave/message"
)

func testSecrets(t *testing.T, s SecretStore) {
	_, err := s.Get("a")
	require.True(t, xerrors.Is(err, ErrNotFound))
	require.NoError(t, s.Put("a", "1"))
	require.NoError(t, s.Put("b", "2"))
	v, err := s.Get("a")
	require.NoError(t, err)
	require.Equal(t, "1", v)
	require.NoError(t, s.Put("a", "3"))
	v, err = s.Get("a")
	require.NoError(t, err)
	require.Equal(t, "3", v)
}

func TestMemorySecrets(t *testing.T) {
	testSecrets(t, NewMemorySecrets())
}

func TestBoltSecrets(t *testing.T) {
	dir, err := ioutil.TempDir("", "conclave-secrets")
	require.NoError(t, err)
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "secrets.db")

	s, err := OpenBoltSecrets(path)
	require.NoError(t, err)
	testSecrets(t, s)
	require.NoError(t, s.Close())

	s, err = OpenBoltSecrets(path)
	require.NoError(t, err)
	defer s.Close()
	v, err := s.Get("b")
	require.NoError(t, err)
	require.Equal(t, "2", v)

	_, err = OpenBoltSecrets(filepath.Join(dir, "missing", "secrets.db"))
	require.True(t, xerrors.Is(err, conclave.ErrConfig))
}

// A trustee that restarts with the same secret store commits to the same
// polynomial.
func TestBoltSecrets_Restart(t *testing.T) {
	dir, err := ioutil.TempDir("", "conclave-secrets")
	require.NoError(t, err)
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "secrets.db")

	h := newHarness(t, 3)
	h.propose(2)
	h.sync()
	entries, err := h.board.GetMessages(h.ctx, boardName, board.Beginning)
	require.NoError(t, err)

	commit := func() [][]byte {
		s, err := OpenBoltSecrets(path)
		require.NoError(t, err)
		defer s.Close()
		tr, err := New(Config{Board: boardName, Pair: h.pairs[1], Secrets: s})
		require.NoError(t, err)
		out, _, err := tr.Step(entries)
		require.NoError(t, err)
		require.Len(t, out, 1)
		var a message.CommitmentArtifact
		require.NoError(t, message.DecodeArtifact(out[0].Artifact, &a))
		return a.Coefficients
	}
	first := commit()
	second := commit()
	require.Equal(t, first, second)
}
