package board

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/kyber/v3/util/key"
	"go.dedis.ch/onet/v3"
	"go.dedis.ch/onet/v3/log"
	bbolt "go.etcd.io/bbolt"
	"golang.org/x/xerrors"

	"go.dedis.ch/conclave"
	"go.dedis.ch/conclave/message"
)

func TestMain(m *testing.M) {
	log.MainTest(m)
}

func newMessages(t *testing.T, n int) []message.Message {
	pair := key.NewKeyPair(conclave.Suite)
	msgs := make([]message.Message, n)
	for i := range msgs {
		st := message.NewStatement([]byte{1}, &message.Share{Count: uint32(i + 1)})
		m, err := message.NewMessage(pair, "t0", st, []byte{byte(i)})
		require.NoError(t, err)
		msgs[i] = *m
	}
	return msgs
}

// testBoard checks the contract every Board implementation follows.
func testBoard(t *testing.T, b Board) {
	ctx := context.Background()

	entries, err := b.GetMessages(ctx, "election-1", Beginning)
	require.NoError(t, err)
	require.Empty(t, entries)

	msgs := newMessages(t, 5)
	ids, err := b.SendMessages(ctx, "election-1", msgs[:3])
	require.NoError(t, err)
	require.Equal(t, []uint64{1, 2, 3}, ids)
	ids, err = b.SendMessages(ctx, "election-1", msgs[3:])
	require.NoError(t, err)
	require.Equal(t, []uint64{4, 5}, ids)

	// Boards do not deduplicate.
	ids, err = b.SendMessages(ctx, "election-2", msgs[:1])
	require.NoError(t, err)
	require.Equal(t, []uint64{1}, ids)
	ids, err = b.SendMessages(ctx, "election-2", msgs[:1])
	require.NoError(t, err)
	require.Equal(t, []uint64{2}, ids)

	entries, err = b.GetMessages(ctx, "election-1", Beginning)
	require.NoError(t, err)
	require.Len(t, entries, 5)
	for i, e := range entries {
		require.Equal(t, uint64(i+1), e.ID)
		require.Equal(t, msgs[i].Statement, e.Message.Statement)
		_, err := e.Open()
		require.NoError(t, err)
	}

	entries, err = b.GetMessages(ctx, "election-1", 3)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, uint64(4), entries[0].ID)

	entries, err = b.GetMessages(ctx, "election-1", 5)
	require.NoError(t, err)
	require.Empty(t, entries)

	_, err = b.SendMessages(ctx, "Not a name", msgs[:1])
	require.Error(t, err)
	_, err = b.SendMessages(ctx, "election-1", nil)
	require.Error(t, err)
}

func TestMemory(t *testing.T) {
	testBoard(t, NewMemory())
}

func TestMemory_Fail(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	msgs := newMessages(t, 2)

	m.FailNext(2)
	_, err := m.GetMessages(ctx, "b", Beginning)
	require.True(t, xerrors.Is(err, conclave.ErrTransport))
	_, err = m.SendMessages(ctx, "b", msgs)
	require.True(t, xerrors.Is(err, conclave.ErrTransport))
	require.Empty(t, m.Entries("b"))

	m.FailSends(1)
	_, err = m.GetMessages(ctx, "b", Beginning)
	require.NoError(t, err)
	_, err = m.SendMessages(ctx, "b", msgs)
	require.True(t, xerrors.Is(err, conclave.ErrTransport))
	ids, err := m.SendMessages(ctx, "b", msgs)
	require.NoError(t, err)
	require.Equal(t, []uint64{1, 2}, ids)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = m.GetMessages(cancelled, "b", Beginning)
	require.True(t, xerrors.Is(err, conclave.ErrTransport))
}

func openStore(t *testing.T) (*Store, func()) {
	dir, err := ioutil.TempDir("", "conclave-board")
	require.NoError(t, err)
	db, err := bbolt.Open(filepath.Join(dir, "board.db"), 0600, nil)
	require.NoError(t, err)
	s, err := NewStore(db, []byte("boards"))
	require.NoError(t, err)
	return s, func() {
		db.Close()
		os.RemoveAll(dir)
	}
}

func TestStore(t *testing.T) {
	s, done := openStore(t)
	defer done()

	msgs := newMessages(t, 10)
	ids, err := s.Append("election-1", msgs)
	require.NoError(t, err)
	require.Equal(t, uint64(10), ids[9])

	entries, more, err := s.Get("election-1", Beginning, 4)
	require.NoError(t, err)
	require.True(t, more)
	require.Len(t, entries, 4)
	entries, more, err = s.Get("election-1", 4, 6)
	require.NoError(t, err)
	require.False(t, more)
	require.Len(t, entries, 6)
	require.Equal(t, uint64(5), entries[0].ID)

	entries, more, err = s.Get("unknown", Beginning, 4)
	require.NoError(t, err)
	require.False(t, more)
	require.Empty(t, entries)

	_, err = s.Append("election-1", newMessages(t, MaxBatch+1))
	require.True(t, xerrors.Is(err, conclave.ErrValidation))
	entries, _, err = s.Get("election-1", 10, 4)
	require.NoError(t, err)
	require.Empty(t, entries)

	_, _, err = s.Get("../x", Beginning, 4)
	require.True(t, xerrors.Is(err, conclave.ErrValidation))
}

func TestService(t *testing.T) {
	local := onet.NewLocalTest(conclave.Suite)
	defer local.CloseAll()

	_, roster, _ := local.GenTree(1, true)
	c, err := NewClientFromRoster(roster)
	require.NoError(t, err)
	testBoard(t, c)

	// Read more than one page.
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := c.SendMessages(ctx, "paged", newMessages(t, MaxBatch))
		require.NoError(t, err)
	}
	entries, err := c.GetMessages(ctx, "paged", 10)
	require.NoError(t, err)
	require.Len(t, entries, 3*MaxBatch-10)
	require.Equal(t, uint64(11), entries[0].ID)
	require.Equal(t, uint64(3*MaxBatch), entries[len(entries)-1].ID)

	_, err = NewClientFromRoster(&onet.Roster{})
	require.True(t, xerrors.Is(err, conclave.ErrConfig))
}

// counting records the reads that reach the backing board.
type counting struct {
	Board
	since []int64
}

func (c *counting) GetMessages(ctx context.Context, name string, since int64) ([]message.Entry, error) {
	c.since = append(c.since, since)
	return c.Board.GetMessages(ctx, name, since)
}

func TestCache(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	back := &counting{Board: mem}
	c, err := NewCache(back, 16)
	require.NoError(t, err)
	testBoard(t, c)

	name := "cached"
	for i := 0; i < 2; i++ {
		_, err := c.SendMessages(ctx, name, newMessages(t, 100))
		require.NoError(t, err)
	}

	back.since = nil
	entries, err := c.GetMessages(ctx, name, Beginning)
	require.NoError(t, err)
	require.Len(t, entries, 200)
	require.Equal(t, []int64{Beginning}, back.since)

	// Pages 0..2 (ids 1..192) are complete, only the tail is read again.
	back.since = nil
	entries, err = c.GetMessages(ctx, name, 10)
	require.NoError(t, err)
	require.Len(t, entries, 190)
	require.Equal(t, uint64(11), entries[0].ID)
	for i := 1; i < len(entries); i++ {
		require.Equal(t, entries[i-1].ID+1, entries[i].ID)
	}
	require.Equal(t, []int64{3 * CachePageSize}, back.since)

	// New entries are always fetched from the backing board.
	_, err = c.SendMessages(ctx, name, newMessages(t, 1))
	require.NoError(t, err)
	entries, err = c.GetMessages(ctx, name, 199)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	c.Invalidate(name)
	back.since = nil
	entries, err = c.GetMessages(ctx, name, Beginning)
	require.NoError(t, err)
	require.Len(t, entries, 201)
	require.Equal(t, []int64{Beginning}, back.since)

	// A read failure of the backing board is reported.
	mem.FailNext(1)
	_, err = c.GetMessages(ctx, name, 200)
	require.True(t, xerrors.Is(err, conclave.ErrTransport))
}

func TestName(t *testing.T) {
	require.Equal(t, "tenantacmeeventspring2024", Name("ACME", "Spring-2024!"))
	require.True(t, ValidName(Name("a", "b")))
	require.True(t, ValidName("election-1"))
	require.True(t, ValidName("a_b"))
	require.False(t, ValidName(""))
	require.False(t, ValidName("Election"))
	require.False(t, ValidName("a/b"))

	name, err := ParseName("6ba7b810-9dad-11d1-80b4-00c04fd430c8", "6ba7b811-9dad-11d1-80b4-00c04fd430c8")
	require.NoError(t, err)
	require.Equal(t, "tenant6ba7b8109dad11d180b400c04fd430c8event6ba7b8119dad11d180b400c04fd430c8", name)
	require.True(t, ValidName(name))

	_, err = ParseName("nope", "6ba7b811-9dad-11d1-80b4-00c04fd430c8")
	require.True(t, xerrors.Is(err, conclave.ErrConfig))
}
