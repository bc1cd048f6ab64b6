package main

import (
	"bytes"
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/util/key"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"

	"go.dedis.ch/conclave"
	"go.dedis.ch/conclave/board"
	"go.dedis.ch/conclave/message"
	"go.dedis.ch/conclave/session"
	"go.dedis.ch/conclave/trustee"
)

func TestMain(m *testing.M) {
	log.MainTest(m)
}

func TestConfig(t *testing.T) {
	dir, err := ioutil.TempDir("", "conclave")
	require.NoError(t, err)
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "config.toml")

	cfg, err := newConfig("alice")
	require.NoError(t, err)
	cfg.Boards = []string{"election-1"}
	cfg.Interval = duration{500 * time.Millisecond}
	require.NoError(t, cfg.save(path))

	buf, err := ioutil.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(buf), `Interval = "500ms"`)

	loaded, err := loadConfig(path)
	require.NoError(t, err)
	require.Equal(t, cfg.Name, loaded.Name)
	require.Equal(t, cfg.Private, loaded.Private)
	require.Equal(t, cfg.Boards, loaded.Boards)
	require.Equal(t, 500*time.Millisecond, loaded.Interval.Duration)
	require.Equal(t, DefaultMaxBackoff, loaded.MaxBackoff.Duration)
	pair, err := loaded.pair()
	require.NoError(t, err)
	pub, err := parsePoints([]string{cfg.Public})
	require.NoError(t, err)
	require.True(t, pub[0].Equal(pair.Public))

	// Missing values take the defaults.
	require.NoError(t, ioutil.WriteFile(path, []byte("Name = \"bob\"\n"), 0600))
	loaded, err = loadConfig(path)
	require.NoError(t, err)
	require.Equal(t, DefaultInterval, loaded.Interval.Duration)
	require.Equal(t, DefaultMaxBackoff, loaded.MaxBackoff.Duration)
	require.Equal(t, DefaultCachePages, loaded.CachePages)

	require.NoError(t, ioutil.WriteFile(path, []byte("Boards = [\"Not a board\"]\n"), 0600))
	_, err = loadConfig(path)
	require.True(t, xerrors.Is(err, conclave.ErrConfig))

	_, err = loadConfig(filepath.Join(dir, "missing.toml"))
	require.True(t, xerrors.Is(err, conclave.ErrConfig))

	other, err := newConfig("eve")
	require.NoError(t, err)
	cfg.Public = other.Public
	_, err = cfg.pair()
	require.True(t, xerrors.Is(err, conclave.ErrConfig))

	_, err = (&Config{}).client()
	require.True(t, xerrors.Is(err, conclave.ErrConfig))
}

func TestBallots(t *testing.T) {
	ctx := context.Background()
	b := board.NewMemory()
	const name = "election-1"

	var pairs []*key.Pair
	var keys []kyber.Point
	var sessions []*session.Session
	for i := 0; i < 3; i++ {
		pair := key.NewKeyPair(conclave.Suite)
		tr, err := trustee.New(trustee.Config{Board: name, Pair: pair, Secrets: trustee.NewMemorySecrets()})
		require.NoError(t, err)
		pairs = append(pairs, pair)
		keys = append(keys, pair.Public)
		sessions = append(sessions, session.New(tr, b, session.Options{}))
	}
	admin := key.NewKeyPair(conclave.Suite)
	authority, err := admin.Public.MarshalBinary()
	require.NoError(t, err)

	_, err = findInstance(ctx, b, name, nil)
	require.True(t, xerrors.Is(err, conclave.ErrValidation))

	hash, err := propose(ctx, b, pairs[0], "t0", name, keys, 2,
		message.Parameters{Label: "test", Authority: authority})
	require.NoError(t, err)

	in, err := findInstance(ctx, b, name, nil)
	require.NoError(t, err)
	require.Equal(t, hash, in.hash)
	_, err = in.jointKey()
	require.True(t, xerrors.Is(err, conclave.ErrValidation))

	for i := 0; i < 10; i++ {
		for _, s := range sessions {
			_, err := s.Tick(ctx)
			require.NoError(t, err)
		}
	}
	for _, s := range sessions {
		require.Equal(t, trustee.Ready, s.Trustee().Phase())
	}

	in, err = findInstance(ctx, b, name, hash)
	require.NoError(t, err)
	X, err := in.jointKey()
	require.NoError(t, err)
	require.True(t, X.Equal(sessions[0].Trustee().PublicKey()))

	require.NoError(t, postBallots(ctx, b, admin, "admin", name, in, []string{"a", "b"}))
	for _, s := range sessions {
		_, err := s.Tick(ctx)
		require.NoError(t, err)
		require.Equal(t, trustee.Mixing, s.Trustee().Phase())
	}

	var out bytes.Buffer
	require.NoError(t, describe(&out, b.Entries(name)))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, len(b.Entries(name))+1)
	require.Contains(t, lines[1], "t0")
	require.Contains(t, out.String(), "MixRequest")
	require.Contains(t, out.String(), "admin")
}

func TestSignals(t *testing.T) {
	ctx := context.Background()
	b := board.NewMemory()
	const name = "election-1"

	var pairs []*key.Pair
	var keys []kyber.Point
	var trustees []*trustee.Trustee
	for i := 0; i < 3; i++ {
		pair := key.NewKeyPair(conclave.Suite)
		tr, err := trustee.New(trustee.Config{Board: name, Pair: pair, Secrets: trustee.NewMemorySecrets()})
		require.NoError(t, err)
		pairs = append(pairs, pair)
		keys = append(keys, pair.Public)
		trustees = append(trustees, tr)
	}
	_, err := propose(ctx, b, pairs[0], "t0", name, keys, 2, message.Parameters{Label: "test"})
	require.NoError(t, err)

	// Trustee 1 only polls its board once an hour.
	runner := session.NewRunner(session.New(trustees[1], b, session.Options{Interval: time.Hour}))
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- runner.Run(ctx)
	}()
	sig := make(chan os.Signal, 1)
	go handleSignals(sig, runner, cancel)

	require.Eventually(t, func() bool {
		return trustees[1].Status().Commitments == 1
	}, 10*time.Second, time.Millisecond)

	// The second commitment lets trustee 1 deal, but only once it polls.
	posted, err := session.New(trustees[2], b, session.Options{}).Tick(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, posted)
	sig <- syscall.SIGHUP

	require.Eventually(t, func() bool {
		for _, e := range b.Entries(name) {
			o, err := e.Open()
			if err == nil && o.Kind() == message.KindShare {
				return true
			}
		}
		return false
	}, 10*time.Second, time.Millisecond)

	sig <- os.Interrupt
	require.NoError(t, <-done)
}
