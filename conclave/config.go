package main

import (
	"encoding/hex"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/util/encoding"
	"go.dedis.ch/kyber/v3/util/key"
	"go.dedis.ch/onet/v3/app"
	"golang.org/x/xerrors"

	"go.dedis.ch/conclave"
	"go.dedis.ch/conclave/board"
)

// Default values of the configuration.
const (
	DefaultInterval   = 2 * time.Second
	DefaultMaxBackoff = time.Minute
	DefaultCachePages = 1024
)

// duration is a time.Duration written as "2s" in the toml file.
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config is the toml configuration of a trustee.
type Config struct {
	// Name is the sender name of the trustee.
	Name string
	// Private and Public are the hex encoded key pair of the trustee.
	Private string
	Public  string
	// Roster is the group toml of the board server.
	Roster string
	// Boards are the boards followed by `run`.
	Boards []string
	// Secrets is the path of the secret store.
	Secrets    string
	Interval   duration
	MaxBackoff duration
	// CachePages is the number of pages of entries kept in memory.
	CachePages int
	// Proposers, if set, are the only hex encoded keys allowed to propose
	// a configuration.
	Proposers []string
	// Instance, if set, is the hex hash of the only configuration to take
	// part in.
	Instance string
	// Metrics is the listen address of the prometheus endpoint, disabled
	// if empty.
	Metrics string
}

// newConfig returns a configuration with a new key pair.
func newConfig(name string) (*Config, error) {
	pair := key.NewKeyPair(conclave.Suite)
	priv, err := encoding.ScalarToStringHex(conclave.Suite, pair.Private)
	if err != nil {
		return nil, err
	}
	pub, err := encoding.PointToStringHex(conclave.Suite, pair.Public)
	if err != nil {
		return nil, err
	}
	return &Config{
		Name:       name,
		Private:    priv,
		Public:     pub,
		Interval:   duration{DefaultInterval},
		MaxBackoff: duration{DefaultMaxBackoff},
		CachePages: DefaultCachePages,
	}, nil
}

// loadConfig reads the configuration file and fills in the defaults.
func loadConfig(path string) (*Config, error) {
	c := &Config{}
	if _, err := toml.DecodeFile(path, c); err != nil {
		return nil, xerrors.Errorf("reading %s: %v: %w", path, err, conclave.ErrConfig)
	}
	if c.Interval.Duration <= 0 {
		c.Interval.Duration = DefaultInterval
	}
	if c.MaxBackoff.Duration <= 0 {
		c.MaxBackoff.Duration = DefaultMaxBackoff
	}
	if c.CachePages <= 0 {
		c.CachePages = DefaultCachePages
	}
	for _, b := range c.Boards {
		if !board.ValidName(b) {
			return nil, xerrors.Errorf("invalid board name %q: %w", b, conclave.ErrConfig)
		}
	}
	return c, nil
}

func (c *Config) save(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return xerrors.Errorf("writing %s: %v: %w", path, err, conclave.ErrConfig)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(c); err != nil {
		return xerrors.Errorf("encoding %s: %v: %w", path, err, conclave.ErrConfig)
	}
	return nil
}

// pair returns the key pair of the trustee.
func (c *Config) pair() (*key.Pair, error) {
	priv, err := encoding.StringHexToScalar(conclave.Suite, c.Private)
	if err != nil {
		return nil, xerrors.Errorf("private key: %v: %w", err, conclave.ErrConfig)
	}
	pub := conclave.Suite.Point().Mul(priv, nil)
	if c.Public != "" {
		p, err := encoding.StringHexToPoint(conclave.Suite, c.Public)
		if err != nil {
			return nil, xerrors.Errorf("public key: %v: %w", err, conclave.ErrConfig)
		}
		if !p.Equal(pub) {
			return nil, xerrors.Errorf("public key does not match private key: %w", conclave.ErrConfig)
		}
	}
	return &key.Pair{Public: pub, Private: priv}, nil
}

func (c *Config) proposers() ([]kyber.Point, error) {
	return parsePoints(c.Proposers)
}

func (c *Config) instance() ([]byte, error) {
	if c.Instance == "" {
		return nil, nil
	}
	h, err := hex.DecodeString(c.Instance)
	if err != nil {
		return nil, xerrors.Errorf("instance: %v: %w", err, conclave.ErrConfig)
	}
	return h, nil
}

// client returns a client of the board server of the roster.
func (c *Config) client() (*board.Client, error) {
	return readRoster(c.Roster)
}

func readRoster(path string) (*board.Client, error) {
	if path == "" {
		return nil, xerrors.Errorf("no roster given: %w", conclave.ErrConfig)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, xerrors.Errorf("opening roster: %v: %w", err, conclave.ErrConfig)
	}
	defer f.Close()
	group, err := app.ReadGroupDescToml(f)
	if err != nil {
		return nil, xerrors.Errorf("reading roster %s: %v: %w", path, err, conclave.ErrConfig)
	}
	return board.NewClientFromRoster(group.Roster)
}

func parsePoints(in []string) ([]kyber.Point, error) {
	var out []kyber.Point
	for _, s := range in {
		p, err := encoding.StringHexToPoint(conclave.Suite, s)
		if err != nil {
			return nil, xerrors.Errorf("public key %q: %v: %w", s, err, conclave.ErrConfig)
		}
		out = append(out, p)
	}
	return out, nil
}
