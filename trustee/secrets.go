package trustee

import (
	"sync"

	bbolt "go.etcd.io/bbolt"
	"golang.org/x/xerrors"

	"go.dedis.ch/conclave"
)

// ErrNotFound is returned by a SecretStore that has no value for a key.
var ErrNotFound = xerrors.New("secret not found")

// SecretStore keeps the long-term secrets of a trustee. Any error but
// ErrNotFound is a configuration error.
type SecretStore interface {
	Get(key string) (string, error)
	Put(key, value string) error
}

// MemorySecrets is a SecretStore that forgets everything when the process
// stops.
type MemorySecrets struct {
	sync.Mutex
	values map[string]string
}

// NewMemorySecrets returns an empty store.
func NewMemorySecrets() *MemorySecrets {
	return &MemorySecrets{values: make(map[string]string)}
}

// Get implements SecretStore.
func (m *MemorySecrets) Get(key string) (string, error) {
	m.Lock()
	defer m.Unlock()
	v, ok := m.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

// Put implements SecretStore.
func (m *MemorySecrets) Put(key, value string) error {
	m.Lock()
	defer m.Unlock()
	m.values[key] = value
	return nil
}

var secretsBucket = []byte("conclave-secrets")

// BoltSecrets is a SecretStore in a bbolt file.
type BoltSecrets struct {
	db *bbolt.DB
}

// OpenBoltSecrets opens or creates the store at path.
func OpenBoltSecrets(path string) (*BoltSecrets, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, xerrors.Errorf("opening secrets %s: %v: %w", path, err, conclave.ErrConfig)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(secretsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, xerrors.Errorf("creating secrets bucket: %v: %w", err, conclave.ErrConfig)
	}
	return &BoltSecrets{db: db}, nil
}

// Get implements SecretStore.
func (b *BoltSecrets) Get(key string) (string, error) {
	var value []byte
	err := b.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(secretsBucket).Get([]byte(key))
		if v == nil {
			return ErrNotFound
		}
		value = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		if xerrors.Is(err, ErrNotFound) {
			return "", ErrNotFound
		}
		return "", xerrors.Errorf("reading secret: %v: %w", err, conclave.ErrConfig)
	}
	return string(value), nil
}

// Put implements SecretStore.
func (b *BoltSecrets) Put(key, value string) error {
	err := b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(secretsBucket).Put([]byte(key), []byte(value))
	})
	if err != nil {
		return xerrors.Errorf("writing secret: %v: %w", err, conclave.ErrConfig)
	}
	return nil
}

// Close releases the database.
func (b *BoltSecrets) Close() error {
	return b.db.Close()
}
