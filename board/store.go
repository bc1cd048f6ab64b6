package board

import (
	"encoding/binary"
	"time"

	"go.dedis.ch/onet/v3/log"
	"go.dedis.ch/protobuf"
	bbolt "go.etcd.io/bbolt"
	"golang.org/x/xerrors"

	"go.dedis.ch/conclave"
	"go.dedis.ch/conclave/message"
)

// Limits of the board storage.
const (
	// PageSize is the maximum number of entries returned by one read.
	PageSize = 256
	// MaxBatch is the maximum number of messages appended at once.
	MaxBatch = 128
	// MaxMessageSize is the maximum size of the statement plus the artifact
	// of a message.
	MaxMessageSize = 64 << 20
)

// Store keeps boards in a bbolt database, one nested bucket per board. Keys
// are the big-endian entry ids, values the encoded entries.
type Store struct {
	db     *bbolt.DB
	bucket []byte
	now    func() time.Time
}

// NewStore uses the bucket of db, creating it if needed.
func NewStore(db *bbolt.DB, bucket []byte) (*Store, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	})
	if err != nil {
		return nil, xerrors.Errorf("creating bucket: %v: %w", err, conclave.ErrTransport)
	}
	return &Store{db: db, bucket: bucket, now: time.Now}, nil
}

func idKey(id uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, id)
	return key
}

// CheckBatch verifies that a batch can be appended to the named board.
func CheckBatch(name string, msgs []message.Message) error {
	if !ValidName(name) {
		return xerrors.Errorf("invalid board name %q: %w", name, conclave.ErrValidation)
	}
	if len(msgs) == 0 || len(msgs) > MaxBatch {
		return xerrors.Errorf("batch of %d messages: %w", len(msgs), conclave.ErrValidation)
	}
	for i, m := range msgs {
		if len(m.Statement)+len(m.Artifact) > MaxMessageSize {
			return xerrors.Errorf("message %d is too large: %w", i, conclave.ErrValidation)
		}
	}
	return nil
}

// Append adds the messages to the named board in a single transaction and
// returns their ids.
func (s *Store) Append(name string, msgs []message.Message) ([]uint64, error) {
	if err := CheckBatch(name, msgs); err != nil {
		return nil, err
	}
	ids := make([]uint64, len(msgs))
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.Bucket(s.bucket).CreateBucketIfNotExists([]byte(name))
		if err != nil {
			return err
		}
		now := s.now().UnixNano()
		for i, m := range msgs {
			id, err := b.NextSequence()
			if err != nil {
				return err
			}
			buf, err := message.EncodeEntry(&message.Entry{ID: id, Timestamp: now, Message: m})
			if err != nil {
				return err
			}
			if err := b.Put(idKey(id), buf); err != nil {
				return err
			}
			ids[i] = id
		}
		return nil
	})
	if err != nil {
		return nil, conclave.Classify(conclave.ErrTransport, err)
	}
	log.Lvlf3("Appended %d messages to %s, last id %d", len(ids), name, ids[len(ids)-1])
	return ids, nil
}

// Get returns at most limit entries of the named board with an id larger
// than since, and whether there are more.
func (s *Store) Get(name string, since int64, limit int) ([]message.Entry, bool, error) {
	if !ValidName(name) {
		return nil, false, xerrors.Errorf("invalid board name %q: %w", name, conclave.ErrValidation)
	}
	start := uint64(1)
	if since >= 0 {
		start = uint64(since) + 1
	}
	var entries []message.Entry
	more := false
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket).Bucket([]byte(name))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, v := c.Seek(idKey(start)); k != nil; k, v = c.Next() {
			if len(entries) == limit {
				more = true
				break
			}
			var e message.Entry
			if err := protobuf.Decode(v, &e); err != nil {
				return xerrors.Errorf("entry %x: %v: %w", k, err, conclave.ErrSerialization)
			}
			entries = append(entries, e)
		}
		return nil
	})
	if err != nil {
		return nil, false, conclave.Classify(conclave.ErrTransport, err)
	}
	return entries, more, nil
}
