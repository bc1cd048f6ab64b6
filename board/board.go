// Package board implements the append-only message log the trustees talk
// through. A board is identified by its name and keeps its entries in the
// order it assigned their ids, which is the only ordering every trustee
// agrees on.
//
// The package holds the Board contract, an onet service storing boards in
// bbolt and its client, an in-memory board and a read-through cache.
package board

import (
	"context"

	"go.dedis.ch/conclave/message"
)

// Beginning is the since id that returns a board from its first entry.
const Beginning int64 = -1

// Board is the client side of a board.
type Board interface {
	// GetMessages returns every entry of the named board with an id larger
	// than since, in id order. It never skips an entry.
	GetMessages(ctx context.Context, name string, since int64) ([]message.Entry, error)
	// SendMessages appends the messages as one batch: either all of them are
	// appended and their ids returned, or none is.
	SendMessages(ctx context.Context, name string, msgs []message.Message) ([]uint64, error)
}
