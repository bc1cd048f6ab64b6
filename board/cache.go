package board

import (
	"context"

	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/xerrors"

	"go.dedis.ch/conclave"
	"go.dedis.ch/conclave/message"
)

// CachePageSize is the number of ids covered by a cached page.
const CachePageSize = 64

type pageKey struct {
	board string
	index uint64
}

// Cache shadows the reads of a board. It keeps pages of ids it has seen in
// full, and asks the backing board for everything after the last cached
// page. Appends go straight to the backing board.
type Cache struct {
	Board
	pages *lru.Cache
}

// NewCache wraps b with a cache of at most size pages.
func NewCache(b Board, size int) (*Cache, error) {
	pages, err := lru.New(size)
	if err != nil {
		return nil, xerrors.Errorf("creating cache: %v: %w", err, conclave.ErrConfig)
	}
	return &Cache{Board: b, pages: pages}, nil
}

func pageRange(index uint64) (lo, hi uint64) {
	return index*CachePageSize + 1, (index + 1) * CachePageSize
}

// GetMessages implements Board.
func (c *Cache) GetMessages(ctx context.Context, name string, since int64) ([]message.Entry, error) {
	var entries []message.Entry
	cursor := since
	for {
		next := uint64(1)
		if cursor >= 0 {
			next = uint64(cursor) + 1
		}
		index := (next - 1) / CachePageSize
		v, ok := c.pages.Get(pageKey{name, index})
		if !ok {
			break
		}
		for _, e := range v.([]message.Entry) {
			if int64(e.ID) > cursor {
				entries = append(entries, e)
			}
		}
		_, hi := pageRange(index)
		cursor = int64(hi)
	}

	fresh, err := c.Board.GetMessages(ctx, name, cursor)
	if err != nil {
		return nil, err
	}
	c.store(name, cursor, fresh)
	return append(entries, fresh...), nil
}

// store caches the pages of fresh that are complete: every id of the page
// is after the cursor of the read, and the read went past the page.
func (c *Cache) store(name string, cursor int64, fresh []message.Entry) {
	if len(fresh) == 0 {
		return
	}
	last := fresh[len(fresh)-1].ID
	for start := 0; start < len(fresh); {
		index := (fresh[start].ID - 1) / CachePageSize
		end := start
		for end < len(fresh) && (fresh[end].ID-1)/CachePageSize == index {
			end++
		}
		lo, hi := pageRange(index)
		if int64(lo) > cursor && hi <= last {
			page := append([]message.Entry(nil), fresh[start:end]...)
			c.pages.Add(pageKey{name, index}, page)
		}
		start = end
	}
}

// Invalidate drops the cached pages of the named board.
func (c *Cache) Invalidate(name string) {
	for _, k := range c.pages.Keys() {
		if k.(pageKey).board == name {
			c.pages.Remove(k)
		}
	}
}
