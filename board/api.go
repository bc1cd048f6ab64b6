package board

import (
	"context"

	"go.dedis.ch/onet/v3"
	"go.dedis.ch/onet/v3/log"
	"go.dedis.ch/onet/v3/network"
	"golang.org/x/xerrors"

	"go.dedis.ch/conclave"
	"go.dedis.ch/conclave/message"
)

// Client is the client of the board service of one conode.
type Client struct {
	*onet.Client
	si *network.ServerIdentity
}

// NewClient returns a client of the board service running at si.
func NewClient(si *network.ServerIdentity) *Client {
	return &Client{
		Client: onet.NewClient(conclave.Suite, ServiceName),
		si:     si,
	}
}

// NewClientFromRoster returns a client of the first conode of the roster.
func NewClientFromRoster(r *onet.Roster) (*Client, error) {
	if r == nil || len(r.List) == 0 {
		return nil, xerrors.Errorf("empty roster: %w", conclave.ErrConfig)
	}
	return NewClient(r.List[0]), nil
}

// GetMessages implements Board. It requests pages until the conode has no
// more entries.
func (c *Client) GetMessages(ctx context.Context, name string, since int64) ([]message.Entry, error) {
	var entries []message.Entry
	cursor := since
	for {
		if err := ctx.Err(); err != nil {
			return nil, conclave.Classify(conclave.ErrTransport, err)
		}
		reply := &GetMessagesReply{}
		err := c.SendProtobuf(c.si, &GetMessages{Board: name, Since: cursor}, reply)
		if err != nil {
			return nil, xerrors.Errorf("reading %s: %v: %w", name, err, conclave.ErrTransport)
		}
		for _, e := range reply.Entries {
			if int64(e.ID) <= cursor {
				return nil, xerrors.Errorf("board %s returned id %d after %d: %w",
					name, e.ID, cursor, conclave.ErrTransport)
			}
			cursor = int64(e.ID)
		}
		entries = append(entries, reply.Entries...)
		if !reply.More {
			break
		}
		if len(reply.Entries) == 0 {
			return nil, xerrors.Errorf("board %s announced more entries but sent none: %w",
				name, conclave.ErrTransport)
		}
		log.Lvl4("Fetching next page of", name, "from", cursor)
	}
	return entries, nil
}

// SendMessages implements Board.
func (c *Client) SendMessages(ctx context.Context, name string, msgs []message.Message) ([]uint64, error) {
	if err := CheckBatch(name, msgs); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, conclave.Classify(conclave.ErrTransport, err)
	}
	reply := &PutMessagesReply{}
	err := c.SendProtobuf(c.si, &PutMessages{Board: name, Messages: msgs}, reply)
	if err != nil {
		return nil, xerrors.Errorf("appending to %s: %v: %w", name, err, conclave.ErrTransport)
	}
	if len(reply.IDs) != len(msgs) {
		return nil, xerrors.Errorf("board %s assigned %d ids to %d messages: %w",
			name, len(reply.IDs), len(msgs), conclave.ErrTransport)
	}
	return reply.IDs, nil
}
