package board

import (
	"go.dedis.ch/onet/v3/network"

	"go.dedis.ch/conclave/message"
)

func init() {
	network.RegisterMessages(
		&GetMessages{}, &GetMessagesReply{},
		&PutMessages{}, &PutMessagesReply{},
	)
}

// PROTOSTART
// package board;
// import "conclave.proto";
//
// option java_package = "ch.epfl.dedis.lib.proto";
// option java_outer_classname = "BoardProto";

// GetMessages asks for the entries of a board with an id larger than Since.
// Since is -1 to read from the beginning.
type GetMessages struct {
	Board string
	Since int64
}

// GetMessagesReply holds at most one page of entries. If More is true, the
// caller asks again from the last returned id.
type GetMessagesReply struct {
	Entries []message.Entry
	More    bool
}

// PutMessages appends a batch of messages to a board.
type PutMessages struct {
	Board    string
	Messages []message.Message
}

// PutMessagesReply holds the ids assigned to the messages, in order.
type PutMessagesReply struct {
	IDs []uint64
}
