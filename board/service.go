package board

import (
	"go.dedis.ch/onet/v3"
	"go.dedis.ch/onet/v3/log"

	"go.dedis.ch/conclave"
)

// ServiceName is the name used to register the service.
const ServiceName = "ConclaveBoard"

func init() {
	onet.RegisterNewService(ServiceName, newService)
}

// Service serves the boards of a conode.
type Service struct {
	*onet.ServiceProcessor

	store *Store
}

// GetMessages returns one page of entries.
func (s *Service) GetMessages(req *GetMessages) (*GetMessagesReply, error) {
	entries, more, err := s.store.Get(req.Board, req.Since, PageSize)
	if err != nil {
		log.Error("reading", req.Board, ":", err)
		return nil, err
	}
	return &GetMessagesReply{Entries: entries, More: more}, nil
}

// PutMessages appends a batch of messages.
func (s *Service) PutMessages(req *PutMessages) (*PutMessagesReply, error) {
	ids, err := s.store.Append(req.Board, req.Messages)
	if err != nil {
		log.Lvl2("refusing batch for", req.Board, ":", err)
		return nil, err
	}
	return &PutMessagesReply{IDs: ids}, nil
}

func newService(c *onet.Context) (onet.Service, error) {
	db, bucket := c.GetAdditionalBucket([]byte("conclave-board"))
	store, err := NewStore(db, bucket)
	if err != nil {
		return nil, conclave.WrapError(err)
	}
	s := &Service{
		ServiceProcessor: onet.NewServiceProcessor(c),
		store:            store,
	}
	if err := s.RegisterHandlers(s.GetMessages, s.PutMessages); err != nil {
		return nil, conclave.ErrorOrNil(err, "registering handlers")
	}
	return s, nil
}
