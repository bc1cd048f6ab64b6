package session

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Runner runs the sessions of several boards side by side. A session that
// stops does not stop the others.
type Runner struct {
	sync.Mutex
	sessions []*Session
}

// NewRunner returns a runner of the sessions.
func NewRunner(sessions ...*Session) *Runner {
	return &Runner{sessions: sessions}
}

// Add adds a session before Run is called.
func (r *Runner) Add(s *Session) {
	r.Lock()
	defer r.Unlock()
	r.sessions = append(r.sessions, s)
}

// Notify wakes up every session.
func (r *Runner) Notify() {
	r.Lock()
	defer r.Unlock()
	for _, s := range r.sessions {
		s.Notify()
	}
}

// Run returns once every session returned, with the first error of a
// session.
func (r *Runner) Run(ctx context.Context) error {
	r.Lock()
	sessions := append([]*Session(nil), r.sessions...)
	r.Unlock()

	var g errgroup.Group
	for _, s := range sessions {
		s := s
		g.Go(func() error {
			return s.Run(ctx)
		})
	}
	return g.Wait()
}
