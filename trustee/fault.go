package trustee

import (
	"fmt"

	"golang.org/x/xerrors"

	"go.dedis.ch/conclave"
	"go.dedis.ch/conclave/message"
)

// Fault describes the entry that made an instance fail: a proof that did
// not verify or a contribution inconsistent with the others.
type Fault struct {
	Board  string
	Entry  uint64
	Sender string
	Phase  Phase
	Kind   message.Kind
	Reason error
}

func (f *Fault) Error() string {
	return fmt.Sprintf("cryptographic fault on %s entry %d (%v from %s, phase %v): %v",
		f.Board, f.Entry, f.Kind, f.Sender, f.Phase, f.Reason)
}

// Unwrap returns the reason of the fault.
func (f *Fault) Unwrap() error {
	return f.Reason
}

// Is makes every fault match conclave.ErrCryptographicFault.
func (f *Fault) Is(target error) bool {
	return target == conclave.ErrCryptographicFault
}

// faultf builds the reason of a fault.
func faultf(format string, args ...interface{}) error {
	return xerrors.Errorf(format+": %w", append(args, conclave.ErrCryptographicFault)...)
}
