package trustee

import "fmt"

// Phase is the progress of a protocol instance as seen by one trustee.
// Phases only ever advance.
type Phase int

// The phases, in order.
const (
	Bootstrap Phase = iota
	ConfigurationProposed
	ConfigurationApproved
	KeyCeremony
	Ready
	Mixing
	Decryption
	Complete
)

var phaseNames = []string{
	"Bootstrap",
	"ConfigurationProposed",
	"ConfigurationApproved",
	"KeyCeremony",
	"Ready",
	"Mixing",
	"Decryption",
	"Complete",
}

func (p Phase) String() string {
	if p >= 0 && int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}
