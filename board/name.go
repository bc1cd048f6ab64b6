package board

import (
	"regexp"
	"strings"

	uuid "github.com/satori/go.uuid"
	"golang.org/x/xerrors"

	"go.dedis.ch/conclave"
)

var validName = regexp.MustCompile(`^[a-z0-9_-]{1,128}$`)

// Name returns the board name of an election event of a tenant. Every
// character that is not a lower case letter or a digit is dropped.
func Name(tenant, event string) string {
	raw := strings.ToLower("tenant" + tenant + "event" + event)
	var b strings.Builder
	for _, r := range raw {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NameFromUUIDs returns the board name of an election event when tenant and
// event are identified by UUIDs.
func NameFromUUIDs(tenant, event uuid.UUID) string {
	return Name(tenant.String(), event.String())
}

// ParseName parses the tenant and event UUIDs and returns their board name.
func ParseName(tenant, event string) (string, error) {
	t, err := uuid.FromString(tenant)
	if err != nil {
		return "", xerrors.Errorf("tenant: %v: %w", err, conclave.ErrConfig)
	}
	e, err := uuid.FromString(event)
	if err != nil {
		return "", xerrors.Errorf("event: %v: %w", err, conclave.ErrConfig)
	}
	return NameFromUUIDs(t, e), nil
}

// ValidName reports whether name can be used as a board name.
func ValidName(name string) bool {
	return validName.MatchString(name)
}
