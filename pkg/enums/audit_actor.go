package enums

import "fmt"

// AuditActor identifies what triggered a settlement status transition.
type AuditActor string

const (
	AuditActorSystem  AuditActor = "system"
	AuditActorSweeper AuditActor = "sweeper"
	AuditActorManual  AuditActor = "manual"
)

var validAuditActors = []AuditActor{
	AuditActorSystem,
	AuditActorSweeper,
	AuditActorManual,
}

// String implements fmt.Stringer.
func (a AuditActor) String() string {
	return string(a)
}

// IsValid reports whether the value is a known AuditActor.
func (a AuditActor) IsValid() bool {
	for _, candidate := range validAuditActors {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAuditActor converts raw input into an AuditActor.
func ParseAuditActor(value string) (AuditActor, error) {
	for _, candidate := range validAuditActors {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid audit actor %q", value)
}
