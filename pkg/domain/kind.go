package domain

import "fmt"

// Kind names the shape of a catalog document.
type Kind string

const (
	// KindTable is a flat array of records with a variable set of fields.
	KindTable Kind = "table"
	// KindModules is an array of module definitions grouped by class.
	KindModules Kind = "modules"
	// KindCompat is a project/eval-kit compatibility document.
	KindCompat Kind = "compat"
)

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindTable, KindModules, KindCompat:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("unknown catalog kind %q", s)
	}
}

// Noun is the user-facing name for one record of the kind.
func (k Kind) Noun() string {
	switch k {
	case KindModules:
		return "modules"
	case KindCompat:
		return "compatibility documents"
	default:
		return "records"
	}
}
