// Package handle provides backend-scoped opaque identifiers for windows and workspaces.
//
// An ID is only meaningful within the session of the backend that produced it:
// it carries the backend tag so two ids from different compositors never compare
// equal, and its numeric value must not be interpreted as an ordering.
package handle

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind identifies the compositor backend that owns an id
type Kind uint8

const (
	KindNone Kind = iota
	KindSway
	KindHyprland
	KindWayland
	KindWayfire
)

var kindNames = map[Kind]string{
	KindNone:     "none",
	KindSway:     "sway",
	KindHyprland: "hyprland",
	KindWayland:  "wayland",
	KindWayfire:  "wayfire",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind returns the Kind for a backend name
func ParseKind(name string) (Kind, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for k, n := range kindNames {
		if n == name {
			return k, nil
		}
	}
	return KindNone, fmt.Errorf("unknown backend %q", name)
}

// ID is an opaque, backend-tagged handle
type ID struct {
	Kind  Kind
	Value uint64
}

// Nil is the zero ID, meaning "no reference"
var Nil = ID{}

// Dormant is the sentinel id carried by pinned workspaces that the compositor
// does not currently materialize.
var Dormant = ID{Kind: KindNone, Value: math.MaxUint64}

// New returns an ID for the given backend
func New(kind Kind, value uint64) ID {
	return ID{Kind: kind, Value: value}
}

// IsNil reports whether the id references nothing
func (id ID) IsNil() bool {
	return id == Nil
}

// IsDormant reports whether the id is the pinned placeholder sentinel
func (id ID) IsDormant() bool {
	return id == Dormant
}

// Less gives a deterministic tie-break order for listings. It carries no
// meaning beyond stability.
func (id ID) Less(other ID) bool {
	if id.Kind != other.Kind {
		return id.Kind < other.Kind
	}
	return id.Value < other.Value
}

// String formats the id as "<backend>:<value>"
func (id ID) String() string {
	switch {
	case id.IsNil():
		return "-"
	case id.IsDormant():
		return "dormant"
	case id.Kind == KindHyprland:
		// hyprland addresses are conventionally shown in hex
		return fmt.Sprintf("%s:0x%x", id.Kind, id.Value)
	default:
		return fmt.Sprintf("%s:%d", id.Kind, id.Value)
	}
}

// Parse reverses String
func Parse(s string) (ID, error) {
	switch s {
	case "-", "":
		return Nil, nil
	case "dormant":
		return Dormant, nil
	}

	kindPart, valuePart, ok := strings.Cut(s, ":")
	if !ok {
		return Nil, fmt.Errorf("invalid id %q: missing backend prefix", s)
	}

	kind, err := ParseKind(kindPart)
	if err != nil {
		return Nil, err
	}

	value, err := strconv.ParseUint(valuePart, 0, 64)
	if err != nil {
		return Nil, fmt.Errorf("invalid id %q: %w", s, err)
	}

	return New(kind, value), nil
}
