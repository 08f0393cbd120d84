package utils

import (
	"fmt"
	"strings"
)

// BoundaryType selects the finite difference stencil used along one edge of the
// cross-section.
type BoundaryType uint8

const (
	// BCZero forces the field to vanish beyond the edge (Dirichlet)
	BCZero BoundaryType = iota
	// BCSymmetric mirrors the field across the edge (even parity)
	BCSymmetric
	// BCAntiSymmetric mirrors the negated field across the edge (odd parity)
	BCAntiSymmetric
	// BCAbsorbing covers absorbing and any other edge treatment, the stencil is left as supplied
	BCAbsorbing
)

func (bc BoundaryType) String() string {
	switch bc {
	case BCZero:
		return "Zero"
	case BCSymmetric:
		return "Symmetric"
	case BCAntiSymmetric:
		return "AntiSymmetric"
	case BCAbsorbing:
		return "Absorbing"
	}
	return "Unknown"
}

// BCNameMap provides a mapping from common boundary condition names to BoundaryType
// Keys are lowercase for case-insensitive matching
var BCNameMap = map[string]BoundaryType{
	"zero":           BCZero,
	"dirichlet":      BCZero,
	"pec":            BCZero,
	"symmetric":      BCSymmetric,
	"symmetry":       BCSymmetric,
	"even":           BCSymmetric,
	"neumann":        BCSymmetric,
	"anti-symmetric": BCAntiSymmetric,
	"antisymmetric":  BCAntiSymmetric,
	"anti_symmetric": BCAntiSymmetric,
	"odd":            BCAntiSymmetric,
	"absorbing":      BCAbsorbing,
	"pml":            BCAbsorbing,
	"none":           BCAbsorbing,
}

// ParseBCName converts a boundary condition name string to BoundaryType
// The matching is case-insensitive and trims whitespace
func ParseBCName(name string) BoundaryType {
	lowerName := strings.ToLower(strings.TrimSpace(name))
	if bcType, ok := BCNameMap[lowerName]; ok {
		return bcType
	}
	// Anything not recognized is treated as "other", which is handled like absorbing
	return BCAbsorbing
}

type Edge uint8

const (
	EdgeLeft Edge = iota
	EdgeRight
	EdgeTop
	EdgeBottom
)

func (e Edge) String() string {
	return [...]string{"Left", "Right", "Top", "Bottom"}[e]
}

// Boundaries holds the four edge tags of a cross-section, immutable for a sweep
type Boundaries struct {
	Left, Right, Top, Bottom BoundaryType
}

func NewBoundaries(left, right, top, bottom string) Boundaries {
	return Boundaries{
		Left:   ParseBCName(left),
		Right:  ParseBCName(right),
		Top:    ParseBCName(top),
		Bottom: ParseBCName(bottom),
	}
}

func (b Boundaries) Get(e Edge) BoundaryType {
	switch e {
	case EdgeLeft:
		return b.Left
	case EdgeRight:
		return b.Right
	case EdgeTop:
		return b.Top
	case EdgeBottom:
		return b.Bottom
	}
	panic(fmt.Errorf("unknown edge %d", e))
}

func (b Boundaries) String() string {
	return fmt.Sprintf("Left[%s] Right[%s] Top[%s] Bottom[%s]", b.Left, b.Right, b.Top, b.Bottom)
}
