package enemy

import "fmt"

// LayoutKind distinguishes the plate arrangements found on the field.
type LayoutKind int

const (
	// Symmetric4 is four plates 90° apart.
	Symmetric4 LayoutKind = iota
	// Tripod3 is three plates 120° apart (the outpost).
	Tripod3
)

func (k LayoutKind) String() string {
	switch k {
	case Symmetric4:
		return "symmetric4"
	case Tripod3:
		return "tripod3"
	default:
		return fmt.Sprintf("layout(%d)", int(k))
	}
}

// PlateGeometry is the rotation radius and mounting height of a plate.
type PlateGeometry struct {
	RadiusMM float64
	HeightMM float64
}

// Prior plate geometry used when nothing better is known.
const (
	PriorRadiusMM = 250.0
	PriorHeightMM = 150.0
)

// Layout is a unit's plate arrangement. It is chosen once from the unit's
// identity and never changes.
type Layout struct {
	Kind  LayoutKind
	Plate PlateGeometry
}

// LayoutFor returns the plate layout for id.
func LayoutFor(id ID) Layout {
	if id == Outpost8 {
		return Layout{Kind: Tripod3, Plate: PlateGeometry{RadiusMM: 200, HeightMM: 500}}
	}
	return Layout{Kind: Symmetric4, Plate: PlateGeometry{RadiusMM: 200, HeightMM: 10}}
}

// PlateCount returns the number of plates in the layout.
func (l Layout) PlateCount() int {
	if l.Kind == Tripod3 {
		return 3
	}
	return 4
}

// SpacingDeg returns the angular spacing between adjacent plates.
func (l Layout) SpacingDeg() float64 {
	return 360.0 / float64(l.PlateCount())
}
