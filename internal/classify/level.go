package classify

import (
	"math"
	"sort"
	"strconv"

	"github.com/kokistudios/vfsync/internal/model"
)

// DefaultTolerance is the absolute elevation tolerance for a level match, in
// model length units.
const DefaultTolerance = 0.001

// ElevationIndex is an ordered view of the document's levels, sorted by
// elevation, for nearest-level lookups.
type ElevationIndex struct {
	levels []model.Level
}

// NewElevationIndex builds an index over the given levels.
func NewElevationIndex(levels []model.Level) *ElevationIndex {
	sorted := make([]model.Level, len(levels))
	copy(sorted, levels)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Elevation < sorted[j].Elevation })
	return &ElevationIndex{levels: sorted}
}

// Nearest returns the level whose elevation is closest to z. Ties go to the
// lower level, keeping the result independent of input order.
func (x *ElevationIndex) Nearest(z float64) (model.Level, bool) {
	if len(x.levels) == 0 {
		return model.Level{}, false
	}
	best := x.levels[0]
	bestDist := math.Abs(z - best.Elevation)
	for _, l := range x.levels[1:] {
		if d := math.Abs(z - l.Elevation); d < bestDist {
			best, bestDist = l, d
		}
	}
	return best, true
}

// LevelProximity classifies an element to the level nearest its vertical
// midpoint, but only when the distance is within Tolerance. Elements outside
// tolerance are ineligible: from a view's perspective they sit on a foreign
// level. This classifier feeds the direct-hide visibility path; it never
// backs a persisted filter.
type LevelProximity struct {
	Index     *ElevationIndex
	Tolerance float64
}

// NewLevelProximity builds a level-proximity classifier over the document's
// levels. A non-positive tolerance falls back to DefaultTolerance.
func NewLevelProximity(levels []model.Level, tolerance float64) *LevelProximity {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &LevelProximity{Index: NewElevationIndex(levels), Tolerance: tolerance}
}

func (*LevelProximity) Mode() string { return "level" }

// Classify returns the nearest level's id as key. The element's vertical
// midpoint comes from its bounding box; when no box can be computed the
// origin point is the fallback. No geometry at all means ineligible.
func (c *LevelProximity) Classify(ctx Context, el *model.Element) (Key, error) {
	z, ok := verticalMid(el)
	if !ok {
		return "", nil
	}
	level, ok := c.Index.Nearest(z)
	if !ok {
		return "", nil
	}
	if math.Abs(z-level.Elevation) > c.Tolerance {
		return "", nil
	}
	return LevelKey(level.ID), nil
}

// LevelKey renders a level id as a classification key.
func LevelKey(id model.ElementID) Key {
	return Key(strconv.FormatInt(int64(id), 10))
}

func verticalMid(el *model.Element) (float64, bool) {
	if el.BBox != nil {
		return el.BBox.MidZ(), true
	}
	if el.Origin != nil {
		return el.Origin.Z, true
	}
	return 0, false
}
