package grid

import (
	"math"
	"sort"
	"time"

	"github.com/NERVsystems/tripmcp/pkg/geo"
	"github.com/NERVsystems/tripmcp/pkg/trip"
)

// Update returns g with path folded in; g itself is not modified.
//
// Ground modes mark every point's cell passed. Flights only mark cells no
// ground trip has reached, and tracked flights are densified first so fast
// legs do not skip cells. The first and last point are always stopped.
func Update(g Grid, path trip.Path, mode trip.Mode, now time.Time) Grid {
	out := g.clone()
	out.UpdatedAt = now
	if len(path) == 0 {
		return out
	}

	points := []geo.Location(path)
	if mode.IsAerial() && len(points) > 2 {
		points = geo.Densify(points, AirSampleKm)
	}

	for _, p := range points {
		c := CellOf(p)
		cur, seen := out.cells[c]
		switch {
		case !mode.IsAerial():
			if cur != Stopped {
				out.cells[c] = Passed
			}
		case !seen:
			out.cells[c] = Air
		}
	}

	out.cells[CellOf(path[0])] = Stopped
	out.cells[CellOf(path[len(path)-1])] = Stopped
	return out
}

// Coverage returns the percentage of the globe's cells visited on land and
// seen only from the air.
func Coverage(g Grid) (landPercent, airPercent float64) {
	land, air := g.Counts()
	return float64(land) / TotalCells * 100, float64(air) / TotalCells * 100
}

// Round rounds a coverage percentage to two decimals for display.
func Round(v float64) float64 {
	return math.Round(v*100) / 100
}

// Record is one trip as the tracker sees it.
type Record struct {
	Path      trip.Path `json:"path"`
	Mode      trip.Mode `json:"type"`
	CreatedAt time.Time `json:"created_at"`
}

// Fold applies records to g in creation order. Records created at the same
// instant keep their relative order. The result's UpdatedAt is now.
func Fold(g Grid, records []Record, now time.Time) Grid {
	ordered := make([]Record, len(records))
	copy(ordered, records)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})

	out := g.clone()
	for _, r := range ordered {
		out = Update(out, r.Path, r.Mode, now)
	}
	out.UpdatedAt = now
	return out
}
