// Package grid tracks which 1°×1° cells of the globe a traveller has
// visited, on the ground or from the air.
package grid

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/NERVsystems/tripmcp/pkg/geo"
)

// TotalCells is the number of 1°×1° cells on the globe.
const TotalCells = 180 * 360

// AirSampleKm is the spacing used to fill gaps in tracked flight paths.
const AirSampleKm = 50

// Status is how a cell was visited. Statuses only ever strengthen:
// air < passed < stopped.
type Status string

const (
	Air     Status = "air"
	Passed  Status = "passed"
	Stopped Status = "stopped"
)

func (s Status) valid() bool {
	return s == Air || s == Passed || s == Stopped
}

// Land reports whether the status counts as visited on the ground.
func (s Status) Land() bool {
	return s == Passed || s == Stopped
}

// Cell is identified by the floor of its south-west corner.
type Cell struct {
	Lat int `json:"lat"`
	Lng int `json:"lng"`
}

// CellOf returns the cell containing loc. The north pole belongs to the
// top row and longitude 180 wraps to -180.
func CellOf(loc geo.Location) Cell {
	lat := int(math.Floor(loc.Latitude))
	lng := int(math.Floor(loc.Longitude))
	lat = min(max(lat, -90), 89)
	lng = ((lng+180)%360+360)%360 - 180
	return Cell{Lat: lat, Lng: lng}
}

// CellStatus is one visited cell.
type CellStatus struct {
	Cell
	Status Status `json:"status"`
}

// Grid is a traveller's visited cells. The zero value is an empty grid.
// Update never mutates its input, so a Grid can be shared once built.
type Grid struct {
	cells     map[Cell]Status
	UpdatedAt time.Time
}

// Status returns the status of c, if visited.
func (g Grid) Status(c Cell) (Status, bool) {
	s, ok := g.cells[c]
	return s, ok
}

// Len returns the number of visited cells.
func (g Grid) Len() int { return len(g.cells) }

// Cells returns visited cells ordered by latitude then longitude.
func (g Grid) Cells() []CellStatus {
	out := make([]CellStatus, 0, len(g.cells))
	for c, s := range g.cells {
		out = append(out, CellStatus{Cell: c, Status: s})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Lat != out[j].Lat {
			return out[i].Lat < out[j].Lat
		}
		return out[i].Lng < out[j].Lng
	})
	return out
}

// Counts returns the number of land and air cells.
func (g Grid) Counts() (land, air int) {
	for _, s := range g.cells {
		if s.Land() {
			land++
		} else {
			air++
		}
	}
	return land, air
}

func (g Grid) clone() Grid {
	cells := make(map[Cell]Status, len(g.cells))
	for c, s := range g.cells {
		cells[c] = s
	}
	return Grid{cells: cells, UpdatedAt: g.UpdatedAt}
}

type gridJSON struct {
	Cells     []CellStatus `json:"cells"`
	UpdatedAt time.Time    `json:"updated_at"`
}

func (g Grid) MarshalJSON() ([]byte, error) {
	return json.Marshal(gridJSON{Cells: g.Cells(), UpdatedAt: g.UpdatedAt})
}

func (g *Grid) UnmarshalJSON(data []byte) error {
	var raw gridJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	cells := make(map[Cell]Status, len(raw.Cells))
	for _, c := range raw.Cells {
		if !c.Status.valid() {
			return fmt.Errorf("cell %d,%d: unknown status %q", c.Lat, c.Lng, c.Status)
		}
		if c.Lat < -90 || c.Lat > 89 || c.Lng < -180 || c.Lng > 179 {
			return fmt.Errorf("cell %d,%d out of range", c.Lat, c.Lng)
		}
		if prev, ok := cells[c.Cell]; ok {
			c.Status = stronger(prev, c.Status)
		}
		cells[c.Cell] = c.Status
	}
	*g = Grid{cells: cells, UpdatedAt: raw.UpdatedAt}
	return nil
}

func rank(s Status) int {
	switch s {
	case Stopped:
		return 3
	case Passed:
		return 2
	case Air:
		return 1
	}
	return 0
}

func stronger(a, b Status) Status {
	if rank(b) > rank(a) {
		return b
	}
	return a
}
