package attribution

import "sort"

// TripCountries is one trip's attribution as seen by the statistics
// aggregator.
type TripCountries struct {
	Countries DistanceMap `json:"countries"`
	// Past is true for trips that already happened; others count as
	// planned.
	Past bool `json:"past"`
}

// CountryStat summarises every trip touching one country.
type CountryStat struct {
	Country            string  `json:"country"`
	PastTrips          int     `json:"pastTrips"`
	PlannedFutureTrips int     `json:"plannedFutureTrips"`
	PastKm             float64 `json:"pastKm"`
	PlannedFutureKm    float64 `json:"plannedFutureKm"`
}

// TotalTrips returns past and planned trips together.
func (s CountryStat) TotalTrips() int {
	return s.PastTrips + s.PlannedFutureTrips
}

// Aggregate folds trip attributions into per-country totals, ordered by
// number of trips (descending) and then by code.
func Aggregate(trips []TripCountries) []CountryStat {
	byCode := make(map[string]*CountryStat)
	for _, t := range trips {
		for code, v := range t.Countries {
			st, ok := byCode[code]
			if !ok {
				st = &CountryStat{Country: code}
				byCode[code] = st
			}
			km := v.Meters() / 1000
			if t.Past {
				st.PastTrips++
				st.PastKm += km
			} else {
				st.PlannedFutureTrips++
				st.PlannedFutureKm += km
			}
		}
	}

	out := make([]CountryStat, 0, len(byCode))
	for _, st := range byCode {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalTrips() != out[j].TotalTrips() {
			return out[i].TotalTrips() > out[j].TotalTrips()
		}
		return out[i].Country < out[j].Country
	})
	return out
}
