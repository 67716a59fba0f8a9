// Package emissions estimates the CO2-equivalent emissions of a trip.
//
// All factors are per passenger. Functions return kilograms of CO2e.
package emissions

import (
	"strings"

	"github.com/NERVsystems/tripmcp/pkg/attribution"
	"github.com/NERVsystems/tripmcp/pkg/geo"
	"github.com/NERVsystems/tripmcp/pkg/trip"
)

// Road, water and human-powered factors in g CO2e per km.
const (
	busConstruction   = 4.42
	busFuel           = 25.0
	busInfrastructure = 0.7
	carConstruction   = 25.6
	carFuel           = 192.0
	carInfrastructure = 0.7
	carExtraPassenger = 0.04
	ferryCombustion   = 80.0
	ferryServices     = 30.0
	ferryConstruction = 11.0
	cycleConstruction = 2.0
	cycleHumanFuel    = 0.1
	walkHumanFuel     = 0.2
)

// Rail operation.
const (
	ElectricKWhPerKm  = 0.04
	DieselLitresPerKm = 0.015
	DieselKgPerLitre  = 2.65
)

// Air.
const (
	// DetourFactor stretches a direct great-circle flight to the distance
	// actually flown.
	DetourFactor = 1.076
	// NonCO2Factor accounts for radiative forcing beyond CO2.
	NonCO2Factor = 1.7

	shortHaulKm     = 1000
	mediumHaulKm    = 3500
	shortHaulFactor = 0.300
	mediumFactor    = 0.200
	longHaulFactor  = 0.167
)

// railBase is construction plus infrastructure in g/km.
var railBase = map[trip.Mode]float64{
	trip.Train:     1.5 + 6.5,
	trip.Metro:     0.8 + 3.5,
	trip.Tram:      1.0 + 4.0,
	trip.Aerialway: 1.5 + 6.5,
}

// Model estimates emissions using a set of factor tables.
type Model struct {
	tables *Tables
}

// NewModel returns a model over validated tables.
func NewModel(tables *Tables) *Model {
	return &Model{tables: tables}
}

// Tables returns the model's factor tables.
func (m *Model) Tables() *Tables { return m.tables }

// Estimate returns kg CO2e for a trip. countries is the trip's attribution
// and is only used by rail modes. Unsupported modes and zero distances
// yield 0.
func (m *Model) Estimate(t trip.Trip, path trip.Path, countries attribution.DistanceMap) float64 {
	mode, ok := trip.ParseMode(string(t.Mode))
	if !ok {
		return 0
	}
	if mode == trip.Helicopter {
		mode = trip.Air
	}

	km := DistanceKm(mode, t.DistanceM, path)
	if km == 0 {
		return 0
	}

	switch mode {
	case trip.Air:
		return m.Air(km, t.MaterialType)
	case trip.Train, trip.Metro, trip.Tram, trip.Aerialway:
		return m.Rail(km, countries, mode)
	case trip.Bus:
		return Bus(km)
	case trip.Car:
		return Car(km, t.PassengerCount())
	case trip.Ferry:
		return Ferry(km)
	case trip.Cycle:
		return Cycle(km)
	case trip.Walk:
		return Walk(km)
	}
	return 0
}

// DistanceKm returns the distance the model charges for. Direct flights are
// stretched by DetourFactor; tracked flights use their geodesic length.
// Surface modes prefer the recorded trip length over the path.
func DistanceKm(mode trip.Mode, recordedM float64, path trip.Path) float64 {
	if mode.IsAerial() {
		switch {
		case len(path) == 2:
			return geo.Geodesic(path[0], path[1]) / 1000 * DetourFactor
		case len(path) > 2:
			return geo.PathLength(path, geo.Geodesic) / 1000
		}
	}
	if recordedM > 0 {
		return recordedM / 1000
	}
	return geo.PathLength(path, geo.Geodesic) / 1000
}

// Air returns flight emissions for an aircraft type code, which may be
// empty.
func (m *Model) Air(km float64, aircraft string) float64 {
	return km * m.AirFactor(km, aircraft) * NonCO2Factor
}

// AirFactor is the kg CO2 per km before the non-CO2 uplift.
func (m *Model) AirFactor(km float64, aircraft string) float64 {
	if aircraft != "" {
		if v, ok := m.tables.AircraftFactor(strings.ToUpper(strings.TrimSpace(aircraft)), km); ok {
			return v
		}
	}
	if cat, ok := m.tables.Category(km); ok {
		return m.tables.FlightCategories[cat].BaseCO2PerKm
	}
	switch {
	case km < shortHaulKm:
		return shortHaulFactor
	case km < mediumHaulKm:
		return mediumFactor
	default:
		return longHaulFactor
	}
}

// Rail returns emissions for the rail family. Per country, flat distances
// are split by the national diesel share; split distances are used as
// given. Metro, tram and aerialway run entirely on electricity. The
// result is summed over every country; with no attribution the whole
// distance is charged at the default entry.
func (m *Model) Rail(km float64, countries attribution.DistanceMap, mode trip.Mode) float64 {
	base, ok := railBase[mode]
	if !ok {
		base = railBase[trip.Train]
	}
	forced := mode.ForcedElectric()

	if len(countries) == 0 {
		f := m.tables.Country(DefaultCountry)
		diesel := 0.0
		if !forced {
			diesel = km * f.DieselShare
		}
		return railOperation(km-diesel, diesel, f) + km*base/1000
	}

	total := 0.0
	for _, code := range countries.Codes() {
		f := m.tables.Country(code)
		elec, diesel := splitKm(countries[code], f)
		if forced {
			elec += diesel
			diesel = 0
		}
		total += railOperation(elec, diesel, f) + (elec+diesel)*base/1000
	}
	return total
}

func splitKm(v attribution.Value, f CountryFactors) (elec, diesel float64) {
	if e, n, ok := v.Parts(); ok {
		return e / 1000, n / 1000
	}
	totalKm := v.Meters() / 1000
	diesel = totalKm * f.DieselShare
	return totalKm - diesel, diesel
}

func railOperation(elecKm, dieselKm float64, f CountryFactors) float64 {
	return elecKm*ElectricKWhPerKm*f.GridIntensityGPerKWh/1000 +
		dieselKm*DieselLitresPerKm*DieselKgPerLitre
}

// Bus returns coach emissions.
func Bus(km float64) float64 {
	return km * (busConstruction + busFuel + busInfrastructure) / 1000
}

// Car returns emissions per occupant. Each extra passenger adds 4% fuel.
func Car(km float64, passengers int) float64 {
	if passengers < 1 {
		passengers = 1
	}
	total := km * (carConstruction + carFuel + carInfrastructure)
	if passengers > 1 {
		total += km * carFuel * carExtraPassenger * float64(passengers-1)
	}
	return total / float64(passengers) / 1000
}

func Ferry(km float64) float64 {
	return km * (ferryCombustion + ferryServices + ferryConstruction) / 1000
}

func Cycle(km float64) float64 {
	return km * (cycleConstruction + cycleHumanFuel) / 1000
}

func Walk(km float64) float64 {
	return km * walkHumanFuel / 1000
}
