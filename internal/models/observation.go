package models

import (
	"sort"
	"time"
)

// Measure names one of the projected measurement columns.
type Measure string

const (
	PM25 Measure = "PM2.5"
	PM10 Measure = "PM10"
	SO2  Measure = "SO2"
	NO2  Measure = "NO2"
	CO   Measure = "CO"
	Rain Measure = "RAIN"
)

// Measures lists the projected columns in output order.
var Measures = []Measure{PM25, PM10, SO2, NO2, CO, Rain}

// Pollutants are the measures shown in the rain/no-rain distributions.
var Pollutants = []Measure{PM25, PM10, SO2, NO2, CO}

type Measurements struct {
	PM25 float64 `json:"pm25"`
	PM10 float64 `json:"pm10"`
	SO2  float64 `json:"so2"`
	NO2  float64 `json:"no2"`
	CO   float64 `json:"co"`
	Rain float64 `json:"rain"`
}

// Value returns the measurement for m. Unknown measures report false.
func (m Measurements) Value(measure Measure) (float64, bool) {
	switch measure {
	case PM25:
		return m.PM25, true
	case PM10:
		return m.PM10, true
	case SO2:
		return m.SO2, true
	case NO2:
		return m.NO2, true
	case CO:
		return m.CO, true
	case Rain:
		return m.Rain, true
	}
	return 0, false
}

// Set assigns v to the measurement named by measure.
func (m *Measurements) Set(measure Measure, v float64) bool {
	switch measure {
	case PM25:
		m.PM25 = v
	case PM10:
		m.PM10 = v
	case SO2:
		m.SO2 = v
	case NO2:
		m.NO2 = v
	case CO:
		m.CO = v
	case Rain:
		m.Rain = v
	default:
		return false
	}
	return true
}

// IsMeasure reports whether name is one of the projected columns.
func IsMeasure(name string) bool {
	for _, m := range Measures {
		if string(m) == name {
			return true
		}
	}
	return false
}

type Observation struct {
	Station   string    `json:"station"`
	Timestamp time.Time `json:"timestamp"`
	Measurements
}

type Dataset struct {
	Version      string             `json:"version"`
	LoadedAt     time.Time          `json:"loaded_at"`
	Sources      []string           `json:"sources"`
	ColumnMeans  map[string]float64 `json:"column_means"`
	Observations []Observation      `json:"-"`
}

func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Observations)
}

// Bounds returns the earliest and latest timestamps. ok is false for an empty dataset.
func (d *Dataset) Bounds() (min, max time.Time, ok bool) {
	if d.Len() == 0 {
		return time.Time{}, time.Time{}, false
	}
	min = d.Observations[0].Timestamp
	max = min
	for _, o := range d.Observations[1:] {
		if o.Timestamp.Before(min) {
			min = o.Timestamp
		}
		if o.Timestamp.After(max) {
			max = o.Timestamp
		}
	}
	return min, max, true
}

// Stations returns the distinct station names in alphabetical order.
func (d *Dataset) Stations() []string {
	if d == nil {
		return nil
	}
	seen := make(map[string]struct{})
	var stations []string
	for _, o := range d.Observations {
		if _, ok := seen[o.Station]; ok {
			continue
		}
		seen[o.Station] = struct{}{}
		stations = append(stations, o.Station)
	}
	sort.Strings(stations)
	return stations
}
