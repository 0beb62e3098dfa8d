package models

import (
	"fmt"
	"time"
)

type StationAggregate struct {
	Station string       `json:"station"`
	Count   int          `json:"count"`
	Means   Measurements `json:"means"`
}

type MonthlyBucket struct {
	Station string       `json:"station"`
	Month   time.Time    `json:"month"`
	Label   string       `json:"label"`
	Count   int          `json:"count"`
	Means   Measurements `json:"means"`
}

type RainLabel string

const (
	LabelRain    RainLabel = "Rain"
	LabelNotRain RainLabel = "Not Rain"
)

type LabeledObservation struct {
	Observation
	IsRain RainLabel `json:"is_rain"`
}

type SummaryCards struct {
	Station string  `json:"station"`
	Rain    float64 `json:"rain"`
	PM25    float64 `json:"pm25"`
	PM10    float64 `json:"pm10"`
	SO2     float64 `json:"so2"`
	NO2     float64 `json:"no2"`
	CO      float64 `json:"co"`
}

// BoxStats is the five-number summary behind one box of a distribution plot.
type BoxStats struct {
	Label  RainLabel `json:"label"`
	Count  int       `json:"count"`
	Min    float64   `json:"min"`
	Q1     float64   `json:"q1"`
	Median float64   `json:"median"`
	Q3     float64   `json:"q3"`
	Max    float64   `json:"max"`
}

type Distribution struct {
	Measure Measure    `json:"measure"`
	Boxes   []BoxStats `json:"boxes"`
}

type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// DateLayout is the calendar-date form accepted for range bounds.
const DateLayout = "2006-01-02"

// ParseDate accepts a calendar date (midnight UTC) or an RFC3339 timestamp.
func ParseDate(value string) (time.Time, error) {
	if t, err := time.Parse(DateLayout, value); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q must be YYYY-MM-DD or RFC3339", value)
	}
	return t.UTC(), nil
}

type Dashboard struct {
	DatasetVersion string               `json:"dataset_version"`
	Range          DateRange            `json:"range"`
	Rows           int                  `json:"rows"`
	Ranking        []StationAggregate   `json:"ranking"`
	TopStation     string               `json:"top_station"`
	Monthly        []MonthlyBucket      `json:"monthly"`
	Summary        SummaryCards         `json:"summary"`
	Distributions  []Distribution       `json:"distributions"`
	TopRows        []LabeledObservation `json:"-"`
	GeneratedAt    time.Time            `json:"generated_at"`
}
