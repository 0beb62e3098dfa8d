package services

import (
	"errors"
	"math"
	"sort"
	"time"

	"github.com/bobby-s-dev/airquality-aggregator/internal/dataset"
	"github.com/bobby-s-dev/airquality-aggregator/internal/models"
)

// FilterByRange returns the rows with start < timestamp < end as a new slice.
func FilterByRange(rows []models.Observation, start, end time.Time) []models.Observation {
	filtered := make([]models.Observation, 0)
	for _, o := range rows {
		if o.Timestamp.After(start) && o.Timestamp.Before(end) {
			filtered = append(filtered, o)
		}
	}
	return filtered
}

// meanAccumulator sums measurements for one group.
type meanAccumulator struct {
	count int
	sum   models.Measurements
}

func (a *meanAccumulator) add(m models.Measurements) {
	a.count++
	a.sum.PM25 += m.PM25
	a.sum.PM10 += m.PM10
	a.sum.SO2 += m.SO2
	a.sum.NO2 += m.NO2
	a.sum.CO += m.CO
	a.sum.Rain += m.Rain
}

func (a *meanAccumulator) mean() models.Measurements {
	n := float64(a.count)
	return models.Measurements{
		PM25: a.sum.PM25 / n,
		PM10: a.sum.PM10 / n,
		SO2:  a.sum.SO2 / n,
		NO2:  a.sum.NO2 / n,
		CO:   a.sum.CO / n,
		Rain: a.sum.Rain / n,
	}
}

// RankStations averages every measurement per station and orders the stations by
// mean rainfall, highest first. Stations with equal rainfall stay in name order.
func RankStations(rows []models.Observation) []models.StationAggregate {
	groups := make(map[string]*meanAccumulator)
	for _, o := range rows {
		acc, ok := groups[o.Station]
		if !ok {
			acc = &meanAccumulator{}
			groups[o.Station] = acc
		}
		acc.add(o.Measurements)
	}

	ranked := make([]models.StationAggregate, 0, len(groups))
	for station, acc := range groups {
		ranked = append(ranked, models.StationAggregate{
			Station: station,
			Count:   acc.count,
			Means:   acc.mean(),
		})
	}

	sort.Slice(ranked, func(i, j int) bool { return ranked[i].Station < ranked[j].Station })
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Means.Rain > ranked[j].Means.Rain })
	return ranked
}

// TopStationRows returns the rows of the first station in ranked.
func TopStationRows(rows []models.Observation, ranked []models.StationAggregate) ([]models.Observation, error) {
	if len(rows) == 0 {
		return nil, &models.EmptyRangeError{Reason: "no observations in range"}
	}
	if len(ranked) == 0 {
		return nil, &models.EmptyRangeError{Reason: "no station ranking for range"}
	}

	top := ranked[0].Station
	stationRows := make([]models.Observation, 0, ranked[0].Count)
	for _, o := range rows {
		if o.Station == top {
			stationRows = append(stationRows, o)
		}
	}
	return stationRows, nil
}

// MonthlyBuckets averages rows per calendar month, in chronological order.
func MonthlyBuckets(rows []models.Observation) []models.MonthlyBucket {
	groups := make(map[time.Time]*meanAccumulator)
	stations := make(map[time.Time]string)
	var months []time.Time

	for _, o := range rows {
		ts := o.Timestamp.UTC()
		month := time.Date(ts.Year(), ts.Month(), 1, 0, 0, 0, 0, time.UTC)
		acc, ok := groups[month]
		if !ok {
			acc = &meanAccumulator{}
			groups[month] = acc
			stations[month] = o.Station
			months = append(months, month)
		}
		acc.add(o.Measurements)
	}

	sort.Slice(months, func(i, j int) bool { return months[i].Before(months[j]) })

	buckets := make([]models.MonthlyBucket, len(months))
	for i, month := range months {
		buckets[i] = models.MonthlyBucket{
			Station: stations[month],
			Month:   month,
			Label:   month.Format("January-2006"),
			Count:   groups[month].count,
			Means:   groups[month].mean(),
		}
	}
	return buckets
}

// ClassifyRain labels a row "Rain" when its rainfall is not exactly zero.
func ClassifyRain(rows []models.Observation) []models.LabeledObservation {
	labeled := make([]models.LabeledObservation, len(rows))
	for i, o := range rows {
		label := models.LabelNotRain
		if o.Rain != 0 {
			label = models.LabelRain
		}
		labeled[i] = models.LabeledObservation{Observation: o, IsRain: label}
	}
	return labeled
}

// Summarize returns the summary cards of station from its rows.
func Summarize(station string, rows []models.Observation) models.SummaryCards {
	acc := &meanAccumulator{}
	for _, o := range rows {
		acc.add(o.Measurements)
	}
	cards := models.SummaryCards{Station: station}
	if acc.count == 0 {
		return cards
	}

	m := acc.mean()
	cards.Rain = round3(m.Rain)
	cards.PM25 = round3(m.PM25)
	cards.PM10 = round3(m.PM10)
	cards.SO2 = round3(m.SO2)
	cards.NO2 = round3(m.NO2)
	cards.CO = round3(m.CO)
	return cards
}

// Distributions returns, per pollutant, the box statistics of the rain and no-rain rows.
// Labels without rows are omitted.
func Distributions(labeled []models.LabeledObservation) []models.Distribution {
	labels := []models.RainLabel{models.LabelNotRain, models.LabelRain}

	out := make([]models.Distribution, 0, len(models.Pollutants))
	for _, measure := range models.Pollutants {
		dist := models.Distribution{Measure: measure}
		for _, label := range labels {
			var values []float64
			for _, o := range labeled {
				if o.IsRain != label {
					continue
				}
				v, _ := o.Value(measure)
				values = append(values, v)
			}
			if len(values) == 0 {
				continue
			}
			dist.Boxes = append(dist.Boxes, boxStats(label, values))
		}
		out = append(out, dist)
	}
	return out
}

func boxStats(label models.RainLabel, values []float64) models.BoxStats {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	return models.BoxStats{
		Label:  label,
		Count:  len(sorted),
		Min:    sorted[0],
		Q1:     dataset.Quantile(sorted, 0.25),
		Median: dataset.Quantile(sorted, 0.5),
		Q3:     dataset.Quantile(sorted, 0.75),
		Max:    sorted[len(sorted)-1],
	}
}

// BuildDashboard runs the whole chain for one date range.
func BuildDashboard(ds *models.Dataset, start, end time.Time) (*models.Dashboard, error) {
	rows := FilterByRange(ds.Observations, start, end)
	ranked := RankStations(rows)

	topRows, err := TopStationRows(rows, ranked)
	if err != nil {
		var emptyErr *models.EmptyRangeError
		if errors.As(err, &emptyErr) {
			emptyErr.Start, emptyErr.End = start, end
		}
		return nil, err
	}
	top := ranked[0].Station
	labeled := ClassifyRain(topRows)

	return &models.Dashboard{
		DatasetVersion: ds.Version,
		Range:          models.DateRange{Start: start, End: end},
		Rows:           len(rows),
		Ranking:        ranked,
		TopStation:     top,
		Monthly:        MonthlyBuckets(topRows),
		Summary:        Summarize(top, topRows),
		Distributions:  Distributions(labeled),
		TopRows:        labeled,
		GeneratedAt:    time.Now(),
	}, nil
}

// round3 rounds half away from zero. numpy's round is half-to-even, so results
// can differ in the last digit only when v*1000 lies exactly on .5.
func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
