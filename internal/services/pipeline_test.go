package services

import (
	"errors"
	"testing"
	"time"

	"github.com/bobby-s-dev/airquality-aggregator/internal/models"
)

var day0 = time.Date(2013, 3, 1, 0, 0, 0, 0, time.UTC)

func obs(station string, hoursFromStart int, rain float64) models.Observation {
	return models.Observation{
		Station:   station,
		Timestamp: day0.Add(time.Duration(hoursFromStart) * time.Hour),
		Measurements: models.Measurements{
			PM25: float64(10 + hoursFromStart),
			PM10: 20,
			SO2:  3,
			NO2:  40,
			CO:   500,
			Rain: rain,
		},
	}
}

// twoStations is station A with rain 0,1,2 and station B with rain 5,5,5.
func twoStations() []models.Observation {
	return []models.Observation{
		obs("A", 1, 0), obs("B", 1, 5),
		obs("A", 2, 1), obs("B", 2, 5),
		obs("A", 3, 2), obs("B", 3, 5),
	}
}

func TestFilterByRange_StrictBounds(t *testing.T) {
	rows := []models.Observation{obs("A", 0, 0), obs("A", 1, 0), obs("A", 2, 0), obs("A", 3, 0)}
	start := day0
	end := day0.Add(3 * time.Hour)

	got := FilterByRange(rows, start, end)

	if len(got) != 2 {
		t.Fatalf("Expected 2 rows strictly inside the range, got %d", len(got))
	}
	for _, o := range got {
		if !o.Timestamp.After(start) || !o.Timestamp.Before(end) {
			t.Errorf("row %v is outside (%v, %v)", o.Timestamp, start, end)
		}
	}
}

func TestFilterByRange_ReturnsNewSlice(t *testing.T) {
	rows := []models.Observation{obs("A", 1, 0)}
	got := FilterByRange(rows, day0, day0.Add(2*time.Hour))
	got[0].Station = "changed"
	if rows[0].Station != "A" {
		t.Error("filtering must not alias the input rows")
	}
}

func TestRankStations_SortedByRainDescending(t *testing.T) {
	rows := append(twoStations(), obs("C", 4, 3), obs("D", 4, 3), obs("E", 5, 0.5))

	ranked := RankStations(rows)

	if len(ranked) != 5 {
		t.Fatalf("Expected 5 stations, got %d", len(ranked))
	}
	for i := 1; i < len(ranked); i++ {
		if ranked[i-1].Means.Rain < ranked[i].Means.Rain {
			t.Errorf("%s (%v) ranked before %s (%v)",
				ranked[i-1].Station, ranked[i-1].Means.Rain, ranked[i].Station, ranked[i].Means.Rain)
		}
	}
	// equal rainfall keeps name order
	if ranked[1].Station != "C" || ranked[2].Station != "D" {
		t.Errorf("Expected tie order C, D; got %s, %s", ranked[1].Station, ranked[2].Station)
	}
	if ranked[0].Count != 3 || ranked[0].Means.Rain != 5 {
		t.Errorf("Unexpected top aggregate %+v", ranked[0])
	}
}

func TestTopStationRows_TwoStations(t *testing.T) {
	rows := twoStations()
	ranked := RankStations(rows)

	if ranked[0].Station != "B" || ranked[1].Station != "A" {
		t.Fatalf("Expected B before A, got %s, %s", ranked[0].Station, ranked[1].Station)
	}

	top, err := TopStationRows(rows, ranked)
	if err != nil {
		t.Fatalf("TopStationRows failed: %v", err)
	}
	if len(top) != 3 {
		t.Fatalf("Expected 3 rows for B, got %d", len(top))
	}
	for _, o := range top {
		if o.Station != "B" {
			t.Errorf("Unexpected station %s", o.Station)
		}
	}
}

func TestTopStationRows_Empty(t *testing.T) {
	_, err := TopStationRows(nil, nil)
	if !errors.Is(err, models.ErrEmptyRange) {
		t.Errorf("Expected ErrEmptyRange, got %v", err)
	}

	_, err = TopStationRows(twoStations(), nil)
	var emptyErr *models.EmptyRangeError
	if !errors.As(err, &emptyErr) {
		t.Errorf("Expected EmptyRangeError for empty ranking, got %v", err)
	}
}

func TestBuildDashboard_RangeOutsideData(t *testing.T) {
	ds := &models.Dataset{Version: "v", Observations: twoStations()}
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	_, err := BuildDashboard(ds, start, end)

	var emptyErr *models.EmptyRangeError
	if !errors.As(err, &emptyErr) {
		t.Fatalf("Expected EmptyRangeError, got %v", err)
	}
	if !emptyErr.Start.Equal(start) || !emptyErr.End.Equal(end) {
		t.Errorf("Expected range on error, got %v - %v", emptyErr.Start, emptyErr.End)
	}
}

func TestClassifyRain_ExactZero(t *testing.T) {
	labeled := ClassifyRain([]models.Observation{obs("A", 1, 0.0), obs("A", 2, 0.001), obs("A", 3, -0.0)})

	want := []models.RainLabel{models.LabelNotRain, models.LabelRain, models.LabelNotRain}
	for i, w := range want {
		if labeled[i].IsRain != w {
			t.Errorf("row %d: expected %q, got %q", i, w, labeled[i].IsRain)
		}
	}
}

func TestMonthlyBuckets_Chronological(t *testing.T) {
	rows := []models.Observation{
		{Station: "B", Timestamp: time.Date(2013, 5, 3, 0, 0, 0, 0, time.UTC), Measurements: models.Measurements{Rain: 4}},
		{Station: "B", Timestamp: time.Date(2013, 3, 3, 0, 0, 0, 0, time.UTC), Measurements: models.Measurements{Rain: 1}},
		{Station: "B", Timestamp: time.Date(2013, 3, 30, 23, 0, 0, 0, time.UTC), Measurements: models.Measurements{Rain: 3}},
		{Station: "B", Timestamp: time.Date(2012, 12, 31, 0, 0, 0, 0, time.UTC), Measurements: models.Measurements{Rain: 9}},
	}

	buckets := MonthlyBuckets(rows)

	if len(buckets) != 3 {
		t.Fatalf("Expected 3 months, got %d", len(buckets))
	}
	wantMonths := []time.Month{time.December, time.March, time.May}
	wantRain := []float64{9, 2, 4}
	for i := range buckets {
		if buckets[i].Month.Month() != wantMonths[i] {
			t.Errorf("bucket %d: expected %s, got %s", i, wantMonths[i], buckets[i].Month.Month())
		}
		if buckets[i].Means.Rain != wantRain[i] {
			t.Errorf("bucket %d: expected rain %v, got %v", i, wantRain[i], buckets[i].Means.Rain)
		}
	}
	if buckets[1].Label != "March-2013" || buckets[1].Count != 2 {
		t.Errorf("Unexpected March bucket %+v", buckets[1])
	}
}

func TestSummarize_RoundsToThreeDecimals(t *testing.T) {
	rows := []models.Observation{
		{Station: "B", Measurements: models.Measurements{PM25: 1, Rain: 0.1}},
		{Station: "B", Measurements: models.Measurements{PM25: 2, Rain: 0.2}},
		{Station: "B", Measurements: models.Measurements{PM25: 2, Rain: 0}},
	}

	cards := Summarize("B", rows)

	if cards.PM25 != 1.667 {
		t.Errorf("Expected PM2.5 1.667, got %v", cards.PM25)
	}
	if cards.Rain != 0.1 {
		t.Errorf("Expected rain 0.1, got %v", cards.Rain)
	}
	if cards.Station != "B" {
		t.Errorf("Expected station B, got %s", cards.Station)
	}
}

func TestRound3_HalfAwayFromZero(t *testing.T) {
	// 1.0625 and its thousandfold are exact in binary, so this is a true tie
	if got := round3(1.0625); got != 1.063 {
		t.Errorf("Expected 1.063, got %v", got)
	}
	if got := round3(-1.0625); got != -1.063 {
		t.Errorf("Expected -1.063, got %v", got)
	}
}

func TestDistributions_SplitByRain(t *testing.T) {
	rows := []models.Observation{obs("A", 1, 0), obs("A", 2, 0), obs("A", 3, 1), obs("A", 5, 0)}

	dists := Distributions(ClassifyRain(rows))

	if len(dists) != len(models.Pollutants) {
		t.Fatalf("Expected %d distributions, got %d", len(models.Pollutants), len(dists))
	}
	pm25 := dists[0]
	if pm25.Measure != models.PM25 || len(pm25.Boxes) != 2 {
		t.Fatalf("Unexpected PM2.5 distribution %+v", pm25)
	}

	dry := pm25.Boxes[0]
	if dry.Label != models.LabelNotRain || dry.Count != 3 {
		t.Errorf("Unexpected dry box %+v", dry)
	}
	// PM2.5 of dry rows is 11, 12, 15
	if dry.Min != 11 || dry.Max != 15 || dry.Median != 12 || dry.Q1 != 11.5 || dry.Q3 != 13.5 {
		t.Errorf("Unexpected dry box stats %+v", dry)
	}
	if wet := pm25.Boxes[1]; wet.Count != 1 || wet.Min != 13 || wet.Max != 13 {
		t.Errorf("Unexpected wet box %+v", wet)
	}
}

func TestBuildDashboard(t *testing.T) {
	ds := &models.Dataset{Version: "v1", Observations: twoStations()}

	d, err := BuildDashboard(ds, day0, day0.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("BuildDashboard failed: %v", err)
	}

	if d.TopStation != "B" || d.Rows != 6 || len(d.Ranking) != 2 {
		t.Errorf("Unexpected dashboard %+v", d)
	}
	if len(d.Monthly) != 1 || d.Monthly[0].Means.Rain != 5 {
		t.Errorf("Unexpected monthly buckets %+v", d.Monthly)
	}
	if d.Summary.Rain != 5 || d.Summary.CO != 500 {
		t.Errorf("Unexpected summary %+v", d.Summary)
	}
	if len(d.TopRows) != 3 || d.TopRows[0].IsRain != models.LabelRain {
		t.Errorf("Unexpected labeled rows %+v", d.TopRows)
	}
	if d.DatasetVersion != "v1" {
		t.Errorf("Expected version v1, got %s", d.DatasetVersion)
	}
}
