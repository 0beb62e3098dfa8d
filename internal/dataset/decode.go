package dataset

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/bobby-s-dev/airquality-aggregator/internal/models"
	"github.com/go-gota/gota/dataframe"
)

// NumericColumns are the measurement columns of the raw per-station files.
var NumericColumns = []string{
	"PM2.5", "PM10", "SO2", "NO2", "CO", "O3", "TEMP", "PRES", "DEWP", "WSPM", "RAIN",
}

var (
	rawKeyColumns   = []string{"station", "year", "month", "day", "hour"}
	cleanedColumns  = []string{"datetime", "station", "PM2.5", "PM10", "SO2", "NO2", "CO", "RAIN"}
	datetimeLayouts = []string{
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04",
		time.RFC3339,
		"2006-01-02",
	}
)

// rawRecord is one source row before imputation. NaN marks a missing value.
type rawRecord struct {
	station string
	at      time.Time
	values  [11]float64
}

func columnIndex(name string) int {
	for i, c := range NumericColumns {
		if c == name {
			return i
		}
	}
	return -1
}

// decodeTable detects the layout of t from its header, checks the required
// columns and converts the rows. A header-only table yields no records.
func decodeTable(source string, t Table) ([]rawRecord, error) {
	names := make(map[string]string, len(t.Header))
	for _, n := range t.Header {
		names[strings.TrimSpace(strings.TrimPrefix(n, "\ufeff"))] = n
	}

	_, cleaned := names["datetime"]
	if cleaned {
		if err := require(source, names, cleanedColumns); err != nil {
			return nil, err
		}
	} else {
		if err := require(source, names, rawKeyColumns); err != nil {
			return nil, err
		}
		if err := require(source, names, NumericColumns); err != nil {
			return nil, err
		}
	}

	if t.Rows == 0 {
		return nil, nil
	}
	if cleaned {
		return decodeCleaned(source, t.Frame, names)
	}
	return decodeRaw(source, t.Frame, names)
}

func require(source string, names map[string]string, columns []string) error {
	for _, c := range columns {
		if _, ok := names[c]; !ok {
			return &models.SchemaError{Source: source, Column: c}
		}
	}
	return nil
}

func decodeRaw(source string, df dataframe.DataFrame, names map[string]string) ([]rawRecord, error) {
	n := df.Nrow()
	records := make([]rawRecord, n)

	stations, err := stationColumn(source, df.Col(names["station"]).Records())
	if err != nil {
		return nil, err
	}
	var parts [4][]int
	for k, field := range []string{"year", "month", "day", "hour"} {
		values, err := intColumn(source, field, df.Col(names[field]).Records())
		if err != nil {
			return nil, err
		}
		parts[k] = values
	}

	for i := 0; i < n; i++ {
		at, err := componentsTime(parts[0][i], parts[1][i], parts[2][i], parts[3][i])
		if err != nil {
			err.Source = source
			err.Row = i + 1
			return nil, err
		}
		records[i].station = stations[i]
		records[i].at = at
	}

	for c, name := range NumericColumns {
		values, err := floatColumn(source, name, df.Col(names[name]).Records())
		if err != nil {
			return nil, err
		}
		for i, v := range values {
			records[i].values[c] = v
		}
	}
	return records, nil
}

func decodeCleaned(source string, df dataframe.DataFrame, names map[string]string) ([]rawRecord, error) {
	n := df.Nrow()
	records := make([]rawRecord, n)

	stations, err := stationColumn(source, df.Col(names["station"]).Records())
	if err != nil {
		return nil, err
	}
	for i, s := range df.Col(names["datetime"]).Records() {
		at, err := parseDatetime(s)
		if err != nil {
			return nil, &models.ParseError{Source: source, Row: i + 1, Field: "datetime", Value: s, Err: err}
		}
		records[i].station = stations[i]
		records[i].at = at
		for c := range records[i].values {
			records[i].values[c] = math.NaN()
		}
	}

	// columns other than the projected ones are optional here
	for c, name := range NumericColumns {
		col, ok := names[name]
		if !ok {
			continue
		}
		values, err := floatColumn(source, name, df.Col(col).Records())
		if err != nil {
			return nil, err
		}
		for i, v := range values {
			records[i].values[c] = v
		}
	}
	return records, nil
}

// isNull reports whether a cell is missing. gota renders null cells as "NaN".
func isNull(s string) bool {
	s = strings.TrimSpace(s)
	for _, v := range nullValues {
		if s == v {
			return true
		}
	}
	return false
}

// floatColumn parses a measurement column. Nulls become NaN; any other value
// that is not a finite number is a ParseError.
func floatColumn(source, field string, values []string) ([]float64, error) {
	out := make([]float64, len(values))
	for i, s := range values {
		if isNull(s) {
			out[i] = math.NaN()
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err == nil && (math.IsInf(v, 0) || math.IsNaN(v)) {
			err = fmt.Errorf("not a finite number")
		}
		if err != nil {
			return nil, &models.ParseError{Source: source, Row: i + 1, Field: field, Value: s, Err: err}
		}
		out[i] = v
	}
	return out, nil
}

func stationColumn(source string, values []string) ([]string, error) {
	for i, s := range values {
		if isNull(s) {
			return nil, &models.ParseError{Source: source, Row: i + 1, Field: "station", Value: s,
				Err: fmt.Errorf("station is missing")}
		}
	}
	return values, nil
}

func intColumn(source, field string, values []string) ([]int, error) {
	out := make([]int, len(values))
	for i, s := range values {
		v, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			// accept integral floats such as "2013.0"
			f, ferr := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if ferr != nil || f != math.Trunc(f) || math.IsNaN(f) {
				return nil, &models.ParseError{Source: source, Row: i + 1, Field: field, Value: s, Err: err}
			}
			v = int(f)
		}
		out[i] = v
	}
	return out, nil
}

// componentsTime builds the UTC moment for the given calendar fields, rejecting
// values that time.Date would otherwise normalise.
func componentsTime(year, month, day, hour int) (time.Time, *models.ParseError) {
	if month < 1 || month > 12 {
		return time.Time{}, &models.ParseError{Field: "month", Value: strconv.Itoa(month), Err: fmt.Errorf("must be in 1..12")}
	}
	last := time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if day < 1 || day > last {
		return time.Time{}, &models.ParseError{Field: "day", Value: strconv.Itoa(day), Err: fmt.Errorf("must be in 1..%d", last)}
	}
	if hour < 0 || hour > 23 {
		return time.Time{}, &models.ParseError{Field: "hour", Value: strconv.Itoa(hour), Err: fmt.Errorf("must be in 0..23")}
	}
	return time.Date(year, time.Month(month), day, hour, 0, 0, 0, time.UTC), nil
}

func parseDatetime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range datetimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised datetime layout")
}
