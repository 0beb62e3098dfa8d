package dataset

import (
	"fmt"

	"github.com/bobby-s-dev/airquality-aggregator/internal/models"
)

// Fences returns the lower and upper IQR fences (Q1 - 1.5·IQR, Q3 + 1.5·IQR).
func Fences(values []float64) (lower, upper float64) {
	q1, _, q3 := Quartiles(values)
	iqr := q3 - q1
	return q1 - 1.5*iqr, q3 + 1.5*iqr
}

// MaskOutliers drops, in place, every observation whose value for measure lies
// outside the IQR fences. The fences come from the contents before any removal.
// It must not run while the dataset is being read.
func MaskOutliers(ds *models.Dataset, measure models.Measure) (int, error) {
	if !models.IsMeasure(string(measure)) {
		return 0, fmt.Errorf("unknown measure %q", measure)
	}
	if ds.Len() == 0 {
		return 0, nil
	}

	values := make([]float64, len(ds.Observations))
	for i, o := range ds.Observations {
		values[i], _ = o.Value(measure)
	}
	lower, upper := Fences(values)

	kept := ds.Observations[:0]
	for i, o := range ds.Observations {
		if values[i] < lower || values[i] > upper {
			continue
		}
		kept = append(kept, o)
	}
	removed := len(ds.Observations) - len(kept)
	ds.Observations = kept
	return removed, nil
}
