package metrics

import "sort"

// Stat summarizes one metric across workers, in milliseconds.
type Stat struct {
	Count  int     `json:"count" yaml:"count"`
	Min    float64 `json:"min_ms" yaml:"min_ms"`
	Median float64 `json:"median_ms" yaml:"median_ms"`
	Mean   float64 `json:"mean_ms" yaml:"mean_ms"`
	Max    float64 `json:"max_ms" yaml:"max_ms"`
}

// Summarize computes min, median, mean and max of values.
// An empty slice yields the zero Stat.
func Summarize(values []float64) Stat {
	if len(values) == 0 {
		return Stat{}
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	return Stat{
		Count:  len(sorted),
		Min:    sorted[0],
		Median: sorted[len(sorted)/2],
		Mean:   Mean(values),
		Max:    sorted[len(sorted)-1],
	}
}

// Median returns the lower-middle element of the sorted values.
func Median(values []float64) float64 {
	return Summarize(values).Median
}

// Mean returns the arithmetic mean of values, or 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
