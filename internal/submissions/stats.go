package submissions

import (
	"math"
	"sort"
)

// StatValue is a statistic together with the submission ids attaining it.
// For an even-count median that falls between two observations, IDs is
// empty.
type StatValue struct {
	Value float64
	IDs   []int
}

// Stats summarizes a set of (value, submission id) observations.
type Stats struct {
	N      int
	Min    StatValue
	Max    StatValue
	Median StatValue
	Mean   float64
	StdDev float64
	Modes  []float64
}

// Observation pairs a value with the submission it came from.
type Observation struct {
	Value float64
	ID    int
}

// ComputeStats derives min/max/median/mean/population-stddev/modes from
// the observations. Empty input yields the zero Stats (N == 0).
func ComputeStats(obs []Observation) Stats {
	if len(obs) == 0 {
		return Stats{}
	}

	sorted := make([]Observation, len(obs))
	copy(sorted, obs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Value < sorted[j].Value })

	n := len(sorted)
	stats := Stats{N: n}

	stats.Min = valueWithIDs(sorted, sorted[0].Value)
	stats.Max = valueWithIDs(sorted, sorted[n-1].Value)

	var median float64
	if n%2 == 1 {
		median = sorted[n/2].Value
	} else {
		median = (sorted[n/2-1].Value + sorted[n/2].Value) / 2
	}
	stats.Median = valueWithIDs(sorted, median)

	var sum float64
	for _, o := range sorted {
		sum += o.Value
	}
	stats.Mean = sum / float64(n)

	var sqDiff float64
	for _, o := range sorted {
		d := o.Value - stats.Mean
		sqDiff += d * d
	}
	stats.StdDev = math.Sqrt(sqDiff / float64(n))

	// Modes: every value tied for the highest frequency.
	freq := make(map[float64]int)
	best := 0
	for _, o := range sorted {
		freq[o.Value]++
		if freq[o.Value] > best {
			best = freq[o.Value]
		}
	}
	seen := make(map[float64]bool)
	for _, o := range sorted {
		if freq[o.Value] == best && !seen[o.Value] {
			stats.Modes = append(stats.Modes, o.Value)
			seen[o.Value] = true
		}
	}

	return stats
}

func valueWithIDs(sorted []Observation, value float64) StatValue {
	sv := StatValue{Value: value}
	for _, o := range sorted {
		if o.Value == value {
			sv.IDs = append(sv.IDs, o.ID)
		}
	}
	return sv
}

// GradingStats summarizes the earned scores of all submissions.
func (m *Manager) GradingStats() Stats {
	var obs []Observation
	for _, sub := range m.All() {
		earned, _, _ := sub.Grade.GetScore()
		obs = append(obs, Observation{Value: earned, ID: sub.ID})
	}
	return ComputeStats(obs)
}

// TimingStats summarizes the total grading time of all submissions, in
// seconds.
func (m *Manager) TimingStats() Stats {
	var obs []Observation
	for _, sub := range m.All() {
		obs = append(obs, Observation{Value: sub.TotalTime().Seconds(), ID: sub.ID})
	}
	return ComputeStats(obs)
}
