package quality

import "time"

// Weights are the relative penalties of the composite score. Only ratios
// between them matter; they are normalized by their sum.
type Weights struct {
	Invalid   float64
	Duplicate float64
	Nulls     float64
}

// DefaultWeights mirror the destination contract's documented defaults.
func DefaultWeights() Weights {
	return Weights{Invalid: 40, Duplicate: 30, Nulls: 30}
}

// Counts are the row tallies of one run, all over the same input set.
// Valid + Invalid == Total always holds; Duplicate is independent.
type Counts struct {
	Total     int
	Valid     int
	Invalid   int
	Duplicate int
}

// Score computes the composite quality score in [0, 100].
//
//	score = 100 - (wi*invalidRatio + wd*dupRatio + wn*nullPct/100) * 100 / (wi+wd+wn)
//
// It is strictly decreasing in each defect ratio while the others are held
// fixed, and equals 100 exactly when all three are zero. An empty input
// (Total == 0) has no defects and scores 100.
func Score(c Counts, nullPct float64, w Weights) float64 {
	sum := w.Invalid + w.Duplicate + w.Nulls
	if sum <= 0 {
		w = DefaultWeights()
		sum = w.Invalid + w.Duplicate + w.Nulls
	}
	var invalidRatio, dupRatio float64
	if c.Total > 0 {
		invalidRatio = float64(c.Invalid) / float64(c.Total)
		dupRatio = float64(c.Duplicate) / float64(c.Total)
	}
	penalty := (w.Invalid*invalidRatio + w.Duplicate*dupRatio + w.Nulls*nullPct/100) * 100 / sum
	score := 100 - penalty
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// NullPercentage returns nulls/cells*100, or 0 for an empty table.
func NullPercentage(nulls, cells int) float64 {
	if cells == 0 {
		return 0
	}
	return float64(nulls) / float64(cells) * 100
}

// Transformation paths recorded in the run report.
const (
	PathSpecific = "specific"
	PathDefault  = "default"
)

// RunReport is the per-run quality record appended to the
// data_quality_metrics table.
type RunReport struct {
	TableName          string
	TransformationType string // PathSpecific or PathDefault
	TotalRecords       int
	ValidRecords       int
	InvalidRecords     int
	DuplicateRecords   int
	NullPercentage     float64
	QualityScore       float64
	ExecutionTimestamp time.Time
}
