package ledger

import "github.com/dennisdiepolder/monti/softphone/internal/types"

// Compute aggregates records. Rates and averages are 0 for an empty set.
func Compute(records []types.CallRecord) types.Analytics {
	a := types.Analytics{
		ByOutcome:     make(map[types.Outcome]int),
		ByDisposition: make(map[types.Disposition]int),
	}

	var totalDuration int64
	for _, rec := range records {
		a.TotalCalls++
		if rec.Outcome == types.OutcomeAnswered {
			a.AnsweredCalls++
		}
		totalDuration += rec.Duration
		a.ByOutcome[rec.Outcome]++
		a.ByDisposition[rec.Disposition]++
	}

	if a.TotalCalls > 0 {
		a.AnswerRate = float64(a.AnsweredCalls) / float64(a.TotalCalls)
		a.AvgDuration = float64(totalDuration) / float64(a.TotalCalls)
	}
	return a
}
