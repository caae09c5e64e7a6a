package hypothesis

import (
	"sort"

	"github.com/rankpulse/diagnose-cli/internal/model"
)

// Rank orders hypotheses by confidence, then static priority tier, then
// catalog declaration order, and assigns 1-based ranks. Fully deterministic:
// identical inputs always produce identical ordering.
func Rank(hypotheses []model.Hypothesis) []model.Hypothesis {
	sort.SliceStable(hypotheses, func(i, j int) bool {
		hi, hj := hypotheses[i], hypotheses[j]
		if hi.Confidence != hj.Confidence {
			return hi.Confidence.AtLeast(hj.Confidence)
		}
		pi, pj := PriorityFor(hi.Key), PriorityFor(hj.Key)
		if pi != pj {
			return pi.Tier() < pj.Tier()
		}
		return catalogIndex[hi.Key] < catalogIndex[hj.Key]
	})
	for i := range hypotheses {
		hypotheses[i].Rank = i + 1
	}
	return hypotheses
}
