package prediction

import (
	"math"
	"sort"

	"github.com/PratikDhanave/next-action-service/internal/models"
)

// Rank turns transition counts into a probability distribution.
//
// Probabilities are percentages of the total rounded half-to-even to two
// decimals. The
// order is frequency descending, then next action ascending, so equal
// frequencies always come out in the same order.
func Rank(counts []models.TransitionCount) (total int64, seqs []models.Sequence) {
	for _, c := range counts {
		if c.Count > 0 {
			total += c.Count
		}
	}
	if total == 0 {
		return 0, nil
	}

	seqs = make([]models.Sequence, 0, len(counts))
	for _, c := range counts {
		if c.Count <= 0 {
			continue
		}
		seqs = append(seqs, models.Sequence{
			NextAction:  c.NextAction,
			Frequency:   c.Count,
			Probability: round2(float64(c.Count) / float64(total) * 100),
		})
	}

	sort.Slice(seqs, func(i, j int) bool {
		if seqs[i].Frequency != seqs[j].Frequency {
			return seqs[i].Frequency > seqs[j].Frequency
		}
		return seqs[i].NextAction < seqs[j].NextAction
	})
	return total, seqs
}

func round2(v float64) float64 {
	return math.RoundToEven(v*100) / 100
}
