package grading

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"
)

var two = decimal.NewFromInt(2)

// Summary describes the distribution of a set of grade totals.
type Summary struct {
	Min    decimal.Decimal
	Max    decimal.Decimal
	Mean   decimal.Decimal
	Median decimal.Decimal
	StdDev decimal.Decimal
	Count  int
}

// SummaryStatistics reduces totals into min/max/mean/median and the sample
// standard deviation. Mean, median and deviation are rounded to two places;
// min and max are exact. Empty input yields a zero summary.
func SummaryStatistics(totals []decimal.Decimal) Summary {
	if len(totals) == 0 {
		return Summary{
			Min:    decimal.Zero,
			Max:    decimal.Zero,
			Mean:   decimal.Zero,
			Median: decimal.Zero,
			StdDev: decimal.Zero,
		}
	}

	sorted := make([]decimal.Decimal, len(totals))
	copy(sorted, totals)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].LessThan(sorted[j])
	})

	count := len(sorted)
	n := decimal.NewFromInt(int64(count))
	mean := decimal.Sum(sorted[0], sorted[1:]...).Div(n)

	var median decimal.Decimal
	if count%2 == 1 {
		median = sorted[count/2]
	} else {
		median = sorted[count/2-1].Add(sorted[count/2]).Div(two)
	}

	stdDev := decimal.Zero
	if count > 1 {
		squares := decimal.Zero
		for _, value := range sorted {
			diff := value.Sub(mean)
			squares = squares.Add(diff.Mul(diff))
		}
		variance := squares.Div(decimal.NewFromInt(int64(count - 1)))
		stdDev = decimal.NewFromFloat(math.Sqrt(variance.InexactFloat64()))
	}

	return Summary{
		Min:    sorted[0],
		Max:    sorted[count-1],
		Mean:   mean.Round(2),
		Median: median.Round(2),
		StdDev: stdDev.Round(2),
		Count:  count,
	}
}
