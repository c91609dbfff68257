// Package settle implements the pure settlement computations of the engine:
// dice classification, pool equalization, and payout allocation. Nothing in
// this package performs I/O or mutates its inputs; the round manager applies
// the returned refund and payout lists.
package settle

import "github.com/oddsworks/bigsmall/internal/domain"

const (
	// MinDie and MaxDie bound a single die value.
	MinDie = 1
	MaxDie = 6

	// smallMaxPips is the highest three-die total classified as small.
	// Totals range 3..18; 3..10 pays small, 11..18 pays big.
	smallMaxPips = 10
)

// ValidDie reports whether d is a legal die value.
func ValidDie(d int) bool {
	return d >= MinDie && d <= MaxDie
}

// Classify sums the three dice and maps the total onto an outcome class.
func Classify(d1, d2, d3 int) (totalPips int, result domain.Result) {
	totalPips = d1 + d2 + d3
	if totalPips <= smallMaxPips {
		return totalPips, domain.ResultSmall
	}
	return totalPips, domain.ResultBig
}
