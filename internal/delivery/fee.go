package delivery

import "fmt"

// feeTier adds an increment on top of the base fee once the distance passes
// the tier boundary. Tiers must be ordered by ascending distance so the fee
// function stays monotonic.
type feeTier struct {
	MaxKm          float64
	IncrementCents int
}

var defaultTiers = []feeTier{
	{MaxKm: 2, IncrementCents: 0},
	{MaxKm: 5, IncrementCents: 200},
	{MaxKm: 10, IncrementCents: 400},
	{MaxKm: 15, IncrementCents: 700},
}

const beyondLastTierIncrementCents = 1000

// feeForDistance maps a distance to a delivery fee: flat base fee plus the
// increment of the tier the distance falls into.
func feeForDistance(baseFeeCents int, distanceKm float64) int {
	for _, tier := range defaultTiers {
		if distanceKm <= tier.MaxKm {
			return baseFeeCents + tier.IncrementCents
		}
	}
	return baseFeeCents + beyondLastTierIncrementCents
}

// formatETA renders minutes as "H hr M min" past the hour mark, "M min"
// below it.
func formatETA(minutes int) string {
	if minutes < 1 {
		minutes = 1
	}
	if minutes < 60 {
		return fmt.Sprintf("%d min", minutes)
	}
	hours := minutes / 60
	rem := minutes % 60
	if rem == 0 {
		return fmt.Sprintf("%d hr", hours)
	}
	return fmt.Sprintf("%d hr %d min", hours, rem)
}
