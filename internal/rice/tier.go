package rice

import "github.com/jonathan/process-pipelines/internal/types"

// Tier partitions a ranked list into thirds: the top third is high, the middle
// third medium and the rest low. A feature scoring the same as the one ranked
// above it shares that feature's tier, so a boundary never splits equal scores.
// Features listed in promoted are placed in the high tier whatever their score.
func Tier(ranked []types.RankedFeature, promoted map[string]bool) []types.TieredFeature {
	n := len(ranked)
	tiered := make([]types.TieredFeature, 0, n)
	prev := ""
	for i, rf := range ranked {
		tier := tierForIndex(i, n)
		if i > 0 && rf.Score == ranked[i-1].Score {
			tier = prev
		}
		prev = tier

		tf := types.TieredFeature{RankedFeature: rf, Tier: tier}
		if promoted[rf.ID] && tf.Tier != types.TierHigh {
			tf.Tier = types.TierHigh
			tf.Promoted = true
		}
		tiered = append(tiered, tf)
	}
	return tiered
}

func tierForIndex(i, n int) string {
	switch (i * 3) / n {
	case 0:
		return types.TierHigh
	case 1:
		return types.TierMedium
	default:
		return types.TierLow
	}
}

// CountTiers returns how many features landed in each tier.
func CountTiers(tiered []types.TieredFeature) map[string]int {
	counts := map[string]int{types.TierHigh: 0, types.TierMedium: 0, types.TierLow: 0}
	for _, tf := range tiered {
		counts[tf.Tier]++
	}
	return counts
}
