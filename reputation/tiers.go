package reputation

// Tier quotas in wei. The bands are closed and non-overlapping; every clamped
// score maps to exactly one tier.
const (
	Tier1QuotaWei int64 = 5_000_000_000_000_000  // 0.005
	Tier2QuotaWei int64 = 10_000_000_000_000_000 // 0.01
	Tier3QuotaWei int64 = 15_000_000_000_000_000 // 0.015
	Tier4QuotaWei int64 = 20_000_000_000_000_000 // 0.02
)

// Resolve maps a score to its tier and daily quota. Scores outside [0,100]
// are clamped first; a defective scorer must not crash quota derivation.
func Resolve(score int) (tier int, quotaWei int64) {
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	switch {
	case score >= 81:
		return 4, Tier4QuotaWei
	case score >= 51:
		return 3, Tier3QuotaWei
	case score >= 21:
		return 2, Tier2QuotaWei
	default:
		return 1, Tier1QuotaWei
	}
}
