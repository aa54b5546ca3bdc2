package settings

// DB config keys and defaults for the points economy.
const (
	// TierThresholdsKeyFmt names the per-club status tier thresholds,
	// formatted with the club id.
	TierThresholdsKeyFmt = "CLUB_%d_TIER_THRESHOLDS"
	// DiscountTableKeyFmt names the per-club discount ladder in basis
	// points, formatted with the club id.
	DiscountTableKeyFmt = "CLUB_%d_DISCOUNT_TABLE"
	// SweepIntervalSecondsKey controls how often the background sweeper
	// evaluates campaign deadlines and stale pending transactions.
	SweepIntervalSecondsKey = "SWEEP_INTERVAL_SECONDS"
	// StalePendingMinutesKey controls how old a pending card transaction
	// must be before the sweeper marks it abandoned.
	StalePendingMinutesKey = "STALE_PENDING_MINUTES"
	// DefaultSweepIntervalSeconds is the fallback sweep interval.
	DefaultSweepIntervalSeconds = 60
	// DefaultStalePendingMinutes is the fallback abandonment age.
	DefaultStalePendingMinutes = 30
)
