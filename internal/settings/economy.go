package settings

import (
	"encoding/json"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/superfanlabs/fanclub/internal/discount"
	"github.com/superfanlabs/fanclub/internal/status"
)

// TierThresholdsKey returns the settings key for a club's thresholds.
func TierThresholdsKey(clubID uint64) string {
	return fmt.Sprintf(TierThresholdsKeyFmt, clubID)
}

// DiscountTableKey returns the settings key for a club's discount ladder.
func DiscountTableKey(clubID uint64) string {
	return fmt.Sprintf(DiscountTableKeyFmt, clubID)
}

// TierThresholdsFor returns the club's configured status thresholds, or
// the stock ladder when the club has none or the stored value is
// invalid. A bad stored value is logged and ignored rather than taking
// status computation down with it.
func TierThresholdsFor(clubID uint64) status.Thresholds {
	raw, ok := DBConfigValue(TierThresholdsKey(clubID))
	if !ok || len(raw) == 0 {
		return status.DefaultThresholds()
	}

	var thresholds status.Thresholds
	if errDecode := json.Unmarshal(raw, &thresholds); errDecode != nil {
		log.WithField("club_id", clubID).WithError(errDecode).
			Warn("settings: malformed tier thresholds, using defaults")
		return status.DefaultThresholds()
	}
	if errValidate := thresholds.Validate(); errValidate != nil {
		log.WithField("club_id", clubID).WithError(errValidate).
			Warn("settings: invalid tier thresholds, using defaults")
		return status.DefaultThresholds()
	}
	return thresholds
}

// DiscountTableFor returns the club's configured discount ladder, or the
// stock ladder when unset or invalid.
func DiscountTableFor(clubID uint64) discount.Table {
	raw, ok := DBConfigValue(DiscountTableKey(clubID))
	if !ok || len(raw) == 0 {
		return discount.DefaultTable()
	}

	var table discount.Table
	if errDecode := json.Unmarshal(raw, &table); errDecode != nil {
		log.WithField("club_id", clubID).WithError(errDecode).
			Warn("settings: malformed discount table, using defaults")
		return discount.DefaultTable()
	}
	if errValidate := table.Validate(); errValidate != nil {
		log.WithField("club_id", clubID).WithError(errValidate).
			Warn("settings: invalid discount table, using defaults")
		return discount.DefaultTable()
	}
	return table
}

// SweepInterval returns the configured sweep interval.
func SweepInterval() time.Duration {
	return time.Duration(intValue(SweepIntervalSecondsKey, DefaultSweepIntervalSeconds)) * time.Second
}

// StalePendingAge returns how old a pending card transaction must be
// before the sweeper treats it as abandoned.
func StalePendingAge() time.Duration {
	return time.Duration(intValue(StalePendingMinutesKey, DefaultStalePendingMinutes)) * time.Minute
}

// intValue decodes a positive integer setting with a fallback.
func intValue(key string, fallback int64) int64 {
	raw, ok := DBConfigValue(key)
	if !ok || len(raw) == 0 {
		return fallback
	}
	var value int64
	if errDecode := json.Unmarshal(raw, &value); errDecode != nil || value <= 0 {
		return fallback
	}
	return value
}
