package tracker

import (
	"errors"
	"fmt"
	"time"
)

// Defaults for the engine configuration. Precision 8 gives bucket cells
// of roughly 38 m edge length, comfortably larger than the 10 m default
// threshold, so a point's own cell plus its eight neighbors always cover
// the full threshold radius.
const (
	DefaultPrecision       = 8
	DefaultThresholdMeters = 10.0
	DefaultTimeWindow      = 60 * time.Second
	DefaultRelaxRatio      = 1.2
	DefaultHistoryCapacity = 20
)

// Config carries the process-start constants of the engine.
type Config struct {
	// Precision is the geohash code length and fixes the bucket size.
	Precision int
	// ThresholdMeters is the default encounter distance.
	ThresholdMeters float64
	// TimeWindow is the default recency window for candidates.
	TimeWindow time.Duration
	// RelaxRatio loosens the approximate-distance stage so that
	// approximation error does not drop true hits before the exact
	// check. Must be >= 1; the default 1.2 makes false negatives
	// statistically negligible. Tightening it to exactly 1.0 trades
	// that margin away and is almost never what you want.
	RelaxRatio float64
	// HistoryCapacity is the per-agent ring buffer size.
	HistoryCapacity int
}

// DefaultConfig returns the stock engine configuration.
func DefaultConfig() Config {
	return Config{
		Precision:       DefaultPrecision,
		ThresholdMeters: DefaultThresholdMeters,
		TimeWindow:      DefaultTimeWindow,
		RelaxRatio:      DefaultRelaxRatio,
		HistoryCapacity: DefaultHistoryCapacity,
	}
}

// Validate rejects configurations the engine cannot run with. A zero
// precision would produce empty bucket codes with no neighbors, so it is
// refused here rather than surfacing as empty-string lookups later.
func (c Config) Validate() error {
	if c.Precision < 1 {
		return fmt.Errorf("precision must be >= 1, got %d", c.Precision)
	}
	if c.ThresholdMeters <= 0 {
		return fmt.Errorf("threshold must be positive, got %g", c.ThresholdMeters)
	}
	if c.TimeWindow <= 0 {
		return fmt.Errorf("time window must be positive, got %s", c.TimeWindow)
	}
	if c.RelaxRatio < 1 {
		return fmt.Errorf("relax ratio must be >= 1, got %g", c.RelaxRatio)
	}
	if c.HistoryCapacity < 1 {
		return fmt.Errorf("history capacity must be >= 1, got %d", c.HistoryCapacity)
	}
	return nil
}

// Coordinate validation errors returned by Upsert.
var (
	ErrInvalidLatitude  = errors.New("latitude out of range [-90, 90]")
	ErrInvalidLongitude = errors.New("longitude out of range [-180, 180]")
)

// ValidateCoordinates rejects out-of-range latitude or longitude. Applied
// at the Upsert boundary; past it, the codec assumes valid input.
func ValidateCoordinates(lat, lon float64) error {
	if lat < -90 || lat > 90 {
		return fmt.Errorf("%w: %g", ErrInvalidLatitude, lat)
	}
	if lon < -180 || lon > 180 {
		return fmt.Errorf("%w: %g", ErrInvalidLongitude, lon)
	}
	return nil
}
