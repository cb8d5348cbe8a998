package service

import (
	"math"

	"github.com/smallbiznis/xingyu/internal/generation/domain"
)

// Cost prices a reading in whole points, rounding up.
func Cost(basePrice, multiplier float64) (int64, error) {
	raw := basePrice * multiplier
	if math.IsNaN(raw) || math.IsInf(raw, 0) || raw <= 0 {
		return 0, domain.ErrInvalidPricing
	}
	cost := math.Ceil(raw)
	if cost > math.MaxInt32 {
		return 0, domain.ErrInvalidPricing
	}
	return int64(cost), nil
}
