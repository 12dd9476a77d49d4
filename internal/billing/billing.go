// Package billing computes parking fees from entry/exit timestamps.
// It is deliberately free of storage concerns so the arithmetic can be
// verified on its own.
package billing

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidTimeRange = errors.New("exit time precedes entry time")

// DiscountTier reduces the hourly rate for billed hours beyond
// AfterHours. Fraction is the discount, e.g. 0.25 for 25% off.
type DiscountTier struct {
	AfterHours int
	Fraction   float64
}

// Policy holds the facility billing configuration. The grace period is
// charged at BaseRate regardless of a shorter actual stay; time beyond
// it is billed in full-hour blocks at HourlyRate, adjusted by the
// discount tiers.
type Policy struct {
	GraceMinutes  int
	BaseRate      float64
	HourlyRate    float64
	DiscountTiers []DiscountTier
}

func DefaultPolicy() Policy {
	return Policy{
		GraceMinutes: 15,
		BaseRate:     5.00,
		HourlyRate:   9.00,
	}
}

// ComputeFee returns the amount owed for a stay from entry to exit,
// rounded half-up to two decimals. exit == entry yields the base fee;
// exit before entry is rejected, never clamped.
func (p Policy) ComputeFee(entry, exit time.Time) (float64, error) {
	if exit.Before(entry) {
		return 0, fmt.Errorf("%w: entry=%s exit=%s", ErrInvalidTimeRange,
			entry.Format(time.RFC3339), exit.Format(time.RFC3339))
	}

	// Elapsed time rounds up to the enclosing minute.
	elapsed := exit.Sub(entry)
	minutes := int64(math.Ceil(elapsed.Minutes()))

	if minutes <= int64(p.GraceMinutes) {
		return roundHalfUp(p.BaseRate), nil
	}

	hours := int((minutes - int64(p.GraceMinutes) + 59) / 60)

	tiers := make([]DiscountTier, len(p.DiscountTiers))
	copy(tiers, p.DiscountTiers)
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].AfterHours > tiers[j].AfterHours })

	fee := p.BaseRate
	for h := 1; h <= hours; h++ {
		rate := p.HourlyRate
		for _, tier := range tiers {
			if h > tier.AfterHours {
				rate = p.HourlyRate * (1 - tier.Fraction)
				break
			}
		}
		fee += rate
	}
	return roundHalfUp(fee), nil
}

// ParseDiscountTiers parses the BILLING_DISCOUNT_TIERS format, a
// comma-separated list of "hours:fraction" pairs, e.g. "4:0.10,8:0.25".
func ParseDiscountTiers(s string) ([]DiscountTier, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var tiers []DiscountTier
	for _, part := range strings.Split(s, ",") {
		fields := strings.SplitN(strings.TrimSpace(part), ":", 2)
		if len(fields) != 2 {
			return nil, fmt.Errorf("invalid discount tier %q, expected hours:fraction", part)
		}
		hours, err := strconv.Atoi(fields[0])
		if err != nil || hours < 0 {
			return nil, fmt.Errorf("invalid discount tier hours %q", fields[0])
		}
		fraction, err := strconv.ParseFloat(fields[1], 64)
		if err != nil || fraction < 0 || fraction > 1 {
			return nil, fmt.Errorf("invalid discount tier fraction %q", fields[1])
		}
		tiers = append(tiers, DiscountTier{AfterHours: hours, Fraction: fraction})
	}
	return tiers, nil
}

func roundHalfUp(amount float64) float64 {
	return math.Floor(amount*100+0.5) / 100
}
