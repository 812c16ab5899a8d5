// Package testutil provides common fixtures and lookups for testing.
package testutil

import (
	"github.com/iwvelando/emi-calculator/pkg/amortization"
	"github.com/iwvelando/emi-calculator/pkg/constants"
)

// DefaultInput returns the calculator's default form values as an input.
func DefaultInput() amortization.Input {
	return amortization.Input{
		Principal:              constants.DefaultPrincipal,
		AnnualRatePercent:      constants.DefaultAnnualRatePercent,
		TenureMonths:           constants.DefaultTenureMonths,
		GSTOnInterestPercent:   constants.DefaultGSTOnInterestPercent,
		ProcessingFee:          constants.DefaultProcessingFee,
		GSTOnProcessingPercent: constants.DefaultGSTOnProcessingPercent,
	}
}

// ScenarioInput returns a 16% one-year loan with a small processing fee.
func ScenarioInput() amortization.Input {
	return amortization.Input{
		Principal:              100000,
		AnnualRatePercent:      16,
		TenureMonths:           12,
		GSTOnInterestPercent:   18,
		ProcessingFee:          299,
		GSTOnProcessingPercent: 18,
	}
}

// FindPeriod finds a period by its 1-based index.
// Returns a pointer to the period if found, nil otherwise.
func FindPeriod(schedule *amortization.Schedule, index int) *amortization.Period {
	if schedule == nil {
		return nil
	}
	for i := range schedule.Periods {
		if schedule.Periods[i].Index == index {
			return &schedule.Periods[i]
		}
	}
	return nil
}
