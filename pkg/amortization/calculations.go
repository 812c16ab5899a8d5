// Package amortization computes fixed-payment reducing-balance loan schedules
// with tax on interest and a one-time processing fee.
package amortization

import (
	"fmt"
	"math"

	"github.com/iwvelando/emi-calculator/pkg/constants"
	"github.com/iwvelando/emi-calculator/pkg/mathutil"
	"go.uber.org/zap"
)

// Input holds the parameters of one calculation. All rates are percentages.
type Input struct {
	Principal              float64 `json:"principal" yaml:"principal" mapstructure:"principal"`
	AnnualRatePercent      float64 `json:"annualRatePercent" yaml:"annualRatePercent" mapstructure:"annualRatePercent"`
	TenureMonths           int     `json:"tenureMonths" yaml:"tenureMonths" mapstructure:"tenureMonths"`
	GSTOnInterestPercent   float64 `json:"gstOnInterestPercent" yaml:"gstOnInterestPercent" mapstructure:"gstOnInterestPercent"`
	ProcessingFee          float64 `json:"processingFee" yaml:"processingFee" mapstructure:"processingFee"`
	GSTOnProcessingPercent float64 `json:"gstOnProcessingPercent" yaml:"gstOnProcessingPercent" mapstructure:"gstOnProcessingPercent"`
}

// Period holds the values for a given period of the schedule.
type Period struct {
	Index            int     `json:"period"`
	RemainingBalance float64 `json:"remainingBalance"`
	Principal        float64 `json:"principal"`
	Interest         float64 `json:"interest"`
	InterestTax      float64 `json:"interestTax"`
	Fee              float64 `json:"fee"`
	FeeTax           float64 `json:"feeTax"`
	TotalPayment     float64 `json:"totalPayment"`
}

// Totals summarizes a whole schedule.
type Totals struct {
	TotalPrincipal  float64 `json:"totalPrincipal"`
	TotalAmountPaid float64 `json:"totalAmountPaid"`
	TotalInterest   float64 `json:"totalInterest"`
	TotalTaxPaid    float64 `json:"totalTaxPaid"`
	TotalFeeWithTax float64 `json:"totalFeeWithTax"`
	TotalExtraCost  float64 `json:"totalExtraCost"`
}

// Schedule is the result of one calculation. It is never mutated after
// Compute returns it.
type Schedule struct {
	Input          Input    `json:"input"`
	MonthlyRate    float64  `json:"monthlyRate"`
	MonthlyPayment float64  `json:"monthlyPayment"`
	Periods        []Period `json:"periods"`
	Totals         Totals   `json:"totals"`
}

// ColumnTotals holds per-column sums used for a totals row.
type ColumnTotals struct {
	Principal    float64 `json:"principal"`
	Interest     float64 `json:"interest"`
	InterestTax  float64 `json:"interestTax"`
	Fee          float64 `json:"fee"`
	FeeTax       float64 `json:"feeTax"`
	Tax          float64 `json:"tax"`
	TotalPayment float64 `json:"totalPayment"`
}

// MonthlyRate converts an annual percentage rate into the periodic rate.
func MonthlyRate(annualRatePercent float64) float64 {
	return annualRatePercent / constants.MonthsPerYear / constants.PercentageMultiplier
}

// CalculateMonthlyPayment calculates the fixed principal-and-interest payment
// using the standard annuity formula.
func CalculateMonthlyPayment(principal, annualRatePercent float64, tenureMonths int) float64 {
	monthlyRate := MonthlyRate(annualRatePercent)
	if monthlyRate == 0 {
		return principal / float64(tenureMonths)
	}
	power := math.Pow(1+monthlyRate, float64(tenureMonths))
	return principal * monthlyRate * power / (power - 1)
}

// CalculateInterestPayment calculates the interest charged on a balance for
// one period.
func CalculateInterestPayment(balance, annualRatePercent float64) float64 {
	return balance * MonthlyRate(annualRatePercent)
}

// Validate checks the preconditions of a calculation and reports every
// failing field at once.
func Validate(in Input) error {
	var fields []FieldError
	if !positive(in.Principal) {
		fields = append(fields, FieldError{Field: FieldPrincipal, Value: in.Principal, Reason: "must be greater than zero"})
	}
	if !positive(in.AnnualRatePercent) {
		fields = append(fields, FieldError{Field: FieldAnnualRatePercent, Value: in.AnnualRatePercent, Reason: "must be greater than zero"})
	}
	if in.TenureMonths <= 0 {
		fields = append(fields, FieldError{Field: FieldTenureMonths, Value: float64(in.TenureMonths), Reason: "must be greater than zero"})
	} else if in.TenureMonths > constants.MaxTenureMonths {
		fields = append(fields, FieldError{Field: FieldTenureMonths, Value: float64(in.TenureMonths), Reason: fmt.Sprintf("must not exceed %d", constants.MaxTenureMonths)})
	}
	if !nonNegative(in.GSTOnInterestPercent) {
		fields = append(fields, FieldError{Field: FieldGSTOnInterest, Value: in.GSTOnInterestPercent, Reason: "must not be negative"})
	}
	if !nonNegative(in.ProcessingFee) {
		fields = append(fields, FieldError{Field: FieldProcessingFee, Value: in.ProcessingFee, Reason: "must not be negative"})
	}
	if !nonNegative(in.GSTOnProcessingPercent) {
		fields = append(fields, FieldError{Field: FieldGSTOnProcessing, Value: in.GSTOnProcessingPercent, Reason: "must not be negative"})
	}
	if len(fields) > 0 {
		return &InvalidInputError{Fields: fields}
	}

	// The annuity factor overflows for very high rates over long tenures.
	if payment := CalculateMonthlyPayment(in.Principal, in.AnnualRatePercent, in.TenureMonths); !finite(payment) {
		return &InvalidInputError{Fields: []FieldError{{Field: FieldAnnualRatePercent, Value: in.AnnualRatePercent, Reason: "is too high to compute a finite payment for this loan"}}}
	}
	return nil
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}

// NaN fails both comparisons.
func nonNegative(v float64) bool {
	return v >= 0 && !math.IsInf(v, 0)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Compute validates the input and produces the complete schedule.
func Compute(in Input) (*Schedule, error) {
	if err := Validate(in); err != nil {
		return nil, err
	}

	monthlyRate := MonthlyRate(in.AnnualRatePercent)
	payment := CalculateMonthlyPayment(in.Principal, in.AnnualRatePercent, in.TenureMonths)

	schedule := &Schedule{
		Input:          in,
		MonthlyRate:    monthlyRate,
		MonthlyPayment: payment,
		Periods:        make([]Period, 0, in.TenureMonths),
	}

	balance := in.Principal
	var totalPrincipal, totalInterest, totalInterestTax float64

	// Each period depends on the balance left by the previous one.
	for period := 1; period <= in.TenureMonths; period++ {
		interest := balance * monthlyRate
		interestTax := mathutil.ApplyPercentage(interest, in.GSTOnInterestPercent)
		principal := payment - interest - interestTax

		var fee, feeTax float64
		if period == 1 {
			fee = in.ProcessingFee
			feeTax = mathutil.ApplyPercentage(fee, in.GSTOnProcessingPercent)
		}

		balance -= principal
		if !finite(balance) || !finite(interestTax) {
			return nil, overflowError(in)
		}

		schedule.Periods = append(schedule.Periods, Period{
			Index:            period,
			RemainingBalance: math.Max(0, balance),
			Principal:        principal,
			Interest:         interest,
			InterestTax:      interestTax,
			Fee:              fee,
			FeeTax:           feeTax,
			TotalPayment:     principal + interest + interestTax + fee + feeTax,
		})

		totalPrincipal += principal
		totalInterest += interest
		totalInterestTax += interestTax
	}

	feeTax := mathutil.ApplyPercentage(in.ProcessingFee, in.GSTOnProcessingPercent)
	totalTaxPaid := totalInterestTax + feeTax
	if !finite(feeTax) || !finite(totalPrincipal+totalInterest+totalTaxPaid+in.ProcessingFee) {
		return nil, overflowError(in)
	}
	schedule.Totals = Totals{
		TotalPrincipal:  totalPrincipal,
		TotalAmountPaid: totalPrincipal + totalInterest + totalTaxPaid + in.ProcessingFee,
		TotalInterest:   totalInterest,
		TotalTaxPaid:    totalTaxPaid,
		TotalFeeWithTax: in.ProcessingFee + feeTax,
		TotalExtraCost:  totalInterest + totalTaxPaid + in.ProcessingFee,
	}

	return schedule, nil
}

// overflowError reports inputs whose schedule leaves the float64 range.
func overflowError(in Input) error {
	return &InvalidInputError{Fields: []FieldError{{Field: FieldPrincipal, Value: in.Principal, Reason: "is too large to compute the schedule at the given rates"}}}
}

// ColumnTotals sums every column of the schedule. Tax counts interest tax
// and fee tax exactly once each.
func (s *Schedule) ColumnTotals() ColumnTotals {
	var totals ColumnTotals
	for _, p := range s.Periods {
		totals.Principal += p.Principal
		totals.Interest += p.Interest
		totals.InterestTax += p.InterestTax
		totals.Fee += p.Fee
		totals.FeeTax += p.FeeTax
		totals.TotalPayment += p.TotalPayment
	}
	totals.Tax = totals.InterestTax + totals.FeeTax
	return totals
}

// Calculator runs calculations and logs them.
type Calculator struct {
	logger *zap.Logger
}

// NewCalculator creates a new calculator instance
func NewCalculator(logger *zap.Logger) *Calculator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Calculator{logger: logger}
}

// Compute calculates the schedule for in.
func (c *Calculator) Compute(in Input) (*Schedule, error) {
	schedule, err := Compute(in)
	if err != nil {
		c.logger.Debug("rejected calculation input",
			zap.String("op", "amortization.Compute"),
			zap.Error(err),
		)
		return nil, err
	}

	c.logger.Debug("computed amortization schedule",
		zap.String("op", "amortization.Compute"),
		zap.Float64("principal", in.Principal),
		zap.Float64("annualRatePercent", in.AnnualRatePercent),
		zap.Int("tenureMonths", in.TenureMonths),
		zap.Float64("monthlyPayment", schedule.MonthlyPayment),
		zap.Float64("totalAmountPaid", schedule.Totals.TotalAmountPaid),
	)
	return schedule, nil
}
