package export

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/iwvelando/emi-calculator/pkg/amortization"
)

const (
	summarySheet = "summary"
	periodsSheet = "periods"
)

// BuildScheduleXLSX renders a workbook with a summary sheet and one row per
// period. Cells hold unrounded values.
func BuildScheduleXLSX(schedule *amortization.Schedule) ([]byte, error) {
	if schedule == nil {
		return nil, fmt.Errorf("export: nil schedule")
	}

	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, fmt.Errorf("export: rename sheet: %w", err)
	}
	if _, err := f.NewSheet(periodsSheet); err != nil {
		return nil, fmt.Errorf("export: add sheet: %w", err)
	}

	in := schedule.Input
	totals := schedule.Totals
	summary := [][]interface{}{
		{"EMI Schedule"},
		{},
		{"Loan amount", in.Principal},
		{"Annual interest rate (%)", in.AnnualRatePercent},
		{"Tenure (months)", in.TenureMonths},
		{"GST on interest (%)", in.GSTOnInterestPercent},
		{"Processing fee", in.ProcessingFee},
		{"GST on processing fee (%)", in.GSTOnProcessingPercent},
		{"Monthly EMI", schedule.MonthlyPayment},
		{"Total amount paid", totals.TotalAmountPaid},
		{"Total interest", totals.TotalInterest},
		{"Total GST", totals.TotalTaxPaid},
		{"Processing fee incl. GST", totals.TotalFeeWithTax},
		{"Total extra cost", totals.TotalExtraCost},
	}
	for i, row := range summary {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return nil, fmt.Errorf("export: write summary: %w", err)
		}
	}

	header := []interface{}{"Period", "Remaining balance", "Principal", "Interest", "GST on interest", "Processing fee", "GST on processing fee", "Total payment"}
	if err := f.SetSheetRow(periodsSheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("export: write header: %w", err)
	}
	for i, period := range schedule.Periods {
		row := []interface{}{
			period.Index,
			period.RemainingBalance,
			period.Principal,
			period.Interest,
			period.InterestTax,
			period.Fee,
			period.FeeTax,
			period.TotalPayment,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(periodsSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("export: write period %d: %w", period.Index, err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("export: render xlsx: %w", err)
	}
	return buf.Bytes(), nil
}
