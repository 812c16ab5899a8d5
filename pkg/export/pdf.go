// Package export renders schedules as downloadable documents.
package export

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"github.com/iwvelando/emi-calculator/pkg/amortization"
	"github.com/iwvelando/emi-calculator/pkg/format"
)

// The core PDF fonts only cover cp1252.
var pdfSymbols = map[string]string{
	"₹": "Rs. ",
}

// BuildSchedulePDF renders a printable PDF for a schedule.
func BuildSchedulePDF(schedule *amortization.Schedule, opts format.Options) ([]byte, error) {
	if schedule == nil {
		return nil, fmt.Errorf("export: nil schedule")
	}
	if replacement, ok := pdfSymbols[opts.Symbol]; ok {
		opts.Symbol = replacement
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	money := func(v float64) string { return tr(format.Currency(v, opts)) }

	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "EMI Schedule")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)

	totals := schedule.Totals
	summary := []struct {
		label string
		value string
	}{
		{"Loan amount", money(schedule.Input.Principal)},
		{"Interest rate", fmt.Sprintf("%.2f%% p.a.", schedule.Input.AnnualRatePercent)},
		{"Tenure", fmt.Sprintf("%d months", schedule.Input.TenureMonths)},
		{"Monthly EMI", money(schedule.MonthlyPayment)},
		{"Total amount paid", money(totals.TotalAmountPaid)},
		{"Total interest", money(totals.TotalInterest)},
		{"Total GST", money(totals.TotalTaxPaid)},
		{"Processing fee incl. GST", money(totals.TotalFeeWithTax)},
		{"Total extra cost", money(totals.TotalExtraCost)},
	}
	for _, line := range summary {
		pdf.Cell(0, 6, fmt.Sprintf("%s: %s", line.label, line.value))
		pdf.Ln(5)
	}
	pdf.Ln(4)

	widths := []float64{16, 29, 29, 29, 29, 29, 29}
	headers := []string{"Month", "Balance", "Principal", "Interest", "GST", "Fees", "Total"}
	pdf.SetFont("Arial", "B", 9)
	for i, header := range headers {
		pdf.CellFormat(widths[i], 6, header, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	writeRow := func(cells []string) {
		for i, cell := range cells {
			align := "R"
			if i == 0 {
				align = "C"
			}
			pdf.CellFormat(widths[i], 6, cell, "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}
	for _, period := range schedule.Periods {
		writeRow([]string{
			strconv.Itoa(period.Index),
			money(period.RemainingBalance),
			money(period.Principal),
			money(period.Interest),
			money(period.InterestTax),
			money(period.Fee + period.FeeTax),
			money(period.TotalPayment),
		})
	}

	columns := schedule.ColumnTotals()
	pdf.SetFont("Arial", "B", 9)
	writeRow([]string{
		"Total",
		"-",
		money(columns.Principal),
		money(columns.Interest),
		money(columns.Tax),
		money(columns.Fee + columns.FeeTax),
		money(columns.TotalPayment),
	})

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("export: render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// Filename returns the download name for an export format.
func Filename(schedule *amortization.Schedule, ext string) string {
	name := fmt.Sprintf("emi-schedule-%d-months", schedule.Input.TenureMonths)
	return name + "." + strings.TrimPrefix(ext, ".")
}
