// Package output provides utilities for formatting and displaying amortization schedules.
package output

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/iwvelando/emi-calculator/pkg/amortization"
	"github.com/iwvelando/emi-calculator/pkg/format"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// CsvHeader lists the CSV columns in order.
var CsvHeader = []string{
	"period",
	"remaining balance",
	"principal",
	"interest",
	"gst on interest",
	"processing fee",
	"gst on processing fee",
	"total payment",
}

// PrettyFormat outputs a human-readable rather than machine-readable table.
func PrettyFormat(w io.Writer, schedule *amortization.Schedule, opts format.Options) error {
	p := message.NewPrinter(language.English)
	money := func(v float64) string { return format.Currency(v, opts) }
	totals := schedule.Totals
	in := schedule.Input

	lines := []struct {
		label string
		value string
	}{
		{"Loan amount", money(in.Principal)},
		{"Interest rate", p.Sprintf("%.2f%% p.a.", in.AnnualRatePercent)},
		{"Tenure", p.Sprintf("%d months", in.TenureMonths)},
		{"Monthly EMI", money(schedule.MonthlyPayment)},
		{"Total amount paid", money(totals.TotalAmountPaid)},
		{"Total interest", money(totals.TotalInterest)},
		{"Total GST", money(totals.TotalTaxPaid)},
		{"Processing fee incl. GST", money(totals.TotalFeeWithTax)},
		{"Total extra cost", money(totals.TotalExtraCost)},
	}

	if _, err := p.Fprintf(w, "--- EMI schedule ---\n"); err != nil {
		return err
	}
	for _, line := range lines {
		if _, err := p.Fprintf(w, "%-26s %s\n", line.label+":", line.value); err != nil {
			return err
		}
	}

	row := "%-6s | %15s | %15s | %15s | %15s | %15s | %15s\n"
	if _, err := p.Fprintf(w, "\n"+row, "Month", "Balance", "Principal", "Interest", "GST", "Fees", "Total"); err != nil {
		return err
	}
	if _, err := p.Fprintf(w, row, "_____", "_______", "_________", "________", "___", "____", "_____"); err != nil {
		return err
	}
	for _, period := range schedule.Periods {
		_, err := p.Fprintf(w, row,
			strconv.Itoa(period.Index),
			money(period.RemainingBalance),
			money(period.Principal),
			money(period.Interest),
			money(period.InterestTax),
			money(period.Fee+period.FeeTax),
			money(period.TotalPayment),
		)
		if err != nil {
			return err
		}
	}

	columns := schedule.ColumnTotals()
	_, err := p.Fprintf(w, row,
		"Total",
		"-",
		money(columns.Principal),
		money(columns.Interest),
		money(columns.Tax),
		money(columns.Fee+columns.FeeTax),
		money(columns.TotalPayment),
	)
	return err
}

// CsvFormat outputs in comma-separated value format with full precision.
func CsvFormat(w io.Writer, schedule *amortization.Schedule) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(CsvHeader); err != nil {
		return err
	}
	for _, period := range schedule.Periods {
		record := []string{
			strconv.Itoa(period.Index),
			formatFloat(period.RemainingBalance),
			formatFloat(period.Principal),
			formatFloat(period.Interest),
			formatFloat(period.InterestTax),
			formatFloat(period.Fee),
			formatFloat(period.FeeTax),
			formatFloat(period.TotalPayment),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// CsvString returns the CSV rendering of a schedule.
func CsvString(schedule *amortization.Schedule) string {
	var buf bytes.Buffer
	if err := CsvFormat(&buf, schedule); err != nil {
		return ""
	}
	return buf.String()
}

// Document is the JSON shape of a rendered schedule.
type Document struct {
	*amortization.Schedule
	ColumnTotals amortization.ColumnTotals `json:"columnTotals"`
}

// JSONFormat outputs the schedule, its totals, and the column totals as JSON.
func JSONFormat(w io.Writer, schedule *amortization.Schedule) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(Document{Schedule: schedule, ColumnTotals: schedule.ColumnTotals()}); err != nil {
		return fmt.Errorf("failed to encode schedule: %w", err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
