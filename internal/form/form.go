// Package form turns the calculator's six text fields into a calculation
// input. Malformed text is reported, never silently read as zero.
package form

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/iwvelando/emi-calculator/pkg/amortization"
)

// Field names as they appear in forms, query strings and the interactive
// session.
const (
	FieldPrincipal         = "principal"
	FieldRate              = "rate"
	FieldTenure            = "tenure"
	FieldGSTRate           = "gstRate"
	FieldProcessingFee     = "processingFee"
	FieldProcessingGSTRate = "processingGstRate"
)

// Fields lists every field in display order.
var Fields = []string{
	FieldPrincipal,
	FieldRate,
	FieldTenure,
	FieldGSTRate,
	FieldProcessingFee,
	FieldProcessingGSTRate,
}

var required = map[string]bool{
	FieldPrincipal: true,
	FieldRate:      true,
	FieldTenure:    true,
}

// Labels are the captions shown next to each field.
var Labels = map[string]string{
	FieldPrincipal:         "Loan amount",
	FieldRate:              "Interest rate (% p.a.)",
	FieldTenure:            "Tenure (months)",
	FieldGSTRate:           "GST on interest (%)",
	FieldProcessingFee:     "Processing fee",
	FieldProcessingGSTRate: "GST on processing fee (%)",
}

// Values maps field names to raw text.
type Values map[string]string

// FieldProblem describes one field that could not be parsed.
type FieldProblem struct {
	Field   string `json:"field"`
	Text    string `json:"text"`
	Message string `json:"message"`
}

// ParseError lists every field that could not be parsed.
type ParseError struct {
	Problems []FieldProblem
}

func (e *ParseError) Error() string {
	parts := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		parts = append(parts, fmt.Sprintf("%s: %s", p.Field, p.Message))
	}
	return "invalid form values: " + strings.Join(parts, "; ")
}

// FieldNames returns the names of the fields that failed to parse.
func (e *ParseError) FieldNames() []string {
	names := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		names = append(names, p.Field)
	}
	return names
}

// IsField reports whether name is one of the calculator's fields.
func IsField(name string) bool {
	_, ok := Labels[name]
	return ok
}

// Parse converts raw text into an input. Optional fields left blank are
// zero; blank required fields and unparseable numbers are errors. The
// returned input has not been range-checked; amortization.Validate does that.
func Parse(values Values) (amortization.Input, error) {
	var in amortization.Input
	var problems []FieldProblem

	number := func(field string) float64 {
		text := strings.TrimSpace(values[field])
		if text == "" {
			if required[field] {
				problems = append(problems, FieldProblem{Field: field, Text: text, Message: "is required"})
			}
			return 0
		}
		v, err := strconv.ParseFloat(strings.ReplaceAll(text, ",", ""), 64)
		if err != nil {
			problems = append(problems, FieldProblem{Field: field, Text: text, Message: "is not a number"})
			return 0
		}
		return v
	}

	in.Principal = number(FieldPrincipal)
	in.AnnualRatePercent = number(FieldRate)

	tenureText := strings.TrimSpace(values[FieldTenure])
	if tenureText == "" {
		problems = append(problems, FieldProblem{Field: FieldTenure, Text: tenureText, Message: "is required"})
	} else if tenure, err := strconv.Atoi(tenureText); err != nil {
		problems = append(problems, FieldProblem{Field: FieldTenure, Text: tenureText, Message: "is not a whole number of months"})
	} else {
		in.TenureMonths = tenure
	}

	in.GSTOnInterestPercent = number(FieldGSTRate)
	in.ProcessingFee = number(FieldProcessingFee)
	in.GSTOnProcessingPercent = number(FieldProcessingGSTRate)

	if len(problems) > 0 {
		return amortization.Input{}, &ParseError{Problems: problems}
	}
	return in, nil
}

// ParseAndValidate parses values and checks the calculation preconditions.
func ParseAndValidate(values Values) (amortization.Input, error) {
	in, err := Parse(values)
	if err != nil {
		return in, err
	}
	if err := amortization.Validate(in); err != nil {
		return amortization.Input{}, err
	}
	return in, nil
}

var inputFields = map[string]string{
	amortization.FieldPrincipal:         FieldPrincipal,
	amortization.FieldAnnualRatePercent: FieldRate,
	amortization.FieldTenureMonths:      FieldTenure,
	amortization.FieldGSTOnInterest:     FieldGSTRate,
	amortization.FieldProcessingFee:     FieldProcessingFee,
	amortization.FieldGSTOnProcessing:   FieldProcessingGSTRate,
}

// FieldForInput maps an amortization field name to its form field.
func FieldForInput(name string) string {
	if field, ok := inputFields[name]; ok {
		return field
	}
	return name
}

// FromInput renders an input back into field text.
func FromInput(in amortization.Input) Values {
	return Values{
		FieldPrincipal:         formatNumber(in.Principal),
		FieldRate:              formatNumber(in.AnnualRatePercent),
		FieldTenure:            strconv.Itoa(in.TenureMonths),
		FieldGSTRate:           formatNumber(in.GSTOnInterestPercent),
		FieldProcessingFee:     formatNumber(in.ProcessingFee),
		FieldProcessingGSTRate: formatNumber(in.GSTOnProcessingPercent),
	}
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
