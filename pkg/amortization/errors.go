package amortization

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidInput is matched by errors.Is for every *InvalidInputError.
var ErrInvalidInput = errors.New("invalid calculation input")

// Input field names reported in validation failures.
const (
	FieldPrincipal         = "principal"
	FieldAnnualRatePercent = "annualRatePercent"
	FieldTenureMonths      = "tenureMonths"
	FieldGSTOnInterest     = "gstOnInterestPercent"
	FieldProcessingFee     = "processingFee"
	FieldGSTOnProcessing   = "gstOnProcessingPercent"
)

// FieldError describes one input field that failed validation.
type FieldError struct {
	Field  string  `json:"field"`
	Value  float64 `json:"value"`
	Reason string  `json:"reason"`
}

func (f FieldError) String() string {
	return fmt.Sprintf("%s %s (got %v)", f.Field, f.Reason, f.Value)
}

// InvalidInputError is returned before any period is computed when one or
// more preconditions do not hold.
type InvalidInputError struct {
	Fields []FieldError
}

func (e *InvalidInputError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, field := range e.Fields {
		parts = append(parts, field.String())
	}
	return fmt.Sprintf("%s: %s", ErrInvalidInput.Error(), strings.Join(parts, "; "))
}

// Is reports whether target is ErrInvalidInput.
func (e *InvalidInputError) Is(target error) bool {
	return target == ErrInvalidInput
}

// FieldNames returns the names of the failing fields in input order.
func (e *InvalidInputError) FieldNames() []string {
	names := make([]string, 0, len(e.Fields))
	for _, field := range e.Fields {
		names = append(names, field.Field)
	}
	return names
}

// HasField reports whether the named field failed validation.
func (e *InvalidInputError) HasField(name string) bool {
	for _, field := range e.Fields {
		if field.Field == name {
			return true
		}
	}
	return false
}
