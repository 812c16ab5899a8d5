// Package validation provides common validation utilities.
package validation

import (
	"fmt"
	"strings"

	"github.com/iwvelando/emi-calculator/pkg/constants"
)

// OutputFormats lists every supported output format.
var OutputFormats = []string{
	constants.OutputFormatPretty,
	constants.OutputFormatCSV,
	constants.OutputFormatJSON,
	constants.OutputFormatXLSX,
	constants.OutputFormatPDF,
}

// ValidateOutputFormat checks if the output format is one of the supported formats.
func ValidateOutputFormat(format string) error {
	for _, supported := range OutputFormats {
		if format == supported {
			return nil
		}
	}
	return fmt.Errorf("expected output format of %s, got %s", strings.Join(OutputFormats, ", "), format)
}

// IsBinaryFormat reports whether the format must be written to a file.
func IsBinaryFormat(format string) bool {
	return format == constants.OutputFormatXLSX || format == constants.OutputFormatPDF
}

// ValidateGrouping checks a digit grouping name.
func ValidateGrouping(grouping string) error {
	if grouping != constants.GroupingIndian && grouping != constants.GroupingWestern {
		return fmt.Errorf("expected grouping of %s or %s, got %s",
			constants.GroupingIndian, constants.GroupingWestern, grouping)
	}
	return nil
}
