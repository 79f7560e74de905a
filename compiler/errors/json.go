package errors

import (
	"encoding/json"
)

// JSONOutput is the machine readable report of a compile pass
type JSONOutput struct {
	Status   string          `json:"status"`
	Errors   []CompilerError `json:"errors"`
	Warnings []CompilerError `json:"warnings"`
	Summary  Summary         `json:"summary"`
}

// Summary contains error and warning counts
type Summary struct {
	ErrorCount   int `json:"error_count"`
	WarningCount int `json:"warning_count"`
	TotalCount   int `json:"total_count"`
}

// NewJSONOutput splits diagnostics into errors and warnings and derives the
// overall status.
func NewJSONOutput(diagnostics []CompilerError) JSONOutput {
	out := JSONOutput{
		Errors:   []CompilerError{},
		Warnings: []CompilerError{},
	}

	for _, d := range diagnostics {
		if d.IsError() {
			out.Errors = append(out.Errors, d)
		} else if d.IsWarning() {
			out.Warnings = append(out.Warnings, d)
		}
	}

	out.Status = "success"
	if len(out.Errors) > 0 {
		out.Status = "error"
	} else if len(out.Warnings) > 0 {
		out.Status = "warning"
	}

	out.Summary = Summary{
		ErrorCount:   len(out.Errors),
		WarningCount: len(out.Warnings),
		TotalCount:   len(diagnostics),
	}
	return out
}

// FormatAsJSON formats a CompilerError as indented JSON
func (e CompilerError) FormatAsJSON() (string, error) {
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// FormatErrorsAsJSON formats a list of diagnostics as an indented report
func FormatErrorsAsJSON(diagnostics []CompilerError) (string, error) {
	data, err := json.MarshalIndent(NewJSONOutput(diagnostics), "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// FormatErrorsAsJSONCompact formats a list of diagnostics on a single line
func FormatErrorsAsJSONCompact(diagnostics []CompilerError) (string, error) {
	data, err := json.Marshal(NewJSONOutput(diagnostics))
	if err != nil {
		return "", err
	}
	return string(data), nil
}
