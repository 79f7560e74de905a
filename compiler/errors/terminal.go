package errors

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

var (
	infoColor    = color.New(color.FgBlue, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	fatalColor   = color.New(color.FgRed, color.Bold, color.Underline)
	locColor     = color.New(color.FgCyan)
	hintColor    = color.New(color.FgCyan, color.Bold)
	dimColor     = color.New(color.FgHiBlack)
)

// FormatForTerminal formats a CompilerError for terminal output. Colors are
// dropped automatically when stdout is not a terminal.
func (e CompilerError) FormatForTerminal() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%s[%s]: %s\n",
		severityColor(e.Severity).Sprint(capitalize(e.Severity.String())),
		e.Code,
		e.Message))

	sb.WriteString(fmt.Sprintf("  %s %s\n", locColor.Sprint("-->"), e.Location.String()))

	if e.Suggestion != nil {
		sb.WriteString(fmt.Sprintf("  %s %s\n", hintColor.Sprint("help:"), e.Suggestion.Description))
		if len(e.Suggestion.Candidates) > 0 {
			sb.WriteString(fmt.Sprintf("        %s\n",
				dimColor.Sprint("did you mean: "+strings.Join(e.Suggestion.Candidates, ", "))))
		}
	}

	for i, related := range e.RelatedErrors {
		if i == 0 {
			sb.WriteString("  related:\n")
		}
		sb.WriteString(fmt.Sprintf("    %d. %s: %s\n", i+1, related.Location.String(), related.Message))
	}

	return sb.String()
}

func severityColor(severity Severity) *color.Color {
	switch severity {
	case Info:
		return infoColor
	case Warning:
		return warningColor
	case Fatal:
		return fatalColor
	default:
		return errorColor
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// FormatSummary formats a summary of errors and warnings
func FormatSummary(errorCount, warningCount int) string {
	var parts []string

	if errorCount > 0 {
		parts = append(parts, errorColor.Sprintf("%d error(s)", errorCount))
	}
	if warningCount > 0 {
		parts = append(parts, warningColor.Sprintf("%d warning(s)", warningCount))
	}

	if len(parts) == 0 {
		return infoColor.Sprint("No errors or warnings") + "\n"
	}

	verb := "Compiled with"
	if errorCount > 0 {
		verb = "Compilation produced"
	}
	return fmt.Sprintf("\n%s %s\n", verb, strings.Join(parts, " and "))
}
