// Package ui formats CLI output: error boxes with suggestions, tables and
// fuzzy "did you mean" matching.
package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// Level is the severity of a message.
type Level int

const (
	LevelError Level = iota
	LevelWarning
	LevelInfo
)

// ErrorOptions configures the error message formatting
type ErrorOptions struct {
	Level        Level
	Context      string
	Problem      string
	Suggestions  []string
	HelpCommands []string
	NoColor      bool
}

func levelColors(level Level, noColor bool) (header, body *color.Color, symbol string) {
	switch level {
	case LevelWarning:
		header, body, symbol = color.New(color.FgYellow, color.Bold), color.New(color.FgYellow), "!"
	case LevelInfo:
		header, body, symbol = color.New(color.FgCyan, color.Bold), color.New(color.FgCyan), "i"
	default:
		header, body, symbol = color.New(color.FgRed, color.Bold), color.New(color.FgRed), "✗"
	}
	if noColor {
		header.DisableColor()
		body.DisableColor()
	}
	return header, body, symbol
}

// FormatError renders a message like
//
//	✗ UNKNOWN DEVICE: watch
//	   Did you mean: md?
//
//	   → List devices: easyblocks definitions
func FormatError(opts ErrorOptions) string {
	var b strings.Builder
	header, _, symbol := levelColors(opts.Level, opts.NoColor)

	if opts.Context != "" {
		header.Fprintf(&b, "%s %s: %s\n", symbol, strings.ToUpper(opts.Context), opts.Problem)
	} else {
		header.Fprintf(&b, "%s %s\n", symbol, opts.Problem)
	}

	if len(opts.Suggestions) > 0 {
		yellow := color.New(color.FgYellow)
		if opts.NoColor {
			yellow.DisableColor()
		}
		yellow.Fprintf(&b, "   Did you mean: %s?\n", strings.Join(opts.Suggestions, ", "))
	}

	if len(opts.HelpCommands) > 0 {
		b.WriteString("\n")
		cyan := color.New(color.FgCyan)
		if opts.NoColor {
			cyan.DisableColor()
		}
		for _, cmd := range opts.HelpCommands {
			cyan.Fprintf(&b, "   → %s\n", cmd)
		}
	}
	return b.String()
}

// WriteError writes a formatted error message to the writer
func WriteError(w io.Writer, opts ErrorOptions) {
	fmt.Fprint(w, FormatError(opts))
}

// UnknownError reports a name that is not among candidates, suggesting the
// closest ones.
func UnknownError(kind, name string, candidates []string, noColor bool) string {
	return FormatError(ErrorOptions{
		Context:      "unknown " + kind,
		Problem:      name,
		Suggestions:  FindSimilar(name, candidates, 2),
		HelpCommands: []string{"List definitions: easyblocks definitions"},
		NoColor:      noColor,
	})
}

// ConfigError reports an invalid easyblocks.yml.
func ConfigError(err error, noColor bool) string {
	return FormatError(ErrorOptions{
		Context: "configuration error",
		Problem: err.Error(),
		HelpCommands: []string{
			"Create a config: easyblocks init",
			"Get help: easyblocks --help",
		},
		NoColor: noColor,
	})
}

// FormatSuccess creates a success message
func FormatSuccess(message string, noColor bool) string {
	green := color.New(color.FgGreen, color.Bold)
	if noColor {
		green.DisableColor()
	}
	return green.Sprintf("✓ %s", message)
}

// WriteSuccess writes a success message to the writer
func WriteSuccess(w io.Writer, message string, noColor bool) {
	fmt.Fprintln(w, FormatSuccess(message, noColor))
}

// Warning creates a warning line.
func Warning(message string, noColor bool) string {
	return FormatError(ErrorOptions{Level: LevelWarning, Problem: message, NoColor: noColor})
}
