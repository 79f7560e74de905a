package errors

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Severity represents the severity level of a diagnostic
type Severity int

const (
	Info Severity = iota
	Warning
	Error
	Fatal
)

// String returns the string representation of the severity
func (s Severity) String() string {
	switch s {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// MarshalJSON implements json.Marshaler for Severity
func (s Severity) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler for Severity
func (s *Severity) UnmarshalJSON(data []byte) error {
	str := strings.Trim(string(data), `"`)

	switch str {
	case "info":
		*s = Info
	case "warning":
		*s = Warning
	case "error":
		*s = Error
	case "fatal":
		*s = Fatal
	default:
		*s = Error
	}
	return nil
}

// ConfigLocation points at the node of a component config tree a diagnostic
// belongs to.
type ConfigLocation struct {
	ConfigID string `json:"configId,omitempty"`
	Path     string `json:"path,omitempty"`
	Template string `json:"template,omitempty"`
	Prop     string `json:"prop,omitempty"`
}

// String renders the location as path[#id] (template).prop
func (l ConfigLocation) String() string {
	var sb strings.Builder
	if l.Path != "" {
		sb.WriteString(l.Path)
	} else {
		sb.WriteString("<root>")
	}
	if l.ConfigID != "" {
		sb.WriteString("#")
		sb.WriteString(l.ConfigID)
	}
	if l.Template != "" {
		sb.WriteString(" (")
		sb.WriteString(l.Template)
		sb.WriteString(")")
	}
	if l.Prop != "" {
		sb.WriteString(".")
		sb.WriteString(l.Prop)
	}
	return sb.String()
}

// FixSuggestion represents a hint on how to resolve a diagnostic
type FixSuggestion struct {
	Description string   `json:"description"`
	Candidates  []string `json:"candidates,omitempty"`
}

// CompilerError is a diagnostic produced by any phase of the pipeline
type CompilerError struct {
	Phase         string          // "schema", "responsive", "compile", "resource", "build"
	Code          string          // "E100", "E200", etc.
	Message       string          // Human-readable message
	Location      ConfigLocation  // Node and prop the diagnostic is attached to
	Severity      Severity        // Error, Warning, Info
	Suggestion    *FixSuggestion  // Optional hint
	RelatedErrors []CompilerError // Cascading errors
}

// Error implements the error interface
func (e CompilerError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Location.String(), e.Code, e.Message)
}

// NewCompilerError creates a new CompilerError
func NewCompilerError(phase, code, message string, location ConfigLocation, severity Severity) CompilerError {
	return CompilerError{
		Phase:         phase,
		Code:          code,
		Message:       message,
		Location:      location,
		Severity:      severity,
		RelatedErrors: []CompilerError{},
	}
}

// WithSuggestion adds a fix suggestion to the error
func (e CompilerError) WithSuggestion(suggestion FixSuggestion) CompilerError {
	e.Suggestion = &suggestion
	return e
}

// WithRelatedError adds a related error
func (e CompilerError) WithRelatedError(related CompilerError) CompilerError {
	e.RelatedErrors = append(e.RelatedErrors, related)
	return e
}

// MarshalJSON implements json.Marshaler
func (e CompilerError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Phase         string          `json:"phase"`
		Code          string          `json:"code"`
		Message       string          `json:"message"`
		Severity      Severity        `json:"severity"`
		Location      ConfigLocation  `json:"location"`
		Suggestion    *FixSuggestion  `json:"suggestion,omitempty"`
		RelatedErrors []CompilerError `json:"related_errors,omitempty"`
	}{
		Phase:         e.Phase,
		Code:          e.Code,
		Message:       e.Message,
		Severity:      e.Severity,
		Location:      e.Location,
		Suggestion:    e.Suggestion,
		RelatedErrors: e.RelatedErrors,
	})
}

// UnmarshalJSON implements json.Unmarshaler
func (e *CompilerError) UnmarshalJSON(data []byte) error {
	var raw struct {
		Phase         string          `json:"phase"`
		Code          string          `json:"code"`
		Message       string          `json:"message"`
		Severity      Severity        `json:"severity"`
		Location      ConfigLocation  `json:"location"`
		Suggestion    *FixSuggestion  `json:"suggestion"`
		RelatedErrors []CompilerError `json:"related_errors"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*e = CompilerError{
		Phase:         raw.Phase,
		Code:          raw.Code,
		Message:       raw.Message,
		Severity:      raw.Severity,
		Location:      raw.Location,
		Suggestion:    raw.Suggestion,
		RelatedErrors: raw.RelatedErrors,
	}
	return nil
}

// IsError returns true if the error is at Error or Fatal severity
func (e CompilerError) IsError() bool {
	return e.Severity == Error || e.Severity == Fatal
}

// IsWarning returns true if the error is at Warning severity
func (e CompilerError) IsWarning() bool {
	return e.Severity == Warning
}

// IsInfo returns true if the error is at Info severity
func (e CompilerError) IsInfo() bool {
	return e.Severity == Info
}

// IsFatal returns true if the error is at Fatal severity
func (e CompilerError) IsFatal() bool {
	return e.Severity == Fatal
}
