package errors

import (
	"fmt"
	"strings"
	"sync"
)

// MaxErrors caps how many errors one pass keeps. Warnings are never capped.
const MaxErrors = 100

// ErrorRecovery gathers the diagnostics of a pass so one broken node never
// stops the rest of the tree. It is safe for concurrent use.
type ErrorRecovery struct {
	mu       sync.Mutex
	errors   []CompilerError
	warnings []CompilerError
	dropped  int
	limit    int
}

// NewErrorRecovery keeps up to MaxErrors errors.
func NewErrorRecovery() *ErrorRecovery {
	return NewErrorRecoveryWithMax(MaxErrors)
}

// NewErrorRecoveryWithMax keeps up to limit errors.
func NewErrorRecoveryWithMax(limit int) *ErrorRecovery {
	return &ErrorRecovery{limit: limit}
}

// Recover records diag. Errors past the limit are counted, not kept.
func (r *ErrorRecovery) Recover(diag CompilerError) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case diag.IsWarning() || diag.IsInfo():
		r.warnings = append(r.warnings, diag)
	case len(r.errors) < r.limit:
		r.errors = append(r.errors, diag)
	default:
		r.dropped++
	}
}

// RecoverMultiple records every diagnostic of diags.
func (r *ErrorRecovery) RecoverMultiple(diags []CompilerError) {
	for _, d := range diags {
		r.Recover(d)
	}
}

func (r *ErrorRecovery) counts() (errs, warns, dropped int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.errors), len(r.warnings), r.dropped
}

// HasErrors reports whether anything worse than a warning was recorded.
func (r *ErrorRecovery) HasErrors() bool {
	errs, _, dropped := r.counts()
	return errs+dropped > 0
}

// ErrorCount is the number of errors kept.
func (r *ErrorRecovery) ErrorCount() int {
	errs, _, _ := r.counts()
	return errs
}

// WarningCount is the number of warnings and notes kept.
func (r *ErrorRecovery) WarningCount() int {
	_, warns, _ := r.counts()
	return warns
}

// Dropped is the number of errors discarded past the limit.
func (r *ErrorRecovery) Dropped() int {
	_, _, dropped := r.counts()
	return dropped
}

// GetAll returns the kept errors, then the warnings, in arrival order.
func (r *ErrorRecovery) GetAll() []CompilerError {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := make([]CompilerError, 0, len(r.errors)+len(r.warnings))
	return append(append(all, r.errors...), r.warnings...)
}

// Filter returns the diagnostics keep accepts.
func (r *ErrorRecovery) Filter(keep func(CompilerError) bool) []CompilerError {
	var out []CompilerError
	for _, d := range r.GetAll() {
		if keep(d) {
			out = append(out, d)
		}
	}
	return out
}

// ByCode returns the diagnostics with code.
func (r *ErrorRecovery) ByCode(code string) []CompilerError {
	return r.Filter(func(d CompilerError) bool { return d.Code == code })
}

// ByConfigID returns the diagnostics attached to one config node.
func (r *ErrorRecovery) ByConfigID(id string) []CompilerError {
	return r.Filter(func(d CompilerError) bool { return d.Location.ConfigID == id })
}

// Clear forgets everything recorded.
func (r *ErrorRecovery) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors, r.warnings, r.dropped = nil, nil, 0
}

// FormatForTerminal renders every diagnostic and a closing summary.
func (r *ErrorRecovery) FormatForTerminal() string {
	all := r.GetAll()
	if len(all) == 0 {
		return ""
	}

	blocks := make([]string, len(all))
	for i, d := range all {
		blocks[i] = d.FormatForTerminal()
	}
	out := strings.Join(blocks, "\n")

	errs, warns, dropped := r.counts()
	out += FormatSummary(errs+dropped, warns)
	if dropped > 0 {
		out += warningColor.Sprintf("\nNote: %d more error(s) not shown, limit is %d.\n", dropped, r.limit)
	}
	return out
}

// Error summarizes the recorded diagnostics.
func (r *ErrorRecovery) Error() string {
	all := r.GetAll()
	errs, warns, dropped := r.counts()
	switch {
	case len(all) == 0:
		return "no errors"
	case len(all) == 1 && dropped == 0:
		return all[0].Error()
	}
	return fmt.Sprintf("%d error(s) and %d warning(s)", errs+dropped, warns)
}
