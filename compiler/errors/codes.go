package errors

// Diagnostic codes grouped by pipeline phase
// E100-E199: Schema and template errors
// E200-E299: Value errors
// E300-E399: Slot errors
// E400-E499: Resource errors
// E500-E599: Runtime implementation errors

const (
	// Schema errors (E100-E199)
	ErrUnknownComponent    = "E100"
	ErrInvalidTemplate     = "E101"
	ErrDuplicateDefinition = "E102"
	ErrDuplicateProp       = "E103"
	ErrInvalidDocument     = "E104"

	// Value errors (E200-E299)
	ErrMissingResponsiveValue = "E200"
	ErrInvalidPropValue       = "E201"
	ErrUnknownToken           = "E202"
	ErrStylesFailed           = "E203"

	// Slot errors (E300-E399)
	ErrSlotTypeMismatch     = "E300"
	ErrMissingRequiredChild = "E301"
	ErrRefCycle             = "E302"
	ErrUnknownRef           = "E303"

	// Resource errors (E400-E499)
	ErrResourceFetchFailed   = "E400"
	ErrResourceResultMissing = "E401"

	// Runtime errors (E500-E599)
	ErrMissingActionImpl    = "E500"
	ErrMissingLinkImpl      = "E501"
	ErrMissingComponentImpl = "E502"
)

// Phase names
const (
	PhaseSchema     = "schema"
	PhaseResponsive = "responsive"
	PhaseCompile    = "compile"
	PhaseResource   = "resource"
	PhaseBuild      = "build"
)

// ErrorCategory returns the category name for an error code
func ErrorCategory(code string) string {
	if len(code) < 2 {
		return "unknown"
	}

	switch code[1] {
	case '1':
		return "schema"
	case '2':
		return "value"
	case '3':
		return "slot"
	case '4':
		return "resource"
	case '5':
		return "runtime"
	default:
		return "unknown"
	}
}
