package executor

import "strings"

// classifyRule maps an engine error-text fragment to an error code.
// Rules are checked in order; the first match wins. Fragments cover both
// the engine's English diagnostic text and its stable numeric error
// codes, which survive localization.
type classifyRule struct {
	fragment string
	code     ErrorCode
}

var classifyRules = []classifyRule{
	// Permission checks come first: some permission failures also
	// mention the application name and would otherwise look like
	// availability problems.
	{"not authorized to send apple events", ErrCodePermissionDenied},
	{"(-1743)", ErrCodePermissionDenied},
	{"assistive access", ErrCodePermissionDenied},

	{"syntax error", ErrCodeSyntax},
	{"(-2741)", ErrCodeSyntax},
	{"expected end of line", ErrCodeSyntax},

	{"can't get", ErrCodeReferenceNotFound},
	{"invalid index", ErrCodeReferenceNotFound},
	{"(-1728)", ErrCodeReferenceNotFound},
	{"(-1719)", ErrCodeReferenceNotFound},
	{"doesn't understand", ErrCodeReferenceNotFound},

	{"application isn't running", ErrCodeAppUnavailable},
	{"(-600)", ErrCodeAppUnavailable},
	{"(-609)", ErrCodeAppUnavailable},
	{"connection is invalid", ErrCodeAppUnavailable},
	{"can't find process", ErrCodeAppUnavailable},

	{"event timed out", ErrCodeTimeout},
	{"(-1712)", ErrCodeTimeout},
}

// permissionHint is surfaced with PERMISSION_DENIED failures so the
// operator knows which switch to flip.
const permissionHint = "grant this process automation access in System Settings > Privacy & Security > Automation"

// Classify maps raw engine error text to a typed EngineError.
// Unrecognized text falls through to UNKNOWN rather than guessing.
func Classify(raw string) *EngineError {
	lower := strings.ToLower(raw)
	for _, rule := range classifyRules {
		if strings.Contains(lower, rule.fragment) {
			ee := &EngineError{
				Code:    rule.code,
				Message: summarize(rule.code),
				Raw:     raw,
			}
			if rule.code == ErrCodePermissionDenied {
				ee.Hint = permissionHint
			}
			return ee
		}
	}
	return &EngineError{Code: ErrCodeUnknown, Message: "unrecognized engine error", Raw: raw}
}

func summarize(code ErrorCode) string {
	switch code {
	case ErrCodeSyntax:
		return "generated command was rejected by the engine parser"
	case ErrCodeReferenceNotFound:
		return "command target no longer exists"
	case ErrCodePermissionDenied:
		return "automation access not granted"
	case ErrCodeAppUnavailable:
		return "application is not running or not responding"
	case ErrCodeTimeout:
		return "engine call timed out"
	default:
		return "unrecognized engine error"
	}
}
