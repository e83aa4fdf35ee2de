package push

// FailureCategory partitions provider error codes into the three outcomes
// the delivery pipeline acts on differently: invalid tokens are recorded so
// the device can be pruned, temporary failures are retry candidates, and
// everything else is a terminal unknown failure.
type FailureCategory int

const (
	FailureInvalidToken FailureCategory = iota
	FailureTemporary
	FailureUnknown
)

func (c FailureCategory) String() string {
	switch c {
	case FailureInvalidToken:
		return "invalid_token"
	case FailureTemporary:
		return "temporary"
	default:
		return "unknown"
	}
}

var invalidTokenCodes = map[string]struct{}{
	"UNREGISTERED":                {},
	"NOT_FOUND":                   {},
	"INVALID_ARGUMENT":            {},
	"INVALID_REGISTRATION":        {},
	"MISMATCH_SENDER_ID":          {},
	"EndpointDisabled":            {},
	"InvalidParameter":            {},
	"InvalidParameterValue":       {},
	"PlatformApplicationDisabled": {},
}

var temporaryCodes = map[string]struct{}{
	"UNAVAILABLE":        {},
	"INTERNAL":           {},
	"QUOTA_EXCEEDED":     {},
	"DEADLINE_EXCEEDED":  {},
	"ThrottledException": {},
	"InternalError":      {},
	"ServiceUnavailable": {},
	"RequestTimeout":     {},
}

// Classify maps a provider error code to a failure category. Codes not in
// either table are unknown and treated as terminal.
func Classify(code string) FailureCategory {
	if _, ok := invalidTokenCodes[code]; ok {
		return FailureInvalidToken
	}
	if _, ok := temporaryCodes[code]; ok {
		return FailureTemporary
	}
	return FailureUnknown
}
