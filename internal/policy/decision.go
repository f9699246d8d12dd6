package policy

// Denial codes returned to callers. Stable contract consumed by SDKs and
// downstream log tooling.
const (
	CodeAccessDenied      = "ACCESS_DENIED"
	CodeInsufficientScope = "INSUFFICIENT_SCOPE"
	CodeReadOnlyMode      = "READ_ONLY_MODE"
	CodeConfigOnlyMode    = "CONFIG_ONLY_MODE"
	CodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	CodeValidationError   = "VALIDATION_ERROR"
	CodeInternalError     = "INTERNAL_ERROR"
)

// Decision is the outcome of a single policy check.
type Decision struct {
	Allowed    bool
	Code       string // denial code, empty when allowed
	Reason     string // human-readable denial reason, empty when allowed
	RetryAfter int    // seconds until a rate-limit denial clears, 0 otherwise
}

// Allow returns an allowing decision.
func Allow() Decision {
	return Decision{Allowed: true}
}

// Deny returns a denying decision with the given code and reason.
func Deny(code, reason string) Decision {
	return Decision{Code: code, Reason: reason}
}
