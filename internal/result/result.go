// Package result defines the single output shape every tool adapter must
// produce and the canonical result returned to callers. Normalization here
// means heterogeneous tool outputs never leak past the gateway boundary.
package result

// Outcome classifies a canonical result.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomeDenied  Outcome = "denied"
)

// Default messages applied when a tool omits its own.
const (
	defaultSuccessMessage = "Success."
	defaultFailureMessage = "Tool execution failed."
)

// Output is what a tool handler returns: a success variant carrying message
// and data, or a failure variant carrying code and message. Tools construct
// it through OK and Fail rather than ad hoc maps.
type Output struct {
	Success   bool
	Message   string
	Data      map[string]any
	ErrorCode string
}

// OK builds a success output.
func OK(message string, data map[string]any) Output {
	return Output{Success: true, Message: message, Data: data}
}

// Fail builds a failure output.
func Fail(code, message string) Output {
	return Output{ErrorCode: code, Message: message}
}

// CanonicalResult is the one response contract callers see, regardless of
// whether the call succeeded, failed inside the tool, or was denied by
// policy.
type CanonicalResult struct {
	Outcome    Outcome        `json:"-"`
	Success    bool           `json:"success"`
	Message    string         `json:"message,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
	Error      string         `json:"error,omitempty"`
	ErrorCode  string         `json:"code,omitempty"`
	RetryAfter int            `json:"retry_after,omitempty"`
}

// Normalize converts a tool output into the canonical shape, filling in the
// default messages when the tool left them empty.
func Normalize(out Output) CanonicalResult {
	if out.Success {
		msg := out.Message
		if msg == "" {
			msg = defaultSuccessMessage
		}
		return CanonicalResult{
			Outcome: OutcomeSuccess,
			Success: true,
			Message: msg,
			Data:    out.Data,
		}
	}

	msg := out.Message
	if msg == "" {
		msg = defaultFailureMessage
	}
	code := out.ErrorCode
	if code == "" {
		code = "INTERNAL_ERROR"
	}
	return CanonicalResult{
		Outcome:   OutcomeFailure,
		Error:     msg,
		ErrorCode: code,
	}
}

// ExecutionFailure builds the canonical result for domain logic that
// panicked or returned an unexpected error. The cause is reduced to a
// one-line summary so internals never reach the caller verbatim.
func ExecutionFailure(cause string) CanonicalResult {
	msg := defaultFailureMessage
	if cause != "" {
		msg = defaultFailureMessage[:len(defaultFailureMessage)-1] + ": " + cause
	}
	return CanonicalResult{
		Outcome:   OutcomeFailure,
		Error:     msg,
		ErrorCode: "INTERNAL_ERROR",
	}
}

// Denied builds the canonical result for a policy denial.
func Denied(code, reason string, retryAfter int) CanonicalResult {
	return CanonicalResult{
		Outcome:    OutcomeDenied,
		Error:      reason,
		ErrorCode:  code,
		RetryAfter: retryAfter,
	}
}
