package result

import "testing"

func TestNormalize_SuccessDefaultsMessage(t *testing.T) {
	r := Normalize(OK("", nil))
	if r.Outcome != OutcomeSuccess || !r.Success {
		t.Fatalf("expected success outcome, got %s", r.Outcome)
	}
	if r.Message != "Success." {
		t.Errorf(`expected default "Success.", got %q`, r.Message)
	}
}

func TestNormalize_SuccessKeepsMessageAndData(t *testing.T) {
	r := Normalize(OK("Cleared 3 caches.", map[string]any{"count": 3}))
	if r.Message != "Cleared 3 caches." {
		t.Errorf("message should be preserved, got %q", r.Message)
	}
	if r.Data["count"] != 3 {
		t.Errorf("data should be preserved, got %v", r.Data)
	}
}

func TestNormalize_FailureDefaultsMessage(t *testing.T) {
	r := Normalize(Fail("", ""))
	if r.Outcome != OutcomeFailure || r.Success {
		t.Fatalf("expected failure outcome, got %s", r.Outcome)
	}
	if r.Error != "Tool execution failed." {
		t.Errorf(`expected default failure message, got %q`, r.Error)
	}
	if r.ErrorCode != "INTERNAL_ERROR" {
		t.Errorf("empty error code should default to INTERNAL_ERROR, got %s", r.ErrorCode)
	}
}

func TestNormalize_FailureKeepsCode(t *testing.T) {
	r := Normalize(Fail("VALIDATION_ERROR", "title is required"))
	if r.ErrorCode != "VALIDATION_ERROR" {
		t.Errorf("expected VALIDATION_ERROR, got %s", r.ErrorCode)
	}
	if r.Error != "title is required" {
		t.Errorf("message should be preserved, got %q", r.Error)
	}
}

func TestExecutionFailure_SummarizesCause(t *testing.T) {
	r := ExecutionFailure("nil pointer dereference")
	if r.Error != "Tool execution failed: nil pointer dereference" {
		t.Errorf("unexpected message %q", r.Error)
	}
	if r.Outcome != OutcomeFailure {
		t.Errorf("expected failure outcome, got %s", r.Outcome)
	}
}

func TestDenied_Shape(t *testing.T) {
	r := Denied("RATE_LIMIT_EXCEEDED", "too many writes", 42)
	if r.Outcome != OutcomeDenied || r.Success {
		t.Fatalf("expected denied outcome, got %s", r.Outcome)
	}
	if r.ErrorCode != "RATE_LIMIT_EXCEEDED" || r.RetryAfter != 42 {
		t.Errorf("denial fields not preserved: %+v", r)
	}
}
