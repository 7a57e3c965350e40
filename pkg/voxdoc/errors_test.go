package voxdoc

import (
	"errors"
	"testing"
)

func TestWrapErrorPreservesCause(t *testing.T) {
	cause := errors.New("socket hung up")
	vErr := WrapError(cause, ErrCodeConnectionClosed)

	if vErr.Code != ErrCodeConnectionClosed {
		t.Errorf("code = %s", vErr.Code)
	}
	if !errors.Is(vErr, cause) {
		t.Error("wrapped cause lost for errors.Is")
	}
	if WrapError(nil, ErrCodeUnknown) != nil {
		t.Error("wrapping nil produced an error")
	}
}

func TestErrorDetails(t *testing.T) {
	vErr := NewSelectorError(".missing")
	if sel, ok := vErr.GetDetail("selector"); !ok || sel != ".missing" {
		t.Errorf("selector detail = %v, %v", sel, ok)
	}
	if _, ok := vErr.GetDetail("absent"); ok {
		t.Error("phantom detail reported present")
	}
}

func TestRetryableClassification(t *testing.T) {
	if !IsRetryableError(NewRateLimitError("slow down")) {
		t.Error("rate limit not retryable")
	}
	if !IsRetryableError(NewConnectionError("refused")) {
		t.Error("connection failure not retryable")
	}
	if IsRetryableError(NewVoxdocError("bad body", ErrCodeInvalidRequest)) {
		t.Error("malformed request marked retryable")
	}
	if IsRetryableError(nil) {
		t.Error("nil marked retryable")
	}
}

func TestCriticalClassification(t *testing.T) {
	if !IsCriticalError(NewPermissionError("mic denied")) {
		t.Error("permission denial not critical")
	}
	if !IsCriticalError(NewDeviceError("no input device")) {
		t.Error("missing device not critical")
	}
	if IsCriticalError(NewSelectorError("h1")) {
		t.Error("selector miss marked critical; sessions must survive it")
	}
}
