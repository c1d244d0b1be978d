package errors

import (
	stdErrors "errors"
	"net/http"
	"testing"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		publicMsg string
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, publicMsg: "validation failed", detailsOK: true},
		{code: CodeNotFound, status: http.StatusNotFound, publicMsg: "resource not found"},
		{code: CodeConflict, status: http.StatusConflict, publicMsg: "conflict detected"},
		{code: CodeStateConflict, status: http.StatusUnprocessableEntity, publicMsg: "state transition disallowed", detailsOK: true},
		{code: CodeInternal, status: http.StatusInternalServerError, publicMsg: "internal server error", retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, publicMsg: "dependency unavailable", retryable: true, detailsOK: true},
		{code: CodeInsufficientBalance, status: http.StatusUnprocessableEntity, publicMsg: "insufficient balance", detailsOK: true},
		{code: CodeHoldExists, status: http.StatusConflict, publicMsg: "an active hold already exists for this reference", detailsOK: true},
		{code: CodeRefundExceedsDebit, status: http.StatusUnprocessableEntity, publicMsg: "refund exceeds the refundable amount", detailsOK: true},
		{code: CodeAlreadyFinalized, status: http.StatusUnprocessableEntity, publicMsg: "operation already finalized", detailsOK: true},
		{code: CodeWalletInactive, status: http.StatusUnprocessableEntity, publicMsg: "wallet does not accept this operation", detailsOK: true},
		{code: CodeCurrencyMismatch, status: http.StatusBadRequest, publicMsg: "currency does not match the wallet", detailsOK: true},
		{code: CodeLedgerWrite, status: http.StatusInternalServerError, publicMsg: "ledger write failed", retryable: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.PublicMessage != tt.publicMsg {
			t.Fatalf("code %s expected public message %q got %q", tt.code, tt.publicMsg, meta.PublicMessage)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestRetryableOnlyForStorageClass(t *testing.T) {
	if Retryable(New(CodeInsufficientBalance, "no funds")) {
		t.Fatal("insufficient balance must never be retryable")
	}
	if Retryable(New(CodeRefundExceedsDebit, "capped")) {
		t.Fatal("over-limit rejections must never be retryable")
	}
	if !Retryable(New(CodeLedgerWrite, "insert failed")) {
		t.Fatal("ledger write failures are the retryable class")
	}
	if Retryable(stdErrors.New("untyped")) {
		t.Fatal("untyped errors are not retryable")
	}
}

func TestErrorConstructors(t *testing.T) {
	base := New(CodeValidation, "missing amount")
	if base.Code() != CodeValidation {
		t.Fatalf("expected validation code, got %s", base.Code())
	}
	if base.Message() != "missing amount" {
		t.Fatalf("unexpected message %q", base.Message())
	}
	if base.Details() != nil {
		t.Fatalf("details should be nil by default")
	}

	detail := map[string]any{"field": "amount"}
	base.WithDetails(detail)
	if base.Details() == nil {
		t.Fatalf("details should be preserved")
	}

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "ctx")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Code() != CodeConflict {
		t.Fatalf("unexpected code %s", wrapped.Code())
	}
}

func TestAsAndIs(t *testing.T) {
	err := New(CodeHoldExists, "duplicate reference")
	if got := As(err); got == nil || got.Code() != CodeHoldExists {
		t.Fatalf("As failed to return typed error")
	}
	if As(nil) != nil {
		t.Fatalf("As(nil) should return nil")
	}
	if !Is(err, CodeHoldExists) {
		t.Fatalf("Is should match the carried code")
	}
	if Is(err, CodeInsufficientBalance) {
		t.Fatalf("Is matched the wrong code")
	}
}
