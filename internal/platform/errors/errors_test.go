package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestIsMatchesByCode(t *testing.T) {
	t.Parallel()

	err := New(CodeVaultEntryAbsent, "entry 9 is not registered")
	if !stderrors.Is(err, New(CodeVaultEntryAbsent, "different message")) {
		t.Fatal("expected errors with the same code to match")
	}
	if stderrors.Is(err, New(CodePermissionBreach, "entry 9 is not registered")) {
		t.Fatal("expected errors with different codes not to match")
	}
}

func TestUnwrapReturnsCause(t *testing.T) {
	t.Parallel()

	cause := stderrors.New("disk unavailable")
	err := Wrap(CodeUnknown, "append vault entry", cause)
	if !stderrors.Is(err, cause) {
		t.Fatalf("expected wrapped cause to be reachable, got %v", err)
	}
}

func TestCodeOfWalksChain(t *testing.T) {
	t.Parallel()

	inner := New(CodeDuplicateVaultEntry, "entry id collision")
	wrapped := fmt.Errorf("create entry: %w", inner)
	if got := CodeOf(wrapped); got != CodeDuplicateVaultEntry {
		t.Fatalf("CodeOf = %q, want %q", got, CodeDuplicateVaultEntry)
	}
	if got := CodeOf(stderrors.New("plain")); got != CodeUnknown {
		t.Fatalf("CodeOf plain error = %q, want %q", got, CodeUnknown)
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		code Code
		want int
	}{
		{CodeCorruptedIDFormat, http.StatusBadRequest},
		{CodeOversizedPayload, http.StatusBadRequest},
		{CodeForbiddenTagType, http.StatusBadRequest},
		{CodeInvalidRequest, http.StatusBadRequest},
		{CodeAccessTokenInvalid, http.StatusUnauthorized},
		{CodeAccessTokenExpired, http.StatusUnauthorized},
		{CodeInvalidAuthToken, http.StatusForbidden},
		{CodeVaultEntryAbsent, http.StatusNotFound},
		{CodePermissionBreach, http.StatusNotFound},
		{CodeNotFound, http.StatusNotFound},
		{CodeDuplicateVaultEntry, http.StatusConflict},
		{CodeRateLimited, http.StatusTooManyRequests},
		{CodeUnknown, http.StatusInternalServerError},
		{Code("SOMETHING_ELSE"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := tc.code.HTTPStatus(); got != tc.want {
			t.Fatalf("%s.HTTPStatus() = %d, want %d", tc.code, got, tc.want)
		}
	}
}

func TestWithMetadataKeepsFields(t *testing.T) {
	t.Parallel()

	err := WithMetadata(CodeCorruptedIDFormat, "patient hash code out of range", map[string]string{"Field": "patient_hash_code"})
	if err.Metadata["Field"] != "patient_hash_code" {
		t.Fatalf("metadata field = %q, want %q", err.Metadata["Field"], "patient_hash_code")
	}
	if err.Error() != "patient hash code out of range" {
		t.Fatalf("message = %q", err.Error())
	}
}
