// Package errors provides structured error handling with registry error codes.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Vault entry validation errors
	CodeCorruptedIDFormat Code = "CORRUPTED_ID_FORMAT"
	CodeOversizedPayload  Code = "OVERSIZED_PAYLOAD"
	CodeForbiddenTagType  Code = "FORBIDDEN_TAG_TYPE"

	// Vault entry lifecycle errors
	CodeVaultEntryAbsent    Code = "VAULT_ENTRY_ABSENT"
	CodeDuplicateVaultEntry Code = "DUPLICATE_VAULT_ENTRY"

	// Authority and access errors
	CodeInvalidAuthToken Code = "INVALID_AUTH_TOKEN"
	CodePermissionBreach Code = "PERMISSION_BREACH"

	// Access token errors (request layer)
	CodeAccessTokenInvalid Code = "ACCESS_TOKEN_INVALID"
	CodeAccessTokenExpired Code = "ACCESS_TOKEN_EXPIRED"

	// Request shape errors (request layer)
	CodeInvalidRequest Code = "INVALID_REQUEST"
	CodeRateLimited    Code = "RATE_LIMITED"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
)

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	// Bad Request - validation failures, bad input
	case CodeCorruptedIDFormat,
		CodeOversizedPayload,
		CodeForbiddenTagType,
		CodeInvalidRequest:
		return http.StatusBadRequest

	// Unauthorized - the bearer token did not authenticate
	case CodeAccessTokenInvalid,
		CodeAccessTokenExpired:
		return http.StatusUnauthorized

	// Forbidden - authenticated caller is not the recorded authority
	case CodeInvalidAuthToken:
		return http.StatusForbidden

	// Not Found - entry or permission row doesn't exist
	case CodeVaultEntryAbsent,
		CodePermissionBreach,
		CodeNotFound:
		return http.StatusNotFound

	// Conflict - unique resource constraint
	case CodeDuplicateVaultEntry:
		return http.StatusConflict

	// Too Many Requests - caller exceeded the request budget
	case CodeRateLimited:
		return http.StatusTooManyRequests

	default:
		return http.StatusInternalServerError
	}
}
