package httpapi

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	apperrors "github.com/louisbranch/medvault/internal/platform/errors"
	"github.com/louisbranch/medvault/internal/vault/auth"
	"github.com/louisbranch/medvault/internal/vault/domain"
)

const (
	testIssuer   = "medvault-registry"
	testAudience = "medvault-api"
)

type fakeRegistry struct {
	entry     domain.VaultEntry
	hasAccess bool
	total     uint64
	err       error

	calls         int
	createInput   domain.CreateEntryInput
	transferInput domain.TransferAuthorityInput
	updateInput   domain.UpdateMetadataInput
	gotEntryID    uint64
	gotAccessor   string
}

func (f *fakeRegistry) CreateEntry(_ context.Context, input domain.CreateEntryInput) (domain.VaultEntry, error) {
	f.calls++
	f.createInput = input
	if f.err != nil {
		return domain.VaultEntry{}, f.err
	}
	return f.entry, nil
}

func (f *fakeRegistry) TransferAuthority(_ context.Context, input domain.TransferAuthorityInput) (domain.VaultEntry, error) {
	f.calls++
	f.transferInput = input
	if f.err != nil {
		return domain.VaultEntry{}, f.err
	}
	entry := f.entry
	entry.Authority = input.NewAuthority
	return entry, nil
}

func (f *fakeRegistry) UpdateMetadata(_ context.Context, input domain.UpdateMetadataInput) (domain.VaultEntry, error) {
	f.calls++
	f.updateInput = input
	if f.err != nil {
		return domain.VaultEntry{}, f.err
	}
	return f.entry, nil
}

func (f *fakeRegistry) GetEntry(_ context.Context, entryID uint64) (domain.VaultEntry, error) {
	f.calls++
	f.gotEntryID = entryID
	if f.err != nil {
		return domain.VaultEntry{}, f.err
	}
	return f.entry, nil
}

func (f *fakeRegistry) ClassificationTags(_ context.Context, entryID uint64) ([]string, error) {
	f.calls++
	f.gotEntryID = entryID
	if f.err != nil {
		return nil, f.err
	}
	return f.entry.Tags, nil
}

func (f *fakeRegistry) MedicalAuthority(_ context.Context, entryID uint64) (string, error) {
	f.calls++
	f.gotEntryID = entryID
	if f.err != nil {
		return "", f.err
	}
	return f.entry.Authority, nil
}

func (f *fakeRegistry) CreationTimestamp(_ context.Context, entryID uint64) (time.Time, error) {
	f.calls++
	f.gotEntryID = entryID
	if f.err != nil {
		return time.Time{}, f.err
	}
	return f.entry.CreatedAt, nil
}

func (f *fakeRegistry) PayloadSize(_ context.Context, entryID uint64) (uint64, error) {
	f.calls++
	f.gotEntryID = entryID
	if f.err != nil {
		return 0, f.err
	}
	return f.entry.PayloadSize, nil
}

func (f *fakeRegistry) DiagnosticNotes(_ context.Context, entryID uint64) (string, error) {
	f.calls++
	f.gotEntryID = entryID
	if f.err != nil {
		return "", f.err
	}
	return f.entry.Notes, nil
}

func (f *fakeRegistry) TotalEntries(_ context.Context) (uint64, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	return f.total, nil
}

func (f *fakeRegistry) CheckAccess(_ context.Context, entryID uint64, accessor string) (bool, error) {
	f.calls++
	f.gotEntryID = entryID
	f.gotAccessor = accessor
	if f.err != nil {
		return false, f.err
	}
	return f.hasAccess, nil
}

func newTestMux(t *testing.T, service RegistryService) *http.ServeMux {
	t.Helper()
	mux := http.NewServeMux()
	RegisterRoutes(mux, NewHandlers(service), NewMiddleware(nil, nil))
	return mux
}

// setupBearerToken configures token verification env vars and returns an
// Authorization header value for subject.
func setupBearerToken(t *testing.T, subject string) string {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	t.Setenv(auth.EnvAuthIssuer, testIssuer)
	t.Setenv(auth.EnvAuthAudience, testAudience)
	t.Setenv(auth.EnvAuthPublicKey, base64.StdEncoding.EncodeToString(pub))

	token, err := auth.MintAccessToken(auth.SignerConfig{
		Issuer:   testIssuer,
		Audience: testAudience,
		Key:      priv,
		TTL:      time.Hour,
	}, subject)
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}
	return "Bearer " + token
}

func decodeErrorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var resp errorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error response: %v (body %q)", err, rr.Body.String())
	}
	return resp.Code
}

func TestRegisterRoutesHandlesNilArguments(t *testing.T) {
	t.Parallel()

	RegisterRoutes(nil, nil, nil)
}

func TestHealthEndpointIsOpen(t *testing.T) {
	t.Parallel()

	mux := newTestMux(t, &fakeRegistry{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
}

func TestCreateEntryReturnsCreatedEntry(t *testing.T) {
	header := setupBearerToken(t, "clinic-alpha")

	created := time.Date(2026, 8, 23, 9, 0, 0, 0, time.UTC)
	fake := &fakeRegistry{entry: domain.VaultEntry{
		EntryID:     1,
		PatientHash: "a1b2c3",
		Authority:   "clinic-alpha",
		PayloadSize: 2048,
		Notes:       "initial intake scan",
		Tags:        []string{"radiology"},
		CreatedAt:   created,
	}}
	mux := newTestMux(t, fake)

	body := `{"patient_hash_code":"a1b2c3","payload_byte_size":2048,"diagnostic_notes":"initial intake scan","classification_tags":["radiology"]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/entries", strings.NewReader(body))
	req.Header.Set("Authorization", header)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d (body %q)", rr.Code, http.StatusCreated, rr.Body.String())
	}
	if fake.createInput.Caller != "clinic-alpha" {
		t.Fatalf("caller = %q, want %q", fake.createInput.Caller, "clinic-alpha")
	}
	if fake.createInput.PatientHash != "a1b2c3" {
		t.Fatalf("patient hash = %q, want %q", fake.createInput.PatientHash, "a1b2c3")
	}

	var resp map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got := resp["entry_id"]; got != float64(1) {
		t.Fatalf("entry_id = %v, want 1", got)
	}
	if got := resp["medical_authority"]; got != "clinic-alpha" {
		t.Fatalf("medical_authority = %v, want clinic-alpha", got)
	}
	if got := resp["creation_timestamp"]; got != "2026-08-23T09:00:00Z" {
		t.Fatalf("creation_timestamp = %v, want 2026-08-23T09:00:00Z", got)
	}
}

func TestCreateEntryRejectsMalformedBody(t *testing.T) {
	header := setupBearerToken(t, "clinic-alpha")

	fake := &fakeRegistry{}
	mux := newTestMux(t, fake)

	req := httptest.NewRequest(http.MethodPost, "/v1/entries", strings.NewReader("{"))
	req.Header.Set("Authorization", header)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
	if code := decodeErrorCode(t, rr); code != string(apperrors.CodeInvalidRequest) {
		t.Fatalf("code = %q, want %q", code, apperrors.CodeInvalidRequest)
	}
	if fake.calls != 0 {
		t.Fatalf("service calls = %d, want 0", fake.calls)
	}
}

func TestMutatingRoutesRequireBearerToken(t *testing.T) {
	t.Parallel()

	fake := &fakeRegistry{}
	mux := newTestMux(t, fake)

	tests := []struct {
		name   string
		method string
		path   string
	}{
		{name: "create", method: http.MethodPost, path: "/v1/entries"},
		{name: "transfer authority", method: http.MethodPost, path: "/v1/entries/1/authority"},
		{name: "update metadata", method: http.MethodPut, path: "/v1/entries/1/metadata"},
		{name: "check access", method: http.MethodGet, path: "/v1/entries/1/permissions/lab-9"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, strings.NewReader("{}"))
			rr := httptest.NewRecorder()
			mux.ServeHTTP(rr, req)

			if rr.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want %d", rr.Code, http.StatusUnauthorized)
			}
			if code := decodeErrorCode(t, rr); code != string(apperrors.CodeAccessTokenInvalid) {
				t.Fatalf("code = %q, want %q", code, apperrors.CodeAccessTokenInvalid)
			}
		})
	}
	if fake.calls != 0 {
		t.Fatalf("service calls = %d, want 0", fake.calls)
	}
}

func TestGetEntryReturnsFullView(t *testing.T) {
	t.Parallel()

	created := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	fake := &fakeRegistry{entry: domain.VaultEntry{
		EntryID:     3,
		PatientHash: "f00d",
		Authority:   "clinic-beta",
		PayloadSize: 512,
		Notes:       "follow-up",
		Tags:        []string{"cardiology", "imaging"},
		CreatedAt:   created,
	}}
	mux := newTestMux(t, fake)

	req := httptest.NewRequest(http.MethodGet, "/v1/entries/3", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	if fake.gotEntryID != 3 {
		t.Fatalf("entry id = %d, want 3", fake.gotEntryID)
	}

	var resp map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got := resp["patient_hash_code"]; got != "f00d" {
		t.Fatalf("patient_hash_code = %v, want f00d", got)
	}
	if got := resp["payload_byte_size"]; got != float64(512) {
		t.Fatalf("payload_byte_size = %v, want 512", got)
	}
	wantTags := []any{"cardiology", "imaging"}
	if got := resp["classification_tags"]; !reflect.DeepEqual(got, wantTags) {
		t.Fatalf("classification_tags = %v, want %v", got, wantTags)
	}
}

func TestEntryRoutesRejectNonNumericID(t *testing.T) {
	t.Parallel()

	fake := &fakeRegistry{}
	mux := newTestMux(t, fake)

	req := httptest.NewRequest(http.MethodGet, "/v1/entries/not-a-number", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusNotFound)
	}
	if code := decodeErrorCode(t, rr); code != string(apperrors.CodeVaultEntryAbsent) {
		t.Fatalf("code = %q, want %q", code, apperrors.CodeVaultEntryAbsent)
	}
	if fake.calls != 0 {
		t.Fatalf("service calls = %d, want 0", fake.calls)
	}
}

func TestReadErrorStatusMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   apperrors.Code
	}{
		{name: "absent entry", err: domain.ErrVaultEntryAbsent, wantStatus: http.StatusNotFound, wantCode: apperrors.CodeVaultEntryAbsent},
		{name: "store failure is masked", err: errors.New("disk gone"), wantStatus: http.StatusInternalServerError, wantCode: apperrors.CodeUnknown},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			mux := newTestMux(t, &fakeRegistry{err: tc.err})
			req := httptest.NewRequest(http.MethodGet, "/v1/entries/7", nil)
			rr := httptest.NewRecorder()
			mux.ServeHTTP(rr, req)

			if rr.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tc.wantStatus)
			}
			if code := decodeErrorCode(t, rr); code != string(tc.wantCode) {
				t.Fatalf("code = %q, want %q", code, tc.wantCode)
			}
		})
	}
}

func TestWriteErrorStatusMapping(t *testing.T) {
	header := setupBearerToken(t, "clinic-alpha")

	validBody := `{"patient_hash_code":"a1","payload_byte_size":10,"diagnostic_notes":"note"}`
	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		err        error
		wantStatus int
		wantCode   apperrors.Code
	}{
		{name: "duplicate identifier", method: http.MethodPost, path: "/v1/entries", body: validBody, err: domain.ErrDuplicateVaultEntry, wantStatus: http.StatusConflict, wantCode: apperrors.CodeDuplicateVaultEntry},
		{name: "oversized payload", method: http.MethodPost, path: "/v1/entries", body: validBody, err: domain.ErrPayloadSizeInvalid, wantStatus: http.StatusBadRequest, wantCode: apperrors.CodeOversizedPayload},
		{name: "transfer by non-authority", method: http.MethodPost, path: "/v1/entries/2/authority", body: `{"medical_authority":"clinic-beta"}`, err: domain.ErrInvalidAuthToken, wantStatus: http.StatusForbidden, wantCode: apperrors.CodeInvalidAuthToken},
		{name: "transfer without new authority", method: http.MethodPost, path: "/v1/entries/2/authority", body: `{}`, err: domain.ErrNewAuthorityRequired, wantStatus: http.StatusBadRequest, wantCode: apperrors.CodeInvalidRequest},
		{name: "update absent entry", method: http.MethodPut, path: "/v1/entries/2/metadata", body: validBody, err: domain.ErrVaultEntryAbsent, wantStatus: http.StatusNotFound, wantCode: apperrors.CodeVaultEntryAbsent},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mux := newTestMux(t, &fakeRegistry{err: tc.err})
			req := httptest.NewRequest(tc.method, tc.path, strings.NewReader(tc.body))
			req.Header.Set("Authorization", header)
			rr := httptest.NewRecorder()
			mux.ServeHTTP(rr, req)

			if rr.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d (body %q)", rr.Code, tc.wantStatus, rr.Body.String())
			}
			if code := decodeErrorCode(t, rr); code != string(tc.wantCode) {
				t.Fatalf("code = %q, want %q", code, tc.wantCode)
			}
		})
	}
}

func TestTransferAuthorityPassesPrincipalAndTarget(t *testing.T) {
	header := setupBearerToken(t, "clinic-alpha")

	fake := &fakeRegistry{entry: domain.VaultEntry{EntryID: 2, Authority: "clinic-alpha"}}
	mux := newTestMux(t, fake)

	req := httptest.NewRequest(http.MethodPost, "/v1/entries/2/authority", strings.NewReader(`{"medical_authority":"clinic-beta"}`))
	req.Header.Set("Authorization", header)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body %q)", rr.Code, http.StatusOK, rr.Body.String())
	}
	want := domain.TransferAuthorityInput{Caller: "clinic-alpha", EntryID: 2, NewAuthority: "clinic-beta"}
	if fake.transferInput != want {
		t.Fatalf("transfer input = %+v, want %+v", fake.transferInput, want)
	}

	var resp map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got := resp["medical_authority"]; got != "clinic-beta" {
		t.Fatalf("medical_authority = %v, want clinic-beta", got)
	}
}

func TestFieldAccessorsReturnScopedViews(t *testing.T) {
	t.Parallel()

	created := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	fake := &fakeRegistry{entry: domain.VaultEntry{
		EntryID:     3,
		PatientHash: "f00d",
		Authority:   "clinic-beta",
		PayloadSize: 512,
		Notes:       "follow-up",
		Tags:        []string{"cardiology", "imaging"},
		CreatedAt:   created,
	}}
	mux := newTestMux(t, fake)

	tests := []struct {
		name    string
		path    string
		wantKey string
		want    any
	}{
		{name: "tags", path: "/v1/entries/3/tags", wantKey: "classification_tags", want: []any{"cardiology", "imaging"}},
		{name: "authority", path: "/v1/entries/3/authority", wantKey: "medical_authority", want: "clinic-beta"},
		{name: "created at", path: "/v1/entries/3/created-at", wantKey: "creation_timestamp", want: "2026-08-01T12:00:00Z"},
		{name: "payload size", path: "/v1/entries/3/payload-size", wantKey: "payload_byte_size", want: float64(512)},
		{name: "notes", path: "/v1/entries/3/notes", wantKey: "diagnostic_notes", want: "follow-up"},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			rr := httptest.NewRecorder()
			mux.ServeHTTP(rr, req)

			if rr.Code != http.StatusOK {
				t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
			}
			var resp map[string]any
			if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if got := resp["entry_id"]; got != float64(3) {
				t.Fatalf("entry_id = %v, want 3", got)
			}
			if got := resp[tc.wantKey]; !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("%s = %v, want %v", tc.wantKey, got, tc.want)
			}
		})
	}
}

func TestCheckAccessReflectsServiceDecision(t *testing.T) {
	header := setupBearerToken(t, "clinic-alpha")

	tests := []struct {
		name      string
		hasAccess bool
	}{
		{name: "granted", hasAccess: true},
		{name: "revoked row reads false", hasAccess: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fake := &fakeRegistry{hasAccess: tc.hasAccess}
			mux := newTestMux(t, fake)

			req := httptest.NewRequest(http.MethodGet, "/v1/entries/4/permissions/lab-9", nil)
			req.Header.Set("Authorization", header)
			rr := httptest.NewRecorder()
			mux.ServeHTTP(rr, req)

			if rr.Code != http.StatusOK {
				t.Fatalf("status = %d, want %d (body %q)", rr.Code, http.StatusOK, rr.Body.String())
			}
			if fake.gotEntryID != 4 || fake.gotAccessor != "lab-9" {
				t.Fatalf("lookup = (%d, %q), want (4, lab-9)", fake.gotEntryID, fake.gotAccessor)
			}
			var resp map[string]any
			if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if got := resp["has_access_rights"]; got != tc.hasAccess {
				t.Fatalf("has_access_rights = %v, want %v", got, tc.hasAccess)
			}
			if got := resp["accessor_identity"]; got != "lab-9" {
				t.Fatalf("accessor_identity = %v, want lab-9", got)
			}
		})
	}
}

func TestCheckAccessMissingRowMapsToPermissionBreach(t *testing.T) {
	header := setupBearerToken(t, "clinic-alpha")

	mux := newTestMux(t, &fakeRegistry{err: domain.ErrPermissionBreach})
	req := httptest.NewRequest(http.MethodGet, "/v1/entries/4/permissions/lab-9", nil)
	req.Header.Set("Authorization", header)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusNotFound)
	}
	if code := decodeErrorCode(t, rr); code != string(apperrors.CodePermissionBreach) {
		t.Fatalf("code = %q, want %q", code, apperrors.CodePermissionBreach)
	}
}

func TestTotalEntriesCount(t *testing.T) {
	t.Parallel()

	mux := newTestMux(t, &fakeRegistry{total: 7})
	req := httptest.NewRequest(http.MethodGet, "/v1/entries-count", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	var resp map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got := resp["total_vault_entries"]; got != float64(7) {
		t.Fatalf("total_vault_entries = %v, want 7", got)
	}
}

func TestRequestIDHeaderIsEchoed(t *testing.T) {
	t.Parallel()

	mux := newTestMux(t, &fakeRegistry{})

	req := httptest.NewRequest(http.MethodGet, "/v1/entries-count", nil)
	req.Header.Set(requestIDHeader, "req-test-1")
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if got := rr.Header().Get(requestIDHeader); got != "req-test-1" {
		t.Fatalf("request id = %q, want req-test-1", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/entries-count", nil)
	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if got := rr.Header().Get(requestIDHeader); got == "" {
		t.Fatal("request id header should be generated when absent")
	}
}
