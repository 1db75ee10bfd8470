// Package httpapi exposes the vault registry as a JSON API over net/http.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/louisbranch/medvault/internal/platform/errors"
	"github.com/louisbranch/medvault/internal/platform/requestctx"
	"github.com/louisbranch/medvault/internal/vault/domain"
)

// RegistryService is the domain surface the HTTP endpoints depend on.
type RegistryService interface {
	CreateEntry(ctx context.Context, input domain.CreateEntryInput) (domain.VaultEntry, error)
	TransferAuthority(ctx context.Context, input domain.TransferAuthorityInput) (domain.VaultEntry, error)
	UpdateMetadata(ctx context.Context, input domain.UpdateMetadataInput) (domain.VaultEntry, error)
	GetEntry(ctx context.Context, entryID uint64) (domain.VaultEntry, error)
	ClassificationTags(ctx context.Context, entryID uint64) ([]string, error)
	MedicalAuthority(ctx context.Context, entryID uint64) (string, error)
	CreationTimestamp(ctx context.Context, entryID uint64) (time.Time, error)
	PayloadSize(ctx context.Context, entryID uint64) (uint64, error)
	DiagnosticNotes(ctx context.Context, entryID uint64) (string, error)
	TotalEntries(ctx context.Context) (uint64, error)
	CheckAccess(ctx context.Context, entryID uint64, accessor string) (bool, error)
}

// Handlers serves the vault registry JSON endpoints.
type Handlers struct {
	service RegistryService
}

// NewHandlers wires registry endpoints around the given service.
func NewHandlers(service RegistryService) *Handlers {
	return &Handlers{service: service}
}

type entryResponse struct {
	EntryID     uint64    `json:"entry_id"`
	PatientHash string    `json:"patient_hash_code"`
	Authority   string    `json:"medical_authority"`
	PayloadSize uint64    `json:"payload_byte_size"`
	Notes       string    `json:"diagnostic_notes"`
	Tags        []string  `json:"classification_tags"`
	CreatedAt   time.Time `json:"creation_timestamp"`
}

type createEntryRequest struct {
	PatientHash string   `json:"patient_hash_code"`
	PayloadSize uint64   `json:"payload_byte_size"`
	Notes       string   `json:"diagnostic_notes"`
	Tags        []string `json:"classification_tags"`
}

type transferAuthorityRequest struct {
	NewAuthority string `json:"medical_authority"`
}

type updateMetadataRequest struct {
	PatientHash string   `json:"patient_hash_code"`
	PayloadSize uint64   `json:"payload_byte_size"`
	Notes       string   `json:"diagnostic_notes"`
	Tags        []string `json:"classification_tags"`
}

type tagsResponse struct {
	EntryID uint64   `json:"entry_id"`
	Tags    []string `json:"classification_tags"`
}

type authorityResponse struct {
	EntryID   uint64 `json:"entry_id"`
	Authority string `json:"medical_authority"`
}

type createdAtResponse struct {
	EntryID   uint64    `json:"entry_id"`
	CreatedAt time.Time `json:"creation_timestamp"`
}

type payloadSizeResponse struct {
	EntryID     uint64 `json:"entry_id"`
	PayloadSize uint64 `json:"payload_byte_size"`
}

type notesResponse struct {
	EntryID uint64 `json:"entry_id"`
	Notes   string `json:"diagnostic_notes"`
}

type countResponse struct {
	TotalEntries uint64 `json:"total_vault_entries"`
}

type accessResponse struct {
	EntryID   uint64 `json:"entry_id"`
	Accessor  string `json:"accessor_identity"`
	HasAccess bool   `json:"has_access_rights"`
}

func toEntryResponse(entry domain.VaultEntry) entryResponse {
	tags := entry.Tags
	if tags == nil {
		tags = []string{}
	}
	return entryResponse{
		EntryID:     entry.EntryID,
		PatientHash: entry.PatientHash,
		Authority:   entry.Authority,
		PayloadSize: entry.PayloadSize,
		Notes:       entry.Notes,
		Tags:        tags,
		CreatedAt:   entry.CreatedAt,
	}
}

func (h *Handlers) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	var req createEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.New(apperrors.CodeInvalidRequest, "request body must be valid JSON"))
		return
	}

	entry, err := h.service.CreateEntry(r.Context(), domain.CreateEntryInput{
		Caller:      requestctx.PrincipalFromContext(r.Context()),
		PatientHash: req.PatientHash,
		PayloadSize: req.PayloadSize,
		Notes:       req.Notes,
		Tags:        req.Tags,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, toEntryResponse(entry))
}

func (h *Handlers) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	entryID, err := parseEntryID(r)
	if err != nil {
		writeError(w, domain.ErrVaultEntryAbsent)
		return
	}
	entry, err := h.service.GetEntry(r.Context(), entryID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, toEntryResponse(entry))
}

func (h *Handlers) handleTransferAuthority(w http.ResponseWriter, r *http.Request) {
	entryID, err := parseEntryID(r)
	if err != nil {
		writeError(w, domain.ErrVaultEntryAbsent)
		return
	}
	var req transferAuthorityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.New(apperrors.CodeInvalidRequest, "request body must be valid JSON"))
		return
	}

	entry, err := h.service.TransferAuthority(r.Context(), domain.TransferAuthorityInput{
		Caller:       requestctx.PrincipalFromContext(r.Context()),
		EntryID:      entryID,
		NewAuthority: req.NewAuthority,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, toEntryResponse(entry))
}

func (h *Handlers) handleUpdateMetadata(w http.ResponseWriter, r *http.Request) {
	entryID, err := parseEntryID(r)
	if err != nil {
		writeError(w, domain.ErrVaultEntryAbsent)
		return
	}
	var req updateMetadataRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.New(apperrors.CodeInvalidRequest, "request body must be valid JSON"))
		return
	}

	entry, err := h.service.UpdateMetadata(r.Context(), domain.UpdateMetadataInput{
		Caller:  requestctx.PrincipalFromContext(r.Context()),
		EntryID: entryID,
		Metadata: domain.EntryMetadata{
			PatientHash: req.PatientHash,
			PayloadSize: req.PayloadSize,
			Notes:       req.Notes,
			Tags:        req.Tags,
		},
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, toEntryResponse(entry))
}

func (h *Handlers) handleTags(w http.ResponseWriter, r *http.Request) {
	entryID, err := parseEntryID(r)
	if err != nil {
		writeError(w, domain.ErrVaultEntryAbsent)
		return
	}
	tags, err := h.service.ClassificationTags(r.Context(), entryID)
	if err != nil {
		writeError(w, err)
		return
	}
	if tags == nil {
		tags = []string{}
	}
	writeJSON(w, tagsResponse{EntryID: entryID, Tags: tags})
}

func (h *Handlers) handleAuthority(w http.ResponseWriter, r *http.Request) {
	entryID, err := parseEntryID(r)
	if err != nil {
		writeError(w, domain.ErrVaultEntryAbsent)
		return
	}
	authority, err := h.service.MedicalAuthority(r.Context(), entryID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, authorityResponse{EntryID: entryID, Authority: authority})
}

func (h *Handlers) handleCreatedAt(w http.ResponseWriter, r *http.Request) {
	entryID, err := parseEntryID(r)
	if err != nil {
		writeError(w, domain.ErrVaultEntryAbsent)
		return
	}
	createdAt, err := h.service.CreationTimestamp(r.Context(), entryID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, createdAtResponse{EntryID: entryID, CreatedAt: createdAt})
}

func (h *Handlers) handlePayloadSize(w http.ResponseWriter, r *http.Request) {
	entryID, err := parseEntryID(r)
	if err != nil {
		writeError(w, domain.ErrVaultEntryAbsent)
		return
	}
	size, err := h.service.PayloadSize(r.Context(), entryID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, payloadSizeResponse{EntryID: entryID, PayloadSize: size})
}

func (h *Handlers) handleNotes(w http.ResponseWriter, r *http.Request) {
	entryID, err := parseEntryID(r)
	if err != nil {
		writeError(w, domain.ErrVaultEntryAbsent)
		return
	}
	notes, err := h.service.DiagnosticNotes(r.Context(), entryID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, notesResponse{EntryID: entryID, Notes: notes})
}

func (h *Handlers) handleTotalEntries(w http.ResponseWriter, r *http.Request) {
	total, err := h.service.TotalEntries(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, countResponse{TotalEntries: total})
}

func (h *Handlers) handleCheckAccess(w http.ResponseWriter, r *http.Request) {
	accessor := strings.TrimSpace(r.PathValue("accessor"))
	entryID, err := parseEntryID(r)
	if err != nil {
		// No permission row can exist for an unparseable entry id.
		writeError(w, domain.ErrPermissionBreach)
		return
	}
	hasAccess, err := h.service.CheckAccess(r.Context(), entryID, accessor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, accessResponse{EntryID: entryID, Accessor: accessor, HasAccess: hasAccess})
}

func (h *Handlers) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
