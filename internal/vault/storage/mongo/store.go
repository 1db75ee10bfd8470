// Package mongo provides the MongoDB-backed vault registry store.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/louisbranch/medvault/internal/vault/storage"
)

const (
	entriesCollection     = "vault_entries"
	permissionsCollection = "access_permissions"
	counterCollection     = "registry_counter"
	auditCollection       = "audit_events"

	counterDocumentID = "registry"
)

// Store persists vault entries, access permissions, the registry counter,
// and audit events in MongoDB collections.
//
// Unlike the SQLite store, entry creation is not atomic across collections:
// the entry document is inserted before the counter is advanced and the
// creator permission is seeded. Under the registry's single-writer model a
// crash between those steps leaves the counter behind the entries, which a
// subsequent creation repairs.
type Store struct {
	client      *mongo.Client
	entries     *mongo.Collection
	permissions *mongo.Collection
	counter     *mongo.Collection
	audit       *mongo.Collection
}

var _ storage.RegistryStore = (*Store)(nil)

// Open connects to MongoDB at uri and prepares the registry collections in
// dbName.
func Open(ctx context.Context, uri, dbName string) (*Store, error) {
	if uri == "" {
		return nil, errors.New("mongo uri is required")
	}
	if dbName == "" {
		return nil, errors.New("mongo database name is required")
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	// Verify connection quickly
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	db := client.Database(dbName)
	store := &Store{
		client:      client,
		entries:     db.Collection(entriesCollection),
		permissions: db.Collection(permissionsCollection),
		counter:     db.Collection(counterCollection),
		audit:       db.Collection(auditCollection),
	}

	if _, err := store.permissions.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "entry_id", Value: 1},
			{Key: "accessor_identity", Value: 1},
		},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("create permission index: %w", err)
	}

	return store, nil
}

// Close disconnects the underlying client.
func (s *Store) Close(ctx context.Context) error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

type entryDocument struct {
	EntryID     int64    `bson:"_id"`
	PatientHash string   `bson:"patient_hash_code"`
	Authority   string   `bson:"medical_authority"`
	PayloadSize int64    `bson:"payload_byte_size"`
	Notes       string   `bson:"diagnostic_notes"`
	Tags        []string `bson:"classification_tags"`
	CreatedAt   int64    `bson:"creation_timestamp"`
}

type permissionDocument struct {
	EntryID   int64  `bson:"entry_id"`
	Accessor  string `bson:"accessor_identity"`
	HasAccess bool   `bson:"has_access_rights"`
	GrantedAt int64  `bson:"granted_at"`
}

type counterDocument struct {
	ID    string `bson:"_id"`
	Total int64  `bson:"total_vault_entries"`
}

// CreateEntry allocates the next entry identifier from the counter, inserts
// the entry, seeds the creator's access permission, and advances the counter.
func (s *Store) CreateEntry(ctx context.Context, entry storage.NewEntryRecord) (storage.EntryRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.EntryRecord{}, err
	}
	if s == nil || s.client == nil {
		return storage.EntryRecord{}, errors.New("storage is not configured")
	}

	if entry.PatientHash == "" {
		return storage.EntryRecord{}, errors.New("patient hash is required")
	}
	if entry.Authority == "" {
		return storage.EntryRecord{}, errors.New("medical authority is required")
	}
	if entry.Notes == "" {
		return storage.EntryRecord{}, errors.New("diagnostic notes are required")
	}
	if entry.CreatedAt.IsZero() {
		return storage.EntryRecord{}, errors.New("creation timestamp is required")
	}
	tags := entry.Tags
	if tags == nil {
		tags = []string{}
	}

	var counter counterDocument
	err := s.counter.FindOne(ctx, bson.M{"_id": counterDocumentID}).Decode(&counter)
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		return storage.EntryRecord{}, fmt.Errorf("read registry counter: %w", err)
	}

	entryID := counter.Total + 1

	if _, err := s.entries.InsertOne(ctx, entryDocument{
		EntryID:     entryID,
		PatientHash: entry.PatientHash,
		Authority:   entry.Authority,
		PayloadSize: int64(entry.PayloadSize),
		Notes:       entry.Notes,
		Tags:        tags,
		CreatedAt:   toMillis(entry.CreatedAt),
	}); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return storage.EntryRecord{}, storage.ErrConflict
		}
		return storage.EntryRecord{}, fmt.Errorf("insert vault entry: %w", err)
	}

	if _, err := s.permissions.UpdateOne(
		ctx,
		bson.M{"entry_id": entryID, "accessor_identity": entry.Authority},
		bson.M{
			"$set": bson.M{
				"has_access_rights": true,
				"granted_at":        toMillis(entry.CreatedAt),
			},
		},
		options.Update().SetUpsert(true),
	); err != nil {
		return storage.EntryRecord{}, fmt.Errorf("seed creator permission: %w", err)
	}

	if _, err := s.counter.UpdateByID(
		ctx,
		counterDocumentID,
		bson.M{"$set": bson.M{"total_vault_entries": entryID}},
		options.Update().SetUpsert(true),
	); err != nil {
		return storage.EntryRecord{}, fmt.Errorf("advance registry counter: %w", err)
	}

	return storage.EntryRecord{
		EntryID:     uint64(entryID),
		PatientHash: entry.PatientHash,
		Authority:   entry.Authority,
		PayloadSize: entry.PayloadSize,
		Notes:       entry.Notes,
		Tags:        tags,
		CreatedAt:   entry.CreatedAt.UTC(),
	}, nil
}

// GetEntry loads a single vault entry by identifier.
func (s *Store) GetEntry(ctx context.Context, entryID uint64) (storage.EntryRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.EntryRecord{}, err
	}
	if s == nil || s.client == nil {
		return storage.EntryRecord{}, errors.New("storage is not configured")
	}
	if entryID == 0 {
		return storage.EntryRecord{}, storage.ErrNotFound
	}

	var doc entryDocument
	err := s.entries.FindOne(ctx, bson.M{"_id": int64(entryID)}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return storage.EntryRecord{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.EntryRecord{}, fmt.Errorf("load vault entry: %w", err)
	}
	return toEntryRecord(doc), nil
}

// TransferEntryAuthority reassigns the entry's controlling authority after
// verifying the stored authority matches currentAuthority.
func (s *Store) TransferEntryAuthority(ctx context.Context, entryID uint64, currentAuthority, newAuthority string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.client == nil {
		return errors.New("storage is not configured")
	}
	if newAuthority == "" {
		return errors.New("new authority is required")
	}

	if err := s.verifyEntryAuthority(ctx, entryID, currentAuthority); err != nil {
		return err
	}

	if _, err := s.entries.UpdateByID(
		ctx,
		int64(entryID),
		bson.M{"$set": bson.M{"medical_authority": newAuthority}},
	); err != nil {
		return fmt.Errorf("transfer entry authority: %w", err)
	}
	return nil
}

// UpdateEntryMetadata rewrites the entry's mutable metadata after verifying
// the stored authority matches currentAuthority.
func (s *Store) UpdateEntryMetadata(ctx context.Context, entryID uint64, currentAuthority string, metadata storage.EntryMetadataRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.client == nil {
		return errors.New("storage is not configured")
	}

	if err := s.verifyEntryAuthority(ctx, entryID, currentAuthority); err != nil {
		return err
	}

	tags := metadata.Tags
	if tags == nil {
		tags = []string{}
	}

	if _, err := s.entries.UpdateByID(
		ctx,
		int64(entryID),
		bson.M{"$set": bson.M{
			"patient_hash_code":   metadata.PatientHash,
			"payload_byte_size":   int64(metadata.PayloadSize),
			"diagnostic_notes":    metadata.Notes,
			"classification_tags": tags,
		}},
	); err != nil {
		return fmt.Errorf("update entry metadata: %w", err)
	}
	return nil
}

func (s *Store) verifyEntryAuthority(ctx context.Context, entryID uint64, currentAuthority string) error {
	var doc struct {
		Authority string `bson:"medical_authority"`
	}
	err := s.entries.FindOne(
		ctx,
		bson.M{"_id": int64(entryID)},
		options.FindOne().SetProjection(bson.M{"medical_authority": 1}),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return storage.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("load entry authority: %w", err)
	}
	if doc.Authority != currentAuthority {
		return storage.ErrAuthorityMismatch
	}
	return nil
}

// GetPermission loads the access permission row for the given entry and
// accessor pair.
func (s *Store) GetPermission(ctx context.Context, entryID uint64, accessor string) (storage.PermissionRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.PermissionRecord{}, err
	}
	if s == nil || s.client == nil {
		return storage.PermissionRecord{}, errors.New("storage is not configured")
	}
	if accessor == "" {
		return storage.PermissionRecord{}, errors.New("accessor identity is required")
	}

	var doc permissionDocument
	err := s.permissions.FindOne(ctx, bson.M{
		"entry_id":          int64(entryID),
		"accessor_identity": accessor,
	}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return storage.PermissionRecord{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.PermissionRecord{}, fmt.Errorf("load access permission: %w", err)
	}

	return storage.PermissionRecord{
		EntryID:   uint64(doc.EntryID),
		Accessor:  doc.Accessor,
		HasAccess: doc.HasAccess,
		GrantedAt: fromMillis(doc.GrantedAt),
	}, nil
}

// TotalEntries reports the lifetime count of created vault entries.
func (s *Store) TotalEntries(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.client == nil {
		return 0, errors.New("storage is not configured")
	}

	var doc counterDocument
	err := s.counter.FindOne(ctx, bson.M{"_id": counterDocumentID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read registry counter: %w", err)
	}
	return uint64(doc.Total), nil
}

// AppendAuditEvent persists one audit event.
func (s *Store) AppendAuditEvent(ctx context.Context, event storage.AuditEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.client == nil {
		return errors.New("storage is not configured")
	}
	if event.EventName == "" {
		return errors.New("event name is required")
	}
	if event.Severity == "" {
		return errors.New("event severity is required")
	}

	timestamp := event.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}

	doc := bson.M{
		"timestamp":  toMillis(timestamp),
		"event_name": event.EventName,
		"severity":   event.Severity,
	}
	if event.Principal != "" {
		doc["principal"] = event.Principal
	}
	if event.EntryID != 0 {
		doc["entry_id"] = int64(event.EntryID)
	}
	if event.RequestID != "" {
		doc["request_id"] = event.RequestID
	}
	if event.TraceID != "" {
		doc["trace_id"] = event.TraceID
	}
	if event.SpanID != "" {
		doc["span_id"] = event.SpanID
	}
	if len(event.Attributes) > 0 {
		doc["attributes"] = event.Attributes
	}

	if _, err := s.audit.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func toEntryRecord(doc entryDocument) storage.EntryRecord {
	tags := doc.Tags
	if tags == nil {
		tags = []string{}
	}
	return storage.EntryRecord{
		EntryID:     uint64(doc.EntryID),
		PatientHash: doc.PatientHash,
		Authority:   doc.Authority,
		PayloadSize: uint64(doc.PayloadSize),
		Notes:       doc.Notes,
		Tags:        tags,
		CreatedAt:   fromMillis(doc.CreatedAt),
	}
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
