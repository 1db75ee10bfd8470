package domain

const (
	maxPatientHashBytes = 64
	payloadSizeLimit    = 1_000_000_000 // exclusive upper bound
	maxNotesBytes       = 128
	maxTags             = 10
	maxTagBytes         = 32
)

// validateEntryMetadata enforces field constraints in a fixed order: patient
// hash, payload size, notes, then tags. Lengths are raw byte lengths.
func validateEntryMetadata(metadata EntryMetadata) error {
	if len(metadata.PatientHash) == 0 || len(metadata.PatientHash) > maxPatientHashBytes {
		return ErrPatientHashInvalid
	}
	if metadata.PayloadSize == 0 || metadata.PayloadSize >= payloadSizeLimit {
		return ErrPayloadSizeInvalid
	}
	if len(metadata.Notes) == 0 || len(metadata.Notes) > maxNotesBytes {
		return ErrNotesInvalid
	}
	if len(metadata.Tags) == 0 || len(metadata.Tags) > maxTags {
		return ErrTagsInvalid
	}
	for _, tag := range metadata.Tags {
		if len(tag) == 0 || len(tag) > maxTagBytes {
			return ErrTagsInvalid
		}
	}
	return nil
}
