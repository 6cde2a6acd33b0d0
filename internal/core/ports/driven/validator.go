package driven

// MetadataValidator checks a parsed completion against the metadata
// sidecar schema before it is decoded and persisted.
type MetadataValidator interface {
	// Validate returns an error describing the first violations found.
	Validate(doc map[string]any) error
}
