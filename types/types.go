package types

// Metadata keys every indexed chunk carries. Deletion is scoped by
// MetaSourceID, so the keys must survive the round trip through any
// index backend unchanged.
const (
	MetaSourceID   = "source_id"
	MetaSourceName = "source_name"
	MetaPosition   = "position"
)

type Metadata map[string]string

// Clone returns an independent copy so chunks produced from one
// document never share the underlying map.
func (m Metadata) Clone() Metadata {
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Document is the decoded form of one uploaded source: plain text plus
// the metadata that every chunk derived from it inherits.
type Document struct {
	SourceID   string
	SourceName string
	Text       string
	Metadata   Metadata
}

// Chunk is a bounded span of a document's text, ready for embedding.
type Chunk struct {
	Text     string
	Position int
	Metadata Metadata
}

// IndexRecord is the persisted unit of the vector index. ID is
// assigned at upsert time when empty. Embedding is computed by the
// index when nil.
type IndexRecord struct {
	ID        string
	Text      string
	Embedding []float32
	Metadata  Metadata
}

// RetrievalResult is one ranked neighbour. Distance follows a single
// convention across all backends: ascending, lower is more relevant.
type RetrievalResult struct {
	Text     string   `json:"text"`
	Metadata Metadata `json:"metadata"`
	Distance float64  `json:"score"`
}

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ConversationTurn is one prior message supplied by the caller.
// Conversation memory is the caller's responsibility, none of it is
// persisted here.
type ConversationTurn struct {
	Role    Role   `json:"role" validate:"required,oneof=user assistant"`
	Content string `json:"content" validate:"required"`
}

// IngestFailure records why one source in a batch could not be
// ingested without failing the batch.
type IngestFailure struct {
	SourceID string `json:"source_id"`
	Reason   string `json:"reason"`
}

// IngestSummary reports the per-source outcome of one ingestion call.
type IngestSummary struct {
	Succeeded []string        `json:"succeeded"`
	Skipped   []string        `json:"skipped"`
	Failed    []IngestFailure `json:"failed"`
}

// RemoveSummary reports the per-source outcome of one deletion call.
// RemovedChunks counts index records actually deleted; removing a
// source that was never ingested is a success with zero records.
type RemoveSummary struct {
	Removed       []string        `json:"removed"`
	Failed        []IngestFailure `json:"failed"`
	RemovedChunks int64           `json:"removed_chunks"`
}
