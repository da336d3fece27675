package domain

// ChunkKind classifies the semantic unit a chunk was derived from.
type ChunkKind string

const (
	ChunkKindInfo      ChunkKind = "info"
	ChunkKindPath      ChunkKind = "path"
	ChunkKindComponent ChunkKind = "component"
)

// KindPriority orders chunk kinds for deterministic tie-breaking in search
// results: path chunks outrank components, components outrank info.
func KindPriority(k ChunkKind) int {
	switch k {
	case ChunkKindPath:
		return 0
	case ChunkKindComponent:
		return 1
	case ChunkKindInfo:
		return 2
	default:
		return 3
	}
}

// ChunkMetadata carries the kind-specific attributes of a chunk. References
// holds the immediate $ref target names of a component; they are never
// resolved, so reference cycles cannot cause unbounded traversal.
type ChunkMetadata struct {
	SpecID        string    `json:"spec_id"`
	Kind          ChunkKind `json:"kind"`
	Path          string    `json:"path,omitempty"`
	Method        string    `json:"method,omitempty"`
	ComponentType string    `json:"component_type,omitempty"`
	ComponentName string    `json:"component_name,omitempty"`
	ParentType    string    `json:"parent_type,omitempty"`
	ParentName    string    `json:"parent_name,omitempty"`
	References    []string  `json:"references,omitempty"`
	Part          int       `json:"part,omitempty"`
}

// Chunk is the unit of retrieval. The ID is deterministic for a given
// specification and discriminator, so re-chunking the same document yields
// the same IDs and upserts are idempotent.
type Chunk struct {
	ID       string
	SpecID   string
	Kind     ChunkKind
	Text     string
	Metadata ChunkMetadata
}

// ScoredChunk pairs a chunk with its similarity score for one query.
type ScoredChunk struct {
	Chunk Chunk
	Score float32
}
