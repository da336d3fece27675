// Package chunker decomposes a parsed OpenAPI document into the retrieval
// units that get embedded and indexed. Chunking is deterministic: the same
// document and spec ID always produce the same chunk IDs and texts, which
// makes upserts idempotent and deletion stable across re-ingestion.
package chunker

import (
	"fmt"
	"sort"
	"strings"

	"github.com/specwise/specchat/internal/domain"
	"github.com/specwise/specchat/internal/openapi"
)

// Config controls chunk sizing.
type Config struct {
	// MaxChars caps the rendered text length of a single chunk. Oversized
	// units are split along their natural sub-structure, never dropped.
	MaxChars int
}

// DefaultConfig provides sane defaults for chunking.
func DefaultConfig() Config {
	return Config{MaxChars: 2000}
}

// Warning records a locally malformed node that was skipped. Failure is
// local and logged; the chunker only aborts when the root is unusable.
type Warning struct {
	Node   string
	Reason string
}

// canonicalMethods is the fixed processing order for HTTP methods, so the
// emitted sequence is reproducible regardless of source iteration order.
var canonicalMethods = []string{"get", "put", "post", "delete", "options", "head", "patch", "trace"}

// canonicalCategories is the fixed processing order for component categories.
var canonicalCategories = []string{"schemas", "responses", "parameters", "requestBodies", "securitySchemes", "headers"}

// pathEntryKeys are path-item keys that are not HTTP methods.
var pathEntryKeys = map[string]bool{
	"parameters":  true,
	"summary":     true,
	"description": true,
	"servers":     true,
	"$ref":        true,
}

// Chunker walks a normalized OpenAPI tree and emits ordered chunks.
type Chunker struct {
	cfg Config
}

// New creates a Chunker with the given configuration.
func New(cfg Config) *Chunker {
	if cfg.MaxChars <= 0 {
		cfg = DefaultConfig()
	}
	return &Chunker{cfg: cfg}
}

// Chunk decomposes doc into an ordered chunk sequence: one info chunk when
// the info block is present, one chunk per path and method, and one chunk
// per named component. Locally malformed nodes become warnings, not errors.
func (c *Chunker) Chunk(doc *openapi.Document, specID string) ([]domain.Chunk, []Warning, error) {
	if doc == nil || doc.Root == nil {
		return nil, nil, domain.NewDomainError(domain.ErrCodeValidation, "document root is not a mapping")
	}

	var chunks []domain.Chunk
	var warnings []Warning

	if rawInfo, ok := doc.Root["info"]; ok {
		if info, ok := openapi.AsMap(rawInfo); ok {
			text := renderInfo(info)
			chunks = c.appendChunk(chunks, domain.Chunk{
				ID:     specID + ":info",
				SpecID: specID,
				Kind:   domain.ChunkKindInfo,
				Text:   text,
				Metadata: domain.ChunkMetadata{
					SpecID: specID,
					Kind:   domain.ChunkKindInfo,
				},
			}, nil)
		} else {
			warnings = append(warnings, Warning{Node: "info", Reason: "not a mapping"})
		}
	}

	pathChunks, pathWarnings := c.chunkPaths(doc.Root, specID)
	chunks = append(chunks, pathChunks...)
	warnings = append(warnings, pathWarnings...)

	componentChunks, componentWarnings := c.chunkComponents(doc.Root, specID)
	chunks = append(chunks, componentChunks...)
	warnings = append(warnings, componentWarnings...)

	return chunks, warnings, nil
}

func (c *Chunker) chunkPaths(root map[string]any, specID string) ([]domain.Chunk, []Warning) {
	rawPaths, ok := root["paths"]
	if !ok {
		return nil, nil
	}
	paths, ok := openapi.AsMap(rawPaths)
	if !ok {
		return nil, []Warning{{Node: "paths", Reason: "not a mapping"}}
	}

	var chunks []domain.Chunk
	var warnings []Warning

	for _, path := range sortedKeys(paths) {
		entry, ok := openapi.AsMap(paths[path])
		if !ok {
			warnings = append(warnings, Warning{Node: "paths." + path, Reason: "not a mapping"})
			continue
		}

		emitted := 0
		for _, method := range orderedMethods(entry) {
			op, ok := openapi.AsMap(entry[method])
			if !ok {
				warnings = append(warnings, Warning{
					Node:   fmt.Sprintf("paths.%s.%s", path, method),
					Reason: "operation is not a mapping",
				})
				continue
			}

			sections := renderOperation(path, method, op, entry)
			chunks = c.appendChunk(chunks, domain.Chunk{
				ID:     fmt.Sprintf("%s:path:%s:%s", specID, path, method),
				SpecID: specID,
				Kind:   domain.ChunkKindPath,
				Metadata: domain.ChunkMetadata{
					SpecID: specID,
					Kind:   domain.ChunkKindPath,
					Path:   path,
					Method: method,
				},
			}, sections)
			emitted++
		}

		if emitted == 0 {
			warnings = append(warnings, Warning{Node: "paths." + path, Reason: "no valid methods"})
		}
	}

	return chunks, warnings
}

func (c *Chunker) chunkComponents(root map[string]any, specID string) ([]domain.Chunk, []Warning) {
	rawComponents, ok := root["components"]
	if !ok {
		return nil, nil
	}
	components, ok := openapi.AsMap(rawComponents)
	if !ok {
		return nil, []Warning{{Node: "components", Reason: "not a mapping"}}
	}

	var chunks []domain.Chunk
	var warnings []Warning

	for _, category := range orderedCategories(components) {
		entries, ok := openapi.AsMap(components[category])
		if !ok {
			warnings = append(warnings, Warning{Node: "components." + category, Reason: "not a mapping"})
			continue
		}

		kind := singularCategory(category)
		for _, name := range sortedKeys(entries) {
			node, ok := openapi.AsMap(entries[name])
			if !ok {
				warnings = append(warnings, Warning{
					Node:   fmt.Sprintf("components.%s.%s", category, name),
					Reason: "not a mapping",
				})
				continue
			}

			// Only immediate reference names are recorded. References are
			// never followed, so cyclic schemas cannot cause non-termination.
			refs := collectRefs(node)
			sections := renderComponent(kind, name, node)
			chunks = c.appendChunk(chunks, domain.Chunk{
				ID:     fmt.Sprintf("%s:component:%s:%s", specID, kind, name),
				SpecID: specID,
				Kind:   domain.ChunkKindComponent,
				Metadata: domain.ChunkMetadata{
					SpecID:        specID,
					Kind:          domain.ChunkKindComponent,
					ComponentType: kind,
					ComponentName: name,
					References:    refs,
				},
			}, sections)
		}
	}

	return chunks, warnings
}

// appendChunk finalizes a chunk from its rendered sections, splitting into
// ordinal-suffixed parts when the text exceeds MaxChars. When sections is
// nil the chunk's Text field is already set.
func (c *Chunker) appendChunk(chunks []domain.Chunk, base domain.Chunk, sections []string) []domain.Chunk {
	if sections != nil {
		base.Text = strings.Join(sections, "\n")
	}
	if len(base.Text) <= c.cfg.MaxChars {
		return append(chunks, base)
	}

	parts := packSections(sections, base.Text, c.cfg.MaxChars)
	for i, part := range parts {
		sub := base
		sub.ID = fmt.Sprintf("%s:%d", base.ID, i+1)
		sub.Text = part
		sub.Metadata.Part = i + 1
		chunks = append(chunks, sub)
	}
	return chunks
}

func orderedMethods(entry map[string]any) []string {
	var methods []string
	seen := make(map[string]bool, len(canonicalMethods))
	for _, m := range canonicalMethods {
		if _, ok := entry[m]; ok {
			methods = append(methods, m)
			seen[m] = true
		}
	}
	// Non-standard methods come last, alphabetically.
	var extra []string
	for key, val := range entry {
		if seen[key] || pathEntryKeys[key] {
			continue
		}
		if _, ok := openapi.AsMap(val); ok {
			extra = append(extra, key)
		}
	}
	sort.Strings(extra)
	return append(methods, extra...)
}

func orderedCategories(components map[string]any) []string {
	var categories []string
	seen := make(map[string]bool, len(canonicalCategories))
	for _, c := range canonicalCategories {
		if _, ok := components[c]; ok {
			categories = append(categories, c)
			seen[c] = true
		}
	}
	var extra []string
	for key := range components {
		if !seen[key] {
			extra = append(extra, key)
		}
	}
	sort.Strings(extra)
	return append(categories, extra...)
}

func singularCategory(category string) string {
	switch category {
	case "schemas":
		return "schema"
	case "responses":
		return "response"
	case "parameters":
		return "parameter"
	case "requestBodies":
		return "requestBody"
	case "securitySchemes":
		return "securityScheme"
	case "headers":
		return "header"
	default:
		return strings.TrimSuffix(category, "s")
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
