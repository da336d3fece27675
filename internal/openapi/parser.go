// Package openapi loads raw OpenAPI documents into a normalized in-memory
// tree. It validates only the minimal shape the chunker relies on; full
// schema validation is out of scope.
package openapi

import (
	"encoding/json"
	"errors"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/specwise/specchat/internal/domain"
)

// Info holds the identifying fields extracted from the document's info block.
type Info struct {
	Title       string
	Version     string
	Description string
}

// Document is a parsed OpenAPI specification. Root is the normalized tree:
// every mapping is a map[string]any regardless of the source format.
type Document struct {
	Root    map[string]any
	Info    Info
	Format  domain.SpecFormat
	Version string
}

// DetectFormat guesses the serialization of raw bytes. JSON documents must
// start with '{' after leading whitespace; everything else is treated as YAML.
func DetectFormat(raw []byte) domain.SpecFormat {
	trimmed := strings.TrimLeft(string(raw), " \t\r\n")
	if strings.HasPrefix(trimmed, "{") {
		return domain.SpecFormatJSON
	}
	return domain.SpecFormatYAML
}

// Parse loads raw bytes into a Document and validates the minimal OpenAPI
// shape: a version key (openapi or swagger), an info block that is a mapping
// when present, and at least one of paths or components.
func Parse(raw []byte, format domain.SpecFormat) (*Document, error) {
	if len(raw) == 0 {
		return nil, domain.ErrEmptySpec
	}

	var root map[string]any
	switch format {
	case domain.SpecFormatJSON:
		if err := json.Unmarshal(raw, &root); err != nil {
			return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid JSON document", err)
		}
	case domain.SpecFormatYAML:
		if err := yaml.Unmarshal(raw, &root); err != nil {
			return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid YAML document", err)
		}
	default:
		return nil, domain.ErrInvalidSpecFormat
	}

	if root == nil {
		return nil, domain.ErrEmptySpec
	}

	version := stringValue(root["openapi"])
	if version == "" {
		version = stringValue(root["swagger"])
	}
	if version == "" {
		return nil, domain.ErrNotOpenAPI.WithCause(errors.New("missing openapi/swagger version field"))
	}

	if _, hasPaths := root["paths"]; !hasPaths {
		if _, hasComponents := root["components"]; !hasComponents {
			return nil, domain.ErrNotOpenAPI.WithCause(errors.New("document has neither paths nor components"))
		}
	}

	doc := &Document{
		Root:    root,
		Format:  format,
		Version: version,
	}

	if rawInfo, ok := root["info"]; ok {
		info, ok := AsMap(rawInfo)
		if !ok {
			return nil, domain.NewDomainError(domain.ErrCodeValidation, "info block is not a mapping")
		}
		doc.Info = Info{
			Title:       stringValue(info["title"]),
			Version:     stringValue(info["version"]),
			Description: stringValue(info["description"]),
		}
	}

	return doc, nil
}

// AsMap normalizes a tree node to map[string]any. YAML documents may decode
// nested mappings as map[any]any depending on key types.
func AsMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			key, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[key] = val
		}
		return out, true
	default:
		return nil, false
	}
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}
